package domain

import (
	"fmt"
	"time"
)

// Progress tracks one learner's advancement through one lesson. There is at
// most one record per (learner, lesson) pair.
//
// Invariants:
//   - CompletedSlideIDs is a subset of the lesson's slide ids
//   - IsCompleted is true iff the completed set covers every slide
//   - IsCompleted never reverts to false
//   - Seq increases on every mutation; a snapshot with a lower Seq than the
//     stored row is stale and must not overwrite it
type Progress struct {
	AggregateRoot `json:"-"`

	LearnerID         string     `json:"learner_id"`
	LessonID          string     `json:"lesson_id"`
	CompletedSlideIDs []string   `json:"completed_slide_ids"`
	CurrentSlideIndex int        `json:"current_slide_index"`
	IsCompleted       bool       `json:"is_completed"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Seq               uint64     `json:"seq"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	completed map[string]bool
}

// NewProgress creates a fresh progress record positioned at the first slide.
func NewProgress(learnerID, lessonID string) *Progress {
	now := time.Now()
	return &Progress{
		LearnerID: learnerID,
		LessonID:  lessonID,
		completed: make(map[string]bool),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// rebuildIndex regenerates the lookup set after a record is restored from a
// store, where only the slice survives serialization.
func (p *Progress) rebuildIndex() {
	p.completed = make(map[string]bool, len(p.CompletedSlideIDs))
	for _, id := range p.CompletedSlideIDs {
		p.completed[id] = true
	}
}

// Restore prepares a deserialized record for use.
func (p *Progress) Restore() {
	p.rebuildIndex()
}

// Completed reports whether a slide id is in the completed set.
func (p *Progress) Completed(slideID string) bool {
	if p.completed == nil {
		p.rebuildIndex()
	}
	return p.completed[slideID]
}

// CompletedCount returns the size of the completed set.
func (p *Progress) CompletedCount() int {
	return len(p.CompletedSlideIDs)
}

// MarkComplete adds slideID to the completed set. It is idempotent: marking
// an already-completed slide changes nothing and bumps nothing. When the set
// grows to cover the whole lesson the completion flag flips exactly once,
// CompletedAt is stamped, and a LessonCompletedEvent is recorded.
func (p *Progress) MarkComplete(lesson *Lesson, slideID string) (bool, error) {
	if !lesson.HasSlide(slideID) {
		return false, fmt.Errorf("%w: %s in lesson %s", ErrUnknownSlideID, slideID, lesson.ID)
	}
	if p.Completed(slideID) {
		return false, nil
	}

	p.CompletedSlideIDs = append(p.CompletedSlideIDs, slideID)
	p.completed[slideID] = true
	p.touch()

	p.RecordEvent(NewSlideCompletedEvent(p.LearnerID, p.LessonID, slideID, len(p.CompletedSlideIDs), lesson.SlideCount()))

	if !p.IsCompleted && len(p.CompletedSlideIDs) == lesson.SlideCount() {
		now := time.Now()
		p.IsCompleted = true
		p.CompletedAt = &now
		p.RecordEvent(NewLessonCompletedEvent(p.LearnerID, p.LessonID, now))
	}

	return true, nil
}

// SetCurrentIndex moves the cursor. Out-of-range values are clamped rather
// than rejected so a bad caller can never corrupt the record.
func (p *Progress) SetCurrentIndex(index, slideCount int) {
	if index < 0 {
		index = 0
	}
	if max := slideCount - 1; index > max {
		index = max
	}
	if index == p.CurrentSlideIndex {
		return
	}
	p.CurrentSlideIndex = index
	p.touch()
}

func (p *Progress) touch() {
	p.Seq++
	p.UpdatedAt = time.Now()
}

// Snapshot returns a copy safe to hand to an asynchronous writer. Recorded
// events and the lookup set are not carried along.
func (p *Progress) Snapshot() Progress {
	cp := Progress{
		LearnerID:         p.LearnerID,
		LessonID:          p.LessonID,
		CompletedSlideIDs: append([]string(nil), p.CompletedSlideIDs...),
		CurrentSlideIndex: p.CurrentSlideIndex,
		IsCompleted:       p.IsCompleted,
		Seq:               p.Seq,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}
