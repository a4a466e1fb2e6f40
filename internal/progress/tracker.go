package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casebooklabs/casebook/internal/domain"
)

// Tracker manages one learner's progress through one lesson. It applies
// completion marks to the aggregate, publishes the recorded domain events,
// and hands snapshots to the async writer. Methods are not safe for
// concurrent use; the owning session serializes calls.
type Tracker struct {
	lesson     *domain.Lesson
	record     *domain.Progress
	writer     *Writer
	dispatcher *domain.EventDispatcher
	logger     *slog.Logger
}

// NewTracker restores the progress record for (learnerID, lesson) from the
// store, or initializes a fresh one on first view. A store read failure is
// non-fatal: the session starts from an empty record and a warning is
// logged.
func NewTracker(ctx context.Context, store Store, lesson *domain.Lesson, learnerID string, dispatcher *domain.EventDispatcher, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = domain.NewEventDispatcher()
	}

	record, err := store.Load(ctx, learnerID, lesson.ID)
	switch {
	case err == nil:
		record.Restore()
		if err := validateRestored(record, lesson); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrProgressNotFound):
		record = domain.NewProgress(learnerID, lesson.ID)
	default:
		logger.Warn("progress load failed, starting from empty record",
			"learner", learnerID,
			"lesson", lesson.ID,
			"error", err)
		record = domain.NewProgress(learnerID, lesson.ID)
	}

	return &Tracker{
		lesson:     lesson,
		record:     record,
		writer:     NewWriter(store, WriterConfig{Logger: logger}),
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// validateRestored rejects a stored record that violates the subset
// invariant, which would indicate the lesson changed under the record or
// the store is corrupt.
func validateRestored(record *domain.Progress, lesson *domain.Lesson) error {
	for _, id := range record.CompletedSlideIDs {
		if !lesson.HasSlide(id) {
			return fmt.Errorf("%w: restored record references slide %s", domain.ErrUnknownSlideID, id)
		}
	}
	if record.CurrentSlideIndex < 0 || record.CurrentSlideIndex >= lesson.SlideCount() {
		record.SetCurrentIndex(record.CurrentSlideIndex, lesson.SlideCount())
	}
	return nil
}

// MarkComplete adds a slide to the completed set. Idempotent; only an
// actual change enqueues a persistence write. The one-shot lesson-completed
// event is published through the dispatcher on the completing call.
func (t *Tracker) MarkComplete(slideID string) error {
	changed, err := t.record.MarkComplete(t.lesson, slideID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	t.publishRecorded()
	t.writer.Enqueue(t.record.Snapshot())
	return nil
}

// SetCurrentIndex persists a cursor move.
func (t *Tracker) SetCurrentIndex(index int) {
	before := t.record.Seq
	t.record.SetCurrentIndex(index, t.lesson.SlideCount())
	if t.record.Seq != before {
		t.writer.Enqueue(t.record.Snapshot())
	}
}

// EnsurePersisted enqueues the current state. Used on session start so a
// fresh record exists in the store from the first slide view.
func (t *Tracker) EnsurePersisted() {
	t.writer.Enqueue(t.record.Snapshot())
}

// Record exposes the underlying aggregate (read-only use).
func (t *Tracker) Record() *domain.Progress {
	return t.record
}

// Completed reports whether a slide id is in the completed set.
func (t *Tracker) Completed(slideID string) bool {
	return t.record.Completed(slideID)
}

// IsLessonCompleted reports the monotonic completion flag.
func (t *Tracker) IsLessonCompleted() bool {
	return t.record.IsCompleted
}

// Summary is a compact view of lesson progress for consumers.
type Summary struct {
	LessonID       string     `json:"lesson_id"`
	LearnerID      string     `json:"learner_id"`
	CompletedCount int        `json:"completed_count"`
	TotalSlides    int        `json:"total_slides"`
	PercentDone    float64    `json:"percent_done"`
	CurrentIndex   int        `json:"current_slide_index"`
	IsCompleted    bool       `json:"is_completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Summarize computes the progress summary.
func (t *Tracker) Summarize() Summary {
	total := t.lesson.SlideCount()
	done := t.record.CompletedCount()
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	return Summary{
		LessonID:       t.lesson.ID,
		LearnerID:      t.record.LearnerID,
		CompletedCount: done,
		TotalSlides:    total,
		PercentDone:    pct,
		CurrentIndex:   t.record.CurrentSlideIndex,
		IsCompleted:    t.record.IsCompleted,
		CompletedAt:    t.record.CompletedAt,
	}
}

// Dispatcher returns the dispatcher progress events publish through, so
// callers can publish related events on the same bus.
func (t *Tracker) Dispatcher() *domain.EventDispatcher {
	return t.dispatcher
}

// Flush waits for outstanding writes; used by tests and shutdown.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.writer.Flush(ctx)
}

// Close stops the background writer.
func (t *Tracker) Close() {
	t.writer.Close()
}

func (t *Tracker) publishRecorded() {
	events := t.record.RecordedEvents()
	t.record.ClearEvents()
	t.dispatcher.PublishAll(events)
}
