// Package player drives a learner through a lesson: it owns the current
// slide position, per-slide view state, and the hand-off between slide
// evaluation, investigation dialogue, and progress tracking.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/casebooklabs/casebook/internal/dialogue"
	"github.com/casebooklabs/casebook/internal/domain"
	"github.com/casebooklabs/casebook/internal/evaluate"
	"github.com/casebooklabs/casebook/internal/progress"
)

var (
	// ErrStaleRequest reports that navigation moved on while an async
	// call was in flight; its result was discarded.
	ErrStaleRequest = errors.New("request superseded by navigation")
)

// ViewState is the transient per-slide state the UI layer round-trips.
// It is reset on every navigation.
type ViewState struct {
	SelectedOptionID string            `json:"selected_option_id,omitempty"`
	DragAssignments  map[string]string `json:"drag_assignments,omitempty"`
	Draft            string            `json:"draft,omitempty"`
	Submitted        bool              `json:"submitted"`
	LastResult       *evaluate.Result  `json:"last_result,omitempty"`
}

// Session is a single learner's pass through one lesson. All methods are
// safe for concurrent use; state is guarded by a single mutex so the
// engine stays effectively single-threaded per session.
type Session struct {
	mu sync.Mutex

	lesson   *domain.Lesson
	tracker  *progress.Tracker
	dialogue *dialogue.Service
	logger   *slog.Logger

	currentIndex int
	view         ViewState

	// generation increments on every navigation; async results carrying
	// an older generation are discarded on arrival.
	generation uint64

	// investigations holds dialogue state per investigation slide,
	// created lazily on first message.
	investigations map[string]*domain.InvestigationState
}

// NewSession opens a session positioned at the tracker's last known slide.
func NewSession(lesson *domain.Lesson, tracker *progress.Tracker, dlg *dialogue.Service, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	index := tracker.Record().CurrentSlideIndex
	if index < 0 || index >= lesson.SlideCount() {
		index = 0
	}
	return &Session{
		lesson:         lesson,
		tracker:        tracker,
		dialogue:       dlg,
		logger:         logger,
		currentIndex:   index,
		view:           freshView(),
		investigations: make(map[string]*domain.InvestigationState),
	}
}

func freshView() ViewState {
	return ViewState{DragAssignments: make(map[string]string)}
}

// Lesson returns the lesson this session plays.
func (s *Session) Lesson() *domain.Lesson { return s.lesson }

// CurrentIndex returns the active slide index.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// Current returns the active slide and its index.
func (s *Session) Current() (*domain.Slide, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &s.lesson.Slides[s.currentIndex], s.currentIndex
}

// View returns a copy of the transient view state for the active slide.
func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view
	v.DragAssignments = cloneMap(s.view.DragAssignments)
	if s.view.LastResult != nil {
		r := *s.view.LastResult
		v.LastResult = &r
	}
	return v
}

// Next advances to the following slide. At the last slide it is a no-op.
// Advancing past an info or video slide marks it complete.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentIndex >= s.lesson.SlideCount()-1 {
		return s.currentIndex
	}

	slide := &s.lesson.Slides[s.currentIndex]
	if slide.Kind == domain.SlideInfo || slide.Kind == domain.SlideVideo {
		if err := s.tracker.MarkComplete(slide.ID); err != nil {
			s.logger.Warn("auto-complete on advance failed",
				"slide_id", slide.ID, "error", err)
		}
	}

	s.moveTo(s.currentIndex + 1)
	return s.currentIndex
}

// Previous moves back one slide. At the first slide it is a no-op.
// Moving back never un-marks completion.
func (s *Session) Previous() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentIndex == 0 {
		return s.currentIndex
	}
	s.moveTo(s.currentIndex - 1)
	return s.currentIndex
}

// JumpTo moves directly to the given index. Out-of-range targets are
// clamped into the lesson and logged, never an error.
func (s *Session) JumpTo(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	clamped := index
	if clamped < 0 {
		clamped = 0
	}
	if max := s.lesson.SlideCount() - 1; clamped > max {
		clamped = max
	}
	if clamped != index {
		s.logger.Warn("jump target out of range, clamped",
			"requested", index, "clamped", clamped, "slides", s.lesson.SlideCount())
	}
	if clamped == s.currentIndex {
		return s.currentIndex
	}
	s.moveTo(clamped)
	return s.currentIndex
}

// moveTo changes the index, resets transient view state, bumps the
// generation so in-flight async results are discarded, and records the
// new position with the tracker. Callers hold the mutex.
func (s *Session) moveTo(index int) {
	s.currentIndex = index
	s.view = freshView()
	s.generation++
	s.tracker.SetCurrentIndex(index)
}

// SelectOption stores the learner's current answer choice for an mcq slide.
func (s *Session) SelectOption(optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lesson.Slides[s.currentIndex].Kind != domain.SlideMCQ {
		return fmt.Errorf("%w: active slide is not a multiple choice question", domain.ErrNotEvaluable)
	}
	if s.view.Submitted {
		return fmt.Errorf("%w: answer already submitted this visit", domain.ErrSlideLocked)
	}
	s.view.SelectedOptionID = optionID
	return nil
}

// AssignItem places a drag item into a category on a drag and drop slide.
// An empty category removes the assignment.
func (s *Session) AssignItem(itemID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lesson.Slides[s.currentIndex].Kind != domain.SlideDragDrop {
		return fmt.Errorf("%w: active slide is not a drag and drop exercise", domain.ErrNotEvaluable)
	}
	if s.view.Submitted {
		return fmt.Errorf("%w: answer already submitted this visit", domain.ErrSlideLocked)
	}
	if categoryID == "" {
		delete(s.view.DragAssignments, itemID)
		return nil
	}
	s.view.DragAssignments[itemID] = categoryID
	return nil
}

// SetDraft stores the learner's unsent investigation message.
func (s *Session) SetDraft(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Draft = message
}

// Submit evaluates the active slide against the current view state.
// The first submission on a visit locks the slide; resubmitting before
// navigating away returns ErrSlideLocked. Correct answers are marked
// complete.
func (s *Session) Submit(ctx context.Context) (evaluate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slide := &s.lesson.Slides[s.currentIndex]
	if !slide.HasCorrectnessPredicate() {
		return evaluate.Result{}, fmt.Errorf("%w: slide %s (%s) has no answer to submit", domain.ErrNotEvaluable, slide.ID, slide.Kind)
	}
	if s.view.Submitted {
		return evaluate.Result{}, fmt.Errorf("%w: slide %s already answered this visit", domain.ErrSlideLocked, slide.ID)
	}

	result, err := evaluate.Evaluate(slide, evaluate.Response{
		SelectedOptionID: s.view.SelectedOptionID,
		Mapping:          s.view.DragAssignments,
	})
	if err != nil {
		return result, err
	}

	s.view.Submitted = true
	s.view.LastResult = &result

	if result.Correct {
		if err := s.tracker.MarkComplete(slide.ID); err != nil {
			s.logger.Warn("mark complete after correct answer failed",
				"slide_id", slide.ID, "error", err)
		}
	}
	return result, nil
}

// Investigation returns the dialogue state for the active investigation
// slide, creating it on first access.
func (s *Session) Investigation() (*domain.InvestigationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slide := &s.lesson.Slides[s.currentIndex]
	if slide.Kind != domain.SlideInvestigation {
		return nil, fmt.Errorf("%w: slide %s is not an investigation", domain.ErrNotEvaluable, slide.ID)
	}
	return s.investigationLocked(slide.ID), nil
}

func (s *Session) investigationLocked(slideID string) *domain.InvestigationState {
	st, ok := s.investigations[slideID]
	if !ok {
		st = domain.NewInvestigationState(slideID)
		s.investigations[slideID] = st
	}
	return st
}

// SendMessage runs one investigation exchange for the active slide. The
// evaluator call happens outside the session lock; if the learner
// navigates away before it returns, the verdict is discarded and
// ErrStaleRequest reported. A terminal verdict marks the slide complete.
func (s *Session) SendMessage(ctx context.Context, message string) (*dialogue.SendResult, error) {
	s.mu.Lock()
	slide := &s.lesson.Slides[s.currentIndex]
	if slide.Kind != domain.SlideInvestigation {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: slide %s is not an investigation", domain.ErrNotEvaluable, slide.ID)
	}
	if s.dialogue == nil {
		s.mu.Unlock()
		return nil, domain.ErrDialogueUnavailable
	}

	gen := s.generation
	// Evaluate against a copy so a discarded verdict leaves the
	// committed transcript untouched.
	scratch := s.investigationLocked(slide.ID).Clone()
	s.mu.Unlock()

	result, err := s.dialogue.Send(ctx, slide, scratch, message)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("dialogue result discarded after navigation",
			"slide_id", slide.ID)
		return nil, ErrStaleRequest
	}
	if err != nil {
		return nil, err
	}

	s.investigations[slide.ID] = scratch
	s.view.Draft = ""

	if result.Resolved {
		rec := s.tracker.Record()
		s.tracker.Dispatcher().Publish(
			domain.NewInvestigationResolvedEvent(rec.LearnerID, rec.LessonID, scratch))
		if err := s.tracker.MarkComplete(slide.ID); err != nil {
			s.logger.Warn("mark complete after resolved investigation failed",
				"slide_id", slide.ID, "error", err)
		}
	}
	return result, nil
}

// Progress returns the tracker's summary for this session.
func (s *Session) Progress() progress.Summary {
	return s.tracker.Summarize()
}

// Close flushes pending progress writes and stops the tracker.
func (s *Session) Close() {
	s.tracker.Close()
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
