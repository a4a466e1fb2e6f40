package dialogue

import (
	"context"
	"fmt"
	"time"

	"github.com/casebooklabs/casebook/internal/domain"
)

// SendResult is the outcome of one successful exchange.
type SendResult struct {
	// Entries are the transcript entries added by this exchange, learner
	// message included.
	Entries []domain.ChatEntry
	// Phase is the investigation phase after the exchange.
	Phase domain.InvestigationPhase
	// Resolved is true when this exchange moved the investigation to a
	// terminal phase; the caller marks the slide complete.
	Resolved     bool
	IsCorrect    bool
	HintProvided bool
}

// Service runs investigation exchanges against an evaluator.
type Service struct {
	evaluator Evaluator
	timeout   time.Duration
}

// DefaultTimeout bounds a single evaluation call.
const DefaultTimeout = 30 * time.Second

// NewService creates a dialogue service. A non-positive timeout falls back
// to DefaultTimeout.
func NewService(evaluator Evaluator, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{evaluator: evaluator, timeout: timeout}
}

// Send evaluates one learner message and applies the verdict to the
// investigation state. State is only mutated after the evaluator returns a
// valid verdict, so a timeout or transport failure leaves the transcript
// untouched and the message available for resubmission.
func (s *Service) Send(ctx context.Context, slide *domain.Slide, state *domain.InvestigationState, message string) (*SendResult, error) {
	if slide.Kind != domain.SlideInvestigation || slide.Investigation == nil {
		return nil, fmt.Errorf("%w: slide %s is not an investigation", domain.ErrInvalidSlide, slide.ID)
	}
	if state.Resolved() {
		return nil, fmt.Errorf("%w: slide %s is %s", domain.ErrInvestigationClosed, slide.ID, state.Phase)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	eval, err := s.evaluator.Evaluate(ctx, Request{
		SlideID:    slide.ID,
		Problem:    *slide.Investigation,
		Message:    message,
		Transcript: append([]domain.ChatEntry(nil), state.ChatHistory...),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDialogueUnavailable, err)
	}
	if eval == nil || len(eval.Entries) == 0 {
		return nil, fmt.Errorf("%w: evaluator returned no entries", domain.ErrDialogueUnavailable)
	}

	// Validate the returned phase before touching state: the evaluator may
	// keep the current phase or move to a terminal one, nothing else.
	next := eval.Phase
	if next == "" {
		next = state.Phase
	}
	if next != state.Phase && !next.Terminal() {
		return nil, fmt.Errorf("%w: evaluator returned phase %q", domain.ErrInvalidPhaseTransition, next)
	}

	// Commit: learner message first, then the evaluator's entries, in order.
	isCorrect := eval.IsCorrect
	learnerEntry := domain.ChatEntry{
		Role:      domain.RoleLearner,
		Message:   message,
		Timestamp: time.Now(),
		IsCorrect: &isCorrect,
	}
	added := append([]domain.ChatEntry{learnerEntry}, eval.Entries...)
	state.Append(added...)

	if eval.HintProvided {
		state.RecordHint()
	}
	if next != state.Phase {
		if err := state.Transition(next); err != nil {
			return nil, err
		}
	}

	return &SendResult{
		Entries:      state.ChatHistory[len(state.ChatHistory)-len(added):],
		Phase:        state.Phase,
		Resolved:     state.Resolved(),
		IsCorrect:    eval.IsCorrect,
		HintProvided: eval.HintProvided,
	}, nil
}
