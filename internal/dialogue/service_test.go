package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casebooklabs/casebook/internal/domain"
)

func investigationSlide() *domain.Slide {
	return &domain.Slide{
		ID:   "s5",
		Kind: domain.SlideInvestigation,
		Investigation: &domain.InvestigationContent{
			Title:       "The vanishing webhooks",
			Description: "Webhooks stopped arriving after the deploy.",
			Context:     "The deploy changed the retry queue.",
			Solution:    "The queue consumer was bound to the old exchange.",
		},
	}
}

// scriptedEvaluator returns canned evaluations in order.
type scriptedEvaluator struct {
	evals []*Evaluation
	errs  []error
	calls int
	last  Request
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	i := e.calls
	e.calls++
	e.last = req
	if i < len(e.errs) && e.errs[i] != nil {
		return nil, e.errs[i]
	}
	return e.evals[i], nil
}

func reply(msg string) domain.ChatEntry {
	return domain.ChatEntry{Role: domain.RoleAssistant, Message: msg}
}

func TestService_Send_AppendsExchange(t *testing.T) {
	eval := &scriptedEvaluator{evals: []*Evaluation{
		{Entries: []domain.ChatEntry{reply("worth checking the queue bindings")}},
	}}
	svc := NewService(eval, 0)
	state := domain.NewInvestigationState("s5")

	result, err := svc.Send(context.Background(), investigationSlide(), state, "is it the cache?")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if len(state.ChatHistory) != 2 {
		t.Fatalf("ChatHistory length = %d; want 2", len(state.ChatHistory))
	}
	if state.ChatHistory[0].Role != domain.RoleLearner {
		t.Error("learner message not first in transcript")
	}
	if result.Resolved {
		t.Error("Resolved = true; want false")
	}
	if state.Phase != domain.PhaseInvestigating {
		t.Errorf("Phase = %q; want investigating", state.Phase)
	}
	if eval.last.Message != "is it the cache?" {
		t.Errorf("evaluator saw message %q", eval.last.Message)
	}
	if len(eval.last.Transcript) != 0 {
		t.Errorf("evaluator saw %d prior entries; want 0", len(eval.last.Transcript))
	}
}

func TestService_Send_SolvedMarksResolved(t *testing.T) {
	eval := &scriptedEvaluator{evals: []*Evaluation{
		{Entries: []domain.ChatEntry{reply("need more evidence")}},
		{
			Entries:   []domain.ChatEntry{reply("Excellent work! The consumer was bound to the old exchange.")},
			Phase:     domain.PhaseSolved,
			IsCorrect: true,
		},
	}}
	svc := NewService(eval, 0)
	state := domain.NewInvestigationState("s5")
	slide := investigationSlide()

	if _, err := svc.Send(context.Background(), slide, state, "first guess"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	result, err := svc.Send(context.Background(), slide, state, "the consumer was bound to the old exchange after the deploy")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if !result.Resolved || !result.IsCorrect {
		t.Errorf("result = %+v; want resolved and correct", result)
	}
	if state.Phase != domain.PhaseSolved {
		t.Errorf("Phase = %q; want solved", state.Phase)
	}
	if state.HintsGiven != 0 {
		t.Errorf("HintsGiven = %d; want 0 (no hint flagged)", state.HintsGiven)
	}
	if len(state.ChatHistory) != 4 {
		t.Errorf("ChatHistory length = %d; want 4", len(state.ChatHistory))
	}
}

func TestService_Send_CountsHints(t *testing.T) {
	eval := &scriptedEvaluator{evals: []*Evaluation{
		{Entries: []domain.ChatEntry{reply("hint: look at the bindings")}, HintProvided: true},
	}}
	svc := NewService(eval, 0)
	state := domain.NewInvestigationState("s5")

	result, err := svc.Send(context.Background(), investigationSlide(), state, "any ideas?")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !result.HintProvided {
		t.Error("HintProvided = false; want true")
	}
	if state.HintsGiven != 1 {
		t.Errorf("HintsGiven = %d; want 1", state.HintsGiven)
	}
}

func TestService_Send_TerminalRejected(t *testing.T) {
	eval := &scriptedEvaluator{}
	svc := NewService(eval, 0)
	state := domain.NewInvestigationState("s5")
	state.Phase = domain.PhaseGivenUp

	_, err := svc.Send(context.Background(), investigationSlide(), state, "wait, one more idea")
	if !errors.Is(err, domain.ErrInvestigationClosed) {
		t.Errorf("Send() = %v; want ErrInvestigationClosed", err)
	}
	if eval.calls != 0 {
		t.Error("evaluator called for a closed investigation")
	}
}

func TestService_Send_EvaluatorFailureLeavesStateIntact(t *testing.T) {
	eval := &scriptedEvaluator{
		evals: []*Evaluation{nil},
		errs:  []error{errors.New("transport: connection reset")},
	}
	svc := NewService(eval, 0)
	state := domain.NewInvestigationState("s5")

	_, err := svc.Send(context.Background(), investigationSlide(), state, "is it dns?")
	if !errors.Is(err, domain.ErrDialogueUnavailable) {
		t.Errorf("Send() = %v; want ErrDialogueUnavailable", err)
	}

	// No partial append: the transcript must not contain the learner
	// message for a failed exchange.
	if len(state.ChatHistory) != 0 {
		t.Errorf("ChatHistory length = %d after failure; want 0", len(state.ChatHistory))
	}
	if state.Phase != domain.PhaseInvestigating {
		t.Errorf("Phase = %q; want investigating", state.Phase)
	}
}

func TestService_Send_Timeout(t *testing.T) {
	slow := EvaluatorFunc(func(ctx context.Context, req Request) (*Evaluation, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &Evaluation{Entries: []domain.ChatEntry{reply("late")}}, nil
		}
	})
	svc := NewService(slow, 10*time.Millisecond)
	state := domain.NewInvestigationState("s5")

	_, err := svc.Send(context.Background(), investigationSlide(), state, "hello?")
	if !errors.Is(err, domain.ErrDialogueUnavailable) {
		t.Errorf("Send() = %v; want ErrDialogueUnavailable", err)
	}
	if len(state.ChatHistory) != 0 {
		t.Error("transcript mutated by timed-out exchange")
	}
}

func TestService_Send_IllegalPhaseFromEvaluator(t *testing.T) {
	eval := &scriptedEvaluator{evals: []*Evaluation{
		{Entries: []domain.ChatEntry{reply("??")}, Phase: "paused"},
	}}
	svc := NewService(eval, 0)
	state := domain.NewInvestigationState("s5")

	_, err := svc.Send(context.Background(), investigationSlide(), state, "hm")
	if !errors.Is(err, domain.ErrInvalidPhaseTransition) {
		t.Errorf("Send() = %v; want ErrInvalidPhaseTransition", err)
	}
	if len(state.ChatHistory) != 0 {
		t.Error("transcript mutated by rejected verdict")
	}
}

func TestResilientEvaluator_RetriesTransientFailures(t *testing.T) {
	calls := 0
	flaky := EvaluatorFunc(func(ctx context.Context, req Request) (*Evaluation, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transport: connection reset")
		}
		return &Evaluation{Entries: []domain.ChatEntry{reply("ok")}}, nil
	})

	re := NewResilientEvaluator(flaky, ResilientConfig{
		EnableRetry:  true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	})

	eval, err := re.Evaluate(context.Background(), Request{SlideID: "s5", Message: "m"})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if eval == nil || len(eval.Entries) != 1 {
		t.Errorf("Evaluate() = %+v; want one entry", eval)
	}
	if calls != 3 {
		t.Errorf("evaluator called %d times; want 3", calls)
	}
}

func TestResilientEvaluator_DoesNotRetryCancellation(t *testing.T) {
	calls := 0
	cancelled := EvaluatorFunc(func(ctx context.Context, req Request) (*Evaluation, error) {
		calls++
		return nil, context.Canceled
	})

	re := NewResilientEvaluator(cancelled, ResilientConfig{
		EnableRetry:  true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	})

	if _, err := re.Evaluate(context.Background(), Request{}); err == nil {
		t.Fatal("Evaluate() = nil error; want error")
	}
	if calls != 1 {
		t.Errorf("evaluator called %d times; want 1", calls)
	}
}
