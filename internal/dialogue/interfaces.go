// Package dialogue drives the multi-turn conversation for interactive
// investigation slides. The judging of free-text learner input is delegated
// to an external evaluator; this package owns the state transitions and
// keeps the transcript consistent across evaluator failures.
package dialogue

import (
	"context"

	"github.com/casebooklabs/casebook/internal/domain"
)

// Request carries everything the external evaluator needs to judge one
// learner message.
type Request struct {
	SlideID string
	Problem domain.InvestigationContent
	Message string
	// Transcript is the conversation so far, oldest first, not including
	// the message under evaluation.
	Transcript []domain.ChatEntry
}

// Evaluation is the evaluator's verdict on one learner message.
type Evaluation struct {
	// Entries are appended to the transcript in order. The evaluator
	// includes at least its own reply; on a terminal verdict the reply
	// carries the solution reveal.
	Entries []domain.ChatEntry
	// Phase is the phase the investigation should be in after this
	// exchange. Returning the current phase means no transition.
	Phase domain.InvestigationPhase
	// HintProvided marks that the reply contains a hint.
	HintProvided bool
	// IsCorrect marks that the learner's message solved the problem.
	IsCorrect bool
}

// Evaluator is the external dialogue-evaluation collaborator.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Evaluation, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, req Request) (*Evaluation, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	return f(ctx, req)
}
