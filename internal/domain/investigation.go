package domain

import (
	"fmt"
	"time"
)

// InvestigationPhase is the state of an investigation dialogue.
type InvestigationPhase string

const (
	PhaseInvestigating InvestigationPhase = "investigating"
	PhaseSolved        InvestigationPhase = "solved"
	PhaseGivenUp       InvestigationPhase = "given_up"
)

// Terminal reports whether a phase accepts no further input.
func (p InvestigationPhase) Terminal() bool {
	return p == PhaseSolved || p == PhaseGivenUp
}

// ChatRole identifies the author of a transcript entry.
type ChatRole string

const (
	RoleLearner   ChatRole = "learner"
	RoleAssistant ChatRole = "assistant"
)

// ChatEntry is one message in an investigation transcript.
type ChatEntry struct {
	Role         ChatRole  `json:"role"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	IsCorrect    *bool     `json:"is_correct,omitempty"`
	HintProvided bool      `json:"hint_provided,omitempty"`
}

// InvestigationState is the mutable half of an interactive investigation
// slide, scoped to a single (learner, lesson) pair. The transcript is
// append-only and the phase moves at most once: investigating -> solved or
// investigating -> given_up.
type InvestigationState struct {
	SlideID     string             `json:"slide_id"`
	Phase       InvestigationPhase `json:"phase"`
	HintsGiven  int                `json:"hints_given"`
	ChatHistory []ChatEntry        `json:"chat_history"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty"`
}

// NewInvestigationState creates the initial state for an investigation slide.
func NewInvestigationState(slideID string) *InvestigationState {
	return &InvestigationState{
		SlideID: slideID,
		Phase:   PhaseInvestigating,
	}
}

// Append adds entries to the transcript in order. Entries without a
// timestamp are stamped at insertion.
func (st *InvestigationState) Append(entries ...ChatEntry) {
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}
		st.ChatHistory = append(st.ChatHistory, e)
	}
}

// Transition moves the investigation to a new phase. Terminal phases are
// absorbing: any transition out of them is rejected, as is a move back to
// investigating.
func (st *InvestigationState) Transition(to InvestigationPhase) error {
	if to == st.Phase {
		return nil
	}
	if st.Phase.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, st.Phase, to)
	}
	if !to.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, st.Phase, to)
	}

	st.Phase = to
	now := time.Now()
	st.ResolvedAt = &now
	return nil
}

// RecordHint increments the hint counter.
func (st *InvestigationState) RecordHint() {
	st.HintsGiven++
}

// Clone returns an independent copy of the state. Mutating the copy never
// touches the original's transcript.
func (st *InvestigationState) Clone() *InvestigationState {
	cp := *st
	cp.ChatHistory = append([]ChatEntry(nil), st.ChatHistory...)
	if st.ResolvedAt != nil {
		t := *st.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// Resolved reports whether the investigation reached a terminal phase.
func (st *InvestigationState) Resolved() bool {
	return st.Phase.Terminal()
}
