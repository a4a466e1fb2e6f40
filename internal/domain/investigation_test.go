package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewInvestigationState(t *testing.T) {
	st := NewInvestigationState("s5")

	if st.Phase != PhaseInvestigating {
		t.Errorf("Phase = %q; want %q", st.Phase, PhaseInvestigating)
	}
	if st.HintsGiven != 0 {
		t.Errorf("HintsGiven = %d; want 0", st.HintsGiven)
	}
	if len(st.ChatHistory) != 0 {
		t.Errorf("ChatHistory length = %d; want 0", len(st.ChatHistory))
	}
}

func TestInvestigationState_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    InvestigationPhase
		to      InvestigationPhase
		wantErr bool
	}{
		{"investigating to solved", PhaseInvestigating, PhaseSolved, false},
		{"investigating to given_up", PhaseInvestigating, PhaseGivenUp, false},
		{"solved stays solved", PhaseSolved, PhaseSolved, false},
		{"solved to given_up", PhaseSolved, PhaseGivenUp, true},
		{"given_up to solved", PhaseGivenUp, PhaseSolved, true},
		{"solved back to investigating", PhaseSolved, PhaseInvestigating, true},
		{"given_up back to investigating", PhaseGivenUp, PhaseInvestigating, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewInvestigationState("s5")
			st.Phase = tt.from

			err := st.Transition(tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhaseTransition) {
					t.Errorf("Transition() = %v; want ErrInvalidPhaseTransition", err)
				}
				if st.Phase != tt.from {
					t.Errorf("Phase changed to %q on rejected transition", st.Phase)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() = %v; want nil", err)
			}
			if st.Phase != tt.to {
				t.Errorf("Phase = %q; want %q", st.Phase, tt.to)
			}
		})
	}
}

func TestInvestigationState_Transition_StampsResolvedAt(t *testing.T) {
	st := NewInvestigationState("s5")

	if err := st.Transition(PhaseSolved); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}
	if st.ResolvedAt == nil {
		t.Fatal("ResolvedAt not stamped on terminal transition")
	}
	if !st.Resolved() {
		t.Error("Resolved() = false after terminal transition")
	}
}

func TestInvestigationState_TerminalAbsorbing(t *testing.T) {
	// No sequence of transitions can leave a terminal phase.
	st := NewInvestigationState("s5")
	if err := st.Transition(PhaseGivenUp); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	for _, to := range []InvestigationPhase{PhaseInvestigating, PhaseSolved} {
		if err := st.Transition(to); err == nil {
			t.Errorf("Transition(%q) from terminal succeeded", to)
		}
	}
	if st.Phase != PhaseGivenUp {
		t.Errorf("Phase = %q; want %q", st.Phase, PhaseGivenUp)
	}
}

func TestInvestigationState_Append(t *testing.T) {
	st := NewInvestigationState("s5")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st.Append(
		ChatEntry{Role: RoleLearner, Message: "is it the cache?", Timestamp: fixed},
		ChatEntry{Role: RoleAssistant, Message: "worth checking the ttl"},
	)

	if len(st.ChatHistory) != 2 {
		t.Fatalf("ChatHistory length = %d; want 2", len(st.ChatHistory))
	}
	if !st.ChatHistory[0].Timestamp.Equal(fixed) {
		t.Error("explicit timestamp was overwritten")
	}
	if st.ChatHistory[1].Timestamp.IsZero() {
		t.Error("missing timestamp was not stamped at insertion")
	}
	if st.ChatHistory[0].Role != RoleLearner || st.ChatHistory[1].Role != RoleAssistant {
		t.Error("entries appended out of order")
	}
}

func TestInvestigationState_RecordHint(t *testing.T) {
	st := NewInvestigationState("s5")
	st.RecordHint()
	st.RecordHint()

	if st.HintsGiven != 2 {
		t.Errorf("HintsGiven = %d; want 2", st.HintsGiven)
	}
}
