package dialogue

import (
	"context"
	"strings"
	"testing"

	"github.com/casebooklabs/casebook/internal/domain"
)

func keywordRequest(message string, transcript []domain.ChatEntry) Request {
	return Request{
		SlideID: "s1",
		Problem: domain.InvestigationContent{
			Title:       "Timeouts",
			Description: "Requests time out intermittently.",
			Solution:    "connection pool exhaustion",
			Hints:       []string{"Check the pool metrics", "Compare against deploy time"},
		},
		Message:    message,
		Transcript: transcript,
	}
}

func TestKeywordEvaluator_Solves(t *testing.T) {
	eval := &KeywordEvaluator{}

	result, err := eval.Evaluate(context.Background(), keywordRequest("looks like connection pool exhaustion to me", nil))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.IsCorrect {
		t.Error("expected correct verdict")
	}
	if result.Phase != domain.PhaseSolved {
		t.Errorf("phase = %s", result.Phase)
	}
	if len(result.Entries) != 1 || result.Entries[0].Role != domain.RoleAssistant {
		t.Errorf("entries = %+v", result.Entries)
	}
}

func TestKeywordEvaluator_PartialMatchSolves(t *testing.T) {
	eval := &KeywordEvaluator{}

	// Two of three significant words is above the default threshold.
	result, err := eval.Evaluate(context.Background(), keywordRequest("the connection pool is exhausted? exhaustion maybe", nil))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Phase != domain.PhaseSolved {
		t.Errorf("phase = %s", result.Phase)
	}
}

func TestKeywordEvaluator_HintsInOrder(t *testing.T) {
	eval := &KeywordEvaluator{}
	ctx := context.Background()

	first, err := eval.Evaluate(ctx, keywordRequest("is it DNS?", nil))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !first.HintProvided {
		t.Error("expected a hint on the first wrong answer")
	}
	if got := first.Entries[0].Message; got != "Not quite. Hint: Check the pool metrics" {
		t.Errorf("first hint = %q", got)
	}

	transcript := []domain.ChatEntry{
		{Role: domain.RoleLearner, Message: "is it DNS?"},
		{Role: domain.RoleAssistant, Message: first.Entries[0].Message, HintProvided: true},
	}
	second, err := eval.Evaluate(ctx, keywordRequest("a bad deploy?", transcript))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := second.Entries[0].Message; got != "Not quite. Hint: Compare against deploy time" {
		t.Errorf("second hint = %q", got)
	}
}

func TestKeywordEvaluator_GiveUpEndsWithReveal(t *testing.T) {
	eval := &KeywordEvaluator{}
	ctx := context.Background()

	for _, message := range []string{
		"i give up, show me the answer",
		"I'M STUCK",
		"no idea, tell me the answer",
	} {
		result, err := eval.Evaluate(ctx, keywordRequest(message, nil))
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", message, err)
		}
		if result.Phase != domain.PhaseGivenUp {
			t.Errorf("Evaluate(%q) phase = %s; want given_up", message, result.Phase)
		}
		if result.IsCorrect {
			t.Errorf("Evaluate(%q) marked correct", message)
		}
		if len(result.Entries) != 1 || !strings.Contains(result.Entries[0].Message, "connection pool exhaustion") {
			t.Errorf("Evaluate(%q) reveal entry = %+v; want solution text", message, result.Entries)
		}
	}
}

func TestKeywordEvaluator_StaysInvestigatingAfterHintsRunOut(t *testing.T) {
	eval := &KeywordEvaluator{}

	transcript := []domain.ChatEntry{
		{Role: domain.RoleLearner, Message: "guess one"},
		{Role: domain.RoleLearner, Message: "guess two"},
	}
	result, err := eval.Evaluate(context.Background(), keywordRequest("guess three", transcript))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.HintProvided {
		t.Error("hints are exhausted, none expected")
	}
	if result.Phase != domain.PhaseInvestigating {
		t.Errorf("phase = %s", result.Phase)
	}
}
