package dialogue

import (
	"context"
	"strings"

	"github.com/casebooklabs/casebook/internal/domain"
)

// KeywordEvaluator is a deterministic, offline evaluator: it accepts a
// learner message when it covers enough of the solution's significant words.
// It is the default when no external evaluator is configured, and keeps the
// investigation loop usable without a remote collaborator.
type KeywordEvaluator struct {
	// MatchThreshold is the fraction of solution keywords the message must
	// contain to count as solved. Zero means the default of 0.6.
	MatchThreshold float64
}

// giveUpPhrases mark a learner conceding; any match ends the investigation
// with a solution reveal.
var giveUpPhrases = []string{
	"i give up", "give up", "i don't know", "no idea",
	"can't figure", "show me the answer", "what's the solution",
	"i'm stuck", "tell me the answer", "reveal the solution",
}

// Evaluate judges one learner message against the slide's solution text.
func (e *KeywordEvaluator) Evaluate(_ context.Context, req Request) (*Evaluation, error) {
	threshold := e.MatchThreshold
	if threshold == 0 {
		threshold = 0.6
	}

	if givingUp(req.Message) {
		return &Evaluation{
			Entries: []domain.ChatEntry{{
				Role:    domain.RoleAssistant,
				Message: "No worries. Here's what actually happened: " + req.Problem.Solution,
			}},
			Phase: domain.PhaseGivenUp,
		}, nil
	}

	keywords := significantWords(req.Problem.Solution)
	message := strings.ToLower(req.Message)

	matched := 0
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			matched++
		}
	}

	if len(keywords) > 0 && float64(matched)/float64(len(keywords)) >= threshold {
		return &Evaluation{
			Entries: []domain.ChatEntry{{
				Role:    domain.RoleAssistant,
				Message: "That's it. " + req.Problem.Solution,
			}},
			Phase:     domain.PhaseSolved,
			IsCorrect: true,
		}, nil
	}

	// Count prior learner attempts to pace the hints.
	attempts := 0
	for _, entry := range req.Transcript {
		if entry.Role == domain.RoleLearner {
			attempts++
		}
	}

	if attempts < len(req.Problem.Hints) {
		return &Evaluation{
			Entries: []domain.ChatEntry{{
				Role:         domain.RoleAssistant,
				Message:      "Not quite. Hint: " + req.Problem.Hints[attempts],
				HintProvided: true,
			}},
			Phase:        domain.PhaseInvestigating,
			HintProvided: true,
		}, nil
	}

	return &Evaluation{
		Entries: []domain.ChatEntry{{
			Role:    domain.RoleAssistant,
			Message: "Not quite. Look at the problem description again and name the root cause.",
		}},
		Phase: domain.PhaseInvestigating,
	}, nil
}

// givingUp reports whether the message concedes the investigation.
func givingUp(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range giveUpPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// significantWords lowercases and splits text, dropping short filler words.
func significantWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) > 3 {
			words = append(words, f)
		}
	}
	return words
}
