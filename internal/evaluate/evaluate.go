// Package evaluate judges learner answers against a slide's correct-answer
// data. Evaluation is pure: it never mutates slides or progress, and callers
// act on the returned result.
package evaluate

import (
	"fmt"

	"github.com/casebooklabs/casebook/internal/domain"
)

// genericExplanation is shown when a slide's own explanation is unusable.
const genericExplanation = "That's not quite right. Review the slide and try again."

// Response is a learner's answer to an answerable slide. Exactly one field
// is set, matching the slide variant.
type Response struct {
	// SelectedOptionID is the chosen option for an mcq slide.
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	// Mapping assigns item ids to category names for a drag_drop slide.
	// Partial mappings are accepted here and fail the completeness check.
	Mapping map[string]string `json:"mapping,omitempty"`
}

// Result is the outcome of evaluating a response.
type Result struct {
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
}

// Evaluate dispatches on the slide variant. Info, video and investigation
// slides carry no correctness predicate and return ErrNotEvaluable. A
// malformed slide payload fails closed: the result is incorrect with a
// generic explanation, and the validation error is returned alongside so the
// caller can log it.
func Evaluate(slide *domain.Slide, resp Response) (Result, error) {
	switch slide.Kind {
	case domain.SlideMCQ:
		return evaluateMCQ(slide, resp)
	case domain.SlideDragDrop:
		return evaluateDragDrop(slide, resp)
	case domain.SlideInfo, domain.SlideVideo, domain.SlideInvestigation:
		return Result{}, fmt.Errorf("%w: %s slide %s", domain.ErrNotEvaluable, slide.Kind, slide.ID)
	default:
		return Result{Explanation: genericExplanation}, fmt.Errorf("%w: unknown slide kind %q", domain.ErrInvalidSlide, slide.Kind)
	}
}

func evaluateMCQ(slide *domain.Slide, resp Response) (Result, error) {
	if err := slide.Validate(); err != nil {
		return Result{Explanation: genericExplanation}, err
	}

	mcq := slide.MCQ
	correct := resp.SelectedOptionID == mcq.CorrectAnswerID

	explanation := mcq.Explanation
	if explanation == "" {
		explanation = genericExplanation
	}

	return Result{Correct: correct, Explanation: explanation}, nil
}

func evaluateDragDrop(slide *domain.Slide, resp Response) (Result, error) {
	if err := slide.Validate(); err != nil {
		return Result{Explanation: genericExplanation}, err
	}

	dd := slide.DragDrop

	// Correct iff every item in correct_mapping is assigned to its category.
	// Unassigned items fail the check; there is no implicit pass.
	correct := true
	for itemID, category := range dd.CorrectMapping {
		assigned, ok := resp.Mapping[itemID]
		if !ok || assigned != category {
			correct = false
			break
		}
	}

	explanation := dd.Explanation
	if explanation == "" {
		explanation = genericExplanation
	}

	return Result{Correct: correct, Explanation: explanation}, nil
}
