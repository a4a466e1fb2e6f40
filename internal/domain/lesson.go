package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SlideKind discriminates the slide variants in a lesson.
type SlideKind string

const (
	SlideInfo          SlideKind = "info"
	SlideVideo         SlideKind = "video"
	SlideMCQ           SlideKind = "mcq"
	SlideDragDrop      SlideKind = "drag_drop"
	SlideInvestigation SlideKind = "interactive_investigation"
)

// Lesson is an ordered, immutable sequence of slides plus metadata.
// Lessons are produced by an external generation pipeline; the engine
// only reads them.
type Lesson struct {
	ID                       string    `json:"id"`
	Title                    string    `json:"title"`
	Description              string    `json:"description"`
	Slides                   []Slide   `json:"slides"`
	EstimatedDurationMinutes int       `json:"estimated_duration_minutes"`
	CreatedAt                time.Time `json:"created_at"`
}

// Slide is a tagged union over the five content variants. Exactly one
// payload pointer is non-nil, matching Kind.
type Slide struct {
	ID   string
	Kind SlideKind

	Info          *InfoContent
	Video         *VideoContent
	MCQ           *MCQContent
	DragDrop      *DragDropContent
	Investigation *InvestigationContent
}

// InfoContent is a static informational slide.
type InfoContent struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	CodeSnippet string `json:"code_snippet,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// VideoContent is a static video slide.
type VideoContent struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// MCQOption is one answer choice in a multiple choice question.
type MCQOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MCQContent is a multiple choice question slide.
type MCQContent struct {
	Question        string      `json:"question"`
	Options         []MCQOption `json:"options"`
	CorrectAnswerID string      `json:"correct_answer_id"`
	Explanation     string      `json:"explanation"`
}

// DragDropItem is one draggable item.
type DragDropItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DragDropContent is a categorization question slide. CorrectMapping maps
// every item id to the category it belongs to.
type DragDropContent struct {
	Question       string            `json:"question"`
	Items          []DragDropItem    `json:"items"`
	Categories     []string          `json:"categories"`
	CorrectMapping map[string]string `json:"correct_mapping"`
	Explanation    string            `json:"explanation"`
}

// InvestigationContent is the static half of an interactive investigation
// slide: the problem as it appeared, background context, and the solution
// that is revealed on a terminal transition. The mutable conversation state
// lives in InvestigationState, scoped to a learner session.
type InvestigationContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Context     string   `json:"context"`
	Solution    string   `json:"solution"`
	Hints       []string `json:"hints,omitempty"`
}

// slideEnvelope is the wire form of a slide: variant fields flattened next
// to the discriminant.
type slideEnvelope struct {
	Type SlideKind `json:"type"`
	ID   string    `json:"id"`

	// info / video
	Title           string `json:"title,omitempty"`
	Content         string `json:"content,omitempty"`
	CodeSnippet     string `json:"code_snippet,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	URL             string `json:"url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`

	// mcq / drag_drop
	Question        string            `json:"question,omitempty"`
	Options         []MCQOption       `json:"options,omitempty"`
	CorrectAnswerID string            `json:"correct_answer_id,omitempty"`
	Items           []DragDropItem    `json:"items,omitempty"`
	Categories      []string          `json:"categories,omitempty"`
	CorrectMapping  map[string]string `json:"correct_mapping,omitempty"`
	Explanation     string            `json:"explanation,omitempty"`

	// interactive_investigation
	Description string   `json:"description,omitempty"`
	Context     string   `json:"context,omitempty"`
	Solution    string   `json:"solution,omitempty"`
	Hints       []string `json:"hints,omitempty"`
}

// MarshalJSON writes the slide in its flattened wire form.
func (s Slide) MarshalJSON() ([]byte, error) {
	env := slideEnvelope{Type: s.Kind, ID: s.ID}

	switch s.Kind {
	case SlideInfo:
		if s.Info != nil {
			env.Title = s.Info.Title
			env.Content = s.Info.Content
			env.CodeSnippet = s.Info.CodeSnippet
			env.ImageURL = s.Info.ImageURL
		}
	case SlideVideo:
		if s.Video != nil {
			env.Title = s.Video.Title
			env.URL = s.Video.URL
			env.DurationSeconds = s.Video.DurationSeconds
		}
	case SlideMCQ:
		if s.MCQ != nil {
			env.Question = s.MCQ.Question
			env.Options = s.MCQ.Options
			env.CorrectAnswerID = s.MCQ.CorrectAnswerID
			env.Explanation = s.MCQ.Explanation
		}
	case SlideDragDrop:
		if s.DragDrop != nil {
			env.Question = s.DragDrop.Question
			env.Items = s.DragDrop.Items
			env.Categories = s.DragDrop.Categories
			env.CorrectMapping = s.DragDrop.CorrectMapping
			env.Explanation = s.DragDrop.Explanation
		}
	case SlideInvestigation:
		if s.Investigation != nil {
			env.Title = s.Investigation.Title
			env.Description = s.Investigation.Description
			env.Context = s.Investigation.Context
			env.Solution = s.Investigation.Solution
			env.Hints = s.Investigation.Hints
		}
	default:
		return nil, fmt.Errorf("%w: unknown slide kind %q", ErrInvalidSlide, s.Kind)
	}

	return json.Marshal(env)
}

// UnmarshalJSON reads the flattened wire form and dispatches on the
// discriminant.
func (s *Slide) UnmarshalJSON(data []byte) error {
	var env slideEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	s.ID = env.ID
	s.Kind = env.Type
	s.Info = nil
	s.Video = nil
	s.MCQ = nil
	s.DragDrop = nil
	s.Investigation = nil

	switch env.Type {
	case SlideInfo:
		s.Info = &InfoContent{
			Title:       env.Title,
			Content:     env.Content,
			CodeSnippet: env.CodeSnippet,
			ImageURL:    env.ImageURL,
		}
	case SlideVideo:
		s.Video = &VideoContent{
			Title:           env.Title,
			URL:             env.URL,
			DurationSeconds: env.DurationSeconds,
		}
	case SlideMCQ:
		s.MCQ = &MCQContent{
			Question:        env.Question,
			Options:         env.Options,
			CorrectAnswerID: env.CorrectAnswerID,
			Explanation:     env.Explanation,
		}
	case SlideDragDrop:
		s.DragDrop = &DragDropContent{
			Question:       env.Question,
			Items:          env.Items,
			Categories:     env.Categories,
			CorrectMapping: env.CorrectMapping,
			Explanation:    env.Explanation,
		}
	case SlideInvestigation:
		s.Investigation = &InvestigationContent{
			Title:       env.Title,
			Description: env.Description,
			Context:     env.Context,
			Solution:    env.Solution,
			Hints:       env.Hints,
		}
	default:
		return fmt.Errorf("%w: unknown slide kind %q", ErrInvalidSlide, env.Type)
	}

	return nil
}

// Validate checks the slide payload against its variant's structural rules.
func (s *Slide) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing slide id", ErrInvalidSlide)
	}

	switch s.Kind {
	case SlideInfo:
		if s.Info == nil || s.Info.Content == "" {
			return fmt.Errorf("%w: info slide %s has no content", ErrInvalidSlide, s.ID)
		}
	case SlideVideo:
		if s.Video == nil || s.Video.URL == "" {
			return fmt.Errorf("%w: video slide %s has no url", ErrInvalidSlide, s.ID)
		}
	case SlideMCQ:
		return s.validateMCQ()
	case SlideDragDrop:
		return s.validateDragDrop()
	case SlideInvestigation:
		if s.Investigation == nil || s.Investigation.Description == "" || s.Investigation.Solution == "" {
			return fmt.Errorf("%w: investigation slide %s missing description or solution", ErrInvalidSlide, s.ID)
		}
	default:
		return fmt.Errorf("%w: unknown slide kind %q", ErrInvalidSlide, s.Kind)
	}

	return nil
}

func (s *Slide) validateMCQ() error {
	mcq := s.MCQ
	if mcq == nil {
		return fmt.Errorf("%w: mcq slide %s has no payload", ErrInvalidSlide, s.ID)
	}
	if len(mcq.Options) < 2 || len(mcq.Options) > 6 {
		return fmt.Errorf("%w: mcq slide %s has %d options, want 2-6", ErrInvalidSlide, s.ID, len(mcq.Options))
	}

	seen := make(map[string]bool, len(mcq.Options))
	correctFound := false
	for _, opt := range mcq.Options {
		if opt.ID == "" {
			return fmt.Errorf("%w: mcq slide %s has option without id", ErrInvalidSlide, s.ID)
		}
		if seen[opt.ID] {
			return fmt.Errorf("%w: mcq slide %s has duplicate option id %s", ErrInvalidSlide, s.ID, opt.ID)
		}
		seen[opt.ID] = true
		if opt.ID == mcq.CorrectAnswerID {
			correctFound = true
		}
	}
	if !correctFound {
		return fmt.Errorf("%w: mcq slide %s correct_answer_id %q not among options", ErrInvalidSlide, s.ID, mcq.CorrectAnswerID)
	}
	return nil
}

func (s *Slide) validateDragDrop() error {
	dd := s.DragDrop
	if dd == nil {
		return fmt.Errorf("%w: drag_drop slide %s has no payload", ErrInvalidSlide, s.ID)
	}
	if len(dd.Items) == 0 || len(dd.Categories) == 0 {
		return fmt.Errorf("%w: drag_drop slide %s needs items and categories", ErrInvalidSlide, s.ID)
	}

	categories := make(map[string]bool, len(dd.Categories))
	for _, c := range dd.Categories {
		categories[c] = true
	}

	for _, item := range dd.Items {
		cat, ok := dd.CorrectMapping[item.ID]
		if !ok {
			return fmt.Errorf("%w: drag_drop slide %s item %s missing from correct_mapping", ErrInvalidSlide, s.ID, item.ID)
		}
		if !categories[cat] {
			return fmt.Errorf("%w: drag_drop slide %s item %s maps to unknown category %q", ErrInvalidSlide, s.ID, item.ID, cat)
		}
	}
	return nil
}

// HasCorrectnessPredicate reports whether a slide variant is answerable.
// Info and video slides complete through navigation instead.
func (s *Slide) HasCorrectnessPredicate() bool {
	return s.Kind == SlideMCQ || s.Kind == SlideDragDrop
}

// Validate checks lesson-level invariants: at least one slide, valid
// payloads, unique slide ids.
func (l *Lesson) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: missing lesson id", ErrInvalidInput)
	}
	if len(l.Slides) == 0 {
		return fmt.Errorf("%w: lesson %s has no slides", ErrInvalidInput, l.ID)
	}

	seen := make(map[string]bool, len(l.Slides))
	for i := range l.Slides {
		slide := &l.Slides[i]
		if err := slide.Validate(); err != nil {
			return err
		}
		if seen[slide.ID] {
			return fmt.Errorf("%w: duplicate slide id %s in lesson %s", ErrInvalidSlide, slide.ID, l.ID)
		}
		seen[slide.ID] = true
	}
	return nil
}

// SlideCount returns the number of slides in the lesson.
func (l *Lesson) SlideCount() int {
	return len(l.Slides)
}

// SlideAt returns the slide at index, or an error when out of range.
func (l *Lesson) SlideAt(index int) (*Slide, error) {
	if index < 0 || index >= len(l.Slides) {
		return nil, fmt.Errorf("%w: index %d of %d slides", ErrIndexOutOfRange, index, len(l.Slides))
	}
	return &l.Slides[index], nil
}

// SlideByID returns the slide with the given id.
func (l *Lesson) SlideByID(id string) (*Slide, error) {
	for i := range l.Slides {
		if l.Slides[i].ID == id {
			return &l.Slides[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSlideNotFound, id)
}

// SlideIDs returns the ordered slide ids.
func (l *Lesson) SlideIDs() []string {
	ids := make([]string, len(l.Slides))
	for i := range l.Slides {
		ids[i] = l.Slides[i].ID
	}
	return ids
}

// HasSlide reports whether the lesson contains the given slide id.
func (l *Lesson) HasSlide(id string) bool {
	for i := range l.Slides {
		if l.Slides[i].ID == id {
			return true
		}
	}
	return false
}
