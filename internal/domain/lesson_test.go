package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func sampleLesson() *Lesson {
	return &Lesson{
		ID:    "lesson-1",
		Title: "Debugging the notification outage",
		Slides: []Slide{
			{ID: "s1", Kind: SlideInfo, Info: &InfoContent{Title: "Intro", Content: "Welcome"}},
			{ID: "s2", Kind: SlideVideo, Video: &VideoContent{Title: "Walkthrough", URL: "https://example.com/v.mp4"}},
			{ID: "s3", Kind: SlideMCQ, MCQ: &MCQContent{
				Question:        "Which service timed out?",
				Options:         []MCQOption{{ID: "a", Text: "auth"}, {ID: "b", Text: "mailer"}},
				CorrectAnswerID: "b",
				Explanation:     "The mailer held the connection open.",
			}},
			{ID: "s4", Kind: SlideDragDrop, DragDrop: &DragDropContent{
				Question:       "Match each symptom to its layer",
				Items:          []DragDropItem{{ID: "i1", Text: "500s"}, {ID: "i2", Text: "slow queries"}},
				Categories:     []string{"api", "database"},
				CorrectMapping: map[string]string{"i1": "api", "i2": "database"},
				Explanation:    "Symptoms map to layers.",
			}},
			{ID: "s5", Kind: SlideInvestigation, Investigation: &InvestigationContent{
				Title:       "The vanishing webhooks",
				Description: "Webhooks stopped arriving after the deploy.",
				Context:     "The deploy changed the retry queue.",
				Solution:    "The queue consumer was bound to the old exchange.",
			}},
		},
		EstimatedDurationMinutes: 15,
	}
}

func TestLesson_Validate(t *testing.T) {
	if err := sampleLesson().Validate(); err != nil {
		t.Fatalf("Validate() = %v; want nil", err)
	}
}

func TestLesson_Validate_DuplicateSlideID(t *testing.T) {
	l := sampleLesson()
	l.Slides[1].ID = "s1"

	if err := l.Validate(); !errors.Is(err, ErrInvalidSlide) {
		t.Errorf("Validate() = %v; want ErrInvalidSlide", err)
	}
}

func TestLesson_Validate_Empty(t *testing.T) {
	l := &Lesson{ID: "empty"}
	if err := l.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Validate() = %v; want ErrInvalidInput", err)
	}
}

func TestSlide_Validate_MCQ(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MCQContent)
		wantErr bool
	}{
		{"valid", func(m *MCQContent) {}, false},
		{"one option", func(m *MCQContent) { m.Options = m.Options[:1] }, true},
		{"correct answer not an option", func(m *MCQContent) { m.CorrectAnswerID = "z" }, true},
		{"duplicate option id", func(m *MCQContent) { m.Options[1].ID = "a" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleLesson().Slides[2]
			tt.mutate(s.MCQ)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlide_Validate_DragDrop(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DragDropContent)
		wantErr bool
	}{
		{"valid", func(d *DragDropContent) {}, false},
		{"item missing from mapping", func(d *DragDropContent) { delete(d.CorrectMapping, "i2") }, true},
		{"mapping to unknown category", func(d *DragDropContent) { d.CorrectMapping["i1"] = "network" }, true},
		{"no categories", func(d *DragDropContent) { d.Categories = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleLesson().Slides[3]
			tt.mutate(s.DragDrop)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlide_JSONRoundTrip(t *testing.T) {
	for _, slide := range sampleLesson().Slides {
		data, err := json.Marshal(slide)
		if err != nil {
			t.Fatalf("Marshal(%s) error: %v", slide.ID, err)
		}

		var decoded Slide
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", slide.ID, err)
		}

		if decoded.ID != slide.ID {
			t.Errorf("ID = %q; want %q", decoded.ID, slide.ID)
		}
		if decoded.Kind != slide.Kind {
			t.Errorf("Kind = %q; want %q", decoded.Kind, slide.Kind)
		}
	}
}

func TestSlide_UnmarshalJSON_Discriminant(t *testing.T) {
	data := []byte(`{"type":"mcq","id":"q1","question":"?","options":[{"id":"a","text":"A"},{"id":"b","text":"B"}],"correct_answer_id":"a","explanation":"because"}`)

	var s Slide
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if s.Kind != SlideMCQ {
		t.Errorf("Kind = %q; want %q", s.Kind, SlideMCQ)
	}
	if s.MCQ == nil || s.MCQ.CorrectAnswerID != "a" {
		t.Errorf("MCQ payload not decoded: %+v", s.MCQ)
	}
	if s.Info != nil || s.DragDrop != nil {
		t.Error("other variant payloads should be nil")
	}
}

func TestSlide_UnmarshalJSON_UnknownKind(t *testing.T) {
	var s Slide
	err := json.Unmarshal([]byte(`{"type":"hologram","id":"x"}`), &s)
	if !errors.Is(err, ErrInvalidSlide) {
		t.Errorf("Unmarshal = %v; want ErrInvalidSlide", err)
	}
}

func TestLesson_SlideAt(t *testing.T) {
	l := sampleLesson()

	if _, err := l.SlideAt(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("SlideAt(-1) = %v; want ErrIndexOutOfRange", err)
	}
	if _, err := l.SlideAt(len(l.Slides)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("SlideAt(len) = %v; want ErrIndexOutOfRange", err)
	}

	s, err := l.SlideAt(2)
	if err != nil {
		t.Fatalf("SlideAt(2) error: %v", err)
	}
	if s.ID != "s3" {
		t.Errorf("SlideAt(2).ID = %q; want s3", s.ID)
	}
}

func TestSlide_HasCorrectnessPredicate(t *testing.T) {
	l := sampleLesson()
	want := map[string]bool{"s1": false, "s2": false, "s3": true, "s4": true, "s5": false}

	for i := range l.Slides {
		s := &l.Slides[i]
		if got := s.HasCorrectnessPredicate(); got != want[s.ID] {
			t.Errorf("%s HasCorrectnessPredicate() = %v; want %v", s.ID, got, want[s.ID])
		}
	}
}
