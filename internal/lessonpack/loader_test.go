package lessonpack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/casebooklabs/casebook/internal/domain"
)

const sampleLessonYAML = `id: incident-triage
title: Incident Triage Basics
description: Learn how to triage a production incident
estimated_duration_minutes: 25
slides:
  - id: s1
    type: info
    title: Welcome
    content: Triage starts with impact assessment.
  - id: s2
    type: video
    title: Walkthrough
    url: https://example.com/triage.mp4
    duration_seconds: 180
  - id: s3
    type: mcq
    question: What do you check first?
    options:
      - id: a
        text: Error rate
      - id: b
        text: Coffee machine
    correct_answer_id: a
    explanation: Impact first.
  - id: s4
    type: drag_drop
    question: Sort the signals
    items:
      - id: i1
        text: 5xx spike
      - id: i2
        text: Slow queries
    categories:
      - api
      - database
    correct_mapping:
      i1: api
      i2: database
    explanation: Signals map to layers.
  - id: s5
    type: interactive_investigation
    title: Find the root cause
    description: Requests time out intermittently.
    context: Deploy went out an hour ago.
    solution: Connection pool exhaustion.
    hints:
      - Look at the pool metrics
`

func writeLesson(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write lesson file: %v", err)
	}
}

func TestLoader_LoadLesson(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "incident-triage.yaml", sampleLessonYAML)

	loader := NewLoader(dir)
	lesson, err := loader.LoadLesson("incident-triage")
	if err != nil {
		t.Fatalf("LoadLesson() error: %v", err)
	}

	if lesson.ID != "incident-triage" {
		t.Errorf("ID = %q", lesson.ID)
	}
	if lesson.Title != "Incident Triage Basics" {
		t.Errorf("Title = %q", lesson.Title)
	}
	if lesson.SlideCount() != 5 {
		t.Fatalf("SlideCount() = %d; want 5", lesson.SlideCount())
	}

	wantKinds := []domain.SlideKind{
		domain.SlideInfo,
		domain.SlideVideo,
		domain.SlideMCQ,
		domain.SlideDragDrop,
		domain.SlideInvestigation,
	}
	for i, want := range wantKinds {
		if got := lesson.Slides[i].Kind; got != want {
			t.Errorf("slide %d kind = %s; want %s", i, got, want)
		}
	}

	mcq := lesson.Slides[2].MCQ
	if mcq == nil || mcq.CorrectAnswerID != "a" || len(mcq.Options) != 2 {
		t.Errorf("mcq payload = %+v", mcq)
	}
	dd := lesson.Slides[3].DragDrop
	if dd == nil || dd.CorrectMapping["i2"] != "database" {
		t.Errorf("drag_drop payload = %+v", dd)
	}
	inv := lesson.Slides[4].Investigation
	if inv == nil || inv.Solution != "Connection pool exhaustion." || len(inv.Hints) != 1 {
		t.Errorf("investigation payload = %+v", inv)
	}
}

func TestLoader_LoadLesson_NotFound(t *testing.T) {
	loader := NewLoader(t.TempDir())

	if _, err := loader.LoadLesson("ghost"); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Errorf("LoadLesson(ghost) = %v; want ErrLessonNotFound", err)
	}
}

func TestLoader_RejectsUnknownSlideType(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "bad.yaml", `id: bad
title: Bad
slides:
  - id: s1
    type: hologram
    title: nope
`)

	loader := NewLoader(dir)
	if _, err := loader.LoadLesson("bad"); !errors.Is(err, domain.ErrInvalidSlide) {
		t.Errorf("LoadLesson(bad) = %v; want ErrInvalidSlide", err)
	}
}

func TestLoader_RejectsInvalidMCQ(t *testing.T) {
	dir := t.TempDir()
	// Single option violates the 2..6 option bound.
	writeLesson(t, dir, "bad-mcq.yaml", `id: bad-mcq
title: Bad MCQ
slides:
  - id: s1
    type: mcq
    question: Pick
    options:
      - id: a
        text: only one
    correct_answer_id: a
`)

	loader := NewLoader(dir)
	if _, err := loader.LoadLesson("bad-mcq"); err == nil {
		t.Fatal("LoadLesson() = nil error for invalid mcq")
	}
}

func TestLoader_FallbackIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "unnamed.yaml", `title: No ID
slides:
  - id: s1
    type: info
    content: hello
`)

	loader := NewLoader(dir)
	lesson, err := loader.LoadLesson("unnamed")
	if err != nil {
		t.Fatalf("LoadLesson() error: %v", err)
	}
	if lesson.ID != "unnamed" {
		t.Errorf("ID = %q; want filename fallback", lesson.ID)
	}
}

func TestRegistry_LoadAndGet(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "incident-triage.yaml", sampleLessonYAML)
	writeLesson(t, dir, "another.yaml", `id: another
title: Another
slides:
  - id: s1
    type: info
    content: hi
`)
	// Non-YAML files are ignored.
	writeLesson(t, dir, "README.md", "not a lesson")

	registry := NewRegistry(NewLoader(dir))
	if err := registry.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := registry.Count(); got != 2 {
		t.Fatalf("Count() = %d; want 2", got)
	}

	lesson, err := registry.Get("incident-triage")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if lesson.SlideCount() != 5 {
		t.Errorf("SlideCount() = %d; want 5", lesson.SlideCount())
	}

	if _, err := registry.Get("missing"); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Errorf("Get(missing) = %v; want ErrLessonNotFound", err)
	}

	list := registry.List()
	if len(list) != 2 || list[0].ID != "another" {
		t.Errorf("List() order wrong: %v", []string{list[0].ID, list[1].ID})
	}
}
