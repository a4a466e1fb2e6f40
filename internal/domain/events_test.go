package domain

import (
	"testing"
	"time"
)

func TestEventDispatcher_Subscribe(t *testing.T) {
	d := NewEventDispatcher()

	var got []string
	d.Subscribe(EventLessonCompleted, func(e Event) {
		got = append(got, e.EventType())
	})

	d.Publish(NewLessonCompletedEvent("learner-1", "lesson-1", time.Now()))
	d.Publish(NewSlideCompletedEvent("learner-1", "lesson-1", "s1", 1, 5))

	if len(got) != 1 {
		t.Fatalf("handler called %d times; want 1", len(got))
	}
	if got[0] != EventLessonCompleted {
		t.Errorf("handler saw %q; want %q", got[0], EventLessonCompleted)
	}
}

func TestEventDispatcher_SubscribeAll(t *testing.T) {
	d := NewEventDispatcher()

	count := 0
	d.SubscribeAll(func(e Event) { count++ })

	d.PublishAll([]Event{
		NewSlideCompletedEvent("learner-1", "lesson-1", "s1", 1, 2),
		NewSlideCompletedEvent("learner-1", "lesson-1", "s2", 2, 2),
		NewLessonCompletedEvent("learner-1", "lesson-1", time.Now()),
	})

	if count != 3 {
		t.Errorf("all-handler called %d times; want 3", count)
	}
}

func TestLessonCompletedEvent_Fields(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	e := NewLessonCompletedEvent("learner-1", "lesson-1", at)

	if e.EventType() != EventLessonCompleted {
		t.Errorf("EventType() = %q; want %q", e.EventType(), EventLessonCompleted)
	}
	if e.AggregateID() != "lesson-1" {
		t.Errorf("AggregateID() = %q; want lesson-1", e.AggregateID())
	}
	if !e.CompletedAt.Equal(at) {
		t.Errorf("CompletedAt = %v; want %v", e.CompletedAt, at)
	}
}

func TestAggregateRoot_RecordAndClear(t *testing.T) {
	var root AggregateRoot
	root.RecordEvent(NewSlideCompletedEvent("learner-1", "lesson-1", "s1", 1, 3))

	if len(root.RecordedEvents()) != 1 {
		t.Fatalf("RecordedEvents() length = %d; want 1", len(root.RecordedEvents()))
	}

	root.ClearEvents()
	if len(root.RecordedEvents()) != 0 {
		t.Error("events not cleared")
	}
}
