package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced this event
	AggregateID() string
	// AggregateType returns the type of aggregate that produced this event
	AggregateType() string
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateName string    `json:"aggregate_type"`
	AggregateRef  string    `json:"aggregate_id"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType, aggregateType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now(),
		AggregateName: aggregateType,
		AggregateRef:  aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateRef }
func (e BaseEvent) AggregateType() string { return e.AggregateName }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers
func (d *EventDispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Call type-specific handlers
	if handlers, ok := d.handlers[event.EventType()]; ok {
		for _, h := range handlers {
			h(event)
		}
	}

	// Call all-event handlers
	for _, h := range d.allHandlers {
		h(event)
	}
}

// PublishAll dispatches multiple events
func (d *EventDispatcher) PublishAll(events []Event) {
	for _, event := range events {
		d.Publish(event)
	}
}

// -----------------------------------------------------------------------------
// Aggregate Root with Event Support
// -----------------------------------------------------------------------------

// EventRecorder is an interface for aggregates that record events
type EventRecorder interface {
	// RecordedEvents returns events recorded since last clear
	RecordedEvents() []Event
	// ClearEvents clears recorded events (typically after persistence)
	ClearEvents()
}

// AggregateRoot provides base functionality for aggregates with event recording
type AggregateRoot struct {
	events []Event
}

// RecordEvent adds an event to the aggregate's recorded events
func (a *AggregateRoot) RecordEvent(event Event) {
	a.events = append(a.events, event)
}

// RecordedEvents returns all recorded events
func (a *AggregateRoot) RecordedEvents() []Event {
	return a.events
}

// ClearEvents clears recorded events
func (a *AggregateRoot) ClearEvents() {
	a.events = nil
}

// -----------------------------------------------------------------------------
// Progress Events
// -----------------------------------------------------------------------------

// Event type names for progress events.
const (
	EventSlideCompleted  = "progress.slide_completed"
	EventLessonCompleted = "progress.lesson_completed"
)

// SlideCompletedEvent is published when a slide first enters the completed set
type SlideCompletedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	LessonID  string `json:"lesson_id"`
	SlideID   string `json:"slide_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// NewSlideCompletedEvent creates a new slide completed event
func NewSlideCompletedEvent(learnerID, lessonID, slideID string, completed, total int) SlideCompletedEvent {
	return SlideCompletedEvent{
		BaseEvent: NewBaseEvent(EventSlideCompleted, "Progress", lessonID),
		LearnerID: learnerID,
		LessonID:  lessonID,
		SlideID:   slideID,
		Completed: completed,
		Total:     total,
	}
}

// LessonCompletedEvent is published exactly once per (learner, lesson) when
// every slide in the lesson has been completed
type LessonCompletedEvent struct {
	BaseEvent
	LearnerID   string    `json:"learner_id"`
	LessonID    string    `json:"lesson_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewLessonCompletedEvent creates a new lesson completed event
func NewLessonCompletedEvent(learnerID, lessonID string, completedAt time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:   NewBaseEvent(EventLessonCompleted, "Progress", lessonID),
		LearnerID:   learnerID,
		LessonID:    lessonID,
		CompletedAt: completedAt,
	}
}

// -----------------------------------------------------------------------------
// Investigation Events
// -----------------------------------------------------------------------------

// EventInvestigationResolved is published when an investigation reaches a
// terminal phase.
const EventInvestigationResolved = "investigation.resolved"

// InvestigationResolvedEvent carries the outcome of a finished investigation
type InvestigationResolvedEvent struct {
	BaseEvent
	LearnerID  string             `json:"learner_id"`
	LessonID   string             `json:"lesson_id"`
	SlideID    string             `json:"slide_id"`
	Phase      InvestigationPhase `json:"phase"`
	HintsGiven int                `json:"hints_given"`
	Messages   int                `json:"messages"`
}

// NewInvestigationResolvedEvent creates a new investigation resolved event
func NewInvestigationResolvedEvent(learnerID, lessonID string, state *InvestigationState) InvestigationResolvedEvent {
	return InvestigationResolvedEvent{
		BaseEvent:  NewBaseEvent(EventInvestigationResolved, "Investigation", state.SlideID),
		LearnerID:  learnerID,
		LessonID:   lessonID,
		SlideID:    state.SlideID,
		Phase:      state.Phase,
		HintsGiven: state.HintsGiven,
		Messages:   len(state.ChatHistory),
	}
}
