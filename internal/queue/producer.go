package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/casebooklabs/casebook/internal/domain"
)

// jsonPublisher is the slice of Connection the producer needs.
type jsonPublisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Producer publishes completion notices to the queue
type Producer struct {
	conn jsonPublisher
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishCompletion publishes a lesson completion notice
func (p *Producer) PublishCompletion(ctx context.Context, notice *CompletionNotice) error {
	if notice.ID == uuid.Nil {
		notice.ID = uuid.New()
	}
	if notice.PublishedAt.IsZero() {
		notice.PublishedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, CompletionQueueName, notice); err != nil {
		return fmt.Errorf("failed to publish completion notice: %w", err)
	}

	slog.Info("published lesson completion",
		"notice_id", notice.ID,
		"learner_id", notice.LearnerID,
		"lesson_id", notice.LessonID,
	)

	return nil
}

// BindDispatcher forwards lesson-completed domain events to the queue. A
// publish failure is logged and dropped; the learner-facing completion is
// already committed and must not be rolled back for a broker outage.
func (p *Producer) BindDispatcher(dispatcher *domain.EventDispatcher) {
	dispatcher.Subscribe(domain.EventLessonCompleted, func(e domain.Event) {
		completed, ok := e.(domain.LessonCompletedEvent)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		notice := &CompletionNotice{
			LearnerID:   completed.LearnerID,
			LessonID:    completed.LessonID,
			CompletedAt: completed.CompletedAt,
		}
		if err := p.PublishCompletion(ctx, notice); err != nil {
			slog.Warn("dropping completion notice after publish failure",
				"learner_id", completed.LearnerID,
				"lesson_id", completed.LessonID,
				"error", err,
			)
		}
	})
}
