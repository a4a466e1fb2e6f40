// Package postgres is the progress store for server deployments, backed by
// a pgx connection pool. SQLite remains the default for single-user
// installs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casebooklabs/casebook/internal/domain"
	"github.com/casebooklabs/casebook/internal/progress"
)

var _ progress.Store = (*ProgressStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS progress (
    learner_id          TEXT NOT NULL,
    lesson_id           TEXT NOT NULL,
    completed_slide_ids TEXT[] NOT NULL DEFAULT '{}',
    current_slide_index INTEGER NOT NULL DEFAULT 0,
    is_completed        BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at        TIMESTAMPTZ,
    seq                 BIGINT NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (learner_id, lesson_id)
);
CREATE INDEX IF NOT EXISTS idx_progress_lesson ON progress(lesson_id);
`

// ProgressStore implements progress persistence backed by PostgreSQL.
type ProgressStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against databaseURL and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*ProgressStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &ProgressStore{pool: pool}, nil
}

// NewProgressStore wraps an existing pool. The caller owns the pool's
// lifecycle and the schema.
func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Close releases the connection pool.
func (s *ProgressStore) Close() {
	s.pool.Close()
}

// Save upserts a progress snapshot, rejecting stale sequence numbers.
func (s *ProgressStore) Save(ctx context.Context, snapshot *domain.Progress) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO progress (learner_id, lesson_id, completed_slide_ids,
			current_slide_index, is_completed, completed_at, seq,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (learner_id, lesson_id) DO UPDATE SET
			completed_slide_ids = excluded.completed_slide_ids,
			current_slide_index = excluded.current_slide_index,
			is_completed = excluded.is_completed,
			completed_at = excluded.completed_at,
			seq = excluded.seq,
			updated_at = excluded.updated_at
		WHERE excluded.seq >= progress.seq`,
		snapshot.LearnerID, snapshot.LessonID, snapshot.CompletedSlideIDs,
		snapshot.CurrentSlideIndex, snapshot.IsCompleted, snapshot.CompletedAt,
		snapshot.Seq, snapshot.CreatedAt, snapshot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: seq %d behind stored record", domain.ErrStaleWrite, snapshot.Seq)
	}
	return nil
}

// Load retrieves the progress record for a (learner, lesson) pair.
func (s *ProgressStore) Load(ctx context.Context, learnerID, lessonID string) (*domain.Progress, error) {
	var (
		record      domain.Progress
		completedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT learner_id, lesson_id, completed_slide_ids,
			current_slide_index, is_completed, completed_at, seq,
			created_at, updated_at
		FROM progress WHERE learner_id = $1 AND lesson_id = $2`,
		learnerID, lessonID,
	).Scan(
		&record.LearnerID, &record.LessonID, &record.CompletedSlideIDs,
		&record.CurrentSlideIndex, &record.IsCompleted, &completedAt,
		&record.Seq, &record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	record.CompletedAt = completedAt
	return &record, nil
}

// Delete removes the progress record. A missing record is not an error.
func (s *ProgressStore) Delete(ctx context.Context, learnerID, lessonID string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM progress WHERE learner_id = $1 AND lesson_id = $2",
		learnerID, lessonID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
