package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/casebooklabs/casebook/internal/domain"
)

// ProgressStore implements progress persistence backed by SQLite.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a new SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Save upserts a progress snapshot. The upsert only applies when the
// snapshot's seq is at least the stored seq; a skipped update means a newer
// snapshot already landed and is reported as ErrStaleWrite.
func (s *ProgressStore) Save(ctx context.Context, snapshot *domain.Progress) error {
	completed, err := json.Marshal(snapshot.CompletedSlideIDs)
	if err != nil {
		return fmt.Errorf("marshal completed slide ids: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (learner_id, lesson_id, completed_slide_ids,
			current_slide_index, is_completed, completed_at, seq,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, lesson_id) DO UPDATE SET
			completed_slide_ids=excluded.completed_slide_ids,
			current_slide_index=excluded.current_slide_index,
			is_completed=excluded.is_completed,
			completed_at=excluded.completed_at,
			seq=excluded.seq,
			updated_at=excluded.updated_at
		WHERE excluded.seq >= progress.seq`,
		snapshot.LearnerID, snapshot.LessonID, string(completed),
		snapshot.CurrentSlideIndex, snapshot.IsCompleted,
		nullTime(snapshot.CompletedAt), snapshot.Seq,
		snapshot.CreatedAt, snapshot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: seq %d behind stored record", domain.ErrStaleWrite, snapshot.Seq)
	}
	return nil
}

// Load retrieves the progress record for a (learner, lesson) pair.
func (s *ProgressStore) Load(ctx context.Context, learnerID, lessonID string) (*domain.Progress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT learner_id, lesson_id, completed_slide_ids,
			current_slide_index, is_completed, completed_at, seq,
			created_at, updated_at
		FROM progress WHERE learner_id = ? AND lesson_id = ?`,
		learnerID, lessonID)

	var (
		record      domain.Progress
		completed   string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&record.LearnerID, &record.LessonID, &completed,
		&record.CurrentSlideIndex, &record.IsCompleted, &completedAt,
		&record.Seq, &record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}

	if err := json.Unmarshal([]byte(completed), &record.CompletedSlideIDs); err != nil {
		return nil, fmt.Errorf("unmarshal completed slide ids: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}
	return &record, nil
}

// Delete removes the progress record. A missing record is not an error.
func (s *ProgressStore) Delete(ctx context.Context, learnerID, lessonID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM progress WHERE learner_id = ? AND lesson_id = ?",
		learnerID, lessonID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// ListByLearner returns all progress records for a learner.
func (s *ProgressStore) ListByLearner(ctx context.Context, learnerID string) ([]*domain.Progress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT learner_id, lesson_id, completed_slide_ids,
			current_slide_index, is_completed, completed_at, seq,
			created_at, updated_at
		FROM progress WHERE learner_id = ? ORDER BY lesson_id`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var records []*domain.Progress
	for rows.Next() {
		var (
			record      domain.Progress
			completed   string
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&record.LearnerID, &record.LessonID, &completed,
			&record.CurrentSlideIndex, &record.IsCompleted, &completedAt,
			&record.Seq, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if err := json.Unmarshal([]byte(completed), &record.CompletedSlideIDs); err != nil {
			return nil, fmt.Errorf("unmarshal completed slide ids: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			record.CompletedAt = &t
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
