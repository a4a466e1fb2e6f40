package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/casebooklabs/casebook/internal/domain"
)

const progressCollection = "progress"

// ProgressStore persists progress records as JSON files. It rejects
// snapshots older than the record on disk so a late async write can never
// clobber newer state.
type ProgressStore struct {
	store *Store
}

// NewProgressStore creates a progress store on top of a local JSON store.
func NewProgressStore(store *Store) *ProgressStore {
	return &ProgressStore{store: store}
}

func progressID(learnerID, lessonID string) string {
	return learnerID + "--" + lessonID
}

// Load reads the progress record for a (learner, lesson) pair.
func (s *ProgressStore) Load(ctx context.Context, learnerID, lessonID string) (*domain.Progress, error) {
	var record domain.Progress
	if err := s.store.Load(progressCollection, progressID(learnerID, lessonID), &record); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return &record, nil
}

// Save writes a progress snapshot, rejecting stale sequence numbers.
func (s *ProgressStore) Save(ctx context.Context, snapshot *domain.Progress) error {
	id := progressID(snapshot.LearnerID, snapshot.LessonID)

	var existing domain.Progress
	err := s.store.Load(progressCollection, id, &existing)
	switch {
	case err == nil:
		if snapshot.Seq < existing.Seq {
			return fmt.Errorf("%w: seq %d behind stored %d", domain.ErrStaleWrite, snapshot.Seq, existing.Seq)
		}
	case errors.Is(err, ErrNotFound):
		// First write for this record.
	default:
		return fmt.Errorf("read existing progress: %w", err)
	}

	if err := s.store.Save(progressCollection, id, snapshot); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Delete removes the progress record. A missing record is not an error.
func (s *ProgressStore) Delete(ctx context.Context, learnerID, lessonID string) error {
	err := s.store.Delete(progressCollection, progressID(learnerID, lessonID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
