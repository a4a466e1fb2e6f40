// Package progress owns per-(learner, lesson) completion state: the
// completed-slide set, the cursor, and the one-shot lesson-completed
// transition. Persistence goes through a Store behind an asynchronous,
// per-record serialized writer.
package progress

import (
	"context"

	"github.com/casebooklabs/casebook/internal/domain"
)

// Store is the external persistence interface for progress records.
// Implementations must be safe for concurrent use and must reject writes
// whose Seq is lower than the stored row's (returning domain.ErrStaleWrite)
// so a late-arriving write can never clobber a newer state.
type Store interface {
	// Load returns the record for (learnerID, lessonID), or
	// domain.ErrProgressNotFound.
	Load(ctx context.Context, learnerID, lessonID string) (*domain.Progress, error)

	// Save persists a snapshot, last-write-wins by Seq.
	Save(ctx context.Context, snapshot *domain.Progress) error

	// Delete discards the record entirely. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, learnerID, lessonID string) error
}

// DeleteProgress is the hook the lesson-deletion flow calls to discard a
// learner's record. Any tracker still open against the record must be closed
// first, or its writer may re-save the deleted row.
func DeleteProgress(ctx context.Context, store Store, learnerID, lessonID string) error {
	return store.Delete(ctx, learnerID, lessonID)
}
