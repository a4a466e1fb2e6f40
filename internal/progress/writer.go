package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/casebooklabs/casebook/internal/domain"
	"github.com/felixgeelhaar/fortify/retry"
)

// Writer persists progress snapshots asynchronously. Writes for one record
// are serialized through a single worker, snapshots are coalesced to the
// newest Seq, and failed writes are retried with bounded backoff. A write
// that still fails after retries is logged and dropped; the in-memory
// aggregate stays authoritative for the session.
type Writer struct {
	store   Store
	retrier retry.Retry[struct{}]
	logger  *slog.Logger

	mu      sync.Mutex
	pending *domain.Progress
	lastSeq uint64

	kick chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// WriterConfig holds configuration for the async writer.
type WriterConfig struct {
	// MaxAttempts bounds write retries (default: 3)
	MaxAttempts int
	// InitialDelay is the first backoff step (default: 250ms)
	InitialDelay time.Duration
	// Logger for write failures
	Logger *slog.Logger
}

// NewWriter creates and starts a writer for one (learner, lesson) record.
func NewWriter(store Store, cfg WriterConfig) *Writer {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := cfg.InitialDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		store:  store,
		logger: logger,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  delay,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				// A stale rejection means a newer snapshot already
				// landed; retrying can never succeed.
				return !errors.Is(err, domain.ErrStaleWrite)
			},
		}),
	}

	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue hands a snapshot to the writer. Snapshots older than the newest
// enqueued one are dropped immediately. Enqueue never blocks the caller.
func (w *Writer) Enqueue(snapshot domain.Progress) {
	w.mu.Lock()
	if snapshot.Seq <= w.lastSeq && w.lastSeq != 0 {
		w.mu.Unlock()
		return
	}
	w.lastSeq = snapshot.Seq
	w.pending = &snapshot
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Flush blocks until the pending snapshot (if any) has been attempted.
func (w *Writer) Flush(ctx context.Context) error {
	for {
		w.mu.Lock()
		idle := w.pending == nil
		w.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the worker after draining the pending snapshot.
func (w *Writer) Close() {
	close(w.stop)
	w.wg.Wait()
}

func (w *Writer) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			w.drain()
			return
		case <-w.kick:
			w.drain()
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		snapshot := w.pending
		w.pending = nil
		w.mu.Unlock()

		if snapshot == nil {
			return
		}
		w.write(snapshot)
	}
}

func (w *Writer) write(snapshot *domain.Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := w.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.store.Save(ctx, snapshot)
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			w.logger.Debug("dropped stale progress write",
				"learner", snapshot.LearnerID,
				"lesson", snapshot.LessonID,
				"seq", snapshot.Seq)
			return
		}
		// Non-fatal: the session keeps running on in-memory state.
		w.logger.Warn("progress write failed after retries",
			"learner", snapshot.LearnerID,
			"lesson", snapshot.LessonID,
			"seq", snapshot.Seq,
			"error", err)
	}
}
