package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
)

const defaultBatchSize = 10

// ErrorHandler receives failures that were recovered without stopping
// collection.
type ErrorHandler func(error)

// BatchWriter groups snapshots and hands full batches to the repository on
// their own goroutine. A failed batch is logged, reported and dropped.
type BatchWriter struct {
	repo      domain.BatchSaver
	log       logger.Logger
	onError   ErrorHandler
	batchSize int
	timeout   time.Duration

	mu      sync.Mutex
	pending []domain.Snapshot

	inflight sync.WaitGroup
}

func NewBatchWriter(repo domain.BatchSaver, batchSize int, log logger.Logger, onError ErrorHandler) *BatchWriter {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	return &BatchWriter{
		repo:      repo,
		log:       log,
		onError:   onError,
		batchSize: batchSize,
		timeout:   10 * time.Second,
		pending:   make([]domain.Snapshot, 0, batchSize),
	}
}

// Add queues s. When the pending list reaches the batch size it is
// detached and written asynchronously.
func (w *BatchWriter) Add(s domain.Snapshot) {
	w.mu.Lock()
	w.pending = append(w.pending, s)
	if len(w.pending) < w.batchSize {
		w.mu.Unlock()
		return
	}

	batch := w.pending
	w.pending = make([]domain.Snapshot, 0, w.batchSize)
	w.mu.Unlock()

	w.log.Debug("batch size reached, writing asynchronously", "count", len(batch))

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		w.write(ctx, batch)
	}()
}

// Flush synchronously writes whatever is pending and returns the number of
// snapshots stored.
func (w *BatchWriter) Flush(ctx context.Context) (int, error) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return 0, nil
	}

	batch := w.pending
	w.pending = make([]domain.Snapshot, 0, w.batchSize)
	w.mu.Unlock()

	return w.write(ctx, batch)
}

// Wait blocks until every asynchronous batch has finished or ctx is done.
// It reports whether all writes completed.
func (w *BatchWriter) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *BatchWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.pending)
}

func (w *BatchWriter) write(ctx context.Context, batch []domain.Snapshot) (int, error) {
	n, err := w.repo.SaveBatch(ctx, batch)
	if err != nil {
		w.log.Error("failed to write metrics batch, dropping it", "error", err, "count", len(batch))
		if w.onError != nil {
			w.onError(fmt.Errorf("write batch of %d: %w", len(batch), err))
		}
		return 0, err
	}

	w.log.Debug("metrics batch written", "count", n)
	return n, nil
}
