package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"hostpulse/internal/domain"
)

// memRepo is an in-memory BatchSaver.
type memRepo struct {
	mu      sync.Mutex
	saved   []domain.Snapshot
	batches []int
	fail    bool
	delay   time.Duration
}

func (r *memRepo) SaveBatch(ctx context.Context, snaps []domain.Snapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail {
		return 0, &domain.StoreError{Op: "save_batch", Err: errors.New("disk full")}
	}

	r.saved = append(r.saved, snaps...)
	r.batches = append(r.batches, len(snaps))
	return len(snaps), nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func (r *memRepo) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.batches...)
}

// countingSource yields limit snapshots, one second apart, then fails
// every further call with ErrSourceUnavailable.
type countingSource struct {
	mu       sync.Mutex
	calls    int
	limit    int
	failAt   map[int]bool
	produced chan struct{}
}

func newCountingSource(limit int) *countingSource {
	return &countingSource{
		limit:    limit,
		failAt:   map[int]bool{},
		produced: make(chan struct{}),
	}
}

func (s *countingSource) Sample(ctx context.Context, at time.Time) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	n := s.calls

	if n > s.limit {
		if n == s.limit+1 {
			close(s.produced)
		}
		return domain.Snapshot{}, domain.ErrSourceUnavailable
	}
	if s.failAt[n] {
		return domain.Snapshot{}, domain.ErrSourceUnavailable
	}

	return domain.Snapshot{
		Timestamp:  base.Add(time.Duration(n) * time.Second),
		CPUPercent: float64(n),
	}, nil
}
