package metrics

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hostpulse/internal/config"
	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
	"hostpulse/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

// scriptedSource yields limit snapshots and then reports the source as
// unavailable, closing drained on the first failure.
type scriptedSource struct {
	mu      sync.Mutex
	calls   int
	limit   int
	drained chan struct{}
}

func newScriptedSource(limit int) *scriptedSource {
	return &scriptedSource{limit: limit, drained: make(chan struct{})}
}

func (s *scriptedSource) Sample(ctx context.Context, at time.Time) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls > s.limit {
		if s.calls == s.limit+1 {
			close(s.drained)
		}
		return domain.Snapshot{}, domain.ErrSourceUnavailable
	}

	return domain.Snapshot{Timestamp: at, CPUPercent: float64(s.calls)}, nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.SampleInterval = 100 * time.Millisecond
	cfg.DatabasePath = filepath.Join(t.TempDir(), "metrics.db")
	return cfg
}

// tickingClock advances one second per reading so timestamps are unique.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return epoch.Add(time.Duration(n) * time.Second)
	}
}

func TestServicePersistsEveryTickAcrossStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 10

	repo, err := sqlite.NewSnapshotRepository(context.Background(), cfg.DatabasePath, logger.NewNop())
	require.NoError(t, err)

	src := newScriptedSource(25)
	svc, err := NewService(cfg, src, repo, logger.NewNop(), WithClock(tickingClock()))
	require.NoError(t, err)

	// Faster than the validated minimum interval.
	require.NoError(t, svc.sampler.Start(time.Millisecond))

	select {
	case <-src.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("source not drained")
	}
	require.True(t, svc.Stop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 25, stats.TotalRecords)

	history := svc.History()
	require.Len(t, history, 25)
	stored, err := svc.Query(context.Background(), domain.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, history, stored)

	recent, err := svc.Recent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, history[22:], recent)
}

func TestServiceWithoutStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageEnabled = false

	svc, err := NewService(cfg, newScriptedSource(3), nil, logger.NewNop())
	require.NoError(t, err)

	_, err = svc.Latest()
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	_, err = svc.Query(context.Background(), domain.QueryOptions{})
	assert.ErrorIs(t, err, domain.ErrStorageDisabled)
	_, err = svc.Stats(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageDisabled)
	_, err = svc.Prune(context.Background(), time.Now())
	assert.ErrorIs(t, err, domain.ErrStorageDisabled)

	require.NoError(t, svc.Start())
	require.Eventually(t, func() bool { return svc.Count() == 3 }, 3*time.Second, 10*time.Millisecond)
	assert.True(t, svc.Stop())

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, 3.0, latest.CPUPercent)

	svc.ClearHistory()
	assert.Zero(t, svc.Count())
}

func TestServiceRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.SampleInterval = time.Millisecond

	_, err := NewService(cfg, newScriptedSource(1), nil, logger.NewNop())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	cfg = testConfig(t)
	_, err = NewService(cfg, newScriptedSource(1), nil, logger.NewNop())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig, "storage enabled without repository")
}

func TestServicePublishesToSubscribers(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageEnabled = false

	svc, err := NewService(cfg, newScriptedSource(2), nil, logger.NewNop())
	require.NoError(t, err)

	got := make(chan domain.Snapshot, 8)
	svc.Subscribe(func(s domain.Snapshot) { got <- s })

	require.NoError(t, svc.Start())
	defer svc.Stop()

	for i := 1; i <= 2; i++ {
		select {
		case s := <-got:
			assert.Equal(t, float64(i), s.CPUPercent)
		case <-time.After(3 * time.Second):
			t.Fatal("subscriber not called")
		}
	}
}

func TestServicePrune(t *testing.T) {
	cfg := testConfig(t)
	repo, err := sqlite.NewSnapshotRepository(context.Background(), cfg.DatabasePath, logger.NewNop())
	require.NoError(t, err)

	var batch []domain.Snapshot
	for i := 0; i < 4; i++ {
		batch = append(batch, domain.Snapshot{Timestamp: epoch.Add(time.Duration(i) * time.Minute)})
	}
	_, err = repo.SaveBatch(context.Background(), batch)
	require.NoError(t, err)

	svc, err := NewService(cfg, newScriptedSource(0), repo, logger.NewNop())
	require.NoError(t, err)

	hooks := 0
	svc.OnPrune(func() { hooks++ })

	deleted, err := svc.Prune(context.Background(), epoch.Add(90*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.Equal(t, 1, hooks)

	deleted, err = svc.PruneAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.Equal(t, 2, hooks)
}

func TestServicePruneHookSkippedOnFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageEnabled = false

	svc, err := NewService(cfg, newScriptedSource(0), nil, logger.NewNop())
	require.NoError(t, err)

	hooks := 0
	svc.OnPrune(func() { hooks++ })

	_, err = svc.Prune(context.Background(), epoch)
	assert.ErrorIs(t, err, domain.ErrStorageDisabled)
	assert.Zero(t, hooks)
}
