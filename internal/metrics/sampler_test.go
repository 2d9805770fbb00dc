package metrics

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
	"hostpulse/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitProduced(t *testing.T, src *countingSource) {
	t.Helper()
	select {
	case <-src.produced:
	case <-time.After(5 * time.Second):
		t.Fatal("source was not drained in time")
	}
}

func TestSamplerFlushesEverySnapshotOnStop(t *testing.T) {
	repo := &memRepo{}
	src := newCountingSource(25)
	buf := NewBuffer(0)
	batch := NewBatchWriter(repo, 10, logger.NewNop(), nil)
	s := NewSampler(src, buf, batch, logger.NewNop())

	require.NoError(t, s.Start(time.Millisecond))
	waitProduced(t, src)

	assert.True(t, s.Stop(2*time.Second))
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 25, buf.Count())
	assert.Equal(t, 25, repo.count())
	assert.ElementsMatch(t, []int{10, 10, 5}, repo.batchSizes())
	assert.Equal(t, 0, batch.Pending())
}

func TestSamplerFailedTickDoesNotStopCollection(t *testing.T) {
	src := newCountingSource(6)
	src.failAt[2] = true
	src.failAt[4] = true

	var mu sync.Mutex
	var errs []error
	onError := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	buf := NewBuffer(0)
	s := NewSampler(src, buf, nil, logger.NewNop(), WithErrorHandler(onError))

	require.NoError(t, s.Start(time.Millisecond))
	waitProduced(t, src)
	require.True(t, s.Stop(time.Second))

	assert.Equal(t, 4, buf.Count())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(errs), 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	}
}

func TestSamplerStartAndStopAreIdempotent(t *testing.T) {
	s := NewSampler(newCountingSource(1000), NewBuffer(10), nil, logger.NewNop())

	assert.True(t, s.Stop(time.Second), "stop on idle sampler")

	require.NoError(t, s.Start(10*time.Millisecond))
	require.NoError(t, s.Start(10*time.Millisecond))
	assert.Equal(t, StateRunning, s.State())

	assert.True(t, s.Stop(time.Second))
	assert.True(t, s.Stop(time.Second))
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start(10*time.Millisecond))
	assert.True(t, s.Stop(time.Second))
}

func TestSamplerRejectsNonPositiveInterval(t *testing.T) {
	s := NewSampler(newCountingSource(1), NewBuffer(10), nil, logger.NewNop())

	assert.ErrorIs(t, s.Start(0), ErrInvalidInterval)
	assert.Equal(t, StateIdle, s.State())
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSource) Sample(ctx context.Context, at time.Time) (domain.Snapshot, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return domain.Snapshot{Timestamp: at}, nil
}

func TestSamplerStopTimeoutReportsNotStopped(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSampler(src, NewBuffer(10), nil, logger.NewNop())

	require.NoError(t, s.Start(time.Millisecond))
	<-src.entered

	assert.False(t, s.Stop(20*time.Millisecond))
	assert.Equal(t, StateStopping, s.State())
	assert.ErrorIs(t, s.Start(time.Millisecond), ErrStillStopping)

	close(src.release)
	require.Eventually(t, func() bool { return s.State() == StateIdle }, 2*time.Second, 5*time.Millisecond)
}

type sleepySource struct {
	mu    sync.Mutex
	sleep time.Duration
	calls []time.Time
}

func (s *sleepySource) Sample(ctx context.Context, at time.Time) (domain.Snapshot, error) {
	start := time.Now()
	time.Sleep(s.sleep)

	s.mu.Lock()
	s.calls = append(s.calls, start)
	s.mu.Unlock()

	return domain.Snapshot{Timestamp: at}, nil
}

func TestSamplerWaitsIntervalAfterTickCompletes(t *testing.T) {
	interval := 30 * time.Millisecond
	src := &sleepySource{sleep: 20 * time.Millisecond}
	s := NewSampler(src, NewBuffer(0), nil, logger.NewNop())

	require.NoError(t, s.Start(interval))
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.calls) >= 4
	}, 3*time.Second, 5*time.Millisecond)
	require.True(t, s.Stop(time.Second))

	src.mu.Lock()
	defer src.mu.Unlock()
	for i := 1; i < len(src.calls); i++ {
		gap := src.calls[i].Sub(src.calls[i-1])
		assert.GreaterOrEqual(t, gap, src.sleep+interval, "tick %d started too early", i)
	}
}

func TestSamplerFeedsSinksAndUsesClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	close(src.release)

	got := make(chan domain.Snapshot, 16)
	s := NewSampler(src, NewBuffer(10), nil, logger.NewNop(),
		WithClock(func() time.Time { return fixed }),
		WithSink(func(snap domain.Snapshot) {
			select {
			case got <- snap:
			default:
			}
		}),
	)

	require.NoError(t, s.Start(time.Millisecond))
	select {
	case snap := <-got:
		assert.Equal(t, fixed, snap.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("sink never called")
	}
	require.True(t, s.Stop(time.Second))
}

// gatedSource yields open snapshots at once, then blocks until release is
// closed. Calls after the release return immediately.
type gatedSource struct {
	mu      sync.Mutex
	calls   int
	open    int
	once    sync.Once
	blocked chan struct{}
	release chan struct{}
}

func newGatedSource(open int) *gatedSource {
	return &gatedSource{open: open, blocked: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) Sample(ctx context.Context, at time.Time) (domain.Snapshot, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if n > g.open {
		g.once.Do(func() { close(g.blocked) })
		<-g.release
	}

	return domain.Snapshot{
		Timestamp:  base.Add(time.Duration(n) * time.Second),
		CPUPercent: float64(n),
	}, nil
}

func newSQLiteRepo(t *testing.T) *sqlite.SnapshotRepository {
	t.Helper()

	repo, err := sqlite.NewSnapshotRepository(context.Background(), filepath.Join(t.TempDir(), "sampler.db"), logger.NewNop())
	require.NoError(t, err)
	return repo
}

func storedCount(t *testing.T, repo *sqlite.SnapshotRepository) int64 {
	t.Helper()

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestSamplerStopPersistsRemainderAfterTimedOutWait(t *testing.T) {
	repo := newSQLiteRepo(t)
	src := newGatedSource(5)

	var mu sync.Mutex
	var errs []error
	onError := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	batch := NewBatchWriter(repo, 10, logger.NewNop(), onError)
	s := NewSampler(src, NewBuffer(0), batch, logger.NewNop())

	require.NoError(t, s.Start(time.Millisecond))
	select {
	case <-src.blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("source never blocked")
	}

	assert.False(t, s.Stop(20*time.Millisecond))
	assert.EqualValues(t, 5, storedCount(t, repo))
	assert.Zero(t, batch.Pending())

	// The tick that was in progress completes and its snapshot is stored
	// once the loop exits.
	close(src.release)
	require.Eventually(t, func() bool { return s.State() == StateIdle }, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 6, storedCount(t, repo))
	assert.Zero(t, batch.Pending())

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, errs)
}

func TestSamplerStopWithZeroTimeoutKeepsRemainder(t *testing.T) {
	repo := newSQLiteRepo(t)
	src := newCountingSource(5)
	batch := NewBatchWriter(repo, 10, logger.NewNop(), nil)
	s := NewSampler(src, NewBuffer(0), batch, logger.NewNop())

	require.NoError(t, s.Start(time.Millisecond))
	waitProduced(t, src)

	s.Stop(0)

	require.Eventually(t, func() bool { return s.State() == StateIdle }, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 5, storedCount(t, repo))
	assert.Zero(t, batch.Pending())
}
