package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidInterval = errors.New("sampling interval must be positive")
	ErrStillStopping   = errors.New("sampler is still stopping")
)

// Sink receives every snapshot the sampler accepted. It runs on the
// sampling goroutine and must not block.
type Sink func(domain.Snapshot)

type Option func(*Sampler)

func WithErrorHandler(fn ErrorHandler) Option {
	return func(s *Sampler) { s.onError = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

func WithSink(fn Sink) Option {
	return func(s *Sampler) { s.sinks = append(s.sinks, fn) }
}

func WithSampleTimeout(d time.Duration) Option {
	return func(s *Sampler) { s.sampleTimeout = d }
}

// Sampler drives periodic collection on one goroutine. Each tick reads the
// source, appends to the buffer and, when a BatchWriter is attached, queues
// the snapshot for storage. The wait between ticks starts after a tick
// completes, so the cadence drifts by the tick duration.
type Sampler struct {
	source domain.MetricsSource
	buffer *Buffer
	batch  *BatchWriter
	log    logger.Logger

	onError       ErrorHandler
	now           func() time.Time
	sinks         []Sink
	sampleTimeout time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSampler builds a sampler. batch may be nil when durable storage is
// disabled.
func NewSampler(source domain.MetricsSource, buffer *Buffer, batch *BatchWriter, log logger.Logger, opts ...Option) *Sampler {
	s := &Sampler{
		source:        source,
		buffer:        buffer,
		batch:         batch,
		log:           log,
		now:           time.Now,
		sampleTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Start begins the loop. Calling it while running is a no-op.
func (s *Sampler) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return nil
	case StateStopping:
		return ErrStillStopping
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning

	go s.loop(ctx, interval, s.done)

	s.log.Info("sampler started", "interval", interval)
	return nil
}

// Stop signals the loop and waits up to timeout for it to exit. Pending
// snapshots are then written synchronously under the batch writer's own
// write timeout, so a short or zero stop budget never discards them.
// In-flight asynchronous batches are awaited for whatever is left of the
// stop budget. The result reports whether the loop exited in time; a loop
// that exits later flushes anything its last tick queued. Calling Stop on
// an idle sampler is a no-op.
func (s *Sampler) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateStopping
		s.cancel()
	}
	done := s.done
	s.mu.Unlock()

	deadline := time.Now().Add(timeout)

	stopped := true
	if done != nil {
		timer := time.NewTimer(timeout)
		select {
		case <-done:
		case <-timer.C:
			select {
			case <-done:
			default:
				stopped = false
				s.log.Warn("sampler did not stop within timeout", "timeout", timeout)
			}
		}
		timer.Stop()
	}

	if s.batch != nil {
		s.flushPending()

		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		defer cancel()

		if !s.batch.Wait(ctx) {
			s.log.Warn("metrics batches still in flight after stop")
		}
	}

	if stopped {
		s.log.Info("sampler stopped")
	}
	return stopped
}

func (s *Sampler) flushPending() {
	ctx, cancel := context.WithTimeout(context.Background(), s.batch.timeout)
	defer cancel()

	if n, err := s.batch.Flush(ctx); err == nil && n > 0 {
		s.log.Info("flushed pending metrics on stop", "count", n)
	}
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer func() {
		// A tick that outlived Stop's wait may have queued one more snapshot.
		if s.batch != nil {
			s.flushPending()
		}

		s.mu.Lock()
		s.state = StateIdle
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()
		close(done)
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Both channels can be ready at once; never tick once stopping.
		if ctx.Err() != nil {
			return
		}

		s.tick(ctx)
		timer.Reset(interval)
	}
}

func (s *Sampler) tick(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sampleTimeout)
	defer cancel()

	snap, err := s.source.Sample(sampleCtx, s.now())
	if err != nil {
		s.log.Error("failed to sample metrics, skipping tick", "error", err)
		if s.onError != nil {
			s.onError(fmt.Errorf("sample: %w", err))
		}
		return
	}

	s.buffer.Append(snap)

	if s.batch != nil {
		s.batch.Add(snap)
	}

	for _, sink := range s.sinks {
		sink(snap)
	}
}
