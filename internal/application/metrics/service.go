// Package metrics
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hostpulse/internal/config"
	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
	"hostpulse/internal/metrics"
)

// Service owns one collection pipeline: the sampler, its live buffer and,
// when durable storage is enabled, the batch writer and repository.
type Service struct {
	cfg  *config.Config
	repo domain.SnapshotRepository
	log  logger.Logger

	buffer  *metrics.Buffer
	batch   *metrics.BatchWriter
	sampler *metrics.Sampler

	subscribersMu sync.RWMutex
	subscribers   []metrics.Sink
	pruneHooks    []func()
}

type Option func(*options)

type options struct {
	onError ErrorHandler
	now     func() time.Time
}

type ErrorHandler = metrics.ErrorHandler

func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) { o.onError = fn }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewService validates cfg and wires the pipeline. repo may be nil only
// when storage is disabled.
func NewService(cfg *config.Config, source domain.MetricsSource, repo domain.SnapshotRepository, log logger.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.StorageEnabled && repo == nil {
		return nil, fmt.Errorf("%w: storage enabled without a repository", domain.ErrInvalidConfig)
	}

	if source == nil {
		return nil, fmt.Errorf("%w: no metrics source", domain.ErrInvalidConfig)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	svc := &Service{
		cfg:    cfg,
		log:    log,
		buffer: metrics.NewBuffer(cfg.BufferCapacity),
	}

	if cfg.StorageEnabled {
		svc.repo = repo
		svc.batch = metrics.NewBatchWriter(repo, cfg.BatchSize, log.With("component", "batch_writer"), o.onError)
	}

	svc.sampler = metrics.NewSampler(source, svc.buffer, svc.batch, log.With("component", "sampler"),
		metrics.WithErrorHandler(o.onError),
		metrics.WithClock(o.now),
		metrics.WithSink(svc.publish),
	)

	return svc, nil
}

func (s *Service) Start() error {
	return s.sampler.Start(s.cfg.SampleInterval)
}

// Stop stops sampling and flushes pending snapshots. It reports whether
// the sampling goroutine exited within the configured timeout.
func (s *Service) Stop() bool {
	return s.sampler.Stop(s.cfg.StopTimeout)
}

func (s *Service) State() metrics.State {
	return s.sampler.State()
}

// Subscribe registers fn to receive every accepted snapshot. fn runs on
// the sampling goroutine and must not block.
func (s *Service) Subscribe(fn metrics.Sink) {
	s.subscribersMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subscribersMu.Unlock()
}

// OnPrune registers fn to run after every successful Prune or PruneAll,
// whoever called it.
func (s *Service) OnPrune(fn func()) {
	s.subscribersMu.Lock()
	s.pruneHooks = append(s.pruneHooks, fn)
	s.subscribersMu.Unlock()
}

func (s *Service) Latest() (domain.Snapshot, error) {
	snap, ok := s.buffer.Latest()
	if !ok {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *Service) History() []domain.Snapshot {
	return s.buffer.History()
}

func (s *Service) ClearHistory() {
	s.buffer.Clear()
}

func (s *Service) Count() int {
	return s.buffer.Count()
}

func (s *Service) Query(ctx context.Context, opts domain.QueryOptions) ([]domain.Snapshot, error) {
	if s.repo == nil {
		return nil, domain.ErrStorageDisabled
	}
	return s.repo.Query(ctx, opts)
}

func (s *Service) Recent(ctx context.Context, n int) ([]domain.Snapshot, error) {
	if s.repo == nil {
		return nil, domain.ErrStorageDisabled
	}
	return s.repo.Latest(ctx, n)
}

func (s *Service) Stats(ctx context.Context) (domain.StoreStats, error) {
	if s.repo == nil {
		return domain.StoreStats{}, domain.ErrStorageDisabled
	}
	return s.repo.Stats(ctx)
}

func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.repo == nil {
		return 0, domain.ErrStorageDisabled
	}

	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.log.Info("pruned stored metrics", "cutoff", cutoff, "deleted", deleted)
	s.pruned()
	return deleted, nil
}

func (s *Service) PruneAll(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, domain.ErrStorageDisabled
	}

	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}

	s.log.Info("deleted all stored metrics", "deleted", deleted)
	s.pruned()
	return deleted, nil
}

func (s *Service) pruned() {
	s.subscribersMu.RLock()
	defer s.subscribersMu.RUnlock()

	for _, fn := range s.pruneHooks {
		fn()
	}
}

func (s *Service) publish(snap domain.Snapshot) {
	s.subscribersMu.RLock()
	defer s.subscribersMu.RUnlock()

	for _, fn := range s.subscribers {
		fn(snap)
	}
}

var _ domain.MetricsService = (*Service)(nil)
