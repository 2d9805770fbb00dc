// Package workers
package workers

import (
	"context"

	"hostpulse/internal/config"
	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
)

type Manager struct {
	scheduler *Scheduler
	cfg       *config.Config
	log       logger.Logger

	metrics domain.MetricsService
}

type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

func NewManager(scheduler *Scheduler, cfg *config.Config, log logger.Logger, metrics domain.MetricsService) *Manager {
	return &Manager{
		scheduler: scheduler,
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
	}
}

// Start schedules the background workers. Retention pruning is skipped
// when storage is disabled or the retention period is zero. It runs daily
// at RetentionAt when that is set, otherwise every RetentionInterval.
func (m *Manager) Start(ctx context.Context) {
	m.log.Info("worker: manager started")

	if !m.cfg.StorageEnabled || m.cfg.RetentionPeriod <= 0 {
		m.log.Info("worker: retention pruning disabled")
		return
	}

	cleanup := NewMetricsCleanupWorker(m.metrics, m.cfg.RetentionPeriod, m.log)

	if m.cfg.RetentionAt != "" {
		at, err := ParseDailySchedule(m.cfg.RetentionAt)
		if err != nil {
			m.log.Error("worker: retention pruning not scheduled", "error", err)
			return
		}

		m.scheduler.RunDaily(ctx, at, cleanup)
		m.log.Info("worker: scheduled", "name", cleanup.Name(), "daily_at", m.cfg.RetentionAt)
		return
	}

	m.scheduler.RunByDuration(ctx, m.cfg.RetentionInterval, cleanup)
	m.log.Info("worker: scheduled", "name", cleanup.Name(), "every", m.cfg.RetentionInterval)
}

// Wait blocks until every scheduled worker loop has returned.
func (m *Manager) Wait() {
	m.scheduler.Wait()
}
