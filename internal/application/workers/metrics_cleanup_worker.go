package workers

import (
	"context"
	"fmt"
	"time"

	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
)

// MetricsCleanupWorker deletes stored snapshots older than the retention
// period.
type MetricsCleanupWorker struct {
	svc       domain.MetricsService
	retention time.Duration
	log       logger.Logger
	now       func() time.Time
}

func NewMetricsCleanupWorker(svc domain.MetricsService, retention time.Duration, log logger.Logger) *MetricsCleanupWorker {
	return &MetricsCleanupWorker{
		svc:       svc,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

func (w *MetricsCleanupWorker) Name() string {
	return "metrics_cleanup"
}

func (w *MetricsCleanupWorker) Run(ctx context.Context) error {
	cutoff := w.now().Add(-w.retention)

	deleted, err := w.svc.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune metrics before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted > 0 {
		w.log.Info("worker: expired metrics removed", "count", deleted, "cutoff", cutoff)
	}

	return nil
}
