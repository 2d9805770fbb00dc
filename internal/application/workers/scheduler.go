package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hostpulse/internal/logger"
)

type DailySchedule struct {
	Hour   int
	Minute int
}

// ParseDailySchedule reads a "HH:MM" wall-clock time.
func ParseDailySchedule(raw string) (DailySchedule, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return DailySchedule{}, fmt.Errorf("invalid daily schedule %q: %w", raw, err)
	}
	return DailySchedule{Hour: t.Hour(), Minute: t.Minute()}, nil
}

type Scheduler struct {
	log logger.Logger
	wg  sync.WaitGroup
	now func() time.Time
}

func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{log: log, now: time.Now}
}

func (s *Scheduler) RunByDuration(ctx context.Context, dur time.Duration, worker Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(dur)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx, worker)
			}
		}
	}()
}

func (s *Scheduler) RunDaily(ctx context.Context, schedule DailySchedule, worker Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.untilNext(schedule))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				s.run(ctx, worker)
				timer.Reset(s.untilNext(schedule))
			}
		}
	}()
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, worker Worker) {
	start := time.Now()

	if err := worker.Run(ctx); err != nil {
		s.log.Error("worker failed", "name", worker.Name(), "error", err)
	}

	s.log.Debug("worker finished", "name", worker.Name(), "time", time.Since(start))
}

func (s *Scheduler) untilNext(schedule DailySchedule) time.Duration {
	now := s.now()
	return nextDaily(now, schedule).Sub(now)
}

// nextDaily returns the first instant at the scheduled wall-clock time that
// is strictly after now.
func nextDaily(now time.Time, schedule DailySchedule) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), schedule.Hour, schedule.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
