package scheduler

import (
	"context"
	"log/slog"
	"time"

	"station_watch/internal/domain"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context) (*domain.ImportStats, error)
}

// RollupRunner defines the interface for notification roll-up runs.
type RollupRunner interface {
	RunDaily(ctx context.Context) error
	RunWeekly(ctx context.Context) error
}

// Scheduler drives the periodic work: feed syncs on a short cadence and
// notification roll-ups on the daily and weekly cadences.
type Scheduler struct {
	syncer         Syncer
	rollup         RollupRunner
	syncInterval   time.Duration
	dailyInterval  time.Duration
	weeklyInterval time.Duration
	syncTimeout    time.Duration
	logger         *slog.Logger
}

func NewScheduler(
	syncer Syncer,
	rollup RollupRunner,
	syncInterval, dailyInterval, weeklyInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		syncer:         syncer,
		rollup:         rollup,
		syncInterval:   syncInterval,
		dailyInterval:  dailyInterval,
		weeklyInterval: weeklyInterval,
		syncTimeout:    30 * time.Minute,
		logger:         logger,
	}
}

// Start runs until the context is cancelled. One sync runs immediately;
// roll-ups wait for their first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"sync_interval", s.syncInterval,
		"daily_interval", s.dailyInterval,
		"weekly_interval", s.weeklyInterval,
	)

	s.runSync(ctx)

	syncTicker := time.NewTicker(s.syncInterval)
	defer syncTicker.Stop()
	dailyTicker := time.NewTicker(s.dailyInterval)
	defer dailyTicker.Stop()
	weeklyTicker := time.NewTicker(s.weeklyInterval)
	defer weeklyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-syncTicker.C:
			s.runSync(ctx)
		case <-dailyTicker.C:
			if err := s.rollup.RunDaily(ctx); err != nil {
				s.logger.Error("daily roll-up failed", "error", err)
			}
		case <-weeklyTicker.C:
			if err := s.rollup.RunWeekly(ctx); err != nil {
				s.logger.Error("weekly roll-up failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	if _, err := s.syncer.Sync(syncCtx); err != nil {
		s.logger.Error("sync failed", "error", err)
	}
}
