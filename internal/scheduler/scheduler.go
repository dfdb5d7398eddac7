package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/service"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Run(ctx context.Context, opts service.SyncOptions) (*domain.SyncStats, error)
}

// Scheduler drives periodic sync runs. A TryLock guards against overlapping
// runs for the same source: if a run is still in flight when the ticker
// fires, the tick is skipped rather than queued.
type Scheduler struct {
	syncer   Syncer
	opts     service.SyncOptions
	interval time.Duration
	logger   *slog.Logger
	running  sync.Mutex
}

func NewScheduler(syncer Syncer, opts service.SyncOptions, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		opts:     opts,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("previous sync still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	syncCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := s.syncer.Run(syncCtx, s.opts); err != nil {
		s.logger.Error("sync failed", "error", err)
	}
}
