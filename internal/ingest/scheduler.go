package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

// Scheduler invokes the engine on a fixed interval. Runs execute
// sequentially on one goroutine, so a slow run delays the next rather than
// overlapping it.
type Scheduler struct {
	engine   *Engine
	region   domain.Region
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for the given region and interval. Pass
// nil for clock to use real time.
func NewScheduler(engine *Engine, region domain.Region, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		engine:   engine,
		region:   region,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Run executes an immediate ingestion run, then one per interval until the
// context is cancelled. Failed runs are logged and the loop continues; the
// feed being down for one poll is routine, not fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("ingestion scheduler started", "region", s.region.String(), "interval", s.interval)

	s.runOnce(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ingestion scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.engine.RunOnce(ctx, s.region); err != nil {
		s.logger.Error("scheduled ingestion run failed", "error", err)
	}
}
