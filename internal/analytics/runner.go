// Package analytics periodically recomputes the derived artifacts: the
// per-road risk profile set and the severity classifier. Both are computed
// from a snapshot of the incident store taken at the start of the cycle and
// swapped into the artifact store atomically, so readers never see a
// half-finished recompute.
package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/traffic-risk-etl/internal/artifact"
	"github.com/couchcryptid/traffic-risk-etl/internal/classifier"
	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
	"github.com/couchcryptid/traffic-risk-etl/internal/observability"
	"github.com/couchcryptid/traffic-risk-etl/internal/risk"
	"github.com/couchcryptid/traffic-risk-etl/internal/store"
)

// Runner drives the aggregate-and-retrain cycle.
type Runner struct {
	incidents store.IncidentStore
	artifacts *artifact.Store
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	interval  time.Duration
	lookback  time.Duration
	minSample int
	training  classifier.Config
}

// Options configures a Runner.
type Options struct {
	Interval  time.Duration
	Lookback  time.Duration // incident snapshot window ending now
	MinSample int           // per-road floor for risk profiles
	Training  classifier.Config
	Clock     clockwork.Clock // nil for real time
}

// NewRunner creates an analytics runner over the given store and artifact
// sink.
func NewRunner(incidents store.IncidentStore, artifacts *artifact.Store, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Runner{
		incidents: incidents,
		artifacts: artifacts,
		logger:    logger,
		metrics:   metrics,
		clock:     opts.Clock,
		interval:  opts.Interval,
		lookback:  opts.Lookback,
		minSample: opts.MinSample,
		training:  opts.Training,
	}
}

// Run executes an immediate cycle, then one per interval until the context
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("analytics runner started", "interval", r.interval, "lookback", r.lookback)

	r.cycle(ctx)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("analytics runner stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("analytics cycle failed", "error", err)
	}
}

// RunOnce snapshots the incident window, recomputes the risk profiles, and
// retrains the classifier. Aggregation and training succeed or fail
// independently: an insufficient-data training refusal is counted and
// logged, and the previously trained artifact stays current.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()
	defer func() {
		r.metrics.AnalyticsDuration.Observe(time.Since(start).Seconds())
	}()

	now := r.clock.Now()
	incidents, err := r.incidents.ListBetween(ctx, now.Add(-r.lookback), now)
	if err != nil {
		return err
	}

	profiles := risk.Aggregate(incidents, r.minSample)
	if err := r.artifacts.SwapProfiles(profiles); err != nil {
		return err
	}
	r.metrics.RoadsProfiled.Set(float64(len(profiles)))

	model, err := classifier.Train(incidents, r.training)
	if err != nil {
		r.metrics.TrainFailures.Inc()
		var insufficient *domain.InsufficientTrainingDataError
		if errors.As(err, &insufficient) {
			r.logger.Warn("classifier retrain skipped, keeping previous artifact",
				"have", insufficient.Have, "need", insufficient.Need)
			return nil
		}
		return err
	}
	if err := r.artifacts.SwapClassifier(model); err != nil {
		return err
	}
	r.metrics.ModelAccuracy.Set(model.Accuracy)

	r.logger.Info("analytics cycle complete",
		"incidents", len(incidents),
		"roads", len(profiles),
		"accuracy", model.Accuracy,
		"n_train", model.NTrain,
		"n_test", model.NTest,
	)
	return nil
}
