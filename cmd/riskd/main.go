// Command riskd runs the traffic risk service: the scheduled incident
// ingestion pipeline, the analytics runner that recomputes road risk
// profiles and retrains the severity classifier, and the HTTP surface that
// exposes health, metrics, and the current artifacts.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/traffic-risk-etl/internal/adapter/here"
	httpadapter "github.com/couchcryptid/traffic-risk-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/traffic-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-risk-etl/internal/analytics"
	"github.com/couchcryptid/traffic-risk-etl/internal/artifact"
	"github.com/couchcryptid/traffic-risk-etl/internal/classifier"
	"github.com/couchcryptid/traffic-risk-etl/internal/config"
	"github.com/couchcryptid/traffic-risk-etl/internal/ingest"
	"github.com/couchcryptid/traffic-risk-etl/internal/observability"
	"github.com/couchcryptid/traffic-risk-etl/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	incidents, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open incident store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	feed := here.NewClient(cfg.HereAPIKey, cfg.HereBaseURL, cfg.FeedTimeout, logger)

	// Upsert event publishing is feature-flagged via KAFKA_ENABLED.
	var publisher ingest.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		publisher = kafkaWriter
		logger.Info("kafka event publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka event publishing disabled")
	}

	engine := ingest.New(feed, incidents, publisher, logger, metrics)
	scheduler := ingest.NewScheduler(engine, cfg.Region, cfg.IngestInterval, nil, logger)

	artifacts := artifact.New(cfg.ArtifactDir, logger)

	training := classifier.DefaultConfig()
	training.Seed = cfg.TrainSeed
	training.MinSamples = cfg.MinTrainingSamples

	runner := analytics.NewRunner(incidents, artifacts, logger, metrics, analytics.Options{
		Interval:  cfg.AnalyticsInterval,
		Lookback:  cfg.AnalyticsLookback,
		MinSample: cfg.MinSample,
		Training:  training,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, artifacts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("ingestion scheduler error", "error", err)
		}
	}()

	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("analytics runner error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
