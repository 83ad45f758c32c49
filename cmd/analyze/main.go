// Command analyze runs one aggregation-and-training cycle against an
// incident database and writes the resulting artifacts as JSON. It is the
// offline counterpart of the in-service analytics runner, useful for
// inspecting what a retrain would produce without running riskd.
//
// Usage:
//
//	go run ./cmd/analyze -db data/incidents.db -out data -lookback 720h
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/traffic-risk-etl/internal/artifact"
	"github.com/couchcryptid/traffic-risk-etl/internal/classifier"
	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
	"github.com/couchcryptid/traffic-risk-etl/internal/risk"
	"github.com/couchcryptid/traffic-risk-etl/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := flag.String("db", "data/incidents.db", "path to the incident database")
	outDir := flag.String("out", "data", "directory for artifact JSON files")
	lookback := flag.Duration("lookback", 30*24*time.Hour, "incident window ending now")
	minSample := flag.Int("min-sample", risk.DefaultMinSample, "per-road incident floor")
	seed := flag.Int64("seed", 42, "training split seed")
	top := flag.Int("top", 5, "number of roads to print in the summary")
	flag.Parse()

	incidentStore, err := store.Open(*dbPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now()
	incidents, err := incidentStore.ListBetween(ctx, now.Add(-*lookback), now)
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d incidents from %s\n", len(incidents), *dbPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	artifacts := artifact.New(*outDir, logger)

	profiles := risk.Aggregate(incidents, *minSample)
	if err := artifacts.SwapProfiles(profiles); err != nil {
		return err
	}
	fmt.Printf("profiled %d roads (min sample %d)\n", len(profiles), *minSample)

	cfg := classifier.DefaultConfig()
	cfg.Seed = *seed
	model, err := classifier.Train(incidents, cfg)
	if err != nil {
		var insufficient *domain.InsufficientTrainingDataError
		if errors.As(err, &insufficient) {
			fmt.Printf("classifier skipped: %v\n", insufficient)
			printRoads(profiles, *top)
			return nil
		}
		return err
	}
	if err := artifacts.SwapClassifier(model); err != nil {
		return err
	}

	fmt.Printf("classifier: accuracy=%.3f precision=%.3f recall=%.3f f1=%.3f (train=%d test=%d)\n",
		model.Accuracy, model.Precision, model.Recall, model.F1, model.NTrain, model.NTest)
	printRoads(profiles, *top)
	return nil
}

func printRoads(profiles []risk.Profile, top int) {
	if len(profiles) == 0 {
		fmt.Println("no roads met the minimum sample floor")
		return
	}
	if top > len(profiles) {
		top = len(profiles)
	}
	fmt.Printf("top %d roads by risk score:\n", top)
	for i, p := range profiles[:top] {
		fmt.Printf("  %d. %-32s incidents=%-4d avg_severity=%.2f risk=%.1f worst_day=%s\n",
			i+1, p.Road, p.TotalIncidents, p.AvgSeverity, p.RiskScore, p.WorstDay)
	}
}
