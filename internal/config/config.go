// Package config loads service configuration from environment variables,
// applying defaults where unset and validating the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DBPath      string
	ArtifactDir string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string

	ShutdownTimeout time.Duration

	// External feed configuration.
	HereAPIKey  string
	HereBaseURL string
	FeedTimeout time.Duration
	Region      domain.Region

	// Scheduling.
	IngestInterval    time.Duration
	AnalyticsInterval time.Duration
	AnalyticsLookback time.Duration

	// Analytics thresholds.
	MinSample          int
	MinTrainingSamples int
	TrainSeed          int64

	// Kafka event publishing (feature-flagged).
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// defaultRegion is the Nashville metro bounding box the collector has
// historically monitored.
const defaultRegion = "-87.0,36.0,-86.5,36.4"

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	feedTimeout, err := envDuration("FEED_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	ingestInterval, err := envDuration("INGEST_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	analyticsInterval, err := envDuration("ANALYTICS_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	analyticsLookback, err := envDuration("ANALYTICS_LOOKBACK", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	region, err := ParseRegion(envOrDefault("REGION_BBOX", defaultRegion))
	if err != nil {
		return nil, err
	}

	minSample, err := envInt("MIN_SAMPLE", 5)
	if err != nil {
		return nil, err
	}
	minTraining, err := envInt("MIN_TRAINING_SAMPLES", 10)
	if err != nil {
		return nil, err
	}
	trainSeed, err := envInt("TRAIN_SEED", 42)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:      envOrDefault("DB_PATH", "data/incidents.db"),
		ArtifactDir: envOrDefault("ARTIFACT_DIR", "data"),
		HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "json"),

		ShutdownTimeout: shutdownTimeout,

		HereAPIKey:  os.Getenv("HERE_API_KEY"),
		HereBaseURL: envOrDefault("HERE_BASE_URL", ""),
		FeedTimeout: feedTimeout,
		Region:      region,

		IngestInterval:    ingestInterval,
		AnalyticsInterval: analyticsInterval,
		AnalyticsLookback: analyticsLookback,

		MinSample:          minSample,
		MinTrainingSamples: minTraining,
		TrainSeed:          int64(trainSeed),

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   splitCSV(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "traffic-incident-events"),
	}

	if cfg.HereAPIKey == "" {
		return nil, errors.New("HERE_API_KEY is required")
	}
	if cfg.MinSample < 1 {
		return nil, errors.New("MIN_SAMPLE must be at least 1")
	}
	if cfg.MinTrainingSamples < 2 {
		return nil, errors.New("MIN_TRAINING_SAMPLES must be at least 2")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

// GetLogLevel implements observability.LoggerConfig.
func (c *Config) GetLogLevel() string { return c.LogLevel }

// GetLogFormat implements observability.LoggerConfig.
func (c *Config) GetLogFormat() string { return c.LogFormat }

// ParseRegion parses a "west,south,east,north" bounding box.
func ParseRegion(s string) (domain.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Region{}, fmt.Errorf("invalid region %q: want west,south,east,north", s)
	}
	coords := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		coords[i] = v
	}
	region := domain.Region{West: coords[0], South: coords[1], East: coords[2], North: coords[3]}
	if region.West >= region.East || region.South >= region.North {
		return domain.Region{}, fmt.Errorf("invalid region %q: box is empty", s)
	}
	return region, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
