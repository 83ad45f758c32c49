package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion engine and the analytics runners.
type Metrics struct {
	// Ingestion metrics.
	IncidentsFetched   prometheus.Counter
	IncidentsInserted  prometheus.Counter
	IncidentsUpdated   prometheus.Counter
	IncidentsSkipped   prometheus.Counter
	IncidentsMalformed prometheus.Counter
	SeverityDefaulted  prometheus.Counter
	IngestRuns         *prometheus.CounterVec // labels: outcome={success,failure}
	IngestDuration     prometheus.Histogram
	EngineState        prometheus.Gauge // see ingest.State values

	// Event publishing metrics.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter

	// Analytics metrics.
	RoadsProfiled     prometheus.Gauge
	AnalyticsDuration prometheus.Histogram
	TrainFailures     prometheus.Counter
	ModelAccuracy     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IncidentsFetched,
		m.IncidentsInserted,
		m.IncidentsUpdated,
		m.IncidentsSkipped,
		m.IncidentsMalformed,
		m.SeverityDefaulted,
		m.IngestRuns,
		m.IngestDuration,
		m.EngineState,
		m.EventsPublished,
		m.PublishErrors,
		m.RoadsProfiled,
		m.AnalyticsDuration,
		m.TrainFailures,
		m.ModelAccuracy,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IncidentsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "incidents_fetched_total",
			Help:      "Total incident records fetched from the external feed.",
		}),
		IncidentsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "incidents_inserted_total",
			Help:      "Total incidents inserted into the store.",
		}),
		IncidentsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "incidents_updated_total",
			Help:      "Total incidents updated in place after a field change upstream.",
		}),
		IncidentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "incidents_skipped_total",
			Help:      "Total fetched incidents already stored with no field changes.",
		}),
		IncidentsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "incidents_malformed_total",
			Help:      "Total fetched records skipped for missing required fields.",
		}),
		SeverityDefaulted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "severity_defaulted_total",
			Help:      "Total records whose severity code was unrecognized and defaulted to Low.",
		}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traffic_risk",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch-dedup-write ingestion run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EngineState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_risk",
			Name:      "engine_state",
			Help:      "Ingestion engine state: 0 idle, 1 fetching, 2 deduplicating, 3 writing, 4 failed.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "events_published_total",
			Help:      "Total upsert events published to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "publish_errors_total",
			Help:      "Total failed publishes to the sink topic.",
		}),
		RoadsProfiled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_risk",
			Name:      "roads_profiled",
			Help:      "Number of roads in the current risk profile set.",
		}),
		AnalyticsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traffic_risk",
			Name:      "analytics_duration_seconds",
			Help:      "Duration of a complete aggregate-and-retrain analytics cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		TrainFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_risk",
			Name:      "train_failures_total",
			Help:      "Classifier training failures, including insufficient-data refusals.",
		}),
		ModelAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_risk",
			Name:      "model_accuracy",
			Help:      "Held-out accuracy of the current severity classifier.",
		}),
	}
}
