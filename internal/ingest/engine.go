// Package ingest implements the incident ingestion engine: fetch a batch of
// incidents for a region from the external feed, normalize each record,
// deduplicate against the store by external ID, and upsert.
//
// The engine is single-shot and stateless between invocations except
// through the persistent store. Running it twice against an unchanged feed
// is a no-op beyond the first run.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
	"github.com/couchcryptid/traffic-risk-etl/internal/observability"
	"github.com/couchcryptid/traffic-risk-etl/internal/store"
)

// Feed fetches a finite batch of raw incidents for a bounding region.
// Network and auth failures surface as a domain.FeedUnavailableError.
type Feed interface {
	Fetch(ctx context.Context, region domain.Region) ([]domain.RawIncident, error)
}

// UpsertKind labels the write that produced an upsert event.
type UpsertKind string

const (
	UpsertInserted UpsertKind = "inserted"
	UpsertUpdated  UpsertKind = "updated"
)

// Publisher streams upserted incidents to downstream consumers. Publishing
// is best-effort: a publish failure is counted and logged, never fatal to
// the ingestion run.
type Publisher interface {
	PublishUpsert(ctx context.Context, inc domain.Incident, kind UpsertKind) error
}

// State tracks the engine through one run. Values double as the
// engine_state gauge.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateDeduplicating
	StateWriting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDeduplicating:
		return "deduplicating"
	case StateWriting:
		return "writing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report summarizes one ingestion run.
type Report struct {
	Fetched   int      `json:"fetched"`
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Malformed int      `json:"malformed"`
	Errors    []string `json:"errors,omitempty"`
}

// Engine orchestrates the fetch-dedup-write cycle.
type Engine struct {
	feed      Feed
	incidents store.IncidentStore
	publisher Publisher // nil disables event publishing
	logger    *slog.Logger
	metrics   *observability.Metrics

	state atomic.Int32
	ran   atomic.Bool
}

// New creates an ingestion engine. Pass a nil publisher to disable the
// upsert event stream.
func New(feed Feed, incidents store.IncidentStore, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		feed:      feed,
		incidents: incidents,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// State returns the engine's current run phase.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// CheckReadiness returns nil once the engine has completed at least one run,
// successful or not, so the service only reports ready after it has talked
// to the feed.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ran.Load() {
		return errors.New("ingestion has not completed a run yet")
	}
	return nil
}

// action is one planned write, decided during the dedup pass and applied
// during the write pass.
type action struct {
	kind     UpsertKind
	incident domain.Incident
	id       uint         // target row for updates
	fields   store.Fields // changed columns for updates
}

// RunOnce executes a single fetch-dedup-write cycle for the region. A feed
// failure aborts the run and is reported both in the returned error and in
// Report.Errors; per-record problems (malformed records, individual write
// errors) are counted and the run continues. Writes already committed when
// an error occurs are not rolled back.
func (e *Engine) RunOnce(ctx context.Context, region domain.Region) (Report, error) {
	start := time.Now()
	defer func() {
		e.ran.Store(true)
		e.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	var report Report

	e.setState(StateFetching)
	raws, err := e.feed.Fetch(ctx, region)
	if err != nil {
		e.setState(StateFailed)
		e.metrics.IngestRuns.WithLabelValues("failure").Inc()
		report.Errors = append(report.Errors, err.Error())
		e.logger.Error("feed fetch failed", "region", region.String(), "error", err)
		return report, err
	}
	report.Fetched = len(raws)
	e.metrics.IncidentsFetched.Add(float64(len(raws)))

	e.setState(StateDeduplicating)
	actions := e.planActions(ctx, raws, &report)

	e.setState(StateWriting)
	e.applyActions(ctx, actions, &report)

	e.setState(StateIdle)
	e.metrics.IngestRuns.WithLabelValues("success").Inc()
	e.logger.Info("ingestion run complete",
		"region", region.String(),
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"malformed", report.Malformed,
	)
	return report, nil
}

// planActions performs the dedup pass: validate each record, look up its
// external ID, and decide insert, update, or skip. Records without an
// external ID are always inserts; the manual-seed path is never deduped.
func (e *Engine) planActions(ctx context.Context, raws []domain.RawIncident, report *Report) []action {
	actions := make([]action, 0, len(raws))
	for _, raw := range raws {
		if err := raw.Validate(); err != nil {
			report.Malformed++
			e.metrics.IncidentsMalformed.Inc()
			e.logger.Warn("skipping malformed incident", "error", err)
			continue
		}

		incoming := e.toIncident(raw)

		if raw.ExternalID == "" {
			actions = append(actions, action{kind: UpsertInserted, incident: incoming})
			continue
		}

		existing, err := e.incidents.FindByExternalID(ctx, raw.ExternalID)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			e.logger.Error("dedup lookup failed", "external_id", raw.ExternalID, "error", err)
			continue
		}
		if existing == nil {
			actions = append(actions, action{kind: UpsertInserted, incident: incoming})
			continue
		}

		fields := changedFields(*existing, incoming)
		if len(fields) == 0 {
			report.Skipped++
			e.metrics.IncidentsSkipped.Inc()
			continue
		}
		updated := applyFields(*existing, incoming)
		actions = append(actions, action{kind: UpsertUpdated, incident: updated, id: existing.ID, fields: fields})
	}
	return actions
}

// applyActions performs the write pass. Individual write failures are
// recorded and the pass continues; at-least-once semantics per incident.
func (e *Engine) applyActions(ctx context.Context, actions []action, report *Report) {
	for _, a := range actions {
		switch a.kind {
		case UpsertInserted:
			id, err := e.incidents.Insert(ctx, &a.incident)
			if err != nil {
				report.Errors = append(report.Errors, err.Error())
				e.logger.Error("insert failed", "location", a.incident.Location, "error", err)
				continue
			}
			a.incident.ID = id
			report.Inserted++
			e.metrics.IncidentsInserted.Inc()
		case UpsertUpdated:
			if err := e.incidents.Update(ctx, a.id, a.fields); err != nil {
				report.Errors = append(report.Errors, err.Error())
				e.logger.Error("update failed", "id", a.id, "error", err)
				continue
			}
			a.incident.ID = a.id
			report.Updated++
			e.metrics.IncidentsUpdated.Inc()
		}
		e.publish(ctx, a.incident, a.kind)
	}
}

func (e *Engine) publish(ctx context.Context, inc domain.Incident, kind UpsertKind) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishUpsert(ctx, inc, kind); err != nil {
		e.metrics.PublishErrors.Inc()
		e.logger.Warn("publish upsert event failed", "id", inc.ID, "kind", kind, "error", err)
		return
	}
	e.metrics.EventsPublished.Inc()
}

// toIncident maps a validated raw record to the stored shape, normalizing
// the upstream severity code.
func (e *Engine) toIncident(raw domain.RawIncident) domain.Incident {
	severity, recognized := domain.NormalizeSeverity(raw.SeverityCode)
	if !recognized {
		e.metrics.SeverityDefaulted.Inc()
		e.logger.Debug("unrecognized severity code, defaulting",
			"code", raw.SeverityCode, "external_id", raw.ExternalID)
	}

	inc := domain.Incident{
		OccurredAt:   raw.OccurredAt,
		Location:     raw.Location,
		Latitude:     raw.Latitude,
		Longitude:    raw.Longitude,
		Severity:     severity,
		IncidentType: raw.IncidentType,
		Description:  raw.Description,
		DelaySeconds: raw.DelaySeconds,
		EndTime:      raw.EndTime,
	}
	if raw.ExternalID != "" {
		id := raw.ExternalID
		inc.ExternalID = &id
	}
	return inc
}

// changedFields compares the mutable fields of a stored incident against a
// freshly fetched one and returns the columns to update. An empty result
// means the record is unchanged and the fetch is skipped.
func changedFields(existing, incoming domain.Incident) store.Fields {
	fields := store.Fields{}
	if existing.Severity != incoming.Severity {
		fields["severity"] = incoming.Severity
	}
	if existing.Location != incoming.Location {
		fields["location"] = incoming.Location
	}
	if existing.Description != incoming.Description {
		fields["description"] = incoming.Description
	}
	if !equalIntPtr(existing.DelaySeconds, incoming.DelaySeconds) {
		fields["delay_seconds"] = incoming.DelaySeconds
	}
	if !equalTimePtr(existing.EndTime, incoming.EndTime) {
		fields["end_time"] = incoming.EndTime
	}
	return fields
}

// applyFields overlays the incoming mutable fields onto the stored incident,
// producing the post-update view for event publishing.
func applyFields(existing, incoming domain.Incident) domain.Incident {
	existing.Severity = incoming.Severity
	existing.Location = incoming.Location
	existing.Description = incoming.Description
	existing.DelaySeconds = incoming.DelaySeconds
	existing.EndTime = incoming.EndTime
	return existing
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	e.metrics.EngineState.Set(float64(s))
}
