package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
	"github.com/couchcryptid/traffic-risk-etl/internal/ingest"
	"github.com/couchcryptid/traffic-risk-etl/internal/observability"
	"github.com/couchcryptid/traffic-risk-etl/internal/store"
)

// --- mocks ---

type mockFeed struct {
	batches [][]domain.RawIncident
	err     error
	calls   int
}

func (m *mockFeed) Fetch(_ context.Context, _ domain.Region) ([]domain.RawIncident, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := m.calls
	m.calls++
	if i >= len(m.batches) {
		i = len(m.batches) - 1
	}
	return m.batches[i], nil
}

type memStore struct {
	nextID    uint
	byID      map[uint]*domain.Incident
	findErr   error
	insertErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, byID: make(map[uint]*domain.Incident)}
}

func (m *memStore) FindByExternalID(_ context.Context, externalID string) (*domain.Incident, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, inc := range m.byID {
		if inc.ExternalID != nil && *inc.ExternalID == externalID {
			copied := *inc
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(_ context.Context, inc *domain.Incident) (uint, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	id := m.nextID
	m.nextID++
	copied := *inc
	copied.ID = id
	m.byID[id] = &copied
	return id, nil
}

func (m *memStore) Update(_ context.Context, id uint, fields store.Fields) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	inc, ok := m.byID[id]
	if !ok {
		return errors.New("no such row")
	}
	if v, ok := fields["severity"]; ok {
		inc.Severity = v.(domain.Severity)
	}
	if v, ok := fields["location"]; ok {
		inc.Location = v.(string)
	}
	if v, ok := fields["description"]; ok {
		inc.Description = v.(string)
	}
	if v, ok := fields["delay_seconds"]; ok {
		inc.DelaySeconds = v.(*int)
	}
	if v, ok := fields["end_time"]; ok {
		inc.EndTime = v.(*time.Time)
	}
	return nil
}

func (m *memStore) ListBetween(_ context.Context, start, end time.Time) ([]domain.Incident, error) {
	var out []domain.Incident
	for _, inc := range m.byID {
		if !inc.OccurredAt.Before(start) && inc.OccurredAt.Before(end) {
			out = append(out, *inc)
		}
	}
	return out, nil
}

type publishedEvent struct {
	incident domain.Incident
	kind     ingest.UpsertKind
}

type mockPublisher struct {
	events []publishedEvent
	err    error
}

func (m *mockPublisher) PublishUpsert(_ context.Context, inc domain.Incident, kind ingest.UpsertKind) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, publishedEvent{incident: inc, kind: kind})
	return nil
}

// --- helpers ---

var testRegion = domain.Region{West: -87.0, South: 36.0, East: -86.5, North: 36.4}

func rawIncident(externalID, severity string) domain.RawIncident {
	return domain.RawIncident{
		ExternalID:   externalID,
		SeverityCode: severity,
		OccurredAt:   time.Date(2024, 4, 23, 8, 0, 0, 0, time.UTC),
		Location:     "I-40 E @ Exit 209",
		Description:  "multi-vehicle accident",
	}
}

func newEngine(feed ingest.Feed, incidents store.IncidentStore, pub ingest.Publisher) *ingest.Engine {
	return ingest.New(feed, incidents, pub, slog.Default(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestEngine_RunOnce_InsertsNewIncidents(t *testing.T) {
	feed := &mockFeed{batches: [][]domain.RawIncident{{
		rawIncident("here-1", "critical"),
		rawIncident("here-2", "minor"),
	}}}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	report, err := e.RunOnce(context.Background(), testRegion)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Skipped)
	assert.Len(t, incidents.byID, 2)

	stored, err := incidents.FindByExternalID(context.Background(), "here-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.SeverityHigh, stored.Severity)
}

func TestEngine_RunOnce_Idempotent(t *testing.T) {
	batch := []domain.RawIncident{
		rawIncident("here-1", "critical"),
		rawIncident("here-2", "minor"),
		rawIncident("here-3", "moderate"),
	}
	feed := &mockFeed{batches: [][]domain.RawIncident{batch}}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	first, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)

	second, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 3, second.Skipped)
	assert.Len(t, incidents.byID, 3)
}

func TestEngine_RunOnce_UpdatesChangedIncident(t *testing.T) {
	initial := rawIncident("here-1", "minor")
	changed := initial
	changed.SeverityCode = "critical"
	changed.Description = "accident cleared to shoulder"

	feed := &mockFeed{batches: [][]domain.RawIncident{{initial}, {changed}}}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	_, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)

	report, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Inserted)

	stored, err := incidents.FindByExternalID(context.Background(), "here-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.SeverityHigh, stored.Severity)
	assert.Equal(t, "accident cleared to shoulder", stored.Description)
}

func TestEngine_RunOnce_ManualSeedRowsNeverDeduped(t *testing.T) {
	// Records without an external ID are always inserted, even when they are
	// byte-identical across runs.
	seed := rawIncident("", "low")
	feed := &mockFeed{batches: [][]domain.RawIncident{{seed}, {seed}}}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	_, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)
	report, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Skipped)
	assert.Len(t, incidents.byID, 2)
	for _, inc := range incidents.byID {
		assert.Nil(t, inc.ExternalID)
	}
}

func TestEngine_RunOnce_SkipsMalformedRecords(t *testing.T) {
	missingLocation := rawIncident("here-1", "low")
	missingLocation.Location = ""
	missingTime := rawIncident("here-2", "low")
	missingTime.OccurredAt = time.Time{}

	feed := &mockFeed{batches: [][]domain.RawIncident{{
		missingLocation,
		missingTime,
		rawIncident("here-3", "major"),
	}}}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	report, err := e.RunOnce(context.Background(), testRegion)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Malformed)
	assert.Equal(t, 1, report.Inserted)
	assert.Len(t, incidents.byID, 1)
}

func TestEngine_RunOnce_FeedFailure(t *testing.T) {
	feedErr := &domain.FeedUnavailableError{Endpoint: "https://feed.example", Status: 503}
	feed := &mockFeed{err: feedErr}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	report, err := e.RunOnce(context.Background(), testRegion)

	require.Error(t, err)
	var unavailable *domain.FeedUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 0, report.Fetched)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "503")
	assert.Equal(t, ingest.StateFailed, e.State())
}

func TestEngine_RunOnce_WriteFailureContinues(t *testing.T) {
	feed := &mockFeed{batches: [][]domain.RawIncident{{
		rawIncident("here-1", "low"),
		rawIncident("here-2", "low"),
	}}}
	incidents := newMemStore()
	incidents.insertErr = errors.New("disk full")
	e := newEngine(feed, incidents, nil)

	report, err := e.RunOnce(context.Background(), testRegion)

	require.NoError(t, err, "per-record write errors do not fail the run")
	assert.Equal(t, 0, report.Inserted)
	assert.Len(t, report.Errors, 2)
	assert.Equal(t, ingest.StateIdle, e.State())
}

func TestEngine_RunOnce_DefaultsUnknownSeverity(t *testing.T) {
	feed := &mockFeed{batches: [][]domain.RawIncident{{
		rawIncident("here-1", "apocalyptic"),
	}}}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	_, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)

	stored, err := incidents.FindByExternalID(context.Background(), "here-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.SeverityLow, stored.Severity)
}

func TestEngine_RunOnce_PublishesUpsertEvents(t *testing.T) {
	initial := rawIncident("here-1", "minor")
	changed := initial
	changed.SeverityCode = "critical"

	feed := &mockFeed{batches: [][]domain.RawIncident{{initial}, {changed}}}
	incidents := newMemStore()
	pub := &mockPublisher{}
	e := newEngine(feed, incidents, pub)

	_, err := e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)
	_, err = e.RunOnce(context.Background(), testRegion)
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, ingest.UpsertInserted, pub.events[0].kind)
	assert.Equal(t, domain.SeverityLow, pub.events[0].incident.Severity)
	assert.NotZero(t, pub.events[0].incident.ID)
	assert.Equal(t, ingest.UpsertUpdated, pub.events[1].kind)
	assert.Equal(t, domain.SeverityHigh, pub.events[1].incident.Severity)
}

func TestEngine_RunOnce_PublishFailureNotFatal(t *testing.T) {
	feed := &mockFeed{batches: [][]domain.RawIncident{{rawIncident("here-1", "low")}}}
	incidents := newMemStore()
	pub := &mockPublisher{err: errors.New("broker down")}
	e := newEngine(feed, incidents, pub)

	report, err := e.RunOnce(context.Background(), testRegion)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Empty(t, report.Errors)
}

func TestEngine_CheckReadiness(t *testing.T) {
	feed := &mockFeed{err: errors.New("boom")}
	incidents := newMemStore()
	e := newEngine(feed, incidents, nil)

	require.Error(t, e.CheckReadiness(context.Background()), "not ready before first run")

	_, _ = e.RunOnce(context.Background(), testRegion)

	assert.NoError(t, e.CheckReadiness(context.Background()), "ready after a run, even a failed one")
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    ingest.State
		expected string
	}{
		{ingest.StateIdle, "idle"},
		{ingest.StateFetching, "fetching"},
		{ingest.StateDeduplicating, "deduplicating"},
		{ingest.StateWriting, "writing"},
		{ingest.StateFailed, "failed"},
		{ingest.State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}
