package here

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

const incidentsJSON = `{
  "results": [
    {
      "incidentDetails": {
        "id": "here-100",
        "type": "accident",
        "criticality": "major",
        "startTime": "2024-04-23T08:15:00-05:00",
        "endTime": "2024-04-23T10:00:00-05:00",
        "delaySeconds": 540,
        "description": {"value": "I-40 E @ Exit 209 - Multi-vehicle accident"}
      },
      "location": {
        "shape": {
          "links": [
            {"points": [{"lat": 36.1627, "lng": -86.7816}, {"lat": 36.1630, "lng": -86.7820}]}
          ]
        }
      }
    },
    {
      "incidentDetails": {
        "id": "here-101",
        "type": "congestion",
        "criticality": "minor",
        "startTime": "2024-04-23T08:20:00-05:00",
        "description": {"value": ""}
      },
      "location": {
        "shape": {
          "links": [
            {"points": []},
            {"points": [{"lat": 36.1500, "lng": -86.8000}]}
          ]
        }
      }
    }
  ]
}`

var testRegion = domain.Region{West: -87.0, South: 36.0, East: -86.5, North: 36.4}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-key", server.URL, 5*time.Second, slog.Default())
}

func TestClient_Fetch(t *testing.T) {
	var gotRequest *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(incidentsJSON)) //nolint:errcheck
	})

	raws, err := client.Fetch(context.Background(), testRegion)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	t.Run("request shape", func(t *testing.T) {
		require.NotNil(t, gotRequest)
		assert.Equal(t, "/v8/incidents", gotRequest.URL.Path)
		q := gotRequest.URL.Query()
		assert.Equal(t, "test-key", q.Get("apiKey"))
		assert.Equal(t, "bbox:-87,36,-86.5,36.4", q.Get("in"))
		assert.Equal(t, "shape", q.Get("locationReferencing"))
	})

	t.Run("full record", func(t *testing.T) {
		raw := raws[0]
		assert.Equal(t, "here-100", raw.ExternalID)
		assert.Equal(t, "major", raw.SeverityCode)
		assert.Equal(t, "accident", raw.IncidentType)
		assert.Equal(t, "I-40 E @ Exit 209", raw.Location)
		assert.Equal(t, "I-40 E @ Exit 209 - Multi-vehicle accident", raw.Description)

		// Feed-local wall time survives the round trip.
		want := time.Date(2024, 4, 23, 8, 15, 0, 0, time.FixedZone("", -5*3600))
		assert.True(t, want.Equal(raw.OccurredAt))
		assert.Equal(t, 8, raw.OccurredAt.Hour())

		require.NotNil(t, raw.DelaySeconds)
		assert.Equal(t, 540, *raw.DelaySeconds)
		require.NotNil(t, raw.EndTime)
		require.NotNil(t, raw.Latitude)
		assert.Equal(t, 36.1627, *raw.Latitude)
		assert.Equal(t, -86.7816, *raw.Longitude)
	})

	t.Run("coordinate fallback label", func(t *testing.T) {
		raw := raws[1]
		assert.Equal(t, "36.1500,-86.8000", raw.Location)
		assert.Nil(t, raw.DelaySeconds)
		assert.Nil(t, raw.EndTime)
	})
}

func TestClient_Fetch_NonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Fetch(context.Background(), testRegion)

	var unavailable *domain.FeedUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, http.StatusTooManyRequests, unavailable.Status)
}

func TestClient_Fetch_BadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>")) //nolint:errcheck
	})

	_, err := client.Fetch(context.Background(), testRegion)

	var unavailable *domain.FeedUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 0, unavailable.Status)
}

func TestClient_Fetch_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on
	client := NewClient("test-key", server.URL, time.Second, slog.Default())

	_, err := client.Fetch(context.Background(), testRegion)

	var unavailable *domain.FeedUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestClient_Fetch_EmptyResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results": []}`)) //nolint:errcheck
	})

	raws, err := client.Fetch(context.Background(), testRegion)

	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestLocationLabel(t *testing.T) {
	lat, lng := 36.1627, -86.7816

	tests := []struct {
		name        string
		description string
		lat         *float64
		lng         *float64
		expected    string
	}{
		{"road prefix before dash", "I-40 E @ Exit 209 - Stalled vehicle", nil, nil, "I-40 E @ Exit 209"},
		{"no dash uses whole description", "Briley Pkwy congestion", nil, nil, "Briley Pkwy congestion"},
		{"short prefix falls through", "I - lane closed on the interstate", nil, nil, "I - lane closed on the interstate"},
		{"empty description with coords", "", &lat, &lng, "36.1627,-86.7816"},
		{"nothing usable", "", nil, nil, ""},
		{"whitespace only", "   ", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, locationLabel(tt.description, tt.lat, tt.lng))
		})
	}
}

func TestParseFeedTime(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got := parseFeedTime("2024-04-23T08:15:00-05:00")
		assert.Equal(t, 8, got.Hour())
		_, offset := got.Zone()
		assert.Equal(t, -5*3600, offset)
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, parseFeedTime("").IsZero())
	})

	t.Run("garbage", func(t *testing.T) {
		assert.True(t, parseFeedTime("04/23/2024 8:15 AM").IsZero())
	})
}
