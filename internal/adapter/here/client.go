// Package here implements the external feed contract against the HERE
// Traffic API v8 incidents endpoint.
package here

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

// DefaultBaseURL is the production HERE traffic endpoint.
const DefaultBaseURL = "https://data.traffic.hereapi.com"

// Client fetches traffic incidents for a bounding region. It implements
// ingest.Feed.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a HERE incidents client. baseURL is overridable for
// tests; pass "" for the production endpoint.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Fetch returns the current incident batch for the region. Any failure to
// obtain a decodable response (transport error, non-200 status, bad JSON)
// surfaces as a *domain.FeedUnavailableError; per-record problems are left
// to the engine's validation.
func (c *Client) Fetch(ctx context.Context, region domain.Region) ([]domain.RawIncident, error) {
	endpoint := c.baseURL + "/v8/incidents"
	params := url.Values{
		"apiKey":              {c.apiKey},
		"in":                  {"bbox:" + region.String()},
		"locationReferencing": {"shape"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FeedUnavailableError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FeedUnavailableError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	var feed response
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &domain.FeedUnavailableError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}

	raws := make([]domain.RawIncident, 0, len(feed.Results))
	for _, res := range feed.Results {
		raws = append(raws, toRawIncident(res))
	}
	c.logger.Debug("feed batch fetched", "region", region.String(), "incidents", len(raws))
	return raws, nil
}

func toRawIncident(res result) domain.RawIncident {
	d := res.IncidentDetails

	raw := domain.RawIncident{
		ExternalID:   d.ID,
		SeverityCode: d.Criticality,
		IncidentType: d.Type,
		Description:  d.Description.Value,
		OccurredAt:   parseFeedTime(d.StartTime),
	}

	if end := parseFeedTime(d.EndTime); !end.IsZero() {
		raw.EndTime = &end
	}
	if d.DelaySeconds > 0 {
		delay := d.DelaySeconds
		raw.DelaySeconds = &delay
	}

	if p, ok := firstPoint(res.Location); ok {
		lat, lng := p.Lat, p.Lng
		raw.Latitude = &lat
		raw.Longitude = &lng
	}

	raw.Location = locationLabel(d.Description.Value, raw.Latitude, raw.Longitude)
	return raw
}

// locationLabel derives the road label the aggregator groups by. Feed
// descriptions lead with the road segment ("I-40 @ Exit 209 - Stalled
// vehicle"); the part before " - " is the label. Records with no usable
// description fall back to rounded coordinates so nearby reports still
// group, and to empty (malformed) when even coordinates are missing.
func locationLabel(description string, lat, lng *float64) string {
	description = strings.TrimSpace(description)
	if road, _, found := strings.Cut(description, " - "); found {
		if road = strings.TrimSpace(road); len(road) >= 3 {
			return road
		}
	}
	if len(description) >= 3 {
		return description
	}
	if lat != nil && lng != nil {
		return fmt.Sprintf("%.4f,%.4f", *lat, *lng)
	}
	return ""
}

// parseFeedTime parses the feed's RFC 3339 timestamps. The offset the feed
// reports is kept as-is; incidents are bucketed in feed-local wall time.
// Returns zero time on empty or unparseable input; the engine counts those
// records as malformed.
func parseFeedTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstPoint(loc location) (point, bool) {
	for _, link := range loc.Shape.Links {
		if len(link.Points) > 0 {
			return link.Points[0], true
		}
	}
	return point{}, false
}

// HERE API response types.

type response struct {
	Results []result `json:"results"`
}

type result struct {
	IncidentDetails incidentDetails `json:"incidentDetails"`
	Location        location        `json:"location"`
}

type incidentDetails struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Criticality  string      `json:"criticality"`
	StartTime    string      `json:"startTime"`
	EndTime      string      `json:"endTime"`
	DelaySeconds int         `json:"delaySeconds"`
	Description  description `json:"description"`
}

type description struct {
	Value string `json:"value"`
}

type location struct {
	Shape shape `json:"shape"`
}

type shape struct {
	Links []link `json:"links"`
}

type link struct {
	Points []point `json:"points"`
}

type point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
