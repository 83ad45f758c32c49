package domain

import (
	"fmt"
	"time"
)

// Incident is one reported traffic event as persisted in the incident store.
// Rows are created by the ingestion engine or the manual seed tool, updated
// in place when the same ExternalID reappears with changed fields, and never
// deleted by this service.
type Incident struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// ExternalID is the upstream feed's incident identifier and the
	// deduplication key. Nil for manually seeded rows.
	ExternalID *string `gorm:"uniqueIndex" json:"external_id,omitempty"`

	// OccurredAt is the event timestamp in feed-local time.
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`

	// Location is the free-text road/segment label. Risk aggregation groups
	// by exact string equality; it is not a foreign key.
	Location string `gorm:"index;not null" json:"location"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Severity     Severity `gorm:"not null" json:"severity"`
	IncidentType string   `json:"incident_type,omitempty"`
	Description  string   `json:"description,omitempty"`

	DelaySeconds *int       `json:"delay_seconds,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RawIncident is a single record as returned by the external feed client,
// after response decoding but before normalization and persistence.
type RawIncident struct {
	ExternalID   string
	SeverityCode string // upstream vocabulary, normalized via NormalizeSeverity
	OccurredAt   time.Time
	Location     string
	Latitude     *float64
	Longitude    *float64
	IncidentType string
	Description  string
	DelaySeconds *int
	EndTime      *time.Time
}

// Validate reports whether the record carries the fields ingestion requires.
// A missing timestamp or location makes the record malformed; it is skipped
// and counted, never fatal to the run.
func (r RawIncident) Validate() error {
	var missing []string
	if r.OccurredAt.IsZero() {
		missing = append(missing, "occurred_at")
	}
	if r.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return &MalformedIncidentError{ExternalID: r.ExternalID, Missing: missing}
	}
	return nil
}

// Region is a geographic bounding box in the feed's west,south,east,north
// convention (WGS-84 degrees).
type Region struct {
	West  float64
	South float64
	East  float64
	North float64
}

// String renders the region in the "west,south,east,north" form used by
// feed query parameters and configuration.
func (r Region) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.West, r.South, r.East, r.North)
}

// IsZero reports whether the region is the empty bounding box.
func (r Region) IsZero() bool {
	return r == Region{}
}
