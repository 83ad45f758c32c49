// Package store provides the read/write contract to the persistent incident
// table. The core consumes exactly four operations; schema and migration
// mechanics stay behind this boundary.
package store

import (
	"context"
	"time"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

// Fields names the columns to change in an Update call, keyed by the
// database column name.
type Fields map[string]any

// IncidentStore is the persistence contract consumed by the ingestion engine
// and the analytics runners. Only the ingestion engine writes; aggregation
// and training read a snapshot via ListBetween.
type IncidentStore interface {
	// FindByExternalID returns the incident with the given external ID, or
	// (nil, nil) when none exists.
	FindByExternalID(ctx context.Context, externalID string) (*domain.Incident, error)

	// Insert persists a new incident and returns its store-assigned ID.
	Insert(ctx context.Context, inc *domain.Incident) (uint, error)

	// Update changes the named fields of an existing incident in place.
	Update(ctx context.Context, id uint, fields Fields) error

	// ListBetween returns all incidents with start <= OccurredAt < end,
	// ordered by OccurredAt ascending.
	ListBetween(ctx context.Context, start, end time.Time) ([]domain.Incident, error)
}
