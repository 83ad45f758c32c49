package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

// GormStore implements IncidentStore on a GORM-managed SQLite database.
type GormStore struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates the incident table. Use ":memory:" for an ephemeral store.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open incident database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Incident{}); err != nil {
		return nil, fmt.Errorf("migrate incident table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// NewGormStore wraps an existing GORM handle, for callers that manage their
// own connection (tests, shared databases).
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByExternalID(ctx context.Context, externalID string) (*domain.Incident, error) {
	var inc domain.Incident
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&inc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find incident by external id %q: %w", externalID, err)
	}
	return &inc, nil
}

func (s *GormStore) Insert(ctx context.Context, inc *domain.Incident) (uint, error) {
	if err := s.db.WithContext(ctx).Create(inc).Error; err != nil {
		return 0, fmt.Errorf("insert incident: %w", err)
	}
	return inc.ID, nil
}

func (s *GormStore) Update(ctx context.Context, id uint, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&domain.Incident{}).Where("id = ?", id).Updates(map[string]any(fields))
	if res.Error != nil {
		return fmt.Errorf("update incident %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update incident %d: no such row", id)
	}
	return nil
}

func (s *GormStore) ListBetween(ctx context.Context, start, end time.Time) ([]domain.Incident, error) {
	var incidents []domain.Incident
	err := s.db.WithContext(ctx).
		Where("occurred_at >= ? AND occurred_at < ?", start, end).
		Order("occurred_at ASC").
		Find(&incidents).Error
	if err != nil {
		return nil, fmt.Errorf("list incidents between %s and %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	}
	return incidents, nil
}
