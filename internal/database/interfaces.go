package database

import (
	"context"
	"time"

	"delivery-zoner/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Routes() RouteRepository
	GeocodeCache() GeocodeCacheRepository
}

// RouteRepository handles finalized driver route persistence
type RouteRepository interface {
	// Save stores every record in one transaction, assigning IDs and
	// CreatedAt where missing, and returns the stored records.
	Save(ctx context.Context, records []models.RouteRecord) ([]models.RouteRecord, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.RouteRecord, error)
	GetByID(ctx context.Context, id string) (*models.RouteRecord, error)
	Delete(ctx context.Context, id string) error
}

// GeocodeCacheRepository handles geocoding result caching. Get returns
// nil, nil on a miss.
type GeocodeCacheRepository interface {
	Get(ctx context.Context, query string) (*models.GeocodeCacheEntry, error)
	Set(ctx context.Context, entry *models.GeocodeCacheEntry) error
	Clear(ctx context.Context) error
}
