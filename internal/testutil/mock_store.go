package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

// MockGeocodeCache is an in-memory database.GeocodeCacheRepository
type MockGeocodeCache struct {
	mu      sync.Mutex
	entries map[string]*models.GeocodeCacheEntry
}

func NewMockGeocodeCache() *MockGeocodeCache {
	return &MockGeocodeCache{entries: make(map[string]*models.GeocodeCacheEntry)}
}

func (c *MockGeocodeCache) Get(ctx context.Context, query string) (*models.GeocodeCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[database.CacheKey(query)]; ok {
		copied := *entry
		return &copied, nil
	}
	return nil, nil
}

func (c *MockGeocodeCache) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *entry
	c.entries[database.CacheKey(entry.Query)] = &copied
	return nil
}

func (c *MockGeocodeCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.GeocodeCacheEntry)
	return nil
}

// Count returns the number of entries in the cache
func (c *MockGeocodeCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MockRouteRepository is an in-memory database.RouteRepository
type MockRouteRepository struct {
	mu      sync.Mutex
	records map[string]models.RouteRecord
}

func NewMockRouteRepository() *MockRouteRepository {
	return &MockRouteRepository{records: make(map[string]models.RouteRecord)}
}

func (r *MockRouteRepository) Save(ctx context.Context, records []models.RouteRecord) ([]models.RouteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := make([]models.RouteRecord, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		rec.RouteDate = database.NormalizeRouteDate(rec.RouteDate)
		r.records[rec.ID] = rec
		saved[i] = rec
	}
	return saved, nil
}

func (r *MockRouteRepository) ListByDate(ctx context.Context, date time.Time) ([]models.RouteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := database.NormalizeRouteDate(date)
	out := []models.RouteRecord{}
	for _, rec := range r.records {
		if rec.RouteDate.Equal(day) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (r *MockRouteRepository) GetByID(ctx context.Context, id string) (*models.RouteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &rec, nil
}

func (r *MockRouteRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// MockDataStore bundles the in-memory repositories as a database.DataStore
type MockDataStore struct {
	RouteRepo *MockRouteRepository
	Cache     *MockGeocodeCache
}

func NewMockDataStore() *MockDataStore {
	return &MockDataStore{
		RouteRepo: NewMockRouteRepository(),
		Cache:     NewMockGeocodeCache(),
	}
}

func (s *MockDataStore) Close() error                                  { return nil }
func (s *MockDataStore) HealthCheck(ctx context.Context) error         { return nil }
func (s *MockDataStore) Routes() database.RouteRepository              { return s.RouteRepo }
func (s *MockDataStore) GeocodeCache() database.GeocodeCacheRepository { return s.Cache }
