package sqlite

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

type geocodeCacheRepository struct {
	store *Store
}

func (r *geocodeCacheRepository) Get(ctx context.Context, query string) (*models.GeocodeCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var entry models.GeocodeCacheEntry
	err := r.store.db.QueryRowContext(ctx,
		`SELECT query, lat, lng, formatted_address, provider FROM geocode_cache WHERE query = ?`,
		database.CacheKey(query),
	).Scan(&entry.Query, &entry.Coords.Lat, &entry.Coords.Lng, &entry.FormattedAddress, &entry.Provider)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get geocode cache entry")
	}
	return &entry, nil
}

func (r *geocodeCacheRepository) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO geocode_cache (query, lat, lng, formatted_address, provider)
		 VALUES (?, ?, ?, ?, ?)`,
		database.CacheKey(entry.Query),
		models.RoundCoordinate(entry.Coords.Lat),
		models.RoundCoordinate(entry.Coords.Lng),
		entry.FormattedAddress,
		entry.Provider,
	)
	return eris.Wrap(err, "sqlite: set geocode cache entry")
}

func (r *geocodeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, `DELETE FROM geocode_cache`)
	return eris.Wrap(err, "sqlite: clear geocode cache")
}
