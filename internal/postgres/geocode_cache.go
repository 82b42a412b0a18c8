package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

type geocodeCacheRepository struct {
	pool pool
}

func (r *geocodeCacheRepository) Get(ctx context.Context, query string) (*models.GeocodeCacheEntry, error) {
	var entry models.GeocodeCacheEntry
	err := r.pool.QueryRow(ctx,
		`SELECT query, lat, lng, formatted_address, provider FROM geocode_cache WHERE query = $1`,
		database.CacheKey(query),
	).Scan(&entry.Query, &entry.Coords.Lat, &entry.Coords.Lng, &entry.FormattedAddress, &entry.Provider)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get geocode cache entry")
	}
	return &entry, nil
}

func (r *geocodeCacheRepository) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO geocode_cache (query, lat, lng, formatted_address, provider)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (query) DO UPDATE SET
	lat = EXCLUDED.lat,
	lng = EXCLUDED.lng,
	formatted_address = EXCLUDED.formatted_address,
	provider = EXCLUDED.provider,
	cached_at = now()`,
		database.CacheKey(entry.Query),
		models.RoundCoordinate(entry.Coords.Lat),
		models.RoundCoordinate(entry.Coords.Lng),
		entry.FormattedAddress,
		entry.Provider,
	)
	return eris.Wrap(err, "postgres: set geocode cache entry")
}

func (r *geocodeCacheRepository) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM geocode_cache`)
	return eris.Wrap(err, "postgres: clear geocode cache")
}
