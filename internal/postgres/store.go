// Package postgres stores routes and the geocode cache in PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"delivery-zoner/internal/database"
)

// pool is the subset of pgxpool.Pool the store uses
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements database.DataStore on PostgreSQL
type Store struct {
	pool pool

	routeRepo database.RouteRepository
	cacheRepo database.GeocodeCacheRepository
}

var _ database.DataStore = (*Store)(nil)

const migration = `
CREATE TABLE IF NOT EXISTS route_records (
	id         TEXT PRIMARY KEY,
	driver_id  INTEGER NOT NULL,
	route_date DATE NOT NULL,
	km         DOUBLE PRECISION NOT NULL DEFAULT 0,
	points     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_route_records_date ON route_records(route_date, driver_id);

CREATE TABLE IF NOT EXISTS geocode_cache (
	query             TEXT PRIMARY KEY,
	lat               DOUBLE PRECISION NOT NULL,
	lng               DOUBLE PRECISION NOT NULL,
	formatted_address TEXT NOT NULL,
	provider          TEXT NOT NULL,
	cached_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// New connects to url, verifies the connection and applies the schema
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s := newStore(p)
	if err := s.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}

	zap.L().Info("postgres: connected",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
	)
	return s, nil
}

func newStore(p pool) *Store {
	s := &Store{pool: p}
	s.routeRepo = &routeRepository{pool: p}
	s.cacheRepo = &geocodeCacheRepository{pool: p}
	return s
}

// Migrate creates the tables when they are missing
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *Store) Routes() database.RouteRepository              { return s.routeRepo }
func (s *Store) GeocodeCache() database.GeocodeCacheRepository { return s.cacheRepo }
