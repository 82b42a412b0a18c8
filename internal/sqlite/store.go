package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"delivery-zoner/internal/database"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	routeRepo database.RouteRepository
	cacheRepo database.GeocodeCacheRepository
}

// New creates a new SQLite store at the specified path
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, eris.Wrap(err, "sqlite: create database directory")
	}

	zap.L().Info("sqlite: opening database", zap.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open database")
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: set pragma %s", pragma)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	store.routeRepo = &routeRepository{store: store}
	store.cacheRepo = &geocodeCacheRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return s.createSchema()
	}
	if version < schemaVersion {
		return s.runMigrations(version)
	}
	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	-- One row per driver per day
	CREATE TABLE IF NOT EXISTS route_records (
		id TEXT PRIMARY KEY,
		driver_id INTEGER NOT NULL,
		route_date TEXT NOT NULL,
		km REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS route_points (
		route_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		order_id TEXT NOT NULL,
		address TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		time_window TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		PRIMARY KEY (route_id, seq),
		FOREIGN KEY (route_id) REFERENCES route_records(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS geocode_cache (
		query TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		formatted_address TEXT NOT NULL,
		provider TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_route_records_date ON route_records(route_date, driver_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return eris.Wrap(err, "sqlite: create schema")
	}

	zap.L().Info("sqlite: schema initialized", zap.Int("version", schemaVersion))
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	zap.L().Info("sqlite: migrating schema",
		zap.Int("from", fromVersion),
		zap.Int("to", schemaVersion),
	)
	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return eris.Wrap(err, "sqlite: update schema version")
}

// Close checkpoints the WAL and closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		zap.L().Warn("sqlite: wal checkpoint failed", zap.Error(err))
	}
	return s.db.Close()
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Routes() database.RouteRepository              { return s.routeRepo }
func (s *Store) GeocodeCache() database.GeocodeCacheRepository { return s.cacheRepo }
