package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

type routeRepository struct {
	pool pool
}

const insertRouteSQL = `
INSERT INTO route_records (id, driver_id, route_date, km, points, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const selectRouteSQL = `
SELECT id, driver_id, route_date, km, points, created_at FROM route_records`

func (r *routeRepository) Save(ctx context.Context, records []models.RouteRecord) ([]models.RouteRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	saved := make([]models.RouteRecord, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		rec.RouteDate = database.NormalizeRouteDate(rec.RouteDate)
		if rec.Points == nil {
			rec.Points = []models.RoutePoint{}
		}

		points, err := json.Marshal(rec.Points)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: encode route points")
		}
		if _, err := tx.Exec(ctx, insertRouteSQL,
			rec.ID, rec.DriverID, rec.RouteDate, rec.Km, points, rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrapf(err, "postgres: insert route for driver %d", rec.DriverID)
		}
		saved[i] = rec
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit tx")
	}
	return saved, nil
}

func (r *routeRepository) ListByDate(ctx context.Context, date time.Time) ([]models.RouteRecord, error) {
	rows, err := r.pool.Query(ctx,
		selectRouteSQL+` WHERE route_date = $1 ORDER BY driver_id, created_at`,
		database.NormalizeRouteDate(date),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list routes")
	}
	defer rows.Close()

	records := []models.RouteRecord{}
	for rows.Next() {
		rec, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: rows iteration")
	}
	return records, nil
}

func (r *routeRepository) GetByID(ctx context.Context, id string) (*models.RouteRecord, error) {
	row := r.pool.QueryRow(ctx, selectRouteSQL+` WHERE id = $1`, id)
	return scanRoute(row)
}

func (r *routeRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM route_records WHERE id = $1`, id)
	if err != nil {
		return eris.Wrap(err, "postgres: delete route")
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanRoute(row pgx.Row) (*models.RouteRecord, error) {
	var rec models.RouteRecord
	var points []byte
	err := row.Scan(&rec.ID, &rec.DriverID, &rec.RouteDate, &rec.Km, &points, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan route")
	}
	if err := json.Unmarshal(points, &rec.Points); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode points of route %s", rec.ID)
	}
	rec.RouteDate = database.NormalizeRouteDate(rec.RouteDate)
	return &rec, nil
}
