package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

type routeRepository struct {
	store *Store
}

func (r *routeRepository) Save(ctx context.Context, records []models.RouteRecord) ([]models.RouteRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin transaction")
	}
	defer tx.Rollback()

	saved := make([]models.RouteRecord, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		rec.RouteDate = database.NormalizeRouteDate(rec.RouteDate)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO route_records (id, driver_id, route_date, km, created_at) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.DriverID, rec.RouteDate.Format(database.RouteDateLayout), rec.Km, rec.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert route for driver %d", rec.DriverID)
		}

		for _, p := range rec.Points {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO route_points (route_id, seq, order_id, address, phone, time_window, lat, lng)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, p.Seq, p.OrderID, p.Address, p.Phone, p.TimeWindow, p.Lat, p.Lng,
			)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: insert point %d of route %s", p.Seq, rec.ID)
			}
		}
		saved[i] = rec
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit routes")
	}
	return saved, nil
}

func (r *routeRepository) ListByDate(ctx context.Context, date time.Time) ([]models.RouteRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx,
		`SELECT id, driver_id, route_date, km, created_at FROM route_records
		 WHERE route_date = ? ORDER BY driver_id, created_at`,
		database.NormalizeRouteDate(date).Format(database.RouteDateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list routes")
	}

	records := []models.RouteRecord{}
	for rows.Next() {
		rec, err := scanRoute(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, eris.Wrap(err, "sqlite: iterate routes")
	}
	rows.Close()

	for i := range records {
		points, err := r.points(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Points = points
	}
	return records, nil
}

func (r *routeRepository) GetByID(ctx context.Context, id string) (*models.RouteRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row := r.store.db.QueryRowContext(ctx,
		`SELECT id, driver_id, route_date, km, created_at FROM route_records WHERE id = ?`, id)
	rec, err := scanRoute(row)
	if err != nil {
		return nil, err
	}

	rec.Points, err = r.points(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *routeRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM route_records WHERE id = ?`, id)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete route")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: delete route")
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *routeRepository) points(ctx context.Context, routeID string) ([]models.RoutePoint, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT seq, order_id, address, phone, time_window, lat, lng FROM route_points
		 WHERE route_id = ? ORDER BY seq`, routeID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list route points")
	}
	defer rows.Close()

	points := []models.RoutePoint{}
	for rows.Next() {
		var p models.RoutePoint
		if err := rows.Scan(&p.Seq, &p.OrderID, &p.Address, &p.Phone, &p.TimeWindow, &p.Lat, &p.Lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan route point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate route points")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoute(s scanner) (*models.RouteRecord, error) {
	var rec models.RouteRecord
	var day string
	err := s.Scan(&rec.ID, &rec.DriverID, &day, &rec.Km, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan route")
	}
	rec.RouteDate, err = time.Parse(database.RouteDateLayout, day)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse route date %q", day)
	}
	return &rec, nil
}
