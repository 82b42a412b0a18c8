package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

var routeColumns = []string{"id", "driver_id", "route_date", "km", "points", "created_at"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newStore(mock), mock
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS route_records").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectPing()
	require.NoError(t, s.HealthCheck(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, s.HealthCheck(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_Save(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO route_records").
		WithArgs(pgxmock.AnyArg(), 1, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 4.2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO route_records").
		WithArgs("fixed-id", 2, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 0.0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	saved, err := s.Routes().Save(context.Background(), []models.RouteRecord{
		{DriverID: 1, RouteDate: day, Km: 4.2, Points: []models.RoutePoint{{Seq: 1, OrderID: "ord-1", Lat: 53.9, Lng: 27.5}}},
		{ID: "fixed-id", DriverID: 2, RouteDate: day},
	})

	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotEmpty(t, saved[0].ID)
	assert.Equal(t, "fixed-id", saved[1].ID)
	assert.Equal(t, []models.RoutePoint{}, saved[1].Points)
	assert.False(t, saved[0].CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_SaveRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO route_records").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.Routes().Save(context.Background(), []models.RouteRecord{{DriverID: 1, RouteDate: time.Now()}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_ListByDate(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(routeColumns).
		AddRow("r1", 1, day, 5.5, []byte(`[{"seq":1,"order_id":"ord-1","address":"ул. Немига 12","lat":53.9045,"lng":27.5538}]`), created).
		AddRow("r2", 2, day, 0.0, []byte(`[]`), created)
	mock.ExpectQuery("SELECT id, driver_id").
		WithArgs(day).
		WillReturnRows(rows)

	records, err := s.Routes().ListByDate(context.Background(), day.Add(15*time.Hour))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].ID)
	require.Len(t, records[0].Points, 1)
	assert.Equal(t, "ул. Немига 12", records[0].Points[0].Address)
	assert.Empty(t, records[1].Points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_GetByID(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, driver_id").
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows(routeColumns).AddRow("r1", 3, day, 1.5, []byte(`[]`), day))
	mock.ExpectQuery("SELECT id, driver_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.Routes().GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.DriverID)

	_, err = s.Routes().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_Delete(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM route_records").
		WithArgs("r1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM route_records").
		WithArgs("r1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Routes().Delete(context.Background(), "r1"))
	assert.ErrorIs(t, s.Routes().Delete(context.Background(), "r1"), database.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGeocodeCache_Get(t *testing.T) {
	s, mock := newMockStore(t)
	cols := []string{"query", "lat", "lng", "formatted_address", "provider"}

	mock.ExpectQuery("SELECT query, lat, lng").
		WithArgs("минск, ул. немига 12").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("минск, ул. немига 12", 53.9045, 27.5538, "Немига 12", "nominatim"))
	mock.ExpectQuery("SELECT query, lat, lng").
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.GeocodeCache().Get(context.Background(), "Минск,  ул. Немига 12")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.Coordinates{Lat: 53.9045, Lng: 27.5538}, entry.Coords)

	entry, err = s.GeocodeCache().Get(context.Background(), "Unknown")
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGeocodeCache_SetAndClear(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO geocode_cache").
		WithArgs("минск, ул. немига 12", 53.90451, 27.55385, "Немига 12", "yandex").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM geocode_cache").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	require.NoError(t, s.GeocodeCache().Set(context.Background(), &models.GeocodeCacheEntry{
		Query:            "Минск, ул. Немига 12",
		Coords:           models.Coordinates{Lat: 53.904512, Lng: 27.553849},
		FormattedAddress: "Немига 12",
		Provider:         "yandex",
	}))
	require.NoError(t, s.GeocodeCache().Clear(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}
