package plan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-zoner/internal/models"
	"delivery-zoner/internal/zoning"
)

func TestStore_CreateGet(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 0)

	created := s.Create(testOrders(), 2)
	got, err := s.Get(created.ID)

	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Len(t, got.Variants, 3)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 0)
	created := s.Create(testOrders(), 2)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	got.Orders[0].Address = "changed"

	again, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "addr a", again.Orders[0].Address)
}

func TestStore_Update(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 0)
	created := s.Create(testOrders(), 2)

	updated, err := s.Update(created.ID, func(p *Plan) error {
		return p.SelectVariant(2)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Selected)

	_, err = s.Update(created.ID, func(p *Plan) error {
		return p.Reassign(42, 0)
	})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = s.Update("missing", func(p *Plan) error { return nil })
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestStore_Regeocode(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 0)
	created := s.Create(testOrders(), 2)
	g := &stubGeocoder{coords: &models.Coordinates{Lat: 53.9045, Lng: 27.5538}}

	updated, err := s.Regeocode(context.Background(), created.ID, g, 4, "ул. Немига 12")

	require.NoError(t, err)
	assert.True(t, updated.Orders[4].IsResolved())

	_, err = s.Regeocode(context.Background(), "missing", g, 0, "")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestStore_RegeocodeDetectsConcurrentDelete(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 0)
	created := s.Create(testOrders(), 2)

	g := &deletingGeocoder{store: s, planID: created.ID}
	_, err := s.Regeocode(context.Background(), created.ID, g, 0, "")

	assert.ErrorIs(t, err, ErrOrderChanged)
}

// deletingGeocoder removes the order being geocoded while the lookup runs
type deletingGeocoder struct {
	store  *Store
	planID string
}

func (d *deletingGeocoder) GeocodeOrder(ctx context.Context, o *models.Order) error {
	_, err := d.store.Update(d.planID, func(p *Plan) error { return p.DeleteOrder(0) })
	if err != nil {
		return err
	}
	o.Resolve(models.Coordinates{Lat: 53.9, Lng: 27.5}, "x")
	return nil
}

func TestStore_Evicts(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 2)

	first := s.Create(testOrders(), 1)
	time.Sleep(2 * time.Millisecond)
	s.Create(testOrders(), 1)
	time.Sleep(2 * time.Millisecond)
	s.Create(testOrders(), 1)

	assert.Equal(t, 2, s.Len())
	_, err := s.Get(first.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 0)
	created := s.Create(testOrders(), 1)

	s.Delete(created.ID)

	assert.Zero(t, s.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore(zoning.DefaultParams(), 0)
	created := s.Create(testOrders(), 2)
	_, err := s.Update(created.ID, func(p *Plan) error { return p.SelectVariant(0) })
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.Update(created.ID, func(p *Plan) error { return p.Reassign(i%4, i%2) })
			} else {
				_, _ = s.Get(created.ID)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Assignments, 5)
}
