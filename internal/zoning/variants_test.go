package zoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
)

func TestGenerateVariants_Shape(t *testing.T) {
	orders := resolvedOrders(scatter(30))
	orders[3].Fail("not found")
	orders[17] = models.Order{ID: "pending", State: models.GeocodePending, Zone: models.Unassigned}

	for k := 1; k <= 6; k++ {
		variants := GenerateVariants(orders, k, DefaultParams())
		require.Len(t, variants, 3, "k=%d", k)

		for vi, v := range variants {
			assert.Equal(t, string(Strategies[vi]), v.Strategy)
			require.Len(t, v.Assignments, len(orders))
			require.Len(t, v.Routes, k)
			require.Len(t, v.Stats, k)

			counts := make([]int, k)
			for i, z := range v.Assignments {
				if !orders[i].IsResolved() {
					assert.Equal(t, models.Unassigned, z, "unresolved order %d", i)
					continue
				}
				require.GreaterOrEqual(t, z, 0)
				require.Less(t, z, k)
				counts[z]++
			}

			total := 0
			for d, c := range counts {
				assert.Equal(t, c, v.Stats[d].Count)
				assert.Len(t, v.Routes[d], c)
				total += c
			}
			assert.Equal(t, 28, total)
		}
	}
}

func TestGenerateVariants_Idempotent(t *testing.T) {
	orders := resolvedOrders(scatter(25))
	a := GenerateVariants(orders, 3, DefaultParams())
	b := GenerateVariants(orders, 3, DefaultParams())
	assert.Equal(t, a, b)
}

func TestGenerateVariants_DoesNotMutateInput(t *testing.T) {
	orders := resolvedOrders(scatter(12))
	before := make([]models.Order, len(orders))
	copy(before, orders)

	GenerateVariants(orders, 4, DefaultParams())
	assert.Equal(t, before, orders)
}

func TestGenerateVariants_OnePointPerCell(t *testing.T) {
	cells := geo.ReferenceCells()
	points := make([]models.Coordinates, len(cells))
	for i, c := range cells {
		points[i] = c.Center
	}
	orders := resolvedOrders(points)

	for _, v := range GenerateVariants(orders, 9, DefaultParams()) {
		for d, s := range v.Stats {
			assert.Equal(t, 1, s.Count, "strategy %s driver %d", v.Strategy, d)
			assert.Zero(t, s.Km)
		}
		seen := map[int]bool{}
		for _, z := range v.Assignments {
			assert.False(t, seen[z], "zone %d assigned twice", z)
			seen[z] = true
		}
	}
}

func TestGenerateVariants_NothingGeocoded(t *testing.T) {
	orders := []models.Order{
		{ID: "a", State: models.GeocodeFailed, Zone: models.Unassigned},
		{ID: "b", State: models.GeocodePending, Zone: models.Unassigned},
	}

	variants := GenerateVariants(orders, 3, DefaultParams())
	require.Len(t, variants, 1)

	v := variants[0]
	assert.Equal(t, string(StrategyEmpty), v.Strategy)
	assert.Equal(t, []int{-1, -1}, v.Assignments)
	require.Len(t, v.Routes, 3)
	require.Len(t, v.Stats, 3)
	for d := range v.Stats {
		assert.Empty(t, v.Routes[d])
		assert.Equal(t, models.DriverStats{Driver: d}, v.Stats[d])
	}
}

func TestGenerateVariants_EmptyInput(t *testing.T) {
	variants := GenerateVariants(nil, 2, DefaultParams())
	require.Len(t, variants, 1)
	assert.Empty(t, variants[0].Assignments)
}

func TestGenerateVariants_ClampsDriverCount(t *testing.T) {
	variants := GenerateVariants(resolvedOrders(scatter(4)), 0, DefaultParams())
	require.Len(t, variants, 3)
	for _, v := range variants {
		assert.Equal(t, []int{0, 0, 0, 0}, v.Assignments)
		assert.Len(t, v.Stats, 1)
	}
}

func TestGenerateVariants_BalancedCountGap(t *testing.T) {
	orders := resolvedOrders(scatter(41))
	variants := GenerateVariants(orders, 5, DefaultParams())

	for _, v := range variants {
		if v.Strategy == string(StrategyCompact) {
			continue
		}
		minC, maxC := len(orders), 0
		for _, s := range v.Stats {
			minC = min(minC, s.Count)
			maxC = max(maxC, s.Count)
		}
		assert.LessOrEqual(t, maxC-minC, 2, "strategy %s", v.Strategy)
	}
}

func TestStats_AfterManualEdit(t *testing.T) {
	orders := resolvedOrders([]models.Coordinates{
		{Lat: 53.90, Lng: 27.50},
		{Lat: 53.90, Lng: 27.51},
		{Lat: 53.95, Lng: 27.60},
	})
	orders = append(orders, models.Order{ID: "x", State: models.GeocodeFailed, Zone: models.Unassigned})

	routes, stats := Stats(orders, []int{0, 0, 1, 1}, 2, geo.CityCenter)
	require.Len(t, routes, 2)
	assert.Len(t, routes[0], 2)
	assert.Len(t, routes[1], 1)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, 1, stats[1].Count)
	assert.Positive(t, stats[0].Km)
	assert.Zero(t, stats[1].Km)
	for _, o := range routes[0] {
		assert.Equal(t, 0, o.Zone)
	}
}
