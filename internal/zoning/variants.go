package zoning

import (
	"time"

	"go.uber.org/zap"

	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/routing"
)

// GenerateVariants distributes the resolved orders among driverCount drivers
// once per strategy and returns every outcome. Orders that are not resolved
// get -1 in every assignment. When nothing is resolved a single empty variant
// is returned instead. The input slice is not modified.
func GenerateVariants(orders []models.Order, driverCount int, params Params) []models.Variant {
	if driverCount < 1 {
		zap.L().Warn("zoning: driver count below one, using one", zap.Int("driver_count", driverCount))
		driverCount = 1
	}

	start := time.Now()

	var indices []int
	var points []models.Coordinates
	for i := range orders {
		if orders[i].IsResolved() {
			indices = append(indices, i)
			points = append(points, *orders[i].Coords)
		}
	}

	if len(points) == 0 {
		zap.L().Info("zoning: no geocoded orders, returning empty variant", zap.Int("orders", len(orders)))
		return []models.Variant{emptyVariant(len(orders), driverCount)}
	}

	variants := make([]models.Variant, 0, len(Strategies))
	for _, s := range Strategies {
		zones := Distribute(points, driverCount, s, params)
		variants = append(variants, buildVariant(s, orders, indices, zones, params.Anchor))
	}

	zap.L().Info("zoning: variants generated",
		zap.Int("orders", len(orders)),
		zap.Int("geocoded", len(points)),
		zap.Int("drivers", driverCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return variants
}

func emptyVariant(orderCount, driverCount int) models.Variant {
	spec := strategySpecs[StrategyEmpty]
	v := models.Variant{
		Strategy:    string(StrategyEmpty),
		Label:       spec.label,
		Description: spec.description,
		Assignments: make([]int, orderCount),
		Routes:      make([][]models.Order, driverCount),
		Stats:       make([]models.DriverStats, driverCount),
	}
	for i := range v.Assignments {
		v.Assignments[i] = models.Unassigned
	}
	for d := 0; d < driverCount; d++ {
		v.Routes[d] = []models.Order{}
		v.Stats[d] = models.DriverStats{Driver: d}
	}
	return v
}

func buildVariant(s Strategy, orders []models.Order, indices []int, zones [][]int, anchor models.Coordinates) models.Variant {
	spec := strategySpecs[s]
	v := models.Variant{
		Strategy:    string(s),
		Label:       spec.label,
		Description: spec.description,
		Assignments: make([]int, len(orders)),
		Routes:      make([][]models.Order, len(zones)),
		Stats:       make([]models.DriverStats, len(zones)),
	}
	for i := range v.Assignments {
		v.Assignments[i] = models.Unassigned
	}

	for z, members := range zones {
		zoneOrders := make([]models.Order, 0, len(members))
		for _, m := range members {
			idx := indices[m]
			v.Assignments[idx] = z
			o := orders[idx]
			o.Zone = z
			zoneOrders = append(zoneOrders, o)
		}
		route, km := routing.SequenceOrders(zoneOrders, anchor)
		v.Routes[z] = route
		v.Stats[z] = models.DriverStats{Driver: z, Count: len(route), Km: geo.RoundKm(km)}
	}
	return v
}

// Stats recomputes per-driver counts and route lengths for an arbitrary
// assignment, e.g. after manual edits.
func Stats(orders []models.Order, assignments []int, driverCount int, anchor models.Coordinates) ([][]models.Order, []models.DriverStats) {
	byDriver := make([][]models.Order, driverCount)
	for d := range byDriver {
		byDriver[d] = []models.Order{}
	}
	for i, z := range assignments {
		if z < 0 || z >= driverCount || i >= len(orders) || !orders[i].IsResolved() {
			continue
		}
		o := orders[i]
		o.Zone = z
		byDriver[z] = append(byDriver[z], o)
	}

	routes := make([][]models.Order, driverCount)
	stats := make([]models.DriverStats, driverCount)
	for d := range byDriver {
		route, km := routing.SequenceOrders(byDriver[d], anchor)
		routes[d] = route
		stats[d] = models.DriverStats{Driver: d, Count: len(route), Km: geo.RoundKm(km)}
	}
	return routes, stats
}
