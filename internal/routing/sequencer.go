// Package routing orders a zone's stops into a visitable route.
//
// The sequencer is a greedy nearest-neighbour heuristic over great-circle
// distance. It does not attempt global optimisation; the same ordering is
// used both for the final driver route and as the cost function when zones
// are balanced by distance, so the two always agree.
package routing

import (
	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
)

// Sequence returns a visiting order over points as indices into points.
// The route starts at the point nearest to anchor and then repeatedly moves
// to the nearest unvisited point. Ties go to the lowest index. Inputs of
// size two or less are returned in their original order.
func Sequence(points []models.Coordinates, anchor models.Coordinates) []int {
	n := len(points)
	order := make([]int, 0, n)
	if n <= 2 {
		for i := 0; i < n; i++ {
			order = append(order, i)
		}
		return order
	}

	visited := make([]bool, n)

	current := 0
	bestDist := geo.HaversineKm(anchor, points[0])
	for i := 1; i < n; i++ {
		if d := geo.HaversineKm(anchor, points[i]); d < bestDist {
			current = i
			bestDist = d
		}
	}
	visited[current] = true
	order = append(order, current)

	for len(order) < n {
		next := -1
		nextDist := 0.0
		for i := 0; i < n; i++ {
			if visited[i] {
				continue
			}
			d := geo.HaversineKm(points[current], points[i])
			if next == -1 || d < nextDist {
				next = i
				nextDist = d
			}
		}
		visited[next] = true
		order = append(order, next)
		current = next
	}

	return order
}

// RouteKm sums the great-circle legs of points visited in the given order
func RouteKm(points []models.Coordinates, order []int) float64 {
	total := 0.0
	for i := 1; i < len(order); i++ {
		total += geo.HaversineKm(points[order[i-1]], points[order[i]])
	}
	return total
}

// SequencedKm is the length of the nearest-neighbour route through points
func SequencedKm(points []models.Coordinates, anchor models.Coordinates) float64 {
	return RouteKm(points, Sequence(points, anchor))
}

// SequenceOrders returns resolved orders in visiting order together with the
// route length in kilometers. Orders without coordinates are skipped.
func SequenceOrders(orders []models.Order, anchor models.Coordinates) ([]models.Order, float64) {
	resolved := make([]models.Order, 0, len(orders))
	points := make([]models.Coordinates, 0, len(orders))
	for _, o := range orders {
		if !o.IsResolved() {
			continue
		}
		resolved = append(resolved, o)
		points = append(points, *o.Coords)
	}

	order := Sequence(points, anchor)
	route := make([]models.Order, len(order))
	for i, idx := range order {
		route[i] = resolved[idx]
	}
	return route, RouteKm(points, order)
}
