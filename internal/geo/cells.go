package geo

import "delivery-zoner/internal/models"

// ReferenceCell is a fixed geographic anchor used to seed zone clustering
type ReferenceCell struct {
	ID       int
	Name     string
	Center   models.Coordinates
	Adjacent []int
}

// CityCenter is where every driver route is anchored
var CityCenter = models.Coordinates{Lat: 53.9006, Lng: 27.5590}

// referenceCells is the Minsk anchor table. Index equals ID.
var referenceCells = []ReferenceCell{
	{ID: 0, Name: "Центр", Center: models.Coordinates{Lat: 53.9023, Lng: 27.5619}, Adjacent: []int{1, 2, 3, 4, 5, 6, 7, 8}},
	{ID: 1, Name: "Зелёный Луг", Center: models.Coordinates{Lat: 53.9400, Lng: 27.5900}, Adjacent: []int{0, 2, 8}},
	{ID: 2, Name: "Уручье", Center: models.Coordinates{Lat: 53.9450, Lng: 27.6870}, Adjacent: []int{0, 1, 3}},
	{ID: 3, Name: "Восток", Center: models.Coordinates{Lat: 53.9180, Lng: 27.6400}, Adjacent: []int{0, 2, 4}},
	{ID: 4, Name: "Чижовка", Center: models.Coordinates{Lat: 53.8520, Lng: 27.6330}, Adjacent: []int{0, 3, 5}},
	{ID: 5, Name: "Серебрянка", Center: models.Coordinates{Lat: 53.8570, Lng: 27.5600}, Adjacent: []int{0, 4, 6}},
	{ID: 6, Name: "Малиновка", Center: models.Coordinates{Lat: 53.8500, Lng: 27.4650}, Adjacent: []int{0, 5, 7}},
	{ID: 7, Name: "Каменная Горка", Center: models.Coordinates{Lat: 53.9070, Lng: 27.4370}, Adjacent: []int{0, 6, 8}},
	{ID: 8, Name: "Сухарево", Center: models.Coordinates{Lat: 53.9370, Lng: 27.4900}, Adjacent: []int{0, 7, 1}},
}

// ReferenceCells returns a copy of the anchor table
func ReferenceCells() []ReferenceCell {
	out := make([]ReferenceCell, len(referenceCells))
	for i, c := range referenceCells {
		c.Adjacent = append([]int(nil), c.Adjacent...)
		out[i] = c
	}
	return out
}

// CellCount is the number of reference cells
func CellCount() int {
	return len(referenceCells)
}

// NearestCell returns the ID of the reference cell closest to p.
// Ties go to the cell listed first.
func NearestCell(p models.Coordinates) int {
	best := 0
	bestDist := HaversineKm(p, referenceCells[0].Center)
	for i := 1; i < len(referenceCells); i++ {
		d := HaversineKm(p, referenceCells[i].Center)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// CellsAdjacent reports whether cell a lists cell b as a neighbour
func CellsAdjacent(a, b int) bool {
	if a < 0 || a >= len(referenceCells) {
		return false
	}
	for _, n := range referenceCells[a].Adjacent {
		if n == b {
			return true
		}
	}
	return false
}
