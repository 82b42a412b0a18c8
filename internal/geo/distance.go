// Package geo holds the great-circle math and the fixed reference geography of the city.
package geo

import (
	"math"

	"delivery-zoner/internal/models"
)

// EarthRadiusKm is the mean Earth radius used for all great-circle distances
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in kilometers
func HaversineKm(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Centroid returns the arithmetic mean of the given points.
// An empty slice yields the zero value.
func Centroid(points []models.Coordinates) models.Coordinates {
	if len(points) == 0 {
		return models.Coordinates{}
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return models.Coordinates{Lat: lat / n, Lng: lng / n}
}

// RoundKm rounds a distance to one decimal place for display
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}
