// Package mapview renders plans as GeoJSON for the map surface and decodes
// the points it sends back.
package mapview

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/plan"
)

// Palette colours zones in index order, wrapping around
var Palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#42d4f4", "#f032e6", "#bfef45", "#469990", "#9a6324",
}

// UnassignedColor marks orders that belong to no driver
const UnassignedColor = "#808080"

// ZoneColor returns the colour used for zone
func ZoneColor(zone int) string {
	if zone < 0 {
		return UnassignedColor
	}
	return Palette[zone%len(Palette)]
}

func point(c models.Coordinates) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat})
}

// Build returns one point feature per resolved order and one line feature
// per driver route with at least two stops. stats may be nil.
func Build(orders []models.Order, assignments []int, routes [][]models.Order, stats []models.DriverStats) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}

	for i, o := range orders {
		if !o.IsResolved() {
			continue
		}
		zone := models.Unassigned
		if i < len(assignments) {
			zone = assignments[i]
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       o.ID,
			Geometry: point(*o.Coords),
			Properties: map[string]interface{}{
				"kind":        "order",
				"index":       i,
				"zone":        zone,
				"color":       ZoneColor(zone),
				"label":       o.Address,
				"formatted":   o.FormattedAddress,
				"phone":       o.Phone,
				"time_window": o.TimeWindow,
				"manual":      o.Manual,
			},
		})
	}

	for d, route := range routes {
		if len(route) < 2 {
			continue
		}
		flat := make([]float64, 0, len(route)*2)
		for _, o := range route {
			flat = append(flat, o.Coords.Lng, o.Coords.Lat)
		}
		props := map[string]interface{}{
			"kind":   "route",
			"driver": d,
			"color":  ZoneColor(d),
			"stops":  len(route),
		}
		if d < len(stats) {
			props["km"] = stats[d].Km
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewLineStringFlat(geom.XY, flat),
			Properties: props,
		})
	}

	return fc
}

// FromPlan renders the plan's current assignment
func FromPlan(p *plan.Plan) *geojson.FeatureCollection {
	summary := p.Summary()
	fc := Build(p.Orders, p.Assignments, p.Routes(), summary.Drivers)
	fc.Features = append(fc.Features, &geojson.Feature{
		ID:       "anchor",
		Geometry: point(p.Anchor()),
		Properties: map[string]interface{}{
			"kind":  "anchor",
			"label": "City centre",
		},
	})
	return fc
}

// Cells renders the reference cells as labelled points
func Cells() *geojson.FeatureCollection {
	cells := geo.ReferenceCells()
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(cells))}
	for _, c := range cells {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: point(c.Center),
			Properties: map[string]interface{}{
				"kind":     "cell",
				"cell":     c.ID,
				"label":    c.Name,
				"adjacent": c.Adjacent,
			},
		})
	}
	return fc
}

// ParsePoint decodes a GeoJSON Point geometry into coordinates
func ParsePoint(data []byte) (models.Coordinates, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return models.Coordinates{}, eris.Wrap(err, "mapview: decode geometry")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return models.Coordinates{}, eris.Errorf("mapview: expected Point geometry, got %T", g)
	}
	c := models.Coordinates{Lat: p.Y(), Lng: p.X()}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return models.Coordinates{}, eris.Errorf("mapview: coordinates out of range: %v", c)
	}
	return c, nil
}
