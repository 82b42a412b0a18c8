package mapview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/plan"
	"delivery-zoner/internal/zoning"
)

func order(id string, lat, lng float64) models.Order {
	o := models.Order{ID: id, Address: "addr " + id, Zone: models.Unassigned}
	o.Resolve(models.Coordinates{Lat: lat, Lng: lng}, "formatted "+id)
	return o
}

func TestZoneColor(t *testing.T) {
	assert.Equal(t, UnassignedColor, ZoneColor(-1))
	assert.Equal(t, Palette[0], ZoneColor(0))
	assert.Equal(t, Palette[1], ZoneColor(len(Palette)+1))
}

func TestBuild_SkipsUnresolvedOrders(t *testing.T) {
	failed := models.Order{ID: "x", Address: "nowhere"}
	failed.Fail("not found")
	orders := []models.Order{order("a", 53.94, 27.59), failed}

	fc := Build(orders, []int{0, -1}, nil, nil)

	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "a", f.ID)
	pt, ok := f.Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 27.59, pt.X())
	assert.Equal(t, 53.94, pt.Y())
	assert.Equal(t, 0, f.Properties["zone"])
	assert.Equal(t, Palette[0], f.Properties["color"])
	assert.Equal(t, "addr a", f.Properties["label"])
}

func TestBuild_RouteLines(t *testing.T) {
	a := order("a", 53.94, 27.59)
	b := order("b", 53.95, 27.60)
	c := order("c", 53.85, 27.46)
	routes := [][]models.Order{{a, b}, {c}}
	stats := []models.DriverStats{{Driver: 0, Count: 2, Km: 6.2}, {Driver: 1, Count: 1, Km: 7.1}}

	fc := Build([]models.Order{a, b, c}, []int{0, 0, 1}, routes, stats)

	var lines []*geom.LineString
	for _, f := range fc.Features {
		if f.Properties["kind"] == "route" {
			ls, ok := f.Geometry.(*geom.LineString)
			require.True(t, ok)
			lines = append(lines, ls)
			assert.Equal(t, 6.2, f.Properties["km"])
			assert.Equal(t, 2, f.Properties["stops"])
		}
	}
	require.Len(t, lines, 1)
	assert.Equal(t, []float64{27.59, 53.94, 27.60, 53.95}, lines[0].FlatCoords())
}

func TestFromPlan_MarshalsFeatureCollection(t *testing.T) {
	p := plan.New([]models.Order{
		order("a", 53.9400, 27.5900),
		order("b", 53.9410, 27.5950),
		order("c", 53.8500, 27.4650),
	}, 2, zoning.DefaultParams())
	require.NoError(t, p.SelectVariant(0))

	data, err := json.Marshal(FromPlan(p))
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)

	kinds := map[string]int{}
	for _, f := range decoded.Features {
		assert.Equal(t, "Feature", f.Type)
		kinds[f.Properties["kind"].(string)]++
	}
	assert.Equal(t, 3, kinds["order"])
	assert.Equal(t, 1, kinds["anchor"])
}

func TestCells(t *testing.T) {
	fc := Cells()

	require.Len(t, fc.Features, geo.CellCount())
	assert.Equal(t, "Центр", fc.Features[0].Properties["label"])
}

func TestParsePoint(t *testing.T) {
	c, err := ParsePoint([]byte(`{"type":"Point","coordinates":[27.5538,53.9045]}`))
	require.NoError(t, err)
	assert.Equal(t, models.Coordinates{Lat: 53.9045, Lng: 27.5538}, c)

	_, err = ParsePoint([]byte(`{"type":"LineString","coordinates":[[27.5,53.9],[27.6,53.8]]}`))
	assert.Error(t, err)

	_, err = ParsePoint([]byte(`{"type":"Point","coordinates":[200,95]}`))
	assert.Error(t, err)

	_, err = ParsePoint([]byte(`not json`))
	assert.Error(t, err)
}
