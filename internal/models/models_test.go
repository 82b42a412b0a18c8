package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderResolve(t *testing.T) {
	o := Order{State: GeocodePending, Zone: Unassigned, Error: "stale"}

	o.Resolve(Coordinates{Lat: 53.9045, Lng: 27.5615}, "Минск, улица Немига, 12")

	assert.True(t, o.IsResolved())
	assert.Equal(t, 53.9045, o.Coords.Lat)
	assert.Equal(t, 27.5615, o.Coords.Lng)
	assert.Equal(t, "Минск, улица Немига, 12", o.FormattedAddress)
	assert.Empty(t, o.Error)
}

func TestOrderFail(t *testing.T) {
	o := Order{Zone: 2}
	o.Resolve(Coordinates{Lat: 1, Lng: 2}, "somewhere")

	o.Fail("address not found")

	assert.False(t, o.IsResolved())
	assert.Equal(t, GeocodeFailed, o.State)
	assert.Nil(t, o.Coords)
	assert.Equal(t, "address not found", o.Error)
	assert.Equal(t, Unassigned, o.Zone)
}

func TestOrderIsResolvedRequiresCoords(t *testing.T) {
	o := Order{State: GeocodeResolved}
	assert.False(t, o.IsResolved())
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 53.90451, RoundCoordinate(53.904512))
	assert.Equal(t, 27.56154, RoundCoordinate(27.561538))
}
