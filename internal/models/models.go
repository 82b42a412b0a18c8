package models

import (
	"math"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoundCoordinate rounds a coordinate to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// GeocodeState tracks where an order is in the geocoding lifecycle
type GeocodeState string

const (
	GeocodePending  GeocodeState = "pending"
	GeocodeResolved GeocodeState = "resolved"
	GeocodeFailed   GeocodeState = "failed"
)

// Unassigned is the zone index of an order that belongs to no driver
const Unassigned = -1

// Order is one delivery stop parsed from the pasted batch
type Order struct {
	ID               string       `json:"id"`
	Address          string       `json:"address"`
	GeocodeAddress   string       `json:"geocode_address"`
	Phone            string       `json:"phone,omitempty"`
	TimeWindow       string       `json:"time_window,omitempty"`
	State            GeocodeState `json:"state"`
	Coords           *Coordinates `json:"coords,omitempty"`
	FormattedAddress string       `json:"formatted_address,omitempty"`
	Error            string       `json:"error,omitempty"`
	Zone             int          `json:"zone"`
	Manual           bool         `json:"manual,omitempty"`
}

// IsResolved reports whether the order has usable coordinates
func (o *Order) IsResolved() bool {
	return o.State == GeocodeResolved && o.Coords != nil
}

// Resolve marks the order as geocoded
func (o *Order) Resolve(coords Coordinates, formatted string) {
	o.State = GeocodeResolved
	o.Coords = &coords
	o.FormattedAddress = formatted
	o.Error = ""
}

// Fail marks the order as not geocodable
func (o *Order) Fail(reason string) {
	o.State = GeocodeFailed
	o.Coords = nil
	o.FormattedAddress = ""
	o.Error = reason
	o.Zone = Unassigned
}

// DriverStats summarises one driver's zone within a variant
type DriverStats struct {
	Driver int     `json:"driver"`
	Count  int     `json:"count"`
	Km     float64 `json:"km"`
}

// Variant is one complete distribution outcome
type Variant struct {
	Strategy    string        `json:"strategy"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Assignments []int         `json:"assignments"`
	Routes      [][]Order     `json:"routes"`
	Stats       []DriverStats `json:"stats"`
}

// RoutePoint is a single stop in a stored driver route
type RoutePoint struct {
	Seq        int     `json:"seq"`
	OrderID    string  `json:"order_id"`
	Address    string  `json:"address"`
	Phone      string  `json:"phone,omitempty"`
	TimeWindow string  `json:"time_window,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// RouteRecord is the finalized route handed to persistence
type RouteRecord struct {
	ID        string       `json:"id"`
	DriverID  int          `json:"driver_id"`
	RouteDate time.Time    `json:"route_date"`
	Points    []RoutePoint `json:"points"`
	Km        float64      `json:"km"`
	CreatedAt time.Time    `json:"created_at"`
}

// GeocodeCacheEntry represents a cached geocoding lookup
type GeocodeCacheEntry struct {
	Query            string      `json:"query"`
	Coords           Coordinates `json:"coords"`
	FormattedAddress string      `json:"formatted_address"`
	Provider         string      `json:"provider"`
}
