package database

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = eris.New("entity not found")

// RouteDateLayout is how route dates are keyed in every store
const RouteDateLayout = "2006-01-02"

// NormalizeRouteDate strips the clock part so records compare by calendar day
func NormalizeRouteDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CacheKey normalizes a geocoding query for cache lookups
func CacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
