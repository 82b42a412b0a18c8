package zoning

import (
	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
)

// Params holds the empirically chosen tuning constants of the engine.
// DefaultParams returns the values every variant is expected to be computed
// with; callers may override individual fields from configuration.
type Params struct {
	// OversizeRatio is the share of the even split a merged cluster may reach
	// before the size penalty starts growing.
	OversizeRatio float64
	// AdjacencyFactor multiplies the merge score of clusters whose cells touch.
	AdjacencyFactor float64
	// KmGapThreshold is the route length gap, in km, below which distance
	// balancing stops.
	KmGapThreshold float64
	// MaxDistancePasses bounds a single distance-balance run.
	MaxDistancePasses int
	// CompactGapTrigger is the initial count gap above which the compact
	// strategy balances at all.
	CompactGapTrigger int
	// Anchor is where every sequenced route starts from.
	Anchor models.Coordinates
}

// DefaultParams returns the standard tuning
func DefaultParams() Params {
	return Params{
		OversizeRatio:     1.4,
		AdjacencyFactor:   0.7,
		KmGapThreshold:    1.5,
		MaxDistancePasses: 15,
		CompactGapTrigger: 4,
		Anchor:            geo.CityCenter,
	}
}

// Strategy selects how aggressively zones are balanced
type Strategy string

const (
	StrategyBalanced Strategy = "balanced"
	StrategyCompact  Strategy = "compact"
	StrategyEqualKm  Strategy = "equal_km"
	StrategyEmpty    Strategy = "empty"
)

// Strategies lists the variants produced by every distribution run, in order
var Strategies = []Strategy{StrategyBalanced, StrategyCompact, StrategyEqualKm}

type strategySpec struct {
	label          string
	description    string
	countThreshold int
	distanceRuns   int
	// gated strategies only balance when the initial count gap exceeds
	// Params.CompactGapTrigger
	gated bool
}

var strategySpecs = map[Strategy]strategySpec{
	StrategyBalanced: {
		label:          "Balanced",
		description:    "Even order counts, then one distance-balancing run",
		countThreshold: 1,
		distanceRuns:   1,
	},
	StrategyCompact: {
		label:          "Compact",
		description:    "Geographically tight zones; counts are evened only when badly skewed",
		countThreshold: 2,
		distanceRuns:   0,
		gated:          true,
	},
	StrategyEqualKm: {
		label:          "Equal distance",
		description:    "Even order counts, then two distance-balancing runs for similar mileage",
		countThreshold: 1,
		distanceRuns:   2,
	},
	StrategyEmpty: {
		label:       "Empty",
		description: "No geocoded orders to distribute",
	},
}
