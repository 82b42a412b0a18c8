// Package zoning splits geocoded orders into one zone per driver.
//
// A run classifies every point into a fixed reference cell, merges cells
// agglomeratively until exactly K clusters remain, and then evens the
// clusters out by order count and by sequenced route length. Every function
// here is pure: the same points and K always produce the same zones.
package zoning

import (
	"math"
	"time"

	"go.uber.org/zap"

	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/routing"
)

// ClassifyCells maps every point to its nearest reference cell
func ClassifyCells(points []models.Coordinates) []int {
	cellOf := make([]int, len(points))
	for i, p := range points {
		cellOf[i] = geo.NearestCell(p)
	}
	return cellOf
}

type cluster struct {
	members []int
	cells   []int
}

// MergeToZones builds one cluster per non-empty reference cell and merges the
// cheapest pair until k clusters remain. When there are already k or fewer
// clusters each becomes a zone and the rest are left empty. The result always
// has exactly k zones, each a list of point indices.
func MergeToZones(points []models.Coordinates, cellOf []int, k int, params Params) [][]int {
	byCell := make(map[int][]int)
	for i, c := range cellOf {
		byCell[c] = append(byCell[c], i)
	}

	clusters := make([]*cluster, 0, len(byCell))
	for c := 0; c < geo.CellCount(); c++ {
		if members, ok := byCell[c]; ok {
			clusters = append(clusters, &cluster{members: members, cells: []int{c}})
		}
	}

	target := targetSize(len(points), k)

	for len(clusters) > k {
		bestI, bestJ := -1, -1
		bestScore := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				score := mergeScore(points, clusters[i], clusters[j], target, params)
				if score < bestScore {
					bestScore = score
					bestI, bestJ = i, j
				}
			}
		}

		merged := clusters[bestI]
		merged.members = append(merged.members, clusters[bestJ].members...)
		merged.cells = append(merged.cells, clusters[bestJ].cells...)
		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
	}

	zones := make([][]int, k)
	for i := range zones {
		if i < len(clusters) {
			zones[i] = append([]int(nil), clusters[i].members...)
		} else {
			zones[i] = []int{}
		}
	}
	return zones
}

func targetSize(n, k int) float64 {
	if k < 1 {
		k = 1
	}
	t := math.Ceil(float64(n) / float64(k))
	if t < 1 {
		t = 1
	}
	return t
}

func mergeScore(points []models.Coordinates, a, b *cluster, target float64, params Params) float64 {
	merged := make([]int, 0, len(a.members)+len(b.members))
	merged = append(merged, a.members...)
	merged = append(merged, b.members...)

	size := float64(len(merged))
	sizePenalty := 1 + math.Max(0, size-params.OversizeRatio*target)/target

	adjacency := 1.0
	if clustersAdjacent(a, b) {
		adjacency = params.AdjacencyFactor
	}

	return spread(points, merged) * sizePenalty * adjacency
}

func clustersAdjacent(a, b *cluster) bool {
	for _, ca := range a.cells {
		for _, cb := range b.cells {
			if geo.CellsAdjacent(ca, cb) || geo.CellsAdjacent(cb, ca) {
				return true
			}
		}
	}
	return false
}

// spread is the largest pairwise distance inside a point set
func spread(points []models.Coordinates, members []int) float64 {
	maxKm := 0.0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if d := geo.HaversineKm(points[members[i]], points[members[j]]); d > maxKm {
				maxKm = d
			}
		}
	}
	return maxKm
}

func zonePoints(points []models.Coordinates, members []int) []models.Coordinates {
	out := make([]models.Coordinates, len(members))
	for i, m := range members {
		out[i] = points[m]
	}
	return out
}

func zoneCentroid(points []models.Coordinates, members []int) models.Coordinates {
	return geo.Centroid(zonePoints(points, members))
}

// countExtremes returns the first most-loaded and first least-loaded zone
func countExtremes(zones [][]int) (maxZ, minZ int) {
	for i := range zones {
		if len(zones[i]) > len(zones[maxZ]) {
			maxZ = i
		}
		if len(zones[i]) < len(zones[minZ]) {
			minZ = i
		}
	}
	return maxZ, minZ
}

// CountGap is the difference between the largest and smallest zone
func CountGap(zones [][]int) int {
	if len(zones) == 0 {
		return 0
	}
	maxZ, minZ := countExtremes(zones)
	return len(zones[maxZ]) - len(zones[minZ])
}

// pickTransfer chooses which member of donor should move to receiver: the one
// nearest the receiver's centroid, or, for an empty receiver, the donor's
// outlier farthest from its own centroid. Returns a position in donor.
func pickTransfer(points []models.Coordinates, donor, receiver []int) int {
	best := -1
	bestDist := 0.0

	if len(receiver) == 0 {
		own := zoneCentroid(points, donor)
		for pos, m := range donor {
			d := geo.HaversineKm(points[m], own)
			if best == -1 || d > bestDist {
				best, bestDist = pos, d
			}
		}
		return best
	}

	target := zoneCentroid(points, receiver)
	for pos, m := range donor {
		d := geo.HaversineKm(points[m], target)
		if best == -1 || d < bestDist {
			best, bestDist = pos, d
		}
	}
	return best
}

func movePoint(zones [][]int, from, to, pos int) {
	m := zones[from][pos]
	zones[from] = append(zones[from][:pos:pos], zones[from][pos+1:]...)
	zones[to] = append(zones[to], m)
}

// BalanceCounts moves points from the most to the least loaded zone until the
// count gap is at most threshold. It never runs more than len(points)
// iterations. Zones are modified in place.
func BalanceCounts(zones [][]int, points []models.Coordinates, threshold int) int {
	moves := 0
	for iter := 0; iter < len(points); iter++ {
		maxZ, minZ := countExtremes(zones)
		if len(zones[maxZ])-len(zones[minZ]) <= threshold {
			break
		}
		pos := pickTransfer(points, zones[maxZ], zones[minZ])
		movePoint(zones, maxZ, minZ, pos)
		moves++
	}
	return moves
}

func zoneKms(zones [][]int, points []models.Coordinates, anchor models.Coordinates) []float64 {
	kms := make([]float64, len(zones))
	for i, z := range zones {
		kms[i] = routing.SequencedKm(zonePoints(points, z), anchor)
	}
	return kms
}

func kmExtremes(kms []float64) (maxZ, minZ int) {
	for i := range kms {
		if kms[i] > kms[maxZ] {
			maxZ = i
		}
		if kms[i] < kms[minZ] {
			minZ = i
		}
	}
	return maxZ, minZ
}

func kmGap(kms []float64) float64 {
	if len(kms) == 0 {
		return 0
	}
	maxZ, minZ := kmExtremes(kms)
	return kms[maxZ] - kms[minZ]
}

// BalanceDistances runs up to params.MaxDistancePasses moves of a point from
// the longest route to the shortest. A move is made only when it strictly
// shrinks the km gap, keeps the donor at floor(n/k)-1 points or more, and
// does not widen the count gap past max(current gap, countThreshold).
// Zones are modified in place; the number of moves is returned.
func BalanceDistances(zones [][]int, points []models.Coordinates, countThreshold int, params Params) int {
	k := len(zones)
	if k < 2 {
		return 0
	}
	minDonor := len(points)/k - 1

	moves := 0
	for pass := 0; pass < params.MaxDistancePasses; pass++ {
		kms := zoneKms(zones, points, params.Anchor)
		maxZ, minZ := kmExtremes(kms)
		gapBefore := kms[maxZ] - kms[minZ]
		if gapBefore <= params.KmGapThreshold || maxZ == minZ {
			break
		}

		donor, receiver := zones[maxZ], zones[minZ]
		if len(donor)-1 < minDonor || len(donor) == 0 {
			break
		}

		countGapBefore := CountGap(zones)
		pos := pickTransfer(points, donor, receiver)

		trial := make([][]int, k)
		for i := range zones {
			trial[i] = append([]int(nil), zones[i]...)
		}
		movePoint(trial, maxZ, minZ, pos)

		if CountGap(trial) > max(countGapBefore, countThreshold) {
			break
		}

		trialKms := append([]float64(nil), kms...)
		trialKms[maxZ] = routing.SequencedKm(zonePoints(points, trial[maxZ]), params.Anchor)
		trialKms[minZ] = routing.SequencedKm(zonePoints(points, trial[minZ]), params.Anchor)
		if kmGap(trialKms) >= gapBefore {
			break
		}

		copy(zones, trial)
		moves++
	}
	return moves
}

// Distribute computes the zones for one strategy. The result has exactly k
// zones; each is a list of indices into points.
func Distribute(points []models.Coordinates, k int, strategy Strategy, params Params) [][]int {
	if k < 1 {
		k = 1
	}
	spec, ok := strategySpecs[strategy]
	if !ok {
		spec = strategySpecs[StrategyBalanced]
	}

	start := time.Now()
	cellOf := ClassifyCells(points)
	zones := MergeToZones(points, cellOf, k, params)

	initialGap := CountGap(zones)
	countMoves, kmMoves := 0, 0
	if !spec.gated || initialGap > params.CompactGapTrigger {
		countMoves = BalanceCounts(zones, points, spec.countThreshold)
		for run := 0; run < spec.distanceRuns; run++ {
			kmMoves += BalanceDistances(zones, points, spec.countThreshold, params)
		}
	}

	zap.L().Debug("zoning: distributed",
		zap.String("strategy", string(strategy)),
		zap.Int("points", len(points)),
		zap.Int("drivers", k),
		zap.Int("initial_count_gap", initialGap),
		zap.Int("count_moves", countMoves),
		zap.Int("km_moves", kmMoves),
		zap.Duration("elapsed", time.Since(start)),
	)
	return zones
}
