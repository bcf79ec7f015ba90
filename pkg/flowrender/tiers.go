package flowrender

import (
	"math"
	"sort"

	"github.com/sudorandom/flow-stream/pkg/flowsim"
)

// RouteSpec is one aggregated route plus the endpoint weights the ranking
// needs. Coordinates are in simulation space (x periodic, e.g. longitude).
type RouteSpec struct {
	SrcX, SrcY float64
	DstX, DstY float64
	SrcWeight  float64
	DstWeight  float64
	Class      flowsim.FlowClass
	Count      int
}

// Score is the bandwidth score used for tiering.
func (r RouteSpec) Score() float64 { return r.SrcWeight * r.DstWeight }

// Tier maps a bandwidth stratum to fixed visual density. Higher tiers get
// more parallel lines and more particles per route, so relative bandwidth
// reads off the screen without any per-frame recomputation.
type Tier struct {
	LineCount         int
	ParticlesPerRoute int
	LineWidth         float32 // pixels, for the aggregated line layer
	ParticleRadius    float32 // pixels
}

// tierTable is indexed by stratum; tierCuts[i] is the cumulative rank
// fraction where stratum i ends.
var (
	tierTable = [4]Tier{
		{LineCount: 3, ParticlesPerRoute: 6, LineWidth: 2.5, ParticleRadius: 5},
		{LineCount: 2, ParticlesPerRoute: 4, LineWidth: 1.8, ParticleRadius: 4},
		{LineCount: 1, ParticlesPerRoute: 2, LineWidth: 1.2, ParticleRadius: 3},
		{LineCount: 1, ParticlesPerRoute: 1, LineWidth: 0.8, ParticleRadius: 2.5},
	}
	tierCuts = [4]float64{0.02, 0.10, 0.40, 1.00}
)

// NumTiers is the number of bandwidth strata.
const NumTiers = len(tierTable)

// TierFor returns the stratum parameters for a tier index.
func TierFor(i int) Tier { return tierTable[i] }

// RankRoutes sorts routes by descending bandwidth score and assigns each to
// a stratum by its rank quantile. The input slice is not modified.
func RankRoutes(routes []RouteSpec) [][]RouteSpec {
	sorted := make([]RouteSpec, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score() > sorted[j].Score()
	})

	out := make([][]RouteSpec, NumTiers)
	n := float64(len(sorted))
	for i, r := range sorted {
		q := (float64(i) + 0.5) / n
		tier := NumTiers - 1
		for t, cut := range tierCuts {
			if q <= cut {
				tier = t
				break
			}
		}
		out[tier] = append(out[tier], r)
	}
	return out
}

// RoutesFromPaths joins aggregated simulation routes with node weights so
// the ranking has a bandwidth score per route. Nodes are located by their
// quantized position.
func RoutesFromPaths(paths []flowsim.Route, nodes []flowsim.Node) []RouteSpec {
	type posKey struct{ x, y int64 }
	q := func(x, y float64) posKey {
		return posKey{int64(math.Round(x * 1e4)), int64(math.Round(y * 1e4))}
	}
	weights := make(map[posKey]float64, len(nodes))
	for _, n := range nodes {
		weights[q(n.X, n.Y)] = n.Weight
	}

	out := make([]RouteSpec, 0, len(paths))
	for _, p := range paths {
		out = append(out, RouteSpec{
			SrcX: p.SrcX, SrcY: p.SrcY,
			DstX: p.DstX, DstY: p.DstY,
			SrcWeight: weights[q(p.SrcX, p.SrcY)],
			DstWeight: weights[q(p.DstX, p.DstY)],
			Class:     p.Class,
			Count:     p.Count,
		})
	}
	return out
}

// regionGrid is the cell size, in simulation units, used by
// AggregateByRegion.
const regionGrid = 5.0

// AggregateRegions merges routes whose endpoints fall into the same coarse
// grid cells. Counts sum; weights take the maximum seen for the cell, so a
// region ranks at least as high as its busiest member.
func AggregateRegions(routes []RouteSpec) []RouteSpec {
	snap := func(v float64) float64 {
		return math.Round(v/regionGrid) * regionGrid
	}
	type cellKey struct {
		sx, sy, dx, dy float64
		class          flowsim.FlowClass
	}
	merged := make(map[cellKey]*RouteSpec)
	order := make([]cellKey, 0, len(routes))
	for _, r := range routes {
		k := cellKey{snap(r.SrcX), snap(r.SrcY), snap(r.DstX), snap(r.DstY), r.Class}
		if m, ok := merged[k]; ok {
			m.Count += r.Count
			m.SrcWeight = math.Max(m.SrcWeight, r.SrcWeight)
			m.DstWeight = math.Max(m.DstWeight, r.DstWeight)
			continue
		}
		spec := r
		spec.SrcX, spec.SrcY = k.sx, k.sy
		spec.DstX, spec.DstY = k.dx, k.dy
		merged[k] = &spec
		order = append(order, k)
	}
	out := make([]RouteSpec, 0, len(merged))
	for _, k := range order {
		r := *merged[k]
		if r.SrcX == r.DstX && r.SrcY == r.DstY {
			continue // both endpoints collapsed into one cell
		}
		out = append(out, r)
	}
	return out
}
