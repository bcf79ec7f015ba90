package flowrender

import (
	"testing"

	"github.com/sudorandom/flow-stream/pkg/flowsim"
)

func TestRankRoutesStrata(t *testing.T) {
	routes := make([]RouteSpec, 100)
	for i := range routes {
		// Strictly decreasing score with index.
		routes[i] = RouteSpec{SrcX: float64(i), SrcWeight: float64(200 - i), DstWeight: 1, Count: 1}
	}
	ranked := RankRoutes(routes)

	wantSizes := [NumTiers]int{2, 8, 30, 60}
	for tier, rs := range ranked {
		if len(rs) != wantSizes[tier] {
			t.Errorf("tier %d has %d routes, want %d", tier, len(rs), wantSizes[tier])
		}
	}

	// Every route in a higher tier outranks every route below it.
	minSeen := routes[0].Score() + 1
	for tier, rs := range ranked {
		for _, r := range rs {
			if r.Score() > minSeen {
				t.Fatalf("tier %d contains score %f above a higher tier's minimum %f", tier, r.Score(), minSeen)
			}
			minSeen = r.Score()
		}
	}
}

func TestRankRoutesDoesNotMutateInput(t *testing.T) {
	routes := []RouteSpec{
		{SrcWeight: 1, DstWeight: 1},
		{SrcWeight: 9, DstWeight: 9},
	}
	RankRoutes(routes)
	if routes[0].SrcWeight != 1 {
		t.Error("RankRoutes reordered the caller's slice")
	}
}

func TestRoutesFromPathsJoinsWeights(t *testing.T) {
	nodes := []flowsim.Node{
		{X: -74, Y: 40, Weight: 0.9},
		{X: 2, Y: 48, Weight: 0.1},
	}
	paths := []flowsim.Route{
		{SrcX: -74, SrcY: 40, DstX: 2, DstY: 48, Class: flowsim.ClassGeneral, Count: 7},
	}
	specs := RoutesFromPaths(paths, nodes)
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	s := specs[0]
	if s.SrcWeight != 0.9 || s.DstWeight != 0.1 {
		t.Errorf("weights = (%f, %f), want (0.9, 0.1)", s.SrcWeight, s.DstWeight)
	}
	if s.Count != 7 {
		t.Errorf("count = %d, want 7", s.Count)
	}
}

func TestAggregateRegionsMergesCells(t *testing.T) {
	// Two routes whose endpoints land in the same 5-degree cells.
	routes := []RouteSpec{
		{SrcX: 0.4, SrcY: 0.3, DstX: 50.1, DstY: 20.2, SrcWeight: 0.5, DstWeight: 0.2, Count: 3},
		{SrcX: -0.4, SrcY: 1.1, DstX: 49.8, DstY: 19.6, SrcWeight: 0.7, DstWeight: 0.1, Count: 4},
		{SrcX: 100, SrcY: 0, DstX: 120, DstY: 0, SrcWeight: 0.1, DstWeight: 0.1, Count: 1},
	}
	merged := AggregateRegions(routes)
	if len(merged) != 2 {
		t.Fatalf("got %d merged routes, want 2", len(merged))
	}
	m := merged[0]
	if m.Count != 7 {
		t.Errorf("merged count = %d, want 7", m.Count)
	}
	if m.SrcWeight != 0.7 || m.DstWeight != 0.2 {
		t.Errorf("merged weights = (%f, %f), want cell maxima (0.7, 0.2)", m.SrcWeight, m.DstWeight)
	}
	if m.SrcX != 0 || m.DstX != 50 {
		t.Errorf("endpoints not snapped to grid: (%f, %f)", m.SrcX, m.DstX)
	}
}

func TestAggregateRegionsDropsCollapsedRoutes(t *testing.T) {
	routes := []RouteSpec{
		{SrcX: 1, SrcY: 1, DstX: 2, DstY: 2, Count: 5}, // both endpoints snap to (0,0)
	}
	if merged := AggregateRegions(routes); len(merged) != 0 {
		t.Errorf("got %d routes, want collapsed route dropped", len(merged))
	}
}

func TestDensityLimit(t *testing.T) {
	tests := []struct {
		n       int
		density float64
		want    int
	}{
		{100, 1, 100},
		{100, 0.5, 50},
		{100, 0.001, 1},
		{0, 0.5, 0},
		{100, 0, 100},  // out of range falls back to full
		{100, 1.5, 100},
		{3, 0.5, 2},
	}
	for _, tt := range tests {
		if got := densityLimit(tt.n, tt.density); got != tt.want {
			t.Errorf("densityLimit(%d, %f) = %d, want %d", tt.n, tt.density, got, tt.want)
		}
	}
}
