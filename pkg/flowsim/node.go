package flowsim

import "math"

// Node is one endpoint in the flow graph: a planar position plus a relative
// selection weight (e.g. bandwidth share). Nodes are immutable once passed
// to a ParticleSystem; a dataset change replaces the whole slice.
type Node struct {
	X, Y    float64
	Weight  float64
	Special bool
}

// SanitizeNodes clamps malformed weights (negative, NaN) to zero and drops
// nodes with non-finite positions. It returns a fresh slice so callers can
// hand the result to a ParticleSystem without sharing their own backing
// array.
func SanitizeNodes(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if math.IsNaN(n.X) || math.IsInf(n.X, 0) || math.IsNaN(n.Y) || math.IsInf(n.Y, 0) {
			continue
		}
		if math.IsNaN(n.Weight) || n.Weight < 0 {
			n.Weight = 0
		}
		out = append(out, n)
	}
	return out
}

func nodeWeights(nodes []Node) []float64 {
	w := make([]float64, len(nodes))
	for i, n := range nodes {
		w[i] = n.Weight
	}
	return w
}
