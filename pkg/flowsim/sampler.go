// Package flowsim simulates traffic flow between weighted map nodes as a
// population of travelling particles. Node weights drive an O(1) alias
// sampler, particles advance along source/destination pairs and reseed on
// arrival, and the live particle set aggregates into deduplicated routes
// for line rendering.
package flowsim

import (
	"errors"
	"math"
	"math/rand"
)

var ErrEmptyDistribution = errors.New("cannot sample empty distribution")

// AliasSampler draws indices proportionally to a weight vector in O(1) per
// draw, using Vose's alias method. Build is O(n) and runs once per dataset;
// the tables are read-only afterwards and must be rebuilt from scratch when
// any weight changes.
type AliasSampler struct {
	prob  []float64
	alias []int
}

func NewAliasSampler(weights []float64) *AliasSampler {
	s := &AliasSampler{}
	s.Build(weights)
	return s
}

// Build recomputes the probability/alias tables. Negative and NaN weights
// are clamped to zero. An all-zero vector degrades to a uniform pick
// instead of failing.
func (s *AliasSampler) Build(weights []float64) {
	n := len(weights)
	s.prob = make([]float64, n)
	s.alias = make([]int, n)
	if n == 0 {
		return
	}

	total := 0.0
	scaled := make([]float64, n)
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 {
			w = 0
		}
		scaled[i] = w
		total += w
	}
	if total == 0 {
		for i := range scaled {
			scaled[i] = 1
		}
		total = float64(n)
	}
	for i := range scaled {
		scaled[i] *= float64(n) / total
	}

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, v := range scaled {
		if v < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		g := large[len(large)-1]
		large = large[:len(large)-1]

		s.prob[l] = scaled[l]
		s.alias[l] = g
		scaled[g] += scaled[l] - 1
		if scaled[g] < 1 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}
	// Whatever remains sits at (or within float error of) probability 1.
	for _, i := range large {
		s.prob[i] = 1
		s.alias[i] = i
	}
	for _, i := range small {
		s.prob[i] = 1
		s.alias[i] = i
	}
}

// Len returns the number of buckets in the distribution.
func (s *AliasSampler) Len() int { return len(s.prob) }

// Sample returns a weighted random index in O(1).
func (s *AliasSampler) Sample() (int, error) {
	n := len(s.prob)
	if n == 0 {
		return 0, ErrEmptyDistribution
	}
	i := rand.Intn(n)
	if rand.Float64() < s.prob[i] {
		return i, nil
	}
	return s.alias[i], nil
}
