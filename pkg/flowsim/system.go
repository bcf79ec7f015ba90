package flowsim

import (
	"math/rand"
)

// FlowClass tags a particle as belonging to the general traffic population
// or the visually distinct special one.
type FlowClass uint8

const (
	ClassGeneral FlowClass = iota
	ClassSpecial
)

// Particle is a single travelling dot. It is mutated in place by its owning
// ParticleSystem on every tick and never shared across goroutines while the
// system is stepped on the CPU.
type Particle struct {
	SrcX, SrcY float64
	DstX, DstY float64
	Progress   float64 // in [0,1)
	Speed      float64 // progress units per nominal frame
	Class      FlowClass
}

// Position is one entry of the per-frame snapshot returned by Positions.
type Position struct {
	X, Y  float64
	Class FlowClass
}

// Options configures particle seeding and motion.
type Options struct {
	// SpecialProbability is the chance in [0,1] that a freshly seeded
	// journey carries the special flow class.
	SpecialProbability float64
	// BaseSpeed is the mean progress per nominal frame; each journey
	// jitters it by ±20%.
	BaseSpeed float64
	// WrapWidth is the horizontal period of the coordinate space (360 for
	// longitude). Zero disables wraparound handling.
	WrapWidth float64
}

// nominalFrameMs normalizes update deltas so the animation advances at the
// same visual speed regardless of the caller's frame rate.
const nominalFrameMs = 16.0

// ParticleSystem owns a resizable particle population over one node
// dataset. All methods must be called from a single goroutine; the two
// execution models (CPU stepping here, GPU-resident animation in the
// render pipeline) are never active on the same particle set.
type ParticleSystem struct {
	nodes   []Node
	sampler *AliasSampler
	parts   []Particle
	opts    Options

	// Snapshot and aggregation buffers, reused across calls so a frame at
	// high particle counts does not allocate.
	posBuf   []Position
	routeBuf []Route
	routeIdx map[uint64]int
}

// NewParticleSystem builds the sampler from the node weights and seeds
// count particles. Fewer than two nodes is not an error: the system stays
// empty and produces empty snapshots.
func NewParticleSystem(nodes []Node, count int, opts Options) *ParticleSystem {
	ps := &ParticleSystem{
		opts:     opts,
		routeIdx: make(map[uint64]int),
	}
	ps.SetDataset(nodes, count)
	return ps
}

// SetDataset replaces the node set wholesale, rebuilds the sampler and
// reseeds the entire population. Particle state never survives a dataset
// change.
func (ps *ParticleSystem) SetDataset(nodes []Node, count int) {
	ps.nodes = nodes
	ps.sampler = NewAliasSampler(nodeWeights(nodes))
	ps.parts = ps.parts[:0]
	if len(nodes) < 2 {
		return
	}
	for i := 0; i < count; i++ {
		ps.parts = append(ps.parts, ps.seed())
	}
}

// Len returns the current particle count.
func (ps *ParticleSystem) Len() int { return len(ps.parts) }

// Nodes returns the active dataset.
func (ps *ParticleSystem) Nodes() []Node { return ps.nodes }

// seed creates a fresh particle: distinct endpoints, random starting phase
// so the population does not pulse in lockstep, ±20% speed jitter, and a
// Bernoulli draw for the flow class.
func (ps *ParticleSystem) seed() Particle {
	p := Particle{Progress: rand.Float64()}
	ps.reroll(&p)
	return p
}

// reroll redraws everything but the particle's identity: endpoints, speed
// and class. Progress is left to the caller.
func (ps *ParticleSystem) reroll(p *Particle) {
	si, di := ps.distinctPair()
	src, dst := ps.nodes[si], ps.nodes[di]
	p.SrcX, p.SrcY = src.X, src.Y
	p.DstX, p.DstY = dst.X, dst.Y
	p.Speed = ps.opts.BaseSpeed * (0.8 + 0.4*rand.Float64())
	if rand.Float64() < ps.opts.SpecialProbability {
		p.Class = ClassSpecial
	} else {
		p.Class = ClassGeneral
	}
}

// distinctPair samples a weighted (source, destination) index pair with
// source != destination. Destination collisions are resampled up to three
// times to stay on the weighted distribution; if all draws collide the
// destination steps to the next index. The modular step slightly favors
// index neighbors, which is accepted for this rare path.
func (ps *ParticleSystem) distinctPair() (int, int) {
	src, _ := ps.sampler.Sample()
	dst, _ := ps.sampler.Sample()
	for attempt := 0; dst == src && attempt < 3; attempt++ {
		dst, _ = ps.sampler.Sample()
	}
	if dst == src {
		dst = (src + 1) % len(ps.nodes)
	}
	return src, dst
}

// Update advances every particle by deltaMs of wall time. A particle whose
// journey completes is instantly reseeded with a new pair, speed and class;
// there is no terminal state.
func (ps *ParticleSystem) Update(deltaMs float64) {
	if deltaMs <= 0 {
		return
	}
	norm := deltaMs / nominalFrameMs
	for i := range ps.parts {
		p := &ps.parts[i]
		p.Progress += p.Speed * norm
		if p.Progress >= 1 {
			p.Progress = 0
			ps.reroll(p)
		}
	}
}

// Positions interpolates the current position of every particle into an
// internal buffer and returns it. The buffer is valid until the next call.
func (ps *ParticleSystem) Positions() []Position {
	if cap(ps.posBuf) < len(ps.parts) {
		ps.posBuf = make([]Position, 0, len(ps.parts))
	}
	ps.posBuf = ps.posBuf[:0]
	w := ps.opts.WrapWidth
	for i := range ps.parts {
		p := &ps.parts[i]
		dx := shortestDelta(p.SrcX, p.DstX, w)
		x := wrapCoord(p.SrcX+dx*p.Progress, w)
		y := p.SrcY + (p.DstY-p.SrcY)*p.Progress
		ps.posBuf = append(ps.posBuf, Position{X: x, Y: y, Class: p.Class})
	}
	return ps.posBuf
}

// SetParticleCount resizes the population. Growing appends newly seeded
// particles; shrinking truncates the tail. No surviving particle is
// disturbed mid-journey.
func (ps *ParticleSystem) SetParticleCount(n int) {
	if n < 0 {
		n = 0
	}
	if len(ps.nodes) < 2 {
		return
	}
	if n <= len(ps.parts) {
		ps.parts = ps.parts[:n]
		return
	}
	for len(ps.parts) < n {
		ps.parts = append(ps.parts, ps.seed())
	}
}

// shortestDelta returns the signed horizontal distance from src to dst
// taking the short way around a periodic axis of the given width.
func shortestDelta(src, dst, width float64) float64 {
	d := dst - src
	if width <= 0 {
		return d
	}
	if d > width/2 {
		d -= width
	} else if d < -width/2 {
		d += width
	}
	return d
}

// wrapCoord folds x back into the canonical [-width/2, width/2] range.
func wrapCoord(x, width float64) float64 {
	if width <= 0 {
		return x
	}
	half := width / 2
	for x > half {
		x -= width
	}
	for x < -half {
		x += width
	}
	return x
}
