package flowsim

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// ParticleStride is the number of float64 values per particle in a packed
// generation buffer: srcX, srcY, dstX, dstY, progress, speed.
const ParticleStride = 6

// GenMessage is the closed set of messages a Generator emits. Both sides
// of the channel switch exhaustively over the two variants.
type GenMessage interface {
	genMessage()
}

// GenProgress reports roughly percent-granular completion of a request.
type GenProgress struct {
	ID       uuid.UUID
	Fraction float64
}

// GenComplete carries the finished buffers. Ownership moves with the
// message: the worker drops its references before sending, so the receiver
// is the sole owner and no copy is made.
type GenComplete struct {
	ID        uuid.UUID
	Particles []float64 // ParticleStride values per particle
	Classes   []byte    // one flag per particle, 1 = special
}

func (GenProgress) genMessage() {}
func (GenComplete) genMessage() {}

// Generator produces large particle populations on a worker goroutine so
// the controlling goroutine stays responsive. There is no request queue:
// starting a new request cancels the in-flight one, and receivers discard
// any message whose ID is not the latest Start result.
type Generator struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	out    chan GenMessage
}

func NewGenerator() *Generator {
	return &Generator{out: make(chan GenMessage, 16)}
}

// Messages returns the channel the worker emits on.
func (g *Generator) Messages() <-chan GenMessage { return g.out }

// Start launches generation of count particles over the given nodes and
// returns the request ID. Any earlier request is cancelled; the newest
// request always wins.
func (g *Generator) Start(nodes []Node, count int, opts Options) uuid.UUID {
	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.mu.Unlock()

	id := uuid.New()
	go g.generate(ctx, id, nodes, count, opts)
	return id
}

// Stop cancels the in-flight request, if any.
func (g *Generator) Stop() {
	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.mu.Unlock()
}

func (g *Generator) generate(ctx context.Context, id uuid.UUID, nodes []Node, count int, opts Options) {
	particles := make([]float64, 0, count*ParticleStride)
	classes := make([]byte, 0, count)

	if len(nodes) >= 2 {
		// The worker owns its own sampler; nothing is shared with the
		// caller's system.
		ps := &ParticleSystem{
			nodes:   nodes,
			sampler: NewAliasSampler(nodeWeights(nodes)),
			opts:    opts,
		}
		step := count / 100
		if step == 0 {
			step = 1
		}
		for i := 0; i < count; i++ {
			if i%step == 0 {
				select {
				case <-ctx.Done():
					return
				default:
				}
				g.report(GenProgress{ID: id, Fraction: float64(i) / float64(count)})
			}
			si, di := ps.distinctPair()
			src, dst := nodes[si], nodes[di]
			particles = append(particles,
				src.X, src.Y, dst.X, dst.Y,
				rand.Float64(),
				opts.BaseSpeed*(0.8+0.4*rand.Float64()),
			)
			flag := byte(0)
			if rand.Float64() < opts.SpecialProbability {
				flag = 1
			}
			classes = append(classes, flag)
		}
	}

	// Ownership of both buffers moves with the send; the worker returns
	// immediately after and never touches them again.
	select {
	case <-ctx.Done():
	case g.out <- GenComplete{ID: id, Particles: particles, Classes: classes}:
	}
}

// report emits a progress update without ever blocking the worker; if the
// receiver is behind, intermediate fractions are dropped.
func (g *Generator) report(p GenProgress) {
	select {
	case g.out <- p:
	default:
	}
}

// FromBuffers reconstructs a ParticleSystem from generation buffers without
// re-running sampling. The system takes ownership of both slices. The
// sampler is still rebuilt from the node weights so journeys can reseed
// when they complete.
func FromBuffers(nodes []Node, particles []float64, classes []byte, opts Options) *ParticleSystem {
	ps := &ParticleSystem{
		nodes:    nodes,
		sampler:  NewAliasSampler(nodeWeights(nodes)),
		opts:     opts,
		routeIdx: make(map[uint64]int),
	}
	n := len(particles) / ParticleStride
	ps.parts = make([]Particle, 0, n)
	for i := 0; i < n; i++ {
		b := particles[i*ParticleStride:]
		p := Particle{
			SrcX: b[0], SrcY: b[1],
			DstX: b[2], DstY: b[3],
			Progress: b[4],
			Speed:    b[5],
		}
		if i < len(classes) && classes[i] == 1 {
			p.Class = ClassSpecial
		}
		ps.parts = append(ps.parts, p)
	}
	return ps
}
