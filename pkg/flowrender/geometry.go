package flowrender

import (
	"math"
	"math/rand"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sudorandom/flow-stream/pkg/flowsim"
)

// maxQuadsPerChunk keeps every chunk under ebiten's uint16 index space
// (4 vertices per quad).
const maxQuadsPerChunk = 16000

// geomChunk is one drawable batch with chunk-local indices.
type geomChunk struct {
	vertices []ebiten.Vertex
	indices  []uint16
	quads    int
}

// tierGeometry holds the full generated superset for one bandwidth
// stratum: an animated particle layer (shader quads) and a static line
// layer. Density selects a route-major prefix at draw time, so lowering or
// raising density within the superset never rebuilds buffers.
type tierGeometry struct {
	particle []geomChunk
	lines    []geomChunk
	routes   int
	tier     Tier
}

// appendQuad pushes four prepared vertices and two triangles onto the last
// chunk, opening a new chunk when the current one is full.
func appendQuad(chunks []geomChunk, vs [4]ebiten.Vertex) []geomChunk {
	if len(chunks) == 0 || chunks[len(chunks)-1].quads >= maxQuadsPerChunk {
		chunks = append(chunks, geomChunk{})
	}
	c := &chunks[len(chunks)-1]
	base := uint16(len(c.vertices))
	c.vertices = append(c.vertices, vs[0], vs[1], vs[2], vs[3])
	c.indices = append(c.indices, base, base+1, base+2, base, base+2, base+3)
	c.quads++
	return chunks
}

// shortestDstX mirrors the simulation's wraparound rule: a route whose raw
// horizontal delta exceeds half the period is drawn the short way around.
func shortestDstX(srcX, dstX, wrapWidth float64) float64 {
	if wrapWidth <= 0 {
		return dstX
	}
	d := dstX - srcX
	if d > wrapWidth/2 {
		return dstX - wrapWidth
	}
	if d < -wrapWidth/2 {
		return dstX + wrapWidth
	}
	return dstX
}

// routeBrightness compresses the participant count into the alpha band the
// shader expects.
func routeBrightness(count int) float32 {
	b := 0.3 + 0.12*math.Log1p(float64(count))
	if b > 1 {
		b = 1
	}
	return float32(b)
}

// BuildTierGeometry assembles the vertex buffers for one stratum. proj
// maps simulation space to surface pixels; wrapWidth is the simulation's
// horizontal period; offsetFactor spreads the parallel lines of a route.
func BuildTierGeometry(routes []RouteSpec, tier Tier, proj func(x, y float64) (float64, float64), wrapWidth, offsetFactor float64) tierGeometry {
	g := tierGeometry{routes: len(routes), tier: tier}
	halfW := tier.ParticleRadius + 2 // smoothing margin
	const lineSpacing = 3.0

	for _, r := range routes {
		dstX := shortestDstX(r.SrcX, r.DstX, wrapWidth)
		x1, y1 := proj(r.SrcX, r.SrcY)
		x2, y2 := proj(dstX, r.DstY)
		dx, dy := x2-x1, y2-y1
		length := math.Sqrt(dx*dx + dy*dy)
		if length < 1e-6 {
			continue
		}
		// Unit perpendicular for offsetting parallel lines.
		px, py := -dy/length, dx/length

		bright := routeBrightness(r.Count)
		if r.Class == flowsim.ClassSpecial {
			bright = -bright
		}
		lenEnc := float32(length / 1000)

		for l := 0; l < tier.LineCount; l++ {
			off := (float64(l) - float64(tier.LineCount-1)/2) * lineSpacing * offsetFactor
			phase := float32(rand.Float64())
			jitter := float32(0.8 + 0.4*rand.Float64())

			mk := func(bx, by, u, v float64) ebiten.Vertex {
				return ebiten.Vertex{
					DstX:   float32(bx + px*(off+v)),
					DstY:   float32(by + py*(off+v)),
					SrcX:   float32(u),
					SrcY:   float32(v),
					ColorR: phase,
					ColorG: jitter,
					ColorB: lenEnc,
					ColorA: bright,
				}
			}
			h := float64(halfW)
			g.particle = appendQuad(g.particle, [4]ebiten.Vertex{
				mk(x1, y1, 0, -h),
				mk(x1, y1, 0, h),
				mk(x2, y2, 1, h),
				mk(x2, y2, 1, -h),
			})
		}

		// Static line underneath the particle train.
		lr, lg, lb := float32(0.25), float32(0.55), float32(0.75)
		if r.Class == flowsim.ClassSpecial {
			lr, lg, lb = 0.75, 0.35, 0.2
		}
		la := float32(0.04+0.015*math.Log1p(float64(r.Count))) * 4
		if la > 0.3 {
			la = 0.3
		}
		w := float64(tier.LineWidth) / 2
		mkLine := func(bx, by, v float64) ebiten.Vertex {
			return ebiten.Vertex{
				DstX:   float32(bx + px*v),
				DstY:   float32(by + py*v),
				SrcX:   1, // center texel of the shared white image
				SrcY:   1,
				ColorR: lr * la,
				ColorG: lg * la,
				ColorB: lb * la,
				ColorA: la,
			}
		}
		g.lines = appendQuad(g.lines, [4]ebiten.Vertex{
			mkLine(x1, y1, -w),
			mkLine(x1, y1, w),
			mkLine(x2, y2, w),
			mkLine(x2, y2, -w),
		})
	}
	return g
}

// quadPrefix walks chunks yielding at most limit quads, calling draw with
// each chunk's vertex/index prefix.
func quadPrefix(chunks []geomChunk, limit int, draw func(vs []ebiten.Vertex, is []uint16)) {
	remaining := limit
	for i := range chunks {
		if remaining <= 0 {
			return
		}
		c := &chunks[i]
		n := c.quads
		if n > remaining {
			n = remaining
		}
		draw(c.vertices[:n*4], c.indices[:n*6])
		remaining -= n
	}
}

// appendPointQuad adds a small screen-space square for the CPU-stepped
// rendering model. Returns the grown slices.
func appendPointQuad(vs []ebiten.Vertex, is []uint16, x, y float64, r float32, cr, cg, cb, ca float32) ([]ebiten.Vertex, []uint16) {
	base := uint16(len(vs))
	for i := 0; i < 4; i++ {
		dx := float32(-1)
		if i == 2 || i == 3 {
			dx = 1
		}
		dy := float32(-1)
		if i == 1 || i == 2 {
			dy = 1
		}
		vs = append(vs, ebiten.Vertex{
			DstX: float32(x) + dx*r, DstY: float32(y) + dy*r,
			SrcX: 1, SrcY: 1,
			ColorR: cr * ca, ColorG: cg * ca, ColorB: cb * ca, ColorA: ca,
		})
	}
	is = append(is, base, base+1, base+2, base, base+2, base+3)
	return vs, is
}
