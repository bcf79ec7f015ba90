package flowsim

import "math"

// Route is one aggregated edge of the live particle set: every particle
// whose endpoints quantize to the same coordinates (and share a flow class)
// collapses into a single record with a participant count. Routes are
// derived on demand, never stored.
type Route struct {
	SrcX, SrcY float64
	DstX, DstY float64
	Class      FlowClass
	Count      int
}

// quantScale fixes route coordinates to four decimal places before
// hashing, so endpoints that differ only by float noise share a bucket.
const quantScale = 1e4

func quant(v float64) uint64 {
	return uint64(int64(math.Round(v * quantScale)))
}

// routeKey packs the quantized endpoints and the class flag into one
// integer by repeated multiply-and-add. The multiplier is an odd constant
// large enough to spread quantized coordinates across the key space;
// arithmetic wraps, which is fine for a bucketing key.
func routeKey(sx, sy, dx, dy float64, class FlowClass) uint64 {
	const m = 0x9e3779b1
	k := quant(sx)
	k = k*m + quant(sy)
	k = k*m + quant(dx)
	k = k*m + quant(dy)
	k = k*m + uint64(class)
	return k
}

// ActivePaths buckets the current particles by quantized endpoint pair and
// returns one record per unique route with its participant count. The
// result shares an internal buffer that is valid until the next call.
// Cost is O(particle count).
func (ps *ParticleSystem) ActivePaths() []Route {
	clear(ps.routeIdx)
	ps.routeBuf = ps.routeBuf[:0]
	for i := range ps.parts {
		p := &ps.parts[i]
		key := routeKey(p.SrcX, p.SrcY, p.DstX, p.DstY, p.Class)
		if idx, ok := ps.routeIdx[key]; ok {
			ps.routeBuf[idx].Count++
			continue
		}
		ps.routeIdx[key] = len(ps.routeBuf)
		ps.routeBuf = append(ps.routeBuf, Route{
			SrcX: p.SrcX, SrcY: p.SrcY,
			DstX: p.DstX, DstY: p.DstY,
			Class: p.Class,
			Count: 1,
		})
	}
	return ps.routeBuf
}
