package flowrender

import "github.com/hajimehoshi/ebiten/v2"

// The particle layer is GPU-resident: each route is a quad whose texel
// coordinates parameterize distance along (u, 0..1) and across (v, pixels)
// the route, and the fragment stage animates a train of particles from the
// current time alone. Per-line data rides in the vertex color channels:
//
//	r: phase offset of this line's particle train
//	g: speed jitter factor
//	b: route length / 1000, in surface pixels
//	a: brightness; negative marks the special flow class
const particleShaderSrc = `//kage:unit pixels

package main

var Time float
var Speed float
var Opacity float
var Filter float
var Particles float
var Radius float

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	u := srcPos.x
	v := srcPos.y
	phase := color.r
	jitter := color.g
	lenPx := color.b * 1000.0

	class := 0.0
	bright := color.a
	if bright < 0.0 {
		class = 1.0
		bright = -bright
	}
	if Filter == 1.0 && class > 0.5 {
		discard()
	}
	if Filter == 2.0 && class < 0.5 {
		discard()
	}

	t := fract(Time*jitter*Speed + phase)
	t = t * t * (3.0 - 2.0*t)

	// Pixel distance to the nearest particle of an evenly spaced train.
	du := (abs(fract((u-t)*Particles+0.5) - 0.5) / Particles) * lenPx
	d := sqrt(du*du + v*v)
	a := smoothstep(Radius, Radius*0.2, d)

	// Journeys fade in near the source and out near the destination.
	fade := smoothstep(0.0, 0.08, u) * (1.0 - smoothstep(0.92, 1.0, u))

	col := vec3(0.35, 0.85, 1.0)
	if class > 0.5 {
		col = vec3(1.0, 0.45, 0.2)
	}
	return vec4(col, 1.0) * a * fade * bright * Opacity
}
`

// Uniforms is the typed scalar bundle pushed to the shader every frame.
// Keeping it structured (rather than assembling string-keyed maps at call
// sites) catches name mismatches in one place.
type Uniforms struct {
	Time      float32
	Speed     float32
	Opacity   float32
	Filter    TrafficFilter
	Particles float32 // particles per route for the tier being drawn
	Radius    float32 // particle radius in pixels for the tier
}

func (u Uniforms) toMap() map[string]any {
	return map[string]any{
		"Time":      u.Time,
		"Speed":     u.Speed,
		"Opacity":   u.Opacity,
		"Filter":    float32(u.Filter),
		"Particles": u.Particles,
		"Radius":    u.Radius,
	}
}

// compileParticleShader builds the Kage program. Failure is recoverable:
// the caller can fall back to CPU-stepped point rendering.
func compileParticleShader() (*ebiten.Shader, error) {
	return ebiten.NewShader([]byte(particleShaderSrc))
}
