package flowrender

import (
	"math"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sudorandom/flow-stream/pkg/flowsim"
)

func identityProj(x, y float64) (float64, float64) { return x, y }

func TestBuildTierGeometryQuadCounts(t *testing.T) {
	routes := []RouteSpec{
		{SrcX: 0, SrcY: 0, DstX: 100, DstY: 0, Count: 3},
		{SrcX: 0, SrcY: 50, DstX: 0, DstY: 150, Count: 1, Class: flowsim.ClassSpecial},
	}
	tier := Tier{LineCount: 2, ParticlesPerRoute: 4, LineWidth: 1, ParticleRadius: 3}
	g := BuildTierGeometry(routes, tier, identityProj, 0, 1)

	wantParticle := len(routes) * tier.LineCount
	gotParticle := 0
	for _, c := range g.particle {
		gotParticle += c.quads
	}
	if gotParticle != wantParticle {
		t.Errorf("particle quads = %d, want %d", gotParticle, wantParticle)
	}
	gotLines := 0
	for _, c := range g.lines {
		gotLines += c.quads
	}
	if gotLines != len(routes) {
		t.Errorf("line quads = %d, want %d", gotLines, len(routes))
	}
	if g.routes != len(routes) {
		t.Errorf("g.routes = %d, want %d", g.routes, len(routes))
	}
}

func TestBuildTierGeometryVertexEncoding(t *testing.T) {
	routes := []RouteSpec{
		{SrcX: 0, SrcY: 0, DstX: 300, DstY: 400, Count: 2, Class: flowsim.ClassSpecial},
	}
	tier := Tier{LineCount: 1, ParticlesPerRoute: 2, LineWidth: 1, ParticleRadius: 3}
	g := BuildTierGeometry(routes, tier, identityProj, 0, 1)

	vs := g.particle[0].vertices
	if len(vs) != 4 {
		t.Fatalf("got %d vertices, want 4", len(vs))
	}
	// u runs 0 at the source edge to 1 at the destination edge.
	for i, wantU := range []float32{0, 0, 1, 1} {
		if vs[i].SrcX != wantU {
			t.Errorf("vertex %d u = %f, want %f", i, vs[i].SrcX, wantU)
		}
	}
	// Route length 500px rides in the blue channel, scaled down by 1000.
	if math.Abs(float64(vs[0].ColorB)-0.5) > 1e-6 {
		t.Errorf("encoded length = %f, want 0.5", vs[0].ColorB)
	}
	// The special class flips the brightness sign.
	if vs[0].ColorA >= 0 {
		t.Errorf("special route brightness = %f, want negative", vs[0].ColorA)
	}
	if vs[0].ColorG < 0.8 || vs[0].ColorG > 1.2 {
		t.Errorf("speed jitter = %f outside [0.8, 1.2]", vs[0].ColorG)
	}
	if vs[0].ColorR < 0 || vs[0].ColorR >= 1 {
		t.Errorf("phase = %f outside [0, 1)", vs[0].ColorR)
	}
}

func TestBuildTierGeometrySkipsZeroLengthRoutes(t *testing.T) {
	routes := []RouteSpec{{SrcX: 5, SrcY: 5, DstX: 5, DstY: 5, Count: 1}}
	g := BuildTierGeometry(routes, TierFor(0), identityProj, 0, 1)
	if len(g.particle) != 0 {
		t.Error("zero-length route produced geometry")
	}
}

func TestBuildTierGeometryWraparound(t *testing.T) {
	// A route crossing the antimeridian must be built the short way: the
	// projected destination sits left of the source, not 340 units right.
	routes := []RouteSpec{{SrcX: 170, SrcY: 0, DstX: -170, DstY: 0, Count: 1}}
	tier := Tier{LineCount: 1, ParticlesPerRoute: 1, LineWidth: 1, ParticleRadius: 3}
	g := BuildTierGeometry(routes, tier, identityProj, 360, 1)

	vs := g.particle[0].vertices
	srcEdgeX, dstEdgeX := vs[0].DstX, vs[2].DstX
	if math.Abs(float64(dstEdgeX-srcEdgeX)) > 30 {
		t.Errorf("route spans %f px, want the short 20-unit path", dstEdgeX-srcEdgeX)
	}
	if dstEdgeX <= srcEdgeX {
		t.Errorf("short path should continue east past the source (src %f, dst %f)", srcEdgeX, dstEdgeX)
	}
}

func TestAppendQuadChunking(t *testing.T) {
	var chunks []geomChunk
	var vs [4]ebiten.Vertex
	for i := 0; i < maxQuadsPerChunk+1; i++ {
		chunks = appendQuad(chunks, vs)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].quads != maxQuadsPerChunk || chunks[1].quads != 1 {
		t.Errorf("chunk quads = %d/%d, want %d/1", chunks[0].quads, chunks[1].quads, maxQuadsPerChunk)
	}
	if len(chunks[0].vertices) != maxQuadsPerChunk*4 || len(chunks[0].indices) != maxQuadsPerChunk*6 {
		t.Error("chunk vertex/index counts inconsistent with quad count")
	}
}

func TestQuadPrefixHonorsLimit(t *testing.T) {
	var chunks []geomChunk
	var vs [4]ebiten.Vertex
	for i := 0; i < 5; i++ {
		chunks = appendQuad(chunks, vs)
	}
	drawnQuads := 0
	quadPrefix(chunks, 3, func(vs []ebiten.Vertex, is []uint16) {
		if len(vs)%4 != 0 || len(is)%6 != 0 {
			t.Fatalf("ragged chunk: %d vertices, %d indices", len(vs), len(is))
		}
		drawnQuads += len(vs) / 4
	})
	if drawnQuads != 3 {
		t.Errorf("drew %d quads, want 3", drawnQuads)
	}
}

func TestShortestDstX(t *testing.T) {
	tests := []struct {
		src, dst, wrap, want float64
	}{
		{170, -170, 360, 190},
		{-170, 170, 360, -190},
		{10, 20, 360, 20},
		{170, -170, 0, -170}, // wraparound disabled
	}
	for _, tt := range tests {
		if got := shortestDstX(tt.src, tt.dst, tt.wrap); got != tt.want {
			t.Errorf("shortestDstX(%f, %f, %f) = %f, want %f", tt.src, tt.dst, tt.wrap, got, tt.want)
		}
	}
}
