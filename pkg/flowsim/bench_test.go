package flowsim

import "testing"

// High allocation counts in these benchmarks usually mean a snapshot or
// aggregation buffer is being recreated every frame.

func benchSystem(count int) *ParticleSystem {
	return NewParticleSystem(uniformNodes(200), count, Options{
		SpecialProbability: 0.1,
		BaseSpeed:          0.01,
		WrapWidth:          360,
	})
}

func BenchmarkUpdate100k(b *testing.B) {
	ps := benchSystem(100_000)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ps.Update(nominalFrameMs)
	}
}

func BenchmarkPositions100k(b *testing.B) {
	ps := benchSystem(100_000)
	ps.Positions() // warm the snapshot buffer
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ps.Positions()
	}
}

func BenchmarkActivePaths100k(b *testing.B) {
	ps := benchSystem(100_000)
	ps.ActivePaths()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ps.ActivePaths()
	}
}

func BenchmarkSample(b *testing.B) {
	s := NewAliasSampler(nodeWeights(uniformNodes(10_000)))
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := s.Sample(); err != nil {
			b.Fatal(err)
		}
	}
}
