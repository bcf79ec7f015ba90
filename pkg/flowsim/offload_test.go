package flowsim

import (
	"testing"
	"time"
)

func TestGeneratorProducesPackedBuffers(t *testing.T) {
	nodes := uniformNodes(5)
	opts := Options{SpecialProbability: 0.2, BaseSpeed: 0.01, WrapWidth: 360}
	gen := NewGenerator()
	defer gen.Stop()

	const count = 500
	id := gen.Start(nodes, count, opts)

	var complete GenComplete
	lastFraction := -1.0
	deadline := time.After(10 * time.Second)
loop:
	for {
		select {
		case msg := <-gen.Messages():
			switch m := msg.(type) {
			case GenProgress:
				if m.ID != id {
					continue
				}
				if m.Fraction < lastFraction {
					t.Errorf("progress went backwards: %f after %f", m.Fraction, lastFraction)
				}
				if m.Fraction < 0 || m.Fraction >= 1 {
					t.Errorf("progress fraction %f out of [0,1)", m.Fraction)
				}
				lastFraction = m.Fraction
			case GenComplete:
				if m.ID != id {
					continue
				}
				complete = m
				break loop
			}
		case <-deadline:
			t.Fatal("generation did not complete")
		}
	}

	if got, want := len(complete.Particles), count*ParticleStride; got != want {
		t.Fatalf("particle buffer length = %d, want %d", got, want)
	}
	if len(complete.Classes) != count {
		t.Fatalf("class buffer length = %d, want %d", len(complete.Classes), count)
	}
	for i := 0; i < count; i++ {
		b := complete.Particles[i*ParticleStride:]
		if b[0] == b[2] && b[1] == b[3] {
			t.Fatalf("particle %d has identical endpoints", i)
		}
		if b[4] < 0 || b[4] >= 1 {
			t.Fatalf("particle %d progress %f out of [0,1)", i, b[4])
		}
		if b[5] < opts.BaseSpeed*0.8 || b[5] > opts.BaseSpeed*1.2 {
			t.Fatalf("particle %d speed %f outside jitter band", i, b[5])
		}
		if c := complete.Classes[i]; c != 0 && c != 1 {
			t.Fatalf("particle %d class flag %d", i, c)
		}
	}

	ps := FromBuffers(nodes, complete.Particles, complete.Classes, opts)
	if ps.Len() != count {
		t.Fatalf("reconstructed system has %d particles, want %d", ps.Len(), count)
	}
	if got := ps.Positions(); len(got) != count {
		t.Fatalf("reconstructed system produced %d positions, want %d", len(got), count)
	}
	ps.Update(nominalFrameMs)
}

func TestGeneratorNewestRequestWins(t *testing.T) {
	nodes := uniformNodes(20)
	opts := Options{BaseSpeed: 0.01}
	gen := NewGenerator()
	defer gen.Stop()

	// The first request is large enough that the second Start cancels it
	// mid-flight. Receivers additionally discard anything that is not the
	// latest ID, so even a photo-finish first result is ignored.
	gen.Start(nodes, 2_000_000, opts)
	latest := gen.Start(nodes, 100, opts)

	deadline := time.After(30 * time.Second)
	for {
		select {
		case msg := <-gen.Messages():
			m, ok := msg.(GenComplete)
			if !ok {
				continue
			}
			if m.ID != latest {
				continue // stale result, discarded unconditionally
			}
			if got := len(m.Particles) / ParticleStride; got != 100 {
				t.Fatalf("latest request returned %d particles, want 100", got)
			}
			return
		case <-deadline:
			t.Fatal("latest generation did not complete")
		}
	}
}

func TestGeneratorDegenerateDataset(t *testing.T) {
	gen := NewGenerator()
	defer gen.Stop()
	id := gen.Start([]Node{{X: 1, Y: 2, Weight: 1}}, 1000, Options{BaseSpeed: 0.01})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-gen.Messages():
			if m, ok := msg.(GenComplete); ok && m.ID == id {
				if len(m.Particles) != 0 || len(m.Classes) != 0 {
					t.Fatalf("degenerate dataset produced %d/%d buffer entries, want empty",
						len(m.Particles), len(m.Classes))
				}
				return
			}
		case <-deadline:
			t.Fatal("generation did not complete")
		}
	}
}
