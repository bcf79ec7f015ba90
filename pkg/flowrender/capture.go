package flowrender

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// captureFrame copies the current pixels off the GPU and encodes the PNG
// in a background goroutine, keeping the draw loop unblocked.
func (p *Pipeline) captureFrame(img *ebiten.Image, timestamp time.Time) {
	if err := os.MkdirAll(p.captureDir, 0o755); err != nil {
		log.Printf("[capture] creating directory: %v", err)
		return
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	img.ReadPixels(rgba.Pix)

	path := filepath.Join(p.captureDir,
		fmt.Sprintf("flow-%s.png", timestamp.Format("20060102-150405")))
	go func() {
		f, err := os.Create(path)
		if err != nil {
			log.Printf("[capture] creating file: %v", err)
			return
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Printf("[capture] closing file: %v", err)
			}
		}()
		if err := png.Encode(f, rgba); err != nil {
			log.Printf("[capture] encoding: %v", err)
			return
		}
		log.Printf("[capture] wrote %s", path)
	}()
}

// stats summarizes the current frame for the HUD.
func (p *Pipeline) stats() Stats {
	s := Stats{Routes: len(p.routes)}
	if p.sim != nil {
		s.Mode = "cpu"
		s.Particles = p.sim.Len()
	} else {
		s.Mode = "gpu"
	}
	for i, tg := range p.tiers {
		drawn := densityLimit(tg.routes, p.settings.Density)
		s.TierSizes[i] = drawn
		if p.sim == nil {
			s.Particles += drawn * tg.tier.LineCount * tg.tier.ParticlesPerRoute
		}
	}
	return s
}
