package flowrender

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// Stats is the per-frame summary the HUD renders.
type Stats struct {
	Mode      string // "cpu" or "gpu"
	Particles int
	Routes    int
	TierSizes [NumTiers]int
}

// HUD is the corner stats overlay: dataset name, frame rates, and the
// simulated population broken down by bandwidth tier.
type HUD struct {
	regular *text.GoTextFaceSource
	mono    *text.GoTextFaceSource
	dataset string
	scaleUp bool
}

func NewHUD(surfaceWidth int, datasetName string) (*HUD, error) {
	r, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, err
	}
	m, err := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	if err != nil {
		return nil, err
	}
	return &HUD{
		regular: r,
		mono:    m,
		dataset: datasetName,
		scaleUp: surfaceWidth > 2000,
	}, nil
}

func (h *HUD) Draw(screen *ebiten.Image, s Stats) {
	margin, fontSize := 24.0, 15.0
	if h.scaleUp {
		margin, fontSize = 48.0, 30.0
	}
	lineH := fontSize * 1.4

	lines := []string{
		h.dataset,
		fmt.Sprintf("mode %-4s  fps %5.1f  tps %5.1f", s.Mode, ebiten.ActualFPS(), ebiten.ActualTPS()),
		fmt.Sprintf("particles %8d", s.Particles),
		fmt.Sprintf("routes    %8d", s.Routes),
	}
	for i, n := range s.TierSizes {
		lines = append(lines, fmt.Sprintf("tier %d    %8d", i, n))
	}

	boxW := fontSize * 18
	boxH := lineH*float64(len(lines)) + margin/2
	vector.DrawFilledRect(screen, float32(margin-10), float32(margin-10),
		float32(boxW), float32(boxH), color.RGBA{0, 0, 0, 110}, false)

	titleFace := &text.GoTextFace{Source: h.regular, Size: fontSize}
	monoFace := &text.GoTextFace{Source: h.mono, Size: fontSize}
	for i, line := range lines {
		face := monoFace
		if i == 0 {
			face = titleFace
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(margin, margin+float64(i)*lineH)
		op.ColorScale.Scale(1, 1, 1, 0.85)
		text.Draw(screen, line, face, op)
	}
}
