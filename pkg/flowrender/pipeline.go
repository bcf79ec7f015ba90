package flowrender

import (
	"image"
	"image/color"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/sudorandom/flow-stream/pkg/flowsim"
)

var (
	whiteImage    = ebiten.NewImage(3, 3)
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

// shaderJourneysPerSec converts the unit speed multiplier into journey
// completions per second for the GPU-resident animation, roughly matching
// the CPU model's default base speed at 60fps.
const shaderJourneysPerSec = 0.6

// Config sizes the pipeline's internal surface.
type Config struct {
	Width, Height int
	MapScale      float64 // projection radius in pixels
	WrapWidth     float64 // horizontal period of simulation space
	Settings      Settings
}

// Pipeline renders the flow map. It implements ebiten.Game and is the sole
// owner of its GPU-side buffers: external goroutines talk to it only
// through Post. Geometry is rebuilt when the node set, aggregation mode or
// offset factor changes; density, opacity, speed and filter changes touch
// nothing but draw limits and uniforms.
type Pipeline struct {
	width, height int
	wrapWidth     float64

	basemap *Basemap
	geo     []byte
	shader  *ebiten.Shader

	msgs     chan Msg
	settings Settings
	nodes    []flowsim.Node
	routes   []RouteSpec
	tiers    []tierGeometry
	dirty    bool

	world                    *ebiten.Image
	viewCX, viewCY, viewZoom float64

	// Synchronous execution model: when a system is attached the pipeline
	// steps it every tick and draws its position snapshot on the CPU path.
	// simCount is the configured population size, kept here so a dataset
	// change always reseeds to it even after a degenerate dataset emptied
	// the system.
	sim      *flowsim.ParticleSystem
	simCount int
	lastStep time.Time
	simTicks int

	start time.Time

	ptVerts []ebiten.Vertex
	ptIdx   []uint16

	hud            *HUD
	captureDir     string
	captureEvery   time.Duration
	lastCapture    time.Time
	capturePending atomic.Bool
}

// NewPipeline compiles the particle shader and prepares an idle pipeline.
// A shader compile failure is reported but the pipeline is still returned
// usable: the caller may run the synchronous CPU model instead.
func NewPipeline(cfg Config) (*Pipeline, error) {
	shader, err := compileParticleShader()
	s := cfg.Settings
	if s == (Settings{}) {
		s = DefaultSettings()
	}
	return &Pipeline{
		width:     cfg.Width,
		height:    cfg.Height,
		wrapWidth: cfg.WrapWidth,
		basemap:   NewBasemap(cfg.Width, cfg.Height, cfg.MapScale),
		shader:    shader,
		msgs:      make(chan Msg, 64),
		settings:  s,
		viewZoom:  1,
		start:     time.Now(),
	}, err
}

// LoadBasemap rasterizes the world background from raw GeoJSON. The bytes
// are retained so a resize can re-render.
func (p *Pipeline) LoadBasemap(worldGeoJSON []byte) error {
	p.geo = worldGeoJSON
	return p.basemap.Render(worldGeoJSON)
}

// AttachSystem switches the pipeline to the synchronous model: the system
// is stepped on the render tick and its snapshot drawn directly. count is
// the configured population size, applied on every dataset change. The
// caller must not touch the system afterwards.
func (p *Pipeline) AttachSystem(ps *flowsim.ParticleSystem, count int) {
	p.sim = ps
	p.simCount = count
	p.nodes = ps.Nodes()
}

// EnableHUD attaches the stats overlay.
func (p *Pipeline) EnableHUD(datasetName string) error {
	hud, err := NewHUD(p.width, datasetName)
	if err != nil {
		return err
	}
	p.hud = hud
	return nil
}

// SetCaptureDir enables frame capture into the given directory. With a
// directory set, F12 captures the next frame; SetCaptureInterval adds a
// periodic capture for headless runs.
func (p *Pipeline) SetCaptureDir(dir string) { p.captureDir = dir }

// SetCaptureInterval captures a frame every d, starting with the first
// tick. Zero disables periodic capture.
func (p *Pipeline) SetCaptureInterval(d time.Duration) { p.captureEvery = d }

// RequestCapture schedules a one-shot PNG capture of the next frame.
func (p *Pipeline) RequestCapture() { p.capturePending.Store(true) }

// Post delivers a message to the running pipeline without blocking. A full
// mailbox drops the message; settings senders should coalesce rather than
// flood.
func (p *Pipeline) Post(msg Msg) {
	select {
	case p.msgs <- msg:
	default:
		log.Printf("[render] mailbox full, dropping %T", msg)
	}
}

// Update drains the mailbox and steps the attached system, if any.
func (p *Pipeline) Update() error {
drain:
	for {
		select {
		case msg := <-p.msgs:
			p.handle(msg)
		default:
			break drain
		}
	}

	if p.sim != nil {
		now := time.Now()
		// Lazily anchor the step clock on the first tick so setup time
		// (basemap download, rasterization) is not billed as a frame delta.
		if p.lastStep.IsZero() {
			p.lastStep = now
		}
		p.sim.Update(float64(now.Sub(p.lastStep)) / float64(time.Millisecond))
		p.lastStep = now
		// The live particle set drives the line layer in this model. Route
		// refresh is amortized across ticks; reseeds shift routes slowly.
		p.simTicks++
		if p.simTicks%30 == 1 {
			p.routes = RoutesFromPaths(p.sim.ActivePaths(), p.nodes)
			p.dirty = true
		}
	}

	if p.captureDir != "" {
		if p.captureEvery > 0 && time.Since(p.lastCapture) >= p.captureEvery {
			p.lastCapture = time.Now()
			p.RequestCapture()
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
			p.RequestCapture()
		}
	}

	if p.dirty {
		p.rebuildGeometry()
		p.dirty = false
	}
	return nil
}

func (p *Pipeline) handle(msg Msg) {
	switch m := msg.(type) {
	case SettingsMsg:
		old := p.settings
		p.settings = m.Settings
		if old.Aggregation != m.Settings.Aggregation || old.OffsetFactor != m.Settings.OffsetFactor {
			p.dirty = true
		}
	case NodesMsg:
		p.nodes = m.Nodes
		if p.sim != nil {
			p.sim.SetDataset(m.Nodes, p.simCount)
		}
		p.dirty = true
	case RoutesMsg:
		p.routes = m.Routes
		p.dirty = true
	case ViewportMsg:
		p.viewCX, p.viewCY, p.viewZoom = m.CenterX, m.CenterY, m.Zoom
		if p.viewZoom <= 0 {
			p.viewZoom = 1
		}
	case ResizeMsg:
		p.width, p.height = m.Width, m.Height
		p.world = nil
		p.basemap = NewBasemap(m.Width, m.Height, p.basemap.scale)
		if p.geo != nil {
			if err := p.basemap.Render(p.geo); err != nil {
				log.Printf("[render] basemap re-render failed: %v", err)
			}
		}
		p.dirty = true
	}
}

func (p *Pipeline) rebuildGeometry() {
	routes := p.routes
	if p.settings.Aggregation == AggregateByRegion {
		routes = AggregateRegions(routes)
	}
	ranked := RankRoutes(routes)
	p.tiers = make([]tierGeometry, NumTiers)
	for i, rs := range ranked {
		p.tiers[i] = BuildTierGeometry(rs, TierFor(i), p.basemap.Project, p.wrapWidth, p.settings.OffsetFactor)
	}
}

// densityLimit returns how many of n ranked routes the current density
// admits (always at least one when any exist).
func densityLimit(n int, density float64) int {
	if n == 0 {
		return 0
	}
	if density <= 0 || density > 1 {
		density = 1
	}
	l := int(math.Ceil(density * float64(n)))
	if l > n {
		l = n
	}
	return l
}

func (p *Pipeline) Draw(screen *ebiten.Image) {
	if p.world == nil || p.world.Bounds().Dx() != p.width || p.world.Bounds().Dy() != p.height {
		p.world = ebiten.NewImage(p.width, p.height)
	}
	w := p.world

	if img := p.basemap.Image(); img != nil {
		w.DrawImage(img, nil)
	} else {
		w.Fill(seaColor)
	}

	lineOpts := &ebiten.DrawTrianglesOptions{}
	lineOpts.Blend = ebiten.BlendLighter
	for _, tg := range p.tiers {
		limit := densityLimit(tg.routes, p.settings.Density)
		quadPrefix(tg.lines, limit, func(vs []ebiten.Vertex, is []uint16) {
			w.DrawTriangles(vs, is, whiteSubImage, lineOpts)
		})
	}

	// The shader-driven train duplicates what the CPU snapshot already
	// shows, so it only runs in the offloaded model.
	if p.shader != nil && p.sim == nil {
		elapsed := float32(time.Since(p.start).Seconds())
		for _, tg := range p.tiers {
			limit := densityLimit(tg.routes, p.settings.Density) * tg.tier.LineCount
			u := Uniforms{
				Time:      elapsed,
				Speed:     float32(p.settings.Speed * shaderJourneysPerSec),
				Opacity:   float32(p.settings.Opacity),
				Filter:    p.settings.Filter,
				Particles: float32(tg.tier.ParticlesPerRoute),
				Radius:    tg.tier.ParticleRadius,
			}
			opts := &ebiten.DrawTrianglesShaderOptions{Uniforms: u.toMap()}
			opts.Blend = ebiten.BlendLighter
			quadPrefix(tg.particle, limit, func(vs []ebiten.Vertex, is []uint16) {
				w.DrawTrianglesShader(vs, is, p.shader, opts)
			})
		}
	}

	if p.sim != nil {
		p.drawPositions(w)
	}

	if p.hud != nil {
		p.hud.Draw(w, p.stats())
	}

	if p.capturePending.Swap(false) && p.captureDir != "" {
		p.captureFrame(w, time.Now())
	}

	op := &ebiten.DrawImageOptions{}
	if p.viewZoom != 1 || p.viewCX != 0 || p.viewCY != 0 {
		cx, cy := p.viewCX, p.viewCY
		if cx == 0 && cy == 0 {
			cx, cy = float64(p.width)/2, float64(p.height)/2
		}
		op.GeoM.Translate(-cx, -cy)
		op.GeoM.Scale(p.viewZoom, p.viewZoom)
		op.GeoM.Translate(float64(p.width)/2, float64(p.height)/2)
	}
	screen.DrawImage(w, op)
}

// drawPositions renders the CPU model's snapshot as small additively
// blended squares, flushing in chunks to stay inside the uint16 index
// space.
func (p *Pipeline) drawPositions(dst *ebiten.Image) {
	opts := &ebiten.DrawTrianglesOptions{}
	opts.Blend = ebiten.BlendLighter
	flush := func() {
		if len(p.ptIdx) > 0 {
			dst.DrawTriangles(p.ptVerts, p.ptIdx, whiteSubImage, opts)
			p.ptVerts = p.ptVerts[:0]
			p.ptIdx = p.ptIdx[:0]
		}
	}

	alpha := float32(p.settings.Opacity)
	for _, pos := range p.sim.Positions() {
		if p.settings.Filter == FilterGeneral && pos.Class == flowsim.ClassSpecial {
			continue
		}
		if p.settings.Filter == FilterSpecial && pos.Class == flowsim.ClassGeneral {
			continue
		}
		cr, cg, cb := float32(0.35), float32(0.85), float32(1.0)
		if pos.Class == flowsim.ClassSpecial {
			cr, cg, cb = 1.0, 0.45, 0.2
		}
		x, y := p.basemap.Project(pos.X, pos.Y)
		p.ptVerts, p.ptIdx = appendPointQuad(p.ptVerts, p.ptIdx, x, y, 2, cr, cg, cb, alpha)
		if len(p.ptVerts) >= maxQuadsPerChunk*4 {
			flush()
		}
	}
	flush()
}

func (p *Pipeline) Layout(outsideWidth, outsideHeight int) (int, int) {
	return p.width, p.height
}
