// Command flow-viewer renders a particle flow map for a weighted node
// dataset: CSV file or URL, a stored snapshot slice, optionally refreshed
// from a live websocket feed.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/sudorandom/flow-stream/pkg/config"
	"github.com/sudorandom/flow-stream/pkg/dataset"
	"github.com/sudorandom/flow-stream/pkg/flowrender"
	"github.com/sudorandom/flow-stream/pkg/flowsim"
	"github.com/sudorandom/flow-stream/pkg/utils"
)

var cli struct {
	Config  string `help:"YAML config file. Embedded defaults apply when omitted." type:"path"`
	Dataset string `help:"Dataset CSV path or http(s) URL." default:"data/cities.csv"`
	World   string `help:"World GeoJSON path or http(s) URL." default:"data/world.geojson"`

	Store string `help:"Badger snapshot store directory. Overrides --dataset." type:"path"`
	Slice string `help:"Snapshot key to load from the store. Defaults to the last key."`

	Live string `help:"Websocket URL pushing dataset updates."`

	Particles int     `help:"Override the configured particle count."`
	Density   float64 `help:"Override the configured route density (0,1]."`
	Offload   *bool   `help:"Override the configured execution model."`

	CacheDir     string        `help:"Download cache for remote files." default:"data/cache"`
	CaptureDir   string        `help:"Directory for frame captures. F12 captures a frame; empty disables capture." type:"path"`
	CaptureEvery time.Duration `help:"Capture a frame periodically (e.g. 30s). Requires --capture-dir."`
	Headless     bool          `help:"Run without a local window (offscreen rendering active)."`
	WindowWidth  int           `help:"Initial window width (non-headless only)." default:"1280"`
	WindowHeight int           `help:"Initial window height (non-headless only)." default:"720"`
	NoHud        bool          `help:"Disable the stats overlay."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("flow-viewer"),
		kong.Description("Particle flow map viewer."))
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cli.Particles > 0 {
		cfg.Simulation.ParticleCount = cli.Particles
	}
	if cli.Density > 0 {
		cfg.Render.Density = cli.Density
	}
	if cli.Offload != nil {
		cfg.Simulation.Offload = *cli.Offload
	}

	ds, err := loadDataset()
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	nodes := ds.Nodes()
	log.Printf("[dataset] %s: %d usable nodes", ds.Name, len(nodes))

	pipe, err := flowrender.NewPipeline(flowrender.Config{
		Width:     cfg.Screen.Width,
		Height:    cfg.Screen.Height,
		MapScale:  cfg.Screen.MapScale,
		WrapWidth: 360,
		Settings:  cfg.Settings(),
	})
	if err != nil {
		// GPU particle shader unavailable; the CPU model still works.
		log.Printf("Shader compile failed, falling back to CPU particles: %v", err)
		cfg.Simulation.Offload = false
	}

	world, err := readFileOrURL(cli.World, cli.CacheDir)
	if err != nil {
		log.Fatalf("Failed to load world map: %v", err)
	}
	if err := pipe.LoadBasemap(world); err != nil {
		log.Fatalf("Failed to render world map: %v", err)
	}

	opts := flowsim.Options{
		SpecialProbability: cfg.Simulation.SpecialProbability,
		BaseSpeed:          cfg.Simulation.BaseSpeed,
		WrapWidth:          360,
	}

	var gen *flowsim.Generator
	var st *genState
	if cfg.Simulation.Offload {
		gen = flowsim.NewGenerator()
		st = &genState{opts: opts}
		st.restart(gen, nodes, cfg.Simulation.ParticleCount)
		go consumeGenerated(gen, pipe, st)
		pipe.Post(flowrender.NodesMsg{Nodes: nodes})
	} else {
		sim := flowsim.NewParticleSystem(nodes, cfg.Simulation.ParticleCount, opts)
		pipe.AttachSystem(sim, cfg.Simulation.ParticleCount)
	}

	if !cli.NoHud {
		if err := pipe.EnableHUD(ds.Name); err != nil {
			log.Printf("HUD disabled: %v", err)
		}
	}
	if cli.CaptureDir != "" {
		pipe.SetCaptureDir(cli.CaptureDir)
		if cli.CaptureEvery > 0 {
			pipe.SetCaptureInterval(cli.CaptureEvery)
		}
	}

	if cli.Live != "" {
		feed := dataset.NewFeed(cli.Live)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go feed.Run(ctx)
		go func() {
			for d := range feed.Datasets() {
				nodes := d.Nodes()
				log.Printf("[feed] dataset %s: %d nodes", d.Name, len(nodes))
				pipe.Post(flowrender.NodesMsg{Nodes: nodes})
				if gen != nil {
					st.restart(gen, nodes, cfg.Simulation.ParticleCount)
				}
			}
		}()
	}

	if cfg.Screen.TargetTPS > 0 {
		ebiten.SetTPS(cfg.Screen.TargetTPS)
	}
	if cli.Headless {
		log.Println("Running in HEADLESS mode (rendering active).")
	} else {
		ebiten.SetWindowSize(cli.WindowWidth, cli.WindowHeight)
		ebiten.SetWindowTitle("Flow Map Viewer")
	}
	if err := ebiten.RunGame(pipe); err != nil {
		log.Fatal(err)
	}
}

// genState ties generator completions back to the routes the pipeline
// should draw. A completion for a superseded request id is discarded.
type genState struct {
	mu      sync.Mutex
	current uuid.UUID
	nodes   []flowsim.Node
	opts    flowsim.Options
}

// restart kicks off a new generation request; any in-flight request is
// cancelled and its eventual completion discarded.
func (st *genState) restart(gen *flowsim.Generator, nodes []flowsim.Node, count int) {
	st.mu.Lock()
	st.nodes = nodes
	st.current = gen.Start(nodes, count, st.opts)
	st.mu.Unlock()
}

func consumeGenerated(gen *flowsim.Generator, pipe *flowrender.Pipeline, st *genState) {
	for msg := range gen.Messages() {
		switch m := msg.(type) {
		case flowsim.GenProgress:
			log.Printf("[gen] request %s: %.0f%%", m.ID, m.Fraction*100)
		case flowsim.GenComplete:
			st.mu.Lock()
			stale := m.ID != st.current
			nodes, opts := st.nodes, st.opts
			st.mu.Unlock()
			if stale {
				log.Printf("[gen] discarding stale request %s", m.ID)
				continue
			}
			ps := flowsim.FromBuffers(nodes, m.Particles, m.Classes, opts)
			routes := flowrender.RoutesFromPaths(ps.ActivePaths(), nodes)
			log.Printf("[gen] request %s complete: %d particles, %d routes",
				m.ID, ps.Len(), len(routes))
			pipe.Post(flowrender.RoutesMsg{Routes: routes})
		}
	}
}

func loadDataset() (*dataset.Dataset, error) {
	if cli.Store == "" {
		return dataset.Load(cli.Dataset, cli.CacheDir)
	}
	store, err := dataset.OpenStore(cli.Store)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	key := cli.Slice
	if key == "" {
		keys, err := store.Keys()
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			log.Fatalf("Store %s holds no snapshots", cli.Store)
		}
		key = keys[len(keys)-1]
		log.Printf("[store] using latest slice %s", key)
	}
	d, ok, err := store.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Fatalf("Slice %q not found in store %s", key, cli.Store)
	}
	return d, nil
}

func readFileOrURL(pathOrURL, cacheDir string) ([]byte, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		r, err := utils.CachedReader(pathOrURL, cacheDir, "[world]")
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return os.ReadFile(pathOrURL)
}
