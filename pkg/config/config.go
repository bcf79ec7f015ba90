// Package config loads viewer configuration from YAML, merged over
// embedded defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sudorandom/flow-stream/pkg/flowrender"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all viewer configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Render     RenderConfig     `yaml:"render"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	MapScale  float64 `yaml:"map_scale"`
	TargetTPS int     `yaml:"target_tps"`
}

// SimulationConfig holds particle simulation parameters.
type SimulationConfig struct {
	ParticleCount      int     `yaml:"particle_count"`
	SpecialProbability float64 `yaml:"special_probability"`
	BaseSpeed          float64 `yaml:"base_speed"`
	Offload            bool    `yaml:"offload"` // generate particle buffers on a worker instead of per-frame stepping
}

// RenderConfig holds render pipeline settings.
type RenderConfig struct {
	Density      float64 `yaml:"density"`
	Opacity      float64 `yaml:"opacity"`
	Speed        float64 `yaml:"speed"`
	OffsetFactor float64 `yaml:"offset_factor"`
	Filter       string  `yaml:"filter"`      // all, general, special
	Aggregation  string  `yaml:"aggregation"` // node, region
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct so only fields present in the file
		// overwrite the defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("screen dimensions must be positive, got %dx%d", c.Screen.Width, c.Screen.Height)
	}
	if c.Simulation.ParticleCount < 0 {
		return fmt.Errorf("particle_count must not be negative, got %d", c.Simulation.ParticleCount)
	}
	if p := c.Simulation.SpecialProbability; p < 0 || p > 1 {
		return fmt.Errorf("special_probability must be in [0,1], got %v", p)
	}
	if _, err := c.filter(); err != nil {
		return err
	}
	if _, err := c.aggregation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) filter() (flowrender.TrafficFilter, error) {
	switch c.Render.Filter {
	case "", "all":
		return flowrender.FilterAll, nil
	case "general":
		return flowrender.FilterGeneral, nil
	case "special":
		return flowrender.FilterSpecial, nil
	}
	return 0, fmt.Errorf("unknown filter %q (want all, general or special)", c.Render.Filter)
}

func (c *Config) aggregation() (flowrender.AggregationMode, error) {
	switch c.Render.Aggregation {
	case "", "node":
		return flowrender.AggregateByNode, nil
	case "region":
		return flowrender.AggregateByRegion, nil
	}
	return 0, fmt.Errorf("unknown aggregation %q (want node or region)", c.Render.Aggregation)
}

// Settings converts the render section into pipeline settings.
func (c *Config) Settings() flowrender.Settings {
	s := flowrender.DefaultSettings()
	if c.Render.Density > 0 {
		s.Density = c.Render.Density
	}
	if c.Render.Opacity > 0 {
		s.Opacity = c.Render.Opacity
	}
	if c.Render.Speed > 0 {
		s.Speed = c.Render.Speed
	}
	if c.Render.OffsetFactor > 0 {
		s.OffsetFactor = c.Render.OffsetFactor
	}
	// validate already vetted these.
	s.Filter, _ = c.filter()
	s.Aggregation, _ = c.aggregation()
	return s
}
