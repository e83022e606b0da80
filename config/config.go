// Package config provides configuration loading and access for the engine.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Particles ParticlesConfig `yaml:"particles"`
	Fields    FieldsConfig    `yaml:"fields"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Workers   WorkersConfig   `yaml:"workers"`
	Viewport  ViewportConfig  `yaml:"viewport"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds background grid parameters.
type GridConfig struct {
	Width                int     `yaml:"width"`
	Height               int     `yaml:"height"`
	Depth                int     `yaml:"depth"`
	WallThickness        float64 `yaml:"wall_thickness"`
	FixedPointMultiplier float64 `yaml:"fixed_point_multiplier"`
}

// ParticlesConfig holds particle buffer parameters.
type ParticlesConfig struct {
	Max        int     `yaml:"max"`
	MassJitter float64 `yaml:"mass_jitter"` // half-width of per-particle mass jitter around 1.0
}

// FieldsConfig holds force-field capacity.
type FieldsConfig struct {
	Max int `yaml:"max"`
}

// PhysicsConfig holds default simulation parameters.
// These seed sim.Params; the host may override any of them per frame.
type PhysicsConfig struct {
	DT               float64    `yaml:"dt"` // user time-scale knob, not seconds
	RestDensity      float64    `yaml:"rest_density"`
	Stiffness        float64    `yaml:"stiffness"`
	DynamicViscosity float64    `yaml:"dynamic_viscosity"`
	Noise            float64    `yaml:"noise"`
	GravityType      int        `yaml:"gravity_type"` // 0=none, 1=vector, 2=radial
	Gravity          [3]float64 `yaml:"gravity"`
}

// WorkersConfig holds kernel dispatch parameters.
type WorkersConfig struct {
	Count int `yaml:"count"` // 0 = GOMAXPROCS
}

// ViewportConfig holds viewport tracker parameters.
type ViewportConfig struct {
	UIMargin   float64 `yaml:"ui_margin"` // extra grid-space margin inside UI exclusions
	DebounceMs int     `yaml:"debounce_ms"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	CellCount     int     // Grid.Width * Height * Depth
	WallThickness float32 // Grid.WallThickness as float32
	Multiplier    float32 // Grid.FixedPointMultiplier as float32
	DT32          float32 // Physics.DT as float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects configurations the engine refuses to start with.
func (c *Config) Validate() error {
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 || c.Grid.Depth <= 0 {
		return fmt.Errorf("config: grid dimensions must be positive, got %dx%dx%d",
			c.Grid.Width, c.Grid.Height, c.Grid.Depth)
	}
	if c.Grid.FixedPointMultiplier <= 0 {
		return fmt.Errorf("config: fixed-point multiplier must be positive, got %g",
			c.Grid.FixedPointMultiplier)
	}
	if c.Physics.RestDensity <= 0 {
		return fmt.Errorf("config: rest density must be positive, got %g", c.Physics.RestDensity)
	}
	if c.Particles.Max <= 0 {
		return fmt.Errorf("config: particle capacity must be positive, got %d", c.Particles.Max)
	}
	if c.Fields.Max <= 0 {
		return fmt.Errorf("config: force-field capacity must be positive, got %d", c.Fields.Max)
	}
	if gt := c.Physics.GravityType; gt < 0 || gt > 2 {
		return fmt.Errorf("config: gravity type must be 0, 1 or 2, got %d", gt)
	}
	return nil
}

// WriteYAML saves the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.CellCount = c.Grid.Width * c.Grid.Height * c.Grid.Depth
	c.Derived.WallThickness = float32(c.Grid.WallThickness)
	c.Derived.Multiplier = float32(c.Grid.FixedPointMultiplier)
	c.Derived.DT32 = float32(c.Physics.DT)
}
