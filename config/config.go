// Package config holds the settings of the forest demo.
package config

import (
	"errors"
	"fmt"
)

type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Render  RenderConfig  `yaml:"render"`
	Forest  ForestConfig  `yaml:"forest"`
	Logging LoggingConfig `yaml:"logging"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

type RenderConfig struct {
	Samples         uint32     `yaml:"samples"`
	ClearColor      [4]float64 `yaml:"clear_color"`
	ValidateShaders bool       `yaml:"validate_shaders"`
}

// ForestConfig lays out a square of SideChunks x SideChunks chunks. Each prop
// archetype gets ChunkSize*ChunkSize*Density/Divisor instances per chunk.
type ForestConfig struct {
	SideChunks int     `yaml:"side_chunks"`
	ChunkSize  float32 `yaml:"chunk_size"`
	Density    int     `yaml:"density"`
	// Seed 0 picks a random placement every run.
	Seed        int64      `yaml:"seed"`
	GroundColor [3]float32 `yaml:"ground_color"`
	// GroundTexture is an optional PNG tiled over the ground.
	GroundTexture string `yaml:"ground_texture"`

	Props  []PropConfig `yaml:"props"`
	Grass  GrassConfig  `yaml:"grass"`
	Growth GrowthConfig `yaml:"growth"`
}

// PropConfig is one instanced archetype. Shape picks the procedural mesh:
// "tree", "bush", "rock" or "mushroom".
type PropConfig struct {
	Name         string     `yaml:"name"`
	Shape        string     `yaml:"shape"`
	Divisor      int        `yaml:"divisor"`
	Scale        float32    `yaml:"scale"`
	RotationX    float32    `yaml:"rotation_x"` // degrees
	CullDistance float32    `yaml:"cull_distance"`
	Color        [3]float32 `yaml:"color"`
	Texture      string     `yaml:"texture"`
}

type GrassConfig struct {
	Multiplier   int     `yaml:"multiplier"`
	Scale        float32 `yaml:"scale"`
	Height       float32 `yaml:"height"`
	GrowthLayer  int32   `yaml:"growth_layer"`
	CullDistance float32 `yaml:"cull_distance"`
}

type GrowthConfig struct {
	Layers       int     `yaml:"layers"`
	Resolution   int     `yaml:"resolution"`
	PatternScale float64 `yaml:"pattern_scale"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	// FPSInterval is how often the frame rate is logged, in seconds. 0 disables it.
	FPSInterval float64 `yaml:"fps_interval"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  1000,
			Height: 1000,
			Title:  "forest",
			VSync:  false,
		},
		Render: RenderConfig{
			Samples:    4,
			ClearColor: [4]float64{0.7, 0.8, 0.8, 1},
		},
		Forest: ForestConfig{
			SideChunks:  20,
			ChunkSize:   30,
			Density:     1,
			GroundColor: [3]float32{0.34, 0.53, 0.255},
			Props: []PropConfig{
				{Name: "mushroom", Shape: "mushroom", Divisor: 5, Scale: 0.05, RotationX: 90, CullDistance: 100, Color: [3]float32{0.75, 0.2, 0.15}},
				{Name: "tree", Shape: "tree", Divisor: 15, Scale: 0.2, CullDistance: 600, Color: [3]float32{0.18, 0.38, 0.16}},
				{Name: "bush", Shape: "bush", Divisor: 6, Scale: 0.4, CullDistance: 200, Color: [3]float32{0.25, 0.45, 0.2}},
				{Name: "rock", Shape: "rock", Divisor: 10, Scale: 0.6, CullDistance: 200, Color: [3]float32{0.5, 0.5, 0.48}},
			},
			Grass: GrassConfig{
				Multiplier:   50,
				Scale:        1.6,
				Height:       0.6,
				GrowthLayer:  1,
				CullDistance: 300,
			},
			Growth: GrowthConfig{
				Layers:       2,
				Resolution:   100,
				PatternScale: 0.05,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			FPSInterval: 1,
		},
	}
}

var ErrInvalid = errors.New("invalid config")

// Validate reports the first setting the demo cannot run with.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	if c.Render.Samples != 1 && c.Render.Samples != 4 {
		return fmt.Errorf("%w: samples must be 1 or 4, got %d", ErrInvalid, c.Render.Samples)
	}
	f := c.Forest
	if f.SideChunks <= 0 {
		return fmt.Errorf("%w: side_chunks %d", ErrInvalid, f.SideChunks)
	}
	if !(f.ChunkSize > 0) {
		return fmt.Errorf("%w: chunk_size %v", ErrInvalid, f.ChunkSize)
	}
	if f.Density < 0 {
		return fmt.Errorf("%w: density %d", ErrInvalid, f.Density)
	}
	for _, p := range f.Props {
		if p.Divisor <= 0 {
			return fmt.Errorf("%w: prop %s divisor %d", ErrInvalid, p.Name, p.Divisor)
		}
		switch p.Shape {
		case "tree", "bush", "rock", "mushroom":
		default:
			return fmt.Errorf("%w: prop %s has unknown shape %q", ErrInvalid, p.Name, p.Shape)
		}
	}
	if f.Grass.Multiplier < 0 {
		return fmt.Errorf("%w: grass multiplier %d", ErrInvalid, f.Grass.Multiplier)
	}
	if f.Growth.Layers <= 0 || f.Growth.Resolution <= 0 {
		return fmt.Errorf("%w: growth texture %d layers of %d", ErrInvalid, f.Growth.Layers, f.Growth.Resolution)
	}
	if f.Grass.GrowthLayer < 0 || int(f.Grass.GrowthLayer) >= f.Growth.Layers {
		return fmt.Errorf("%w: growth_layer %d not in [0, %d)", ErrInvalid, f.Grass.GrowthLayer, f.Growth.Layers)
	}
	return nil
}

// InstancesPerChunk is the base count every archetype divides.
func (f ForestConfig) InstancesPerChunk() int {
	return int(f.ChunkSize * f.ChunkSize * float32(f.Density))
}
