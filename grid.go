package foliage

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrNegativeHalfExtents = errors.New("grid half extents must be non-negative")

// GroundTextureDensity is how many world units one repeat of the ground
// texture covers, per half extent.
const GroundTextureDensity = 4.0

// Chunk is a tile of the world grid.
type Chunk struct {
	X, Y int32
}

// ChunkOrigin returns the min corner of chunk c when side x side chunks of
// size units are centered on the origin.
func ChunkOrigin(c Chunk, size float32, side int32) mgl32.Vec3 {
	offset := size * float32(side) / 2
	return mgl32.Vec3{float32(c.X)*size - offset, float32(c.Y)*size - offset, 0}
}

// GridConfig describes the whole terrain. Writers go through Set so readers
// can tell when it moved.
type GridConfig struct {
	center      [2]float32
	halfExtents [2]float32
	version     uint64
}

func NewGridConfig(center, halfExtents [2]float32) (*GridConfig, error) {
	g := &GridConfig{}
	if err := g.Set(center, halfExtents); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GridConfig) Set(center, halfExtents [2]float32) error {
	if halfExtents[0] < 0 || halfExtents[1] < 0 {
		return fmt.Errorf("%w: got %v", ErrNegativeHalfExtents, halfExtents)
	}
	g.center = center
	g.halfExtents = halfExtents
	g.version++
	return nil
}

func (g *GridConfig) Center() [2]float32      { return g.center }
func (g *GridConfig) HalfExtents() [2]float32 { return g.halfExtents }
func (g *GridConfig) Version() uint64         { return g.version }

func (g *GridConfig) Size() [2]float32 {
	return [2]float32{2 * g.halfExtents[0], 2 * g.halfExtents[1]}
}

// GroundUVScale is the uv multiplier of a ground mesh covering the grid.
func (g *GridConfig) GroundUVScale() [2]float32 {
	return [2]float32{g.halfExtents[0] / GroundTextureDensity, g.halfExtents[1] / GroundTextureDensity}
}

// GroundMesh covers the whole grid, centered on the origin.
func (g *GridConfig) GroundMesh() MeshAsset {
	return GroundMesh(g.Size(), g.GroundUVScale())
}

// ExtractedGridConfig is the render side copy. Changed is set on frames
// where the main world config moved since the previous extraction.
type ExtractedGridConfig struct {
	Center      [2]float32
	HalfExtents [2]float32
	Changed     bool

	seen    uint64
	present bool
}

func (e *ExtractedGridConfig) Gpu() GpuGridConfig {
	return GpuGridConfig{Center: e.Center, HalfExtents: e.HalfExtents}
}

func extractGridConfigSystem(grid *GridConfig, extracted *ExtractedGridConfig) {
	if extracted.present && extracted.seen == grid.version {
		extracted.Changed = false
		return
	}
	extracted.Center = grid.center
	extracted.HalfExtents = grid.halfExtents
	extracted.Changed = true
	extracted.seen = grid.version
	extracted.present = true
}
