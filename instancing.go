package foliage

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ChunkInstancing scatters copies of one mesh over a chunk. Every instance
// shares BaseColorTexture and the ModelTransform applied before placement.
type ChunkInstancing struct {
	Instances        []GpuInstance
	BaseColorTexture AssetId
	ModelTransform   TransformComponent
}

// RandomSource is the part of *rand.Rand placement needs.
type RandomSource interface {
	Float32() float32
}

type globalRand struct{}

func (globalRand) Float32() float32 { return rand.Float32() }

// NewChunkInstancing places n instances with the process wide random source,
// so placements differ between runs.
func NewChunkInstancing(n int, texture AssetId, modelTransform TransformComponent, chunkSize float32) (ChunkInstancing, error) {
	return NewChunkInstancingRand(globalRand{}, n, texture, modelTransform, chunkSize)
}

// NewChunkInstancingRand places n instances at x, y in [0, chunkSize) with
// scale in [0.5, 1). z is always 0. Pass a seeded *rand.Rand to reproduce
// a placement.
func NewChunkInstancingRand(rng RandomSource, n int, texture AssetId, modelTransform TransformComponent, chunkSize float32) (ChunkInstancing, error) {
	if n < 0 {
		return ChunkInstancing{}, fmt.Errorf("negative instance count %d", n)
	}
	if n > 0 && !(chunkSize > 0) {
		return ChunkInstancing{}, fmt.Errorf("%w: got %v", ErrInvalidChunkSize, chunkSize)
	}

	instances := make([]GpuInstance, n)
	for i := range instances {
		x := below(rng.Float32()*chunkSize, chunkSize)
		y := below(rng.Float32()*chunkSize, chunkSize)
		scale := below(rng.Float32()*0.5+0.5, 1)
		instances[i] = GpuInstance{Position: [3]float32{x, y, 0}, Scale: scale}
	}

	return ChunkInstancing{
		Instances:        instances,
		BaseColorTexture: texture,
		ModelTransform:   modelTransform,
	}, nil
}

// below keeps float32 rounding from landing exactly on the open bound.
func below(v, bound float32) float32 {
	if v >= bound {
		return math.Nextafter32(bound, 0)
	}
	return v
}
