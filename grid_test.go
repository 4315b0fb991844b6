package foliage

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridConfigSize(t *testing.T) {
	grid, err := NewGridConfig([2]float32{0, 0}, [2]float32{300, 300})
	require.NoError(t, err)
	assert.Equal(t, [2]float32{600, 600}, grid.Size())
	assert.Equal(t, [2]float32{75, 75}, grid.GroundUVScale())
}

func TestGridConfigRejectsNegativeExtents(t *testing.T) {
	_, err := NewGridConfig([2]float32{0, 0}, [2]float32{-1, 3})
	assert.ErrorIs(t, err, ErrNegativeHalfExtents)

	grid, err := NewGridConfig([2]float32{1, 2}, [2]float32{0, 0})
	require.NoError(t, err)
	v := grid.Version()
	assert.Error(t, grid.Set([2]float32{}, [2]float32{1, -1}))
	assert.Equal(t, v, grid.Version())
	assert.Equal(t, [2]float32{1, 2}, grid.Center())
}

func TestGridGroundMesh(t *testing.T) {
	grid, err := NewGridConfig([2]float32{0, 0}, [2]float32{10, 20})
	require.NoError(t, err)
	mesh := grid.GroundMesh()
	assert.Equal(t, [3]float32{-10, -20, 0}, mesh.Positions[0])
	assert.Equal(t, [3]float32{10, 20, 0}, mesh.Positions[2])
}

func TestChunkOrigin(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{-300, -300, 0}, ChunkOrigin(Chunk{0, 0}, 30, 20))
	assert.Equal(t, mgl32.Vec3{270, -270, 0}, ChunkOrigin(Chunk{19, 1}, 30, 20))
}

func TestExtractGridConfigTracksChanges(t *testing.T) {
	grid, err := NewGridConfig([2]float32{0, 0}, [2]float32{5, 5})
	require.NoError(t, err)
	extracted := &ExtractedGridConfig{}

	extractGridConfigSystem(grid, extracted)
	assert.True(t, extracted.Changed)
	assert.Equal(t, [2]float32{5, 5}, extracted.HalfExtents)

	extractGridConfigSystem(grid, extracted)
	assert.False(t, extracted.Changed)

	require.NoError(t, grid.Set([2]float32{1, 1}, [2]float32{2, 2}))
	extractGridConfigSystem(grid, extracted)
	assert.True(t, extracted.Changed)
	assert.Equal(t, GpuGridConfig{Center: [2]float32{1, 1}, HalfExtents: [2]float32{2, 2}}, extracted.Gpu())
}
