package foliage

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPlacement(t *testing.T, ci ChunkInstancing, n int, chunkSize float32) {
	t.Helper()
	require.Len(t, ci.Instances, n)
	for _, inst := range ci.Instances {
		assert.GreaterOrEqual(t, inst.Position[0], float32(0))
		assert.Less(t, inst.Position[0], chunkSize)
		assert.GreaterOrEqual(t, inst.Position[1], float32(0))
		assert.Less(t, inst.Position[1], chunkSize)
		assert.Zero(t, inst.Position[2])
		assert.GreaterOrEqual(t, inst.Scale, float32(0.5))
		assert.Less(t, inst.Scale, float32(1))
	}
}

func TestNewChunkInstancing(t *testing.T) {
	model := NewTransform(mgl32.Vec3{}).WithScale(0.2)
	ci, err := NewChunkInstancing(100, "bark", model, 30)
	require.NoError(t, err)
	assertPlacement(t, ci, 100, 30)
	assert.Equal(t, AssetId("bark"), ci.BaseColorTexture)
	assert.Equal(t, model, ci.ModelTransform)
}

func TestNewChunkInstancingCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 7, 450} {
		for _, size := range []float32{0.001, 1, 30, 1e4} {
			ci, err := NewChunkInstancingRand(rng, n, "", TransformComponent{}, size)
			require.NoError(t, err)
			assertPlacement(t, ci, n, size)
		}
	}
}

func TestNewChunkInstancingSeeded(t *testing.T) {
	a, err := NewChunkInstancingRand(rand.New(rand.NewSource(42)), 20, "", TransformComponent{}, 30)
	require.NoError(t, err)
	b, err := NewChunkInstancingRand(rand.New(rand.NewSource(42)), 20, "", TransformComponent{}, 30)
	require.NoError(t, err)
	assert.Equal(t, a.Instances, b.Instances)
}

type fixedRand float32

func (f fixedRand) Float32() float32 { return float32(f) }

func TestNewChunkInstancingStaysBelowBound(t *testing.T) {
	// a source returning just under 1 rounds up to the bound in float32 math
	ci, err := NewChunkInstancingRand(fixedRand(0.99999994), 1, "", TransformComponent{}, 30)
	require.NoError(t, err)
	assertPlacement(t, ci, 1, 30)
}

func TestNewChunkInstancingErrors(t *testing.T) {
	_, err := NewChunkInstancing(-1, "", TransformComponent{}, 30)
	assert.Error(t, err)

	_, err = NewChunkInstancing(3, "", TransformComponent{}, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	ci, err := NewChunkInstancing(0, "", TransformComponent{}, 0)
	require.NoError(t, err)
	assert.Empty(t, ci.Instances)
}
