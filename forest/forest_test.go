package forest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/foliage"
	"github.com/gekko3d/foliage/config"
)

func smallForest() config.ForestConfig {
	cfg := config.Default().Forest
	cfg.SideChunks = 2
	cfg.ChunkSize = 10
	cfg.Growth.Resolution = 8
	return cfg
}

func runToInGame(t *testing.T, cfg config.ForestConfig) *foliage.App {
	t.Helper()
	app := foliage.NewApp().
		UseStates(AssetLoading, Exiting).
		UseModules(Module{Config: cfg, Seed: 7})
	app.Update()
	app.Update()
	return app
}

func TestSetupSpawnsEveryChunk(t *testing.T) {
	cfg := smallForest()
	app := runToInGame(t, cfg)
	cmd := app.Commands()

	scene, ok := foliage.Resource[Scene](app)
	require.True(t, ok)

	perChunk := 100
	assert.Equal(t, 4, scene.Totals.Chunks)
	assert.Equal(t, 4*(perChunk/5+perChunk/15+perChunk/6+perChunk/10), scene.Totals.Instances)
	assert.Equal(t, 4*perChunk*50, scene.Totals.GrassStraws)

	grass := 0
	foliage.MakeQuery3[foliage.ChunkGrass, foliage.TransformComponent, foliage.Chunk](cmd).Map(
		func(_ foliage.EntityId, g *foliage.ChunkGrass, tr *foliage.TransformComponent, c *foliage.Chunk) bool {
			grass++
			origin := foliage.ChunkOrigin(*c, cfg.ChunkSize, int32(cfg.SideChunks))
			assert.Equal(t, origin, tr.Position)
			assert.Equal(t, [2]float32{origin.X(), origin.Y()}, g.ChunkXY)
			assert.Equal(t, [2]float32{5, 5}, g.ChunkHalfExtents)
			assert.Equal(t, uint32(perChunk*50), g.NrInstances)
			assert.Equal(t, int32(1), g.GrowthTextureId)
			return true
		})
	assert.Equal(t, 4, grass)

	props := 0
	foliage.MakeQuery2[foliage.ChunkInstancing, foliage.DistanceCulling](cmd).Map(
		func(_ foliage.EntityId, ci *foliage.ChunkInstancing, _ *foliage.DistanceCulling) bool {
			props++
			for _, inst := range ci.Instances {
				assert.GreaterOrEqual(t, inst.Position[0], float32(0))
				assert.Less(t, inst.Position[0], cfg.ChunkSize)
			}
			return true
		})
	// four archetypes per chunk plus the ground
	assert.Equal(t, 4*4+1, props)
}

func TestSetupPublishesGrowthTextures(t *testing.T) {
	app := runToInGame(t, smallForest())

	growth, ok := foliage.Resource[foliage.GrowthTextures](app)
	require.True(t, ok)
	require.NotNil(t, growth.Handle)

	server, _ := foliage.Resource[foliage.AssetServer](app)
	texture, ok := server.Texture(*growth.Handle)
	require.True(t, ok)
	assert.Equal(t, uint32(2), texture.Layers)
	assert.Len(t, texture.Texels, 2*8*8)
}

func TestModuleSizesGrid(t *testing.T) {
	app := runToInGame(t, smallForest())

	grid, ok := foliage.Resource[foliage.GridConfig](app)
	require.True(t, ok)
	assert.Equal(t, [2]float32{10, 10}, grid.HalfExtents())
	assert.Equal(t, [2]float32{0, 0}, grid.Center())
}

func TestSetupSpawnsOneCamera(t *testing.T) {
	app := runToInGame(t, smallForest())

	cameras := 0
	foliage.MakeQuery2[foliage.CameraComponent, foliage.OrbitCamera](app.Commands()).Map(
		func(_ foliage.EntityId, _ *foliage.CameraComponent, orbit *foliage.OrbitCamera) bool {
			cameras++
			assert.Equal(t, float32(100), orbit.MaxDistance)
			return true
		})
	assert.Equal(t, 1, cameras)
}

func TestMissingTextureFallsBackToSolid(t *testing.T) {
	cfg := smallForest()
	cfg.Props = cfg.Props[:1]
	cfg.Props[0].Texture = "does/not/exist.png"
	app := runToInGame(t, cfg)

	scene, _ := foliage.Resource[Scene](app)
	server, _ := foliage.Resource[foliage.AssetServer](app)
	require.Len(t, scene.propTextures, 1)
	texture, ok := server.Texture(scene.propTextures[0])
	require.True(t, ok)
	assert.Equal(t, uint32(1), texture.Width)
}

func TestPropMesh(t *testing.T) {
	for _, shape := range []string{"tree", "bush", "rock", "mushroom"} {
		mesh := PropMesh(shape)
		assert.True(t, mesh.Indexed(), shape)
		assert.NotZero(t, mesh.VertexCount(), shape)
	}
}

func TestFrameRate(t *testing.T) {
	fps := FrameRate{Interval: time.Second}
	for i := 0; i < 9; i++ {
		assert.False(t, fps.Tick(100*time.Millisecond))
	}
	assert.True(t, fps.Tick(100*time.Millisecond))
	assert.InDelta(t, 10.0, fps.Last, 1e-9)

	disabled := FrameRate{}
	assert.False(t, disabled.Tick(time.Hour))
}
