package foliage

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractChunkInstancingSkipsInvisible(t *testing.T) {
	app := NewApp().Build()
	cmd := app.Commands()

	ci, err := NewChunkInstancing(4, "bark", NewTransform(mgl32.Vec3{}).WithScale(2), 30)
	require.NoError(t, err)
	bundle := ChunkInstancingBundle{
		Transform:       NewTransform(mgl32.Vec3{3, 4, 0}),
		Mesh:            Mesh{AssetId: "box"},
		ChunkInstancing: ci,
	}
	visible := SpawnChunkInstancing(cmd, bundle)
	hiddenId := SpawnChunkInstancing(cmd, bundle)
	cmd.AddComponents(hiddenId, ComputedVisibility{Visible: false})
	app.FlushCommands()

	rcmd := app.RenderCommands()
	extractChunkInstancingSystem(cmd, rcmd)
	app.FlushCommands()

	assert.Equal(t, 1, rcmd.EntityCount())
	assert.True(t, rcmd.HasEntity(visible))
	assert.False(t, rcmd.HasEntity(hiddenId))

	instances, ok := GetComponent[GpuInstances](rcmd, visible)
	require.True(t, ok)
	assert.Equal(t, ci.Instances, instances.Instances)

	data, ok := GetComponent[ExtractedChunkData](rcmd, visible)
	require.True(t, ok)
	assert.Equal(t, ci.ModelTransform.Matrix(), data.Data.ModelTransform)

	texture, _ := GetComponent[TextureHandle](rcmd, visible)
	assert.Equal(t, AssetId("bark"), texture.AssetId)

	uniform, _ := GetComponent[MeshUniform](rcmd, visible)
	assert.Equal(t, mgl32.Translate3D(3, 4, 0), uniform.Model)
}

func TestExtractChunkGrassSkipsInvisible(t *testing.T) {
	app := NewApp().Build()
	cmd := app.Commands()

	bundle := ChunkGrassBundle{
		Transform:  NewTransform(mgl32.Vec3{}),
		Mesh:       Mesh{AssetId: "straw"},
		ChunkGrass: NewChunkGrass(DefaultGrassColors(), [2]float32{1, 2}, [2]float32{15, 15}, 1500, 1, 0.6, 1.6),
	}
	visible := SpawnChunkGrass(cmd, bundle)
	hiddenId := SpawnChunkGrass(cmd, bundle)
	cmd.AddComponents(hiddenId, ComputedVisibility{})
	app.FlushCommands()

	rcmd := app.RenderCommands()
	extractChunkGrassSystem(cmd, rcmd)
	app.FlushCommands()

	assert.Equal(t, 1, rcmd.EntityCount())
	grass, ok := GetComponent[ExtractedChunkGrass](rcmd, visible)
	require.True(t, ok)
	assert.Equal(t, uint32(1500), grass.NrInstances)
	assert.Equal(t, NewGpuChunkGrass(bundle.ChunkGrass), grass.Uniform)
	assert.False(t, rcmd.HasEntity(hiddenId))
}

func TestHiddenEntityNeverReachesRenderWorld(t *testing.T) {
	app := NewApp().UseModules(CameraModule{}, VisibilityModule{}, DistanceCullingModule{}).Build()
	app.UseSystem(System(extractChunkInstancingSystem).InStage(Extract))
	cmd := app.Commands()

	cmd.AddEntity(NewTransform(mgl32.Vec3{0, 0, 50}), DefaultCamera())
	ci, err := NewChunkInstancing(2, "", TransformComponent{}, 30)
	require.NoError(t, err)
	near := SpawnChunkInstancing(cmd, ChunkInstancingBundle{
		Transform:       NewTransform(mgl32.Vec3{}),
		ChunkInstancing: ci,
		DistanceCulling: DistanceCulling{Distance: 100},
	})
	far := SpawnChunkInstancing(cmd, ChunkInstancingBundle{
		Transform:       NewTransform(mgl32.Vec3{}),
		ChunkInstancing: ci,
		DistanceCulling: DistanceCulling{Distance: 10},
	})
	app.FlushCommands()

	for i := 0; i < 3; i++ {
		app.Update()
		rcmd := app.RenderCommands()
		assert.True(t, rcmd.HasEntity(near))
		assert.False(t, rcmd.HasEntity(far))
	}
}

func TestUpdateChunkGrassTime(t *testing.T) {
	app := NewApp().Build()
	cmd := app.Commands()
	eid := cmd.AddEntity(ChunkGrass{})
	app.FlushCommands()

	updateChunkGrassTimeSystem(cmd, &Time{Elapsed: 2500 * time.Millisecond})
	grass, _ := GetComponent[ChunkGrass](cmd, eid)
	assert.Equal(t, float32(2.5), grass.Time)
}
