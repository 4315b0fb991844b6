package foliage

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gekko3d/foliage/gpu"
	"github.com/gekko3d/foliage/gpu/gputest"
	"github.com/gekko3d/foliage/shaders"
)

type renderHarness struct {
	app    *App
	device *gputest.Device
	server *AssetServer
}

func newRenderHarness(t *testing.T) *renderHarness {
	t.Helper()
	device := gputest.NewDevice()
	app := NewApp().UseModules(
		RenderDeviceModule{Device: device},
		TimeModule{},
		InstancingModule{},
		GrassModule{},
	).Build()
	server, ok := Resource[AssetServer](app)
	require.True(t, ok)
	return &renderHarness{app: app, device: device, server: server}
}

func (h *renderHarness) camera(position mgl32.Vec3) EntityId {
	return h.app.Commands().AddEntity(NewTransform(position), DefaultCamera())
}

func (h *renderHarness) props(t *testing.T, position mgl32.Vec3, n int) (EntityId, ChunkInstancing) {
	t.Helper()
	ci, err := NewChunkInstancing(n, h.server.CreateSolidTexture(1, 2, 3, 255), NewTransform(mgl32.Vec3{}).WithScale(0.5), 30)
	require.NoError(t, err)
	eid := SpawnChunkInstancing(h.app.Commands(), ChunkInstancingBundle{
		Transform:       NewTransform(position),
		Mesh:            h.server.AddMesh(BoxMesh(mgl32.Vec3{1, 1, 1})),
		Aabb:            Aabb{HalfExtents: mgl32.Vec3{30, 30, 0}},
		ChunkInstancing: ci,
		DistanceCulling: DefaultDistanceCulling(),
	})
	return eid, ci
}

func (h *renderHarness) grass(position mgl32.Vec3, mesh MeshAsset, n uint32) EntityId {
	return SpawnChunkGrass(h.app.Commands(), ChunkGrassBundle{
		Transform: NewTransform(position),
		Mesh:      h.server.AddMesh(mesh),
		Aabb:      Aabb{HalfExtents: mgl32.Vec3{30, 30, 0}},
		ChunkGrass: NewChunkGrass(DefaultGrassColors(), [2]float32{position.X(), position.Y()},
			[2]float32{15, 15}, n, 1, 0.6, 1.6),
		DistanceCulling: DistanceCulling{Distance: 300},
	})
}

func (h *renderHarness) growth() {
	growth, _ := Resource[GrowthTextures](h.app)
	id := BuildGrowthTextures(h.server, 2, 8, GrowthPatternScale)
	growth.Handle = &id
}

func (h *renderHarness) frame(t *testing.T) *gputest.Frame {
	t.Helper()
	h.app.FlushCommands()
	h.app.Update()
	frame := h.device.LastFrame()
	require.NotNil(t, frame)
	assert.True(t, frame.Ended)
	assert.True(t, frame.Presented)
	return frame
}

func TestRenderDrawsInstancedChunk(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	eid, ci := h.props(t, mgl32.Vec3{}, 7)

	frame := h.frame(t)

	draws := frame.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "DrawIndexed", draws[0].Op)
	assert.Equal(t, uint32(36), draws[0].Count)
	assert.Equal(t, uint32(7), draws[0].InstanceCount)

	groups := frame.CommandsOf("SetBindGroup")
	require.Len(t, groups, 4)
	for i, c := range groups {
		assert.Equal(t, uint32(i), c.Index)
	}
	vertex := frame.CommandsOf("SetVertexBuffer")
	require.Len(t, vertex, 2)
	assert.Equal(t, uint32(1), vertex[1].Index)

	instances := h.device.BuffersLabeled(fmt.Sprintf("chunk_instancing_%d_instance_buffer", eid))
	require.Len(t, instances, 1)
	assert.Equal(t, MarshalInstances(ci.Instances), instances[0].Contents)
	assert.Same(t, instances[0], vertex[1].Buffer.(*gputest.Buffer))

	chunk := h.device.BuffersLabeled(fmt.Sprintf("chunk_instancing_%d_uniform_buffer", eid))
	require.Len(t, chunk, 1)
	data := GpuChunkBindGroupData{ModelTransform: ci.ModelTransform.Matrix()}
	assert.Equal(t, data.Marshal(), chunk[0].Contents)
}

func TestRenderSkipsChunkWithEmptyInstances(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.props(t, mgl32.Vec3{}, 0)

	assert.Empty(t, h.frame(t).Draws())
}

func TestRenderWithoutCameraDrawsNothing(t *testing.T) {
	h := newRenderHarness(t)
	h.props(t, mgl32.Vec3{}, 3)

	frame := h.frame(t)
	assert.Empty(t, frame.Draws())
	assert.Empty(t, frame.CommandsOf("SetBindGroup"))
}

func TestRenderWithTwoCamerasDrawsNothing(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.camera(mgl32.Vec3{0, 0, 60})
	h.props(t, mgl32.Vec3{}, 3)

	assert.Empty(t, h.frame(t).Draws())
}

func TestRenderSortsBackToFront(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.props(t, mgl32.Vec3{}, 5)
	h.props(t, mgl32.Vec3{40, 0, 0}, 3)

	draws := h.frame(t).Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, uint32(3), draws[0].InstanceCount)
	assert.Equal(t, uint32(5), draws[1].InstanceCount)
}

func TestRenderCachesSpecializedPipelines(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.props(t, mgl32.Vec3{}, 5)
	h.props(t, mgl32.Vec3{10, 0, 0}, 3)

	frame := h.frame(t)
	h.frame(t)

	require.Len(t, h.device.Pipelines, 1)
	desc := h.device.Pipelines[0].Desc
	assert.Equal(t, "chunk_instancing_pipeline", desc.Label)
	assert.Equal(t, shaders.ChunkInstancingWGSL, desc.ShaderSource)
	assert.Equal(t, uint32(4), desc.SampleCount)
	assert.Len(t, desc.BindGroupLayouts, 4)
	require.Len(t, desc.VertexBuffers, 2)
	assert.Equal(t, gpu.VertexStepModeInstance, desc.VertexBuffers[1].StepMode)
	assert.Len(t, frame.CommandsOf("SetPipeline"), 1)
}

func TestRenderRecreatesInstanceBuffersEachFrame(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	eid, _ := h.props(t, mgl32.Vec3{}, 5)

	h.frame(t)
	h.frame(t)
	assert.Len(t, h.device.BuffersLabeled(fmt.Sprintf("chunk_instancing_%d_instance_buffer", eid)), 2)
	assert.Len(t, h.device.BuffersLabeled(fmt.Sprintf("mesh_vertex_buffer_%s", firstMeshId(h.server))), 1, "meshes upload once")
}

func firstMeshId(server *AssetServer) AssetId {
	for id := range server.meshes {
		return id
	}
	return ""
}

func TestRenderDistanceCulledChunkIsNotDrawn(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	eid, _ := h.props(t, mgl32.Vec3{}, 5)
	h.app.FlushCommands()

	culling, ok := GetComponent[DistanceCulling](h.app.Commands(), eid)
	require.True(t, ok)
	culling.Distance = 40

	assert.Empty(t, h.frame(t).Draws())
	assert.Empty(t, h.device.BuffersLabeled(fmt.Sprintf("chunk_instancing_%d_instance_buffer", eid)))
}

func TestRenderDrawsGrass(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.growth()
	eid := h.grass(mgl32.Vec3{}, GrassStrawMesh(), 500)

	frame := h.frame(t)

	draws := frame.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "DrawIndexed", draws[0].Op)
	assert.Equal(t, uint32(9), draws[0].Count)
	assert.Equal(t, uint32(500), draws[0].InstanceCount)

	groups := frame.CommandsOf("SetBindGroup")
	require.Len(t, groups, 5)
	assert.Equal(t, uint32(4), groups[4].Index)

	buffers := h.device.BuffersLabeled(fmt.Sprintf("chunk_grass_%d_uniform_buffer", eid))
	require.Len(t, buffers, 1)
	uniform, err := UnmarshalGpuChunkGrass(buffers[0].Contents)
	require.NoError(t, err)
	assert.Equal(t, [4]int32{1}, uniform.GrowthTextureId)
	assert.Equal(t, [4]float32{1.6}, uniform.Scale)

	require.Len(t, h.device.Pipelines, 1)
	desc := h.device.Pipelines[0].Desc
	assert.Equal(t, shaders.GrassWGSL, desc.ShaderSource)
	assert.Len(t, desc.BindGroupLayouts, 5)
	assert.Equal(t, gpu.CullModeNone, desc.CullMode)

	grid := h.device.BuffersLabeled("grid_config_uniform_buffer")
	require.Len(t, grid, 1)
	assert.Len(t, grid[0].Contents, 16)
}

func TestRenderGridUniformOnlyOnChange(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.growth()
	h.grass(mgl32.Vec3{}, GrassStrawMesh(), 10)

	h.frame(t)
	h.frame(t)
	assert.Len(t, h.device.BuffersLabeled("grid_config_uniform_buffer"), 1)

	grid, _ := Resource[GridConfig](h.app)
	require.NoError(t, grid.Set([2]float32{0, 0}, [2]float32{50, 50}))
	h.frame(t)

	buffers := h.device.BuffersLabeled("grid_config_uniform_buffer")
	require.Len(t, buffers, 2)
	want := GpuGridConfig{HalfExtents: [2]float32{50, 50}}
	assert.Equal(t, want.Marshal(), buffers[1].Contents)
	assert.True(t, buffers[0].Released)
	assert.False(t, buffers[1].Released)

	groups := h.device.BindGroupsLabeled("grid_config_bind_group")
	require.Len(t, groups, 2)
	assert.True(t, groups[0].Released)
	assert.False(t, groups[1].Released)
}

func TestRenderGrassWaitsForGrowthTextures(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.grass(mgl32.Vec3{}, GrassStrawMesh(), 10)

	assert.Empty(t, h.frame(t).Draws())

	h.growth()
	assert.Len(t, h.frame(t).Draws(), 1)
}

func TestRenderNonIndexedGrassMeshFails(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.growth()
	mesh := GrassStrawMesh()
	mesh.Indices = nil
	h.grass(mgl32.Vec3{}, mesh, 10)
	h.app.FlushCommands()

	assert.Panics(t, h.app.Update)
}

func TestRenderSkipsFrameWhenSurfaceIsUnavailable(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.props(t, mgl32.Vec3{}, 3)
	h.device.FailOn(gputest.OpBeginFrame)
	h.app.FlushCommands()

	assert.NotPanics(t, h.app.Update)
	assert.Nil(t, h.device.LastFrame())

	phase, _ := Resource[Transparent3d](h.app)
	assert.Empty(t, phase.Items)
}

func TestRenderUploadsTextureArrays(t *testing.T) {
	h := newRenderHarness(t)
	h.growth()
	h.frame(t)

	require.Len(t, h.device.Textures, 1)
	desc := h.device.Textures[0].Desc
	assert.Equal(t, uint32(2), desc.Layers)
	assert.Equal(t, gpu.TextureViewDimension2DArray, desc.ViewDimension)
	assert.Equal(t, gpu.TextureFormatR8Unorm, desc.Format)
	assert.Len(t, desc.Data, 2*8*8)
}

// persistent reports whether a buffer outlives the frame that created it.
func persistent(b *gputest.Buffer) bool {
	return strings.HasPrefix(b.Label, "mesh_vertex_buffer_") ||
		strings.HasPrefix(b.Label, "mesh_index_buffer_") ||
		b.Label == "grid_config_uniform_buffer"
}

func TestRenderReleasesPreviousFrameResources(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.props(t, mgl32.Vec3{}, 7)

	h.frame(t)
	firstBuffers := slices.Clone(h.device.Buffers)
	firstGroups := slices.Clone(h.device.BindGroups)
	require.Len(t, firstBuffers, 7)
	require.Len(t, firstGroups, 5)

	h.frame(t)
	for _, b := range firstBuffers {
		assert.Equal(t, !persistent(b), b.Released, b.Label)
	}
	for _, g := range firstGroups {
		assert.Equal(t, g.Desc.Label != "grid_config_bind_group", g.Released, g.Desc.Label)
	}

	for i := 0; i < 8; i++ {
		h.frame(t)
	}
	assert.Len(t, h.device.LiveBuffers(), 7)
	assert.Len(t, h.device.LiveBindGroups(), 5)

	frame, _ := Resource[FrameResources](h.app)
	assert.Equal(t, 8, frame.Len())
}

func TestRenderReleasesGrassResources(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.growth()
	eid := h.grass(mgl32.Vec3{}, GrassStrawMesh(), 10)

	h.frame(t)
	h.growth()
	h.frame(t)

	chunk := h.device.BuffersLabeled(fmt.Sprintf("chunk_grass_%d_uniform_buffer", eid))
	require.Len(t, chunk, 2)
	assert.True(t, chunk[0].Released)
	assert.False(t, chunk[1].Released)

	growth := h.device.BindGroupsLabeled("growth_textures_bind_group")
	require.Len(t, growth, 2)
	assert.True(t, growth[0].Released)
	assert.False(t, growth[1].Released)

	textures, _ := Resource[GrowthTextures](h.app)
	textures.Handle = nil
	h.frame(t)
	assert.True(t, growth[1].Released)
}

func TestFrameResources(t *testing.T) {
	var frame FrameResources
	buffer, group := &gputest.Buffer{}, &gputest.BindGroup{}
	var missing gpu.Buffer

	frame.Track(buffer, missing, group)
	assert.Equal(t, 2, frame.Len())

	frame.Release()
	assert.True(t, buffer.Released)
	assert.True(t, group.Released)
	assert.Zero(t, frame.Len())
}

func TestUniformBindGroupReleasesBufferOnFailure(t *testing.T) {
	device := gputest.NewDevice()
	layout, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{Label: "l"})
	require.NoError(t, err)
	device.FailOn(gputest.OpCreateBindGroup)

	_, _, err = uniformBindGroup(device, "x", layout, []byte{1, 2, 3, 4})
	require.ErrorIs(t, err, gputest.ErrInjected)
	require.Len(t, device.Buffers, 1)
	assert.True(t, device.Buffers[0].Released)
}

func TestRenderSkipsPropsWithUnresolvedTexture(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	eid, _ := h.props(t, mgl32.Vec3{}, 4)
	h.app.FlushCommands()

	ci, ok := GetComponent[ChunkInstancing](h.app.Commands(), eid)
	require.True(t, ok)
	texture := ci.BaseColorTexture
	ci.BaseColorTexture = AssetId("not-registered")

	var frame *gputest.Frame
	require.NotPanics(t, func() { frame = h.frame(t) })
	assert.Empty(t, frame.Draws())
	assert.Empty(t, h.device.BindGroupsLabeled(fmt.Sprintf("chunk_instancing_%d_texture_bind_group", eid)))

	ci, _ = GetComponent[ChunkInstancing](h.app.Commands(), eid)
	ci.BaseColorTexture = texture
	assert.Len(t, h.frame(t).Draws(), 1)
}

func TestRenderSkipsUnresolvedMeshes(t *testing.T) {
	h := newRenderHarness(t)
	h.camera(mgl32.Vec3{0, 0, 50})
	h.growth()
	props, _ := h.props(t, mgl32.Vec3{}, 4)
	grass := h.grass(mgl32.Vec3{10, 0, 0}, GrassStrawMesh(), 10)
	h.app.FlushCommands()

	cmd := h.app.Commands()
	propMesh, ok := GetComponent[Mesh](cmd, props)
	require.True(t, ok)
	grassMesh, ok := GetComponent[Mesh](cmd, grass)
	require.True(t, ok)
	propId, grassId := propMesh.AssetId, grassMesh.AssetId
	propMesh.AssetId = AssetId("missing-prop")
	grassMesh.AssetId = AssetId("missing-grass")

	var frame *gputest.Frame
	require.NotPanics(t, func() { frame = h.frame(t) })
	assert.Empty(t, frame.Draws())

	propMesh, _ = GetComponent[Mesh](cmd, props)
	propMesh.AssetId = propId
	grassMesh, _ = GetComponent[Mesh](cmd, grass)
	grassMesh.AssetId = grassId
	assert.Len(t, h.frame(t).Draws(), 2)
}

func TestRenderWarnsOnceWhileSurfaceIsUnavailable(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLoggerWithCore("", "debug", core)
	device := gputest.NewDevice()
	app := NewApp().UseModules(
		moduleFunc(func(app *App, cmd *Commands) { cmd.AddResources(logger) }),
		RenderDeviceModule{Device: device},
		TimeModule{},
		InstancingModule{},
	).Build()

	device.FailOn(gputest.OpBeginFrame)
	for i := 0; i < 5; i++ {
		app.Update()
	}
	skipped := logs.FilterMessageSnippet("skipping frame")
	assert.Equal(t, 1, skipped.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 4, skipped.FilterLevelExact(zapcore.DebugLevel).Len())

	device.Recover(gputest.OpBeginFrame)
	app.Update()
	require.NotNil(t, device.LastFrame())
	assert.Equal(t, 1, logs.FilterMessage("surface available again after 5 skipped frames").Len())

	device.FailOn(gputest.OpBeginFrame)
	app.Update()
	assert.Equal(t, 2, logs.FilterMessageSnippet("skipping frame").FilterLevelExact(zapcore.WarnLevel).Len())
}
