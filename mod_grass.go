package foliage

import (
	"errors"
	"fmt"

	"github.com/gekko3d/foliage/gpu"
	"github.com/gekko3d/foliage/shaders"
)

var ErrNonIndexedGrassMesh = errors.New("grass mesh must be indexed")

const drawGrassName = "draw_grass"

// ChunkGrass is the grass of one chunk. Blade positions are derived in the
// shader from the instance index and ChunkXY, so nothing per blade is stored.
// Only Time changes after spawn.
type ChunkGrass struct {
	Time float32

	HealthyTip      Color
	HealthyMiddle   Color
	HealthyBase     Color
	UnhealthyTip    Color
	UnhealthyMiddle Color
	UnhealthyBase   Color

	ChunkXY          [2]float32
	ChunkHalfExtents [2]float32
	NrInstances      uint32
	GrowthTextureId  int32
	HeightModifier   float32
	Scale            float32
}

// GrassColors is a set of the six blade colors.
type GrassColors struct {
	HealthyTip, HealthyMiddle, HealthyBase       Color
	UnhealthyTip, UnhealthyMiddle, UnhealthyBase Color
}

func DefaultGrassColors() GrassColors {
	return GrassColors{
		HealthyTip:      ColorSRGB(0.66, 0.99, 0.34),
		HealthyMiddle:   ColorSRGB(0.40, 0.60, 0.3),
		HealthyBase:     ColorSRGB(0.22, 0.40, 0.255),
		UnhealthyTip:    ColorSRGB(0.9, 0.95, 0.14),
		UnhealthyMiddle: ColorSRGB(0.52, 0.57, 0.25),
		UnhealthyBase:   ColorSRGB(0.22, 0.40, 0.255),
	}
}

func NewChunkGrass(colors GrassColors, chunkXY, halfExtents [2]float32, nrInstances uint32, growthLayer int32, height, scale float32) ChunkGrass {
	return ChunkGrass{
		HealthyTip:       colors.HealthyTip,
		HealthyMiddle:    colors.HealthyMiddle,
		HealthyBase:      colors.HealthyBase,
		UnhealthyTip:     colors.UnhealthyTip,
		UnhealthyMiddle:  colors.UnhealthyMiddle,
		UnhealthyBase:    colors.UnhealthyBase,
		ChunkXY:          chunkXY,
		ChunkHalfExtents: halfExtents,
		NrInstances:      nrInstances,
		GrowthTextureId:  growthLayer,
		HeightModifier:   height,
		Scale:            scale,
	}
}

type ChunkGrassBundle struct {
	Transform       TransformComponent
	Mesh            Mesh
	Aabb            Aabb
	ChunkGrass      ChunkGrass
	DistanceCulling DistanceCulling
	Chunk           Chunk
}

func SpawnChunkGrass(cmd *Commands, b ChunkGrassBundle) EntityId {
	return cmd.AddEntity(
		b.Transform,
		b.Mesh,
		b.Aabb,
		b.ChunkGrass,
		b.DistanceCulling,
		b.Chunk,
		Visibility{},
		ComputedVisibility{Visible: true},
	)
}

// Render world components.

type ExtractedChunkGrass struct {
	Uniform     GpuChunkGrass
	NrInstances uint32
}

type ChunkGrassBindGroup struct {
	Group gpu.BindGroup
}

// GrowthTexturesBindGroup is nil until the growth texture has been uploaded.
// It outlives frames and is released when the handle changes.
type GrowthTexturesBindGroup struct {
	Group  gpu.BindGroup
	handle AssetId
}

func (g *GrowthTexturesBindGroup) set(group gpu.BindGroup, handle AssetId) {
	if g.Group != nil {
		g.Group.Release()
	}
	g.Group, g.handle = group, handle
}

// GridConfigBindGroup outlives frames and is rebuilt when the grid changes.
type GridConfigBindGroup struct {
	Group  gpu.BindGroup
	buffer gpu.Buffer
}

func (g *GridConfigBindGroup) set(buffer gpu.Buffer, group gpu.BindGroup) {
	if g.Group != nil {
		g.Group.Release()
	}
	if g.buffer != nil {
		g.buffer.Release()
	}
	g.buffer, g.Group = buffer, group
}

// GrassPipeline specializes the mesh pipeline with the grass shader and
// bind groups 2 (chunk), 3 (growth textures) and 4 (grid config).
type GrassPipeline struct {
	Mesh         *MeshPipeline
	ChunkLayout  gpu.BindGroupLayout
	GrowthLayout gpu.BindGroupLayout
	GridLayout   gpu.BindGroupLayout
	DrawFunction DrawFunctionId

	Pipelines SpecializedPipelines[MeshPipelineKey]
}

func NewGrassPipeline(device gpu.Device, mesh *MeshPipeline) (*GrassPipeline, error) {
	chunk, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "chunk_grass_layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment, Type: gpu.BindingUniformBuffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create chunk grass layout: %w", err)
	}
	growth, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "growth_textures_layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment, Type: gpu.BindingTexture, ViewDimension: gpu.TextureViewDimension2DArray},
			{Binding: 1, Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment, Type: gpu.BindingSampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create growth textures layout: %w", err)
	}
	grid, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "grid_config_layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment, Type: gpu.BindingUniformBuffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create grid config layout: %w", err)
	}
	return &GrassPipeline{Mesh: mesh, ChunkLayout: chunk, GrowthLayout: growth, GridLayout: grid}, nil
}

func (p *GrassPipeline) Specialize(key MeshPipelineKey, layout MeshVertexLayout) (gpu.RenderPipelineDescriptor, error) {
	if err := checkTrianglePipelineKey(key); err != nil {
		return gpu.RenderPipelineDescriptor{}, err
	}
	desc := p.Mesh.Specialize(key, layout)
	desc.Label = "grass_pipeline"
	desc.ShaderSource = shaders.GrassWGSL
	desc.CullMode = gpu.CullModeNone
	desc.BindGroupLayouts = append(desc.BindGroupLayouts, p.ChunkLayout, p.GrowthLayout, p.GridLayout)
	return desc, nil
}

func checkTrianglePipelineKey(key MeshPipelineKey) error {
	switch key.Topology {
	case gpu.PrimitiveTopologyTriangleList, gpu.PrimitiveTopologyTriangleStrip:
	default:
		return fmt.Errorf("%w: topology %s", ErrUnsupportedPipelineKey, key.Topology)
	}
	switch key.Samples {
	case 1, 4:
	default:
		return fmt.Errorf("%w: %d samples", ErrUnsupportedPipelineKey, key.Samples)
	}
	return nil
}

// GrassModule draws ChunkGrass entities. The GrowthTextures and GridConfig
// resources are created empty when the app has none.
type GrassModule struct{}

func (GrassModule) Install(app *App, cmd *Commands) {
	app.RequireModule(TimeModule{}, cmd)
	app.RequireModule(RenderModule{}, cmd)
	app.RequireModule(DistanceCullingModule{}, cmd)

	if _, ok := Resource[GrowthTextures](app); !ok {
		cmd.AddResources(&GrowthTextures{})
	}
	if _, ok := Resource[GridConfig](app); !ok {
		cmd.AddResources(&GridConfig{})
	}
	cmd.AddResources(
		&ExtractedGridConfig{},
		&ExtractedGrowthTextures{},
		&GridConfigBindGroup{},
		&GrowthTexturesBindGroup{},
	)

	cmd.UseSystem(System(updateChunkGrassTimeSystem).InStage(Update).RunAlways())
	cmd.UseSystem(System(extractChunkGrassSystem).InStage(Extract).RunAlways())
	cmd.UseSystem(System(extractGridConfigSystem).InStage(Extract).RunAlways())
	cmd.UseSystem(System(extractGrowthTexturesSystem).InStage(Extract).RunAlways())
	cmd.UseSystem(System(prepareGrassBindGroupsSystem).InStage(Prepare).RunAlways())
	cmd.UseSystem(System(queueChunkGrassSystem).InStage(Queue).RunAlways())
}

func (GrassModule) Finish(app *App, cmd *Commands) {
	device, _ := Resource[RenderDevice](app)
	mesh, ok := Resource[MeshPipeline](app)
	if !ok {
		panic("GrassModule needs the MeshPipeline from RenderModule")
	}
	pipeline, err := NewGrassPipeline(device.Device, mesh)
	if err != nil {
		panic(err)
	}
	draws, _ := Resource[DrawFunctions](app)
	pipeline.DrawFunction = draws.Add(drawGrassName, DrawCommands{
		SetItemPipeline{},
		SetMeshViewBindGroup{Index: 0},
		SetMeshBindGroup{Index: 1},
		SetChunkGrassBindGroup{Index: 2},
		SetGrowthTexturesBindGroup{Index: 3},
		SetGridConfigBindGroup{Index: 4},
		DrawGrassMesh{},
	})
	cmd.AddResources(pipeline)
}

func updateChunkGrassTimeSystem(cmd *Commands, t *Time) {
	elapsed := t.ElapsedSeconds()
	MakeQuery1[ChunkGrass](cmd).Map(func(eid EntityId, grass *ChunkGrass) bool {
		grass.Time = elapsed
		return true
	})
}

// extractChunkGrassSystem copies visible grass chunks into the render world
// under their main world ids.
func extractChunkGrassSystem(cmd *Commands, rcmd *RenderCommands) {
	var batch []EntityBatch
	MakeQuery4[ChunkGrass, ComputedVisibility, TransformComponent, Mesh](cmd).Map(
		func(eid EntityId, grass *ChunkGrass, vis *ComputedVisibility, transform *TransformComponent, mesh *Mesh) bool {
			if !vis.Visible {
				return true
			}
			batch = append(batch, EntityBatch{
				Entity: eid,
				Components: []any{
					ExtractedChunkGrass{Uniform: NewGpuChunkGrass(*grass), NrInstances: grass.NrInstances},
					MeshUniform{Model: transform.Matrix()},
					*mesh,
				},
			})
			return true
		})
	rcmd.InsertOrSpawnBatch(batch)
}

func prepareGrassBindGroupsSystem(
	rcmd *RenderCommands,
	device *RenderDevice,
	assets *RenderAssets,
	pipeline *GrassPipeline,
	grid *ExtractedGridConfig,
	gridGroup *GridConfigBindGroup,
	growth *ExtractedGrowthTextures,
	growthGroup *GrowthTexturesBindGroup,
	frame *FrameResources,
) {
	logger := rcmd.App().Logger()

	if grid.Changed || gridGroup.Group == nil {
		uniform := grid.Gpu()
		buffer, group, err := uniformBindGroup(device.Device, "grid_config", pipeline.GridLayout, uniform.Marshal())
		if err != nil {
			panic(err)
		}
		gridGroup.set(buffer, group)
	}

	switch {
	case growth.Handle == nil:
		growthGroup.set(nil, "")
	case growthGroup.Group != nil && growthGroup.handle == *growth.Handle:
	default:
		growthGroup.set(nil, "")
		img, ok := assets.Image(*growth.Handle)
		if !ok {
			logger.Debugf("growth texture %s not resolved yet", *growth.Handle)
			break
		}
		group, err := textureBindGroup(device.Device, "growth_textures", pipeline.GrowthLayout, img)
		if err != nil {
			panic(err)
		}
		growthGroup.set(group, *growth.Handle)
	}

	MakeQuery1[ExtractedChunkGrass](rcmd).Map(func(eid EntityId, grass *ExtractedChunkGrass) bool {
		buffer, group, err := uniformBindGroup(device.Device, fmt.Sprintf("chunk_grass_%d", eid), pipeline.ChunkLayout, grass.Uniform.Marshal())
		if err != nil {
			panic(err)
		}
		frame.Track(buffer, group)
		rcmd.AddComponents(eid, ChunkGrassBindGroup{Group: group})
		return true
	})
}

func queueChunkGrassSystem(
	rcmd *RenderCommands,
	device *RenderDevice,
	assets *RenderAssets,
	pipeline *GrassPipeline,
	msaa *Msaa,
	growthGroup *GrowthTexturesBindGroup,
	view *ExtractedView,
	phase *Transparent3d,
) {
	if growthGroup.Group == nil {
		rcmd.App().Logger().Debugf("growth textures not ready, skipping grass")
		return
	}

	MakeQuery3[ExtractedChunkGrass, MeshUniform, Mesh](rcmd).Map(
		func(eid EntityId, _ *ExtractedChunkGrass, uniform *MeshUniform, mesh *Mesh) bool {
			gpuMesh, ok := assets.Mesh(mesh.AssetId)
			if !ok {
				return true
			}
			key := NewMeshPipelineKey(msaa, gpuMesh.Topology)
			phase.Add(PhaseItem{
				Entity:       eid,
				Pipeline:     pipeline.Pipelines.Specialize(device.Device, pipeline, key, gpuMesh.Layout),
				DrawFunction: pipeline.DrawFunction,
				Distance:     ViewDistance(view, uniform.Model.Col(3).Vec3()),
			})
			return true
		})
}

type SetChunkGrassBindGroup struct {
	Index uint32
}

func (s SetChunkGrassBindGroup) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	group, ok := GetComponent[ChunkGrassBindGroup](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	pass.SetBindGroup(s.Index, group.Group)
	return Success, nil
}

type SetGrowthTexturesBindGroup struct {
	Index uint32
}

func (s SetGrowthTexturesBindGroup) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	growth, ok := Resource[GrowthTexturesBindGroup](rcmd)
	if !ok || growth.Group == nil {
		return Failure, nil
	}
	pass.SetBindGroup(s.Index, growth.Group)
	return Success, nil
}

type SetGridConfigBindGroup struct {
	Index uint32
}

func (s SetGridConfigBindGroup) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	grid, ok := Resource[GridConfigBindGroup](rcmd)
	if !ok || grid.Group == nil {
		return Failure, nil
	}
	pass.SetBindGroup(s.Index, grid.Group)
	return Success, nil
}

// DrawGrassMesh draws NrInstances blades of the entity's mesh.
type DrawGrassMesh struct{}

func (DrawGrassMesh) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	mesh, ok := GetComponent[Mesh](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	grass, ok := GetComponent[ExtractedChunkGrass](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	assets, _ := Resource[RenderAssets](rcmd)
	gpuMesh, ok := assets.Mesh(mesh.AssetId)
	if !ok {
		return Failure, nil
	}
	if !gpuMesh.Indexed() {
		return Failure, fmt.Errorf("%w: mesh %s", ErrNonIndexedGrassMesh, mesh.AssetId)
	}

	pass.SetVertexBuffer(0, gpuMesh.VertexBuffer)
	pass.SetIndexBuffer(gpuMesh.IndexBuffer)
	pass.DrawIndexed(gpuMesh.IndexCount, grass.NrInstances)
	return Success, nil
}
