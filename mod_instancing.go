package foliage

import (
	"fmt"

	"github.com/gekko3d/foliage/gpu"
	"github.com/gekko3d/foliage/shaders"
)

const drawChunkInstancingName = "draw_chunk_instancing"

type ChunkInstancingBundle struct {
	Transform       TransformComponent
	Mesh            Mesh
	Aabb            Aabb
	ChunkInstancing ChunkInstancing
	DistanceCulling DistanceCulling
	Chunk           Chunk
}

func SpawnChunkInstancing(cmd *Commands, b ChunkInstancingBundle) EntityId {
	return cmd.AddEntity(
		b.Transform,
		b.Mesh,
		b.Aabb,
		b.ChunkInstancing,
		b.DistanceCulling,
		b.Chunk,
		Visibility{},
		ComputedVisibility{Visible: true},
	)
}

// Render world components.

type GpuInstances struct {
	Instances []GpuInstance
}

type TextureHandle struct {
	AssetId AssetId
}

type ExtractedChunkData struct {
	Data GpuChunkBindGroupData
}

type InstanceBuffer struct {
	Buffer gpu.Buffer
	Count  uint32
}

type ChunkInstancingBindGroup struct {
	Group gpu.BindGroup
}

// TextureBindGroup is only attached once the texture has been uploaded.
type TextureBindGroup struct {
	Group gpu.BindGroup
}

// InstanceVertexLayout is vertex buffer slot 1: xyz offset and scale.
func InstanceVertexLayout() gpu.VertexBufferLayout {
	return gpu.VertexBufferLayout{
		ArrayStride: 16,
		StepMode:    gpu.VertexStepModeInstance,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 3},
		},
	}
}

// InstancingPipeline specializes the mesh pipeline with the prop shader,
// bind groups 2 (chunk transform) and 3 (base texture) and the instance
// vertex buffer.
type InstancingPipeline struct {
	Mesh          *MeshPipeline
	ChunkLayout   gpu.BindGroupLayout
	TextureLayout gpu.BindGroupLayout
	DrawFunction  DrawFunctionId

	Pipelines SpecializedPipelines[MeshPipelineKey]
}

func NewInstancingPipeline(device gpu.Device, mesh *MeshPipeline) (*InstancingPipeline, error) {
	chunk, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "chunk_instancing_layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex, Type: gpu.BindingUniformBuffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create chunk instancing layout: %w", err)
	}
	texture, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "chunk_instancing_texture_layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTexture, ViewDimension: gpu.TextureViewDimension2D},
			{Binding: 1, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingSampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create chunk instancing texture layout: %w", err)
	}
	return &InstancingPipeline{Mesh: mesh, ChunkLayout: chunk, TextureLayout: texture}, nil
}

func (p *InstancingPipeline) Specialize(key MeshPipelineKey, layout MeshVertexLayout) (gpu.RenderPipelineDescriptor, error) {
	if err := checkTrianglePipelineKey(key); err != nil {
		return gpu.RenderPipelineDescriptor{}, err
	}
	desc := p.Mesh.Specialize(key, layout)
	desc.Label = "chunk_instancing_pipeline"
	desc.ShaderSource = shaders.ChunkInstancingWGSL
	desc.CullMode = gpu.CullModeNone
	desc.BindGroupLayouts = append(desc.BindGroupLayouts, p.ChunkLayout, p.TextureLayout)
	desc.VertexBuffers = append(desc.VertexBuffers, InstanceVertexLayout())
	return desc, nil
}

// InstancingModule draws ChunkInstancing entities: trees, bushes, rocks and
// anything else scattered per chunk.
type InstancingModule struct{}

func (InstancingModule) Install(app *App, cmd *Commands) {
	app.RequireModule(RenderModule{}, cmd)
	app.RequireModule(DistanceCullingModule{}, cmd)

	cmd.UseSystem(System(extractChunkInstancingSystem).InStage(Extract).RunAlways())
	cmd.UseSystem(System(prepareChunkInstancingSystem).InStage(Prepare).RunAlways())
	cmd.UseSystem(System(queueChunkInstancingSystem).InStage(Queue).RunAlways())
}

func (InstancingModule) Finish(app *App, cmd *Commands) {
	device, _ := Resource[RenderDevice](app)
	mesh, ok := Resource[MeshPipeline](app)
	if !ok {
		panic("InstancingModule needs the MeshPipeline from RenderModule")
	}
	pipeline, err := NewInstancingPipeline(device.Device, mesh)
	if err != nil {
		panic(err)
	}
	draws, _ := Resource[DrawFunctions](app)
	pipeline.DrawFunction = draws.Add(drawChunkInstancingName, DrawCommands{
		SetItemPipeline{},
		SetMeshViewBindGroup{Index: 0},
		SetMeshBindGroup{Index: 1},
		SetChunkInstancingBindGroup{Index: 2},
		SetTextureBindGroup{Index: 3},
		DrawMeshInstanced{},
	})
	cmd.AddResources(pipeline)
}

func extractChunkInstancingSystem(cmd *Commands, rcmd *RenderCommands) {
	var batch []EntityBatch
	MakeQuery4[ChunkInstancing, ComputedVisibility, TransformComponent, Mesh](cmd).Map(
		func(eid EntityId, chunk *ChunkInstancing, vis *ComputedVisibility, transform *TransformComponent, mesh *Mesh) bool {
			if !vis.Visible {
				return true
			}
			batch = append(batch, EntityBatch{
				Entity: eid,
				Components: []any{
					GpuInstances{Instances: chunk.Instances},
					ExtractedChunkData{Data: GpuChunkBindGroupData{ModelTransform: chunk.ModelTransform.Matrix()}},
					TextureHandle{AssetId: chunk.BaseColorTexture},
					MeshUniform{Model: transform.Matrix()},
					*mesh,
				},
			})
			return true
		})
	rcmd.InsertOrSpawnBatch(batch)
}

func prepareChunkInstancingSystem(rcmd *RenderCommands, device *RenderDevice, assets *RenderAssets, pipeline *InstancingPipeline, frame *FrameResources) {
	logger := rcmd.App().Logger()

	MakeQuery3[GpuInstances, ExtractedChunkData, TextureHandle](rcmd).Map(
		func(eid EntityId, instances *GpuInstances, chunk *ExtractedChunkData, texture *TextureHandle) bool {
			if len(instances.Instances) == 0 {
				return true
			}
			buffer, err := device.Device.CreateBuffer(&gpu.BufferDescriptor{
				Label:    fmt.Sprintf("chunk_instancing_%d_instance_buffer", eid),
				Usage:    gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
				Contents: MarshalInstances(instances.Instances),
			})
			if err != nil {
				panic(fmt.Errorf("create instance buffer: %w", err))
			}
			frame.Track(buffer)
			uniform, group, err := uniformBindGroup(device.Device, fmt.Sprintf("chunk_instancing_%d", eid), pipeline.ChunkLayout, chunk.Data.Marshal())
			if err != nil {
				panic(err)
			}
			frame.Track(uniform, group)
			components := []any{
				InstanceBuffer{Buffer: buffer, Count: uint32(len(instances.Instances))},
				ChunkInstancingBindGroup{Group: group},
			}

			if img, ok := assets.Image(texture.AssetId); ok {
				texGroup, err := textureBindGroup(device.Device, fmt.Sprintf("chunk_instancing_%d_texture", eid), pipeline.TextureLayout, img)
				if err != nil {
					panic(err)
				}
				frame.Track(texGroup)
				components = append(components, TextureBindGroup{Group: texGroup})
			} else {
				logger.Debugf("texture %s of entity %d not resolved yet", texture.AssetId, eid)
			}

			rcmd.AddComponents(eid, components...)
			return true
		})
}

func queueChunkInstancingSystem(
	rcmd *RenderCommands,
	device *RenderDevice,
	assets *RenderAssets,
	pipeline *InstancingPipeline,
	msaa *Msaa,
	view *ExtractedView,
	phase *Transparent3d,
) {
	MakeQuery4[InstanceBuffer, TextureBindGroup, MeshUniform, Mesh](rcmd).Map(
		func(eid EntityId, _ *InstanceBuffer, _ *TextureBindGroup, uniform *MeshUniform, mesh *Mesh) bool {
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

type SetChunkInstancingBindGroup struct {
	Index uint32
}

func (s SetChunkInstancingBindGroup) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	group, ok := GetComponent[ChunkInstancingBindGroup](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	pass.SetBindGroup(s.Index, group.Group)
	return Success, nil
}

type SetTextureBindGroup struct {
	Index uint32
}

func (s SetTextureBindGroup) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	group, ok := GetComponent[TextureBindGroup](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	pass.SetBindGroup(s.Index, group.Group)
	return Success, nil
}

// DrawMeshInstanced binds the mesh at slot 0 and the instances at slot 1.
// Indexed and non-indexed meshes are both drawn.
type DrawMeshInstanced struct{}

func (DrawMeshInstanced) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	mesh, ok := GetComponent[Mesh](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	instances, ok := GetComponent[InstanceBuffer](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	assets, _ := Resource[RenderAssets](rcmd)
	gpuMesh, ok := assets.Mesh(mesh.AssetId)
	if !ok {
		return Failure, nil
	}

	pass.SetVertexBuffer(0, gpuMesh.VertexBuffer)
	pass.SetVertexBuffer(1, instances.Buffer)
	if gpuMesh.Indexed() {
		pass.SetIndexBuffer(gpuMesh.IndexBuffer)
		pass.DrawIndexed(gpuMesh.IndexCount, instances.Count)
	} else {
		pass.Draw(gpuMesh.VertexCount, instances.Count)
	}
	return Success, nil
}
