package foliage

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/foliage/gpu"
)

// MeshUniform is the render world copy of an entity's world transform.
type MeshUniform struct {
	Model mgl32.Mat4
}

// MeshBindGroup is bind group 1 of an extracted entity, rebuilt every frame.
type MeshBindGroup struct {
	Group gpu.BindGroup
}

// ViewBindGroup is bind group 0, nil while there is no single camera.
type ViewBindGroup struct {
	Group gpu.BindGroup
}

// FrameResources owns the GPU objects created for one frame. They are
// released when the next frame's Extract stage starts.
type FrameResources struct {
	handles []gpu.Handle
}

// Track hands handles over to the frame; nil handles are ignored.
func (f *FrameResources) Track(handles ...gpu.Handle) {
	for _, h := range handles {
		if h != nil {
			f.handles = append(f.handles, h)
		}
	}
}

func (f *FrameResources) Len() int {
	return len(f.handles)
}

func (f *FrameResources) Release() {
	for _, h := range f.handles {
		h.Release()
	}
	clear(f.handles)
	f.handles = f.handles[:0]
}

func releaseFrameResourcesSystem(frame *FrameResources) {
	frame.Release()
}

func prepareViewBindGroupSystem(device *RenderDevice, pipeline *MeshPipeline, frame *FrameResources, view *ExtractedView, viewGroup *ViewBindGroup) {
	viewGroup.Group = nil
	if !view.Valid {
		return
	}

	uniform := GpuViewUniform{
		ViewProj: view.ViewProj,
		Position: [4]float32{view.Position.X(), view.Position.Y(), view.Position.Z(), 1},
	}
	buffer, group, err := uniformBindGroup(device.Device, "mesh_view", pipeline.ViewLayout, uniform.Marshal())
	if err != nil {
		panic(err)
	}
	frame.Track(buffer, group)
	viewGroup.Group = group
}

func prepareMeshBindGroupsSystem(rcmd *RenderCommands, device *RenderDevice, pipeline *MeshPipeline, frame *FrameResources) {
	MakeQuery1[MeshUniform](rcmd).Map(func(eid EntityId, mesh *MeshUniform) bool {
		uniform := GpuMeshUniform{Model: mesh.Model}
		buffer, group, err := uniformBindGroup(device.Device, fmt.Sprintf("mesh_%d", eid), pipeline.MeshLayout, uniform.Marshal())
		if err != nil {
			panic(err)
		}
		frame.Track(buffer, group)
		rcmd.AddComponents(eid, MeshBindGroup{Group: group})
		return true
	})
}

// uniformBindGroup uploads contents as a uniform buffer bound at binding 0.
// The caller owns both returned handles.
func uniformBindGroup(device gpu.Device, label string, layout gpu.BindGroupLayout, contents []byte) (gpu.Buffer, gpu.BindGroup, error) {
	buffer, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label:    label + "_uniform_buffer",
		Usage:    gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
		Contents: contents,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s uniform buffer: %w", label, err)
	}
	group, err := device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   label + "_bind_group",
		Layout:  layout,
		Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: buffer}},
	})
	if err != nil {
		buffer.Release()
		return nil, nil, fmt.Errorf("create %s bind group: %w", label, err)
	}
	return buffer, group, nil
}

// textureBindGroup binds img's view at 0 and its sampler at 1.
func textureBindGroup(device gpu.Device, label string, layout gpu.BindGroupLayout, img *GpuImage) (gpu.BindGroup, error) {
	group, err := device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  label + "_bind_group",
		Layout: layout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, TextureView: img.View},
			{Binding: 1, Sampler: img.Sampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s bind group: %w", label, err)
	}
	return group, nil
}

// SetItemPipeline binds the pipeline chosen at queue time.
type SetItemPipeline struct{}

func (SetItemPipeline) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	pass.SetPipeline(item.Pipeline)
	return Success, nil
}

type SetMeshViewBindGroup struct {
	Index uint32
}

func (s SetMeshViewBindGroup) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	view, ok := Resource[ViewBindGroup](rcmd)
	if !ok || view.Group == nil {
		return Failure, nil
	}
	pass.SetBindGroup(s.Index, view.Group)
	return Success, nil
}

type SetMeshBindGroup struct {
	Index uint32
}

func (s SetMeshBindGroup) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	mesh, ok := GetComponent[MeshBindGroup](rcmd, item.Entity)
	if !ok {
		return Failure, nil
	}
	pass.SetBindGroup(s.Index, mesh.Group)
	return Success, nil
}
