package foliage

import (
	"fmt"
	"strings"

	"github.com/gekko3d/foliage/gpu"
)

// MeshVertexLayout describes how a mesh's vertex buffer is laid out.
type MeshVertexLayout struct {
	ArrayStride uint64
	Attributes  []gpu.VertexAttribute
}

// StandardMeshLayout is position@0, normal@1, uv@2 interleaved.
func StandardMeshLayout() MeshVertexLayout {
	return MeshVertexLayout{
		ArrayStride: 32,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			{Format: gpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
		},
	}
}

// Key identifies the layout for pipeline caching.
func (l MeshVertexLayout) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", l.ArrayStride)
	for _, a := range l.Attributes {
		fmt.Fprintf(&b, "|%d:%d@%d", a.ShaderLocation, a.Format, a.Offset)
	}
	return b.String()
}

func (l MeshVertexLayout) BufferLayout() gpu.VertexBufferLayout {
	return gpu.VertexBufferLayout{
		ArrayStride: l.ArrayStride,
		StepMode:    gpu.VertexStepModeVertex,
		Attributes:  l.Attributes,
	}
}

type MeshPipelineKey struct {
	Topology gpu.PrimitiveTopology
	Samples  uint32
}

func NewMeshPipelineKey(msaa *Msaa, topology gpu.PrimitiveTopology) MeshPipelineKey {
	return MeshPipelineKey{Topology: topology, Samples: msaa.SampleCount()}
}

// Msaa sets the sample count of every mesh pipeline.
type Msaa struct {
	Samples uint32
}

func (m *Msaa) SampleCount() uint32 {
	if m == nil || m.Samples == 0 {
		return 1
	}
	return m.Samples
}

// MeshPipeline owns the bind group layouts shared by every mesh pipeline:
// group 0 for the view and group 1 for the per entity mesh uniform.
type MeshPipeline struct {
	ViewLayout gpu.BindGroupLayout
	MeshLayout gpu.BindGroupLayout
}

func NewMeshPipeline(device gpu.Device) (*MeshPipeline, error) {
	view, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "mesh_view_layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment, Type: gpu.BindingUniformBuffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create mesh view layout: %w", err)
	}
	mesh, err := device.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "mesh_layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex, Type: gpu.BindingUniformBuffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create mesh layout: %w", err)
	}
	return &MeshPipeline{ViewLayout: view, MeshLayout: mesh}, nil
}

// Specialize returns the base descriptor for key and layout. Callers
// replace the shader, add layouts and vertex buffers.
func (p *MeshPipeline) Specialize(key MeshPipelineKey, layout MeshVertexLayout) gpu.RenderPipelineDescriptor {
	return gpu.RenderPipelineDescriptor{
		Label:              "mesh_pipeline",
		VertexEntryPoint:   "vertex",
		FragmentEntryPoint: "fragment",
		BindGroupLayouts:   []gpu.BindGroupLayout{p.ViewLayout, p.MeshLayout},
		VertexBuffers:      []gpu.VertexBufferLayout{layout.BufferLayout()},
		Topology:           key.Topology,
		CullMode:           gpu.CullModeBack,
		SampleCount:        key.Samples,
		DepthWrite:         true,
		AlphaBlend:         true,
	}
}
