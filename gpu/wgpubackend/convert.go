package wgpubackend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/foliage/gpu"
)

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(gpu.BufferUsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(gpu.BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if u.Has(gpu.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(gpu.BufferUsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

func shaderStage(s gpu.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&gpu.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gpu.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	return out
}

func textureFormat(f gpu.TextureFormat) (wgpu.TextureFormat, error) {
	switch f {
	case gpu.TextureFormatR8Unorm:
		return wgpu.TextureFormatR8Unorm, nil
	case gpu.TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case gpu.TextureFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb, nil
	case gpu.TextureFormatDepth24Plus:
		return wgpu.TextureFormatDepth24Plus, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("unsupported texture format %d", f)
}

func viewDimension(d gpu.TextureViewDimension) wgpu.TextureViewDimension {
	if d == gpu.TextureViewDimension2DArray {
		return wgpu.TextureViewDimension2DArray
	}
	return wgpu.TextureViewDimension2D
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func stepMode(m gpu.VertexStepMode) wgpu.VertexStepMode {
	if m == gpu.VertexStepModeInstance {
		return wgpu.VertexStepModeInstance
	}
	return wgpu.VertexStepModeVertex
}

func topology(t gpu.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case gpu.PrimitiveTopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case gpu.PrimitiveTopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gpu.PrimitiveTopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

// stripIndexFormat is required by wgpu for strip topologies only.
func stripIndexFormat(t gpu.PrimitiveTopology) wgpu.IndexFormat {
	if t == gpu.PrimitiveTopologyTriangleStrip {
		return wgpu.IndexFormatUint32
	}
	return wgpu.IndexFormatUndefined
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullModeFront:
		return wgpu.CullModeFront
	case gpu.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func addressMode(m gpu.AddressMode) wgpu.AddressMode {
	if m == gpu.AddressModeRepeat {
		return wgpu.AddressModeRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func filterMode(m gpu.FilterMode) wgpu.FilterMode {
	if m == gpu.FilterModeLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func mipmapFilterMode(m gpu.FilterMode) wgpu.MipmapFilterMode {
	if m == gpu.FilterModeLinear {
		return wgpu.MipmapFilterModeLinear
	}
	return wgpu.MipmapFilterModeNearest
}

func alphaBlending() *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	}
}

func bindGroupLayoutEntry(e gpu.BindGroupLayoutEntry) wgpu.BindGroupLayoutEntry {
	out := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: shaderStage(e.Visibility),
	}
	switch e.Type {
	case gpu.BindingUniformBuffer:
		out.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
	case gpu.BindingTexture:
		out.Texture = wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeFloat,
			ViewDimension: viewDimension(e.ViewDimension),
		}
	case gpu.BindingSampler:
		out.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
	}
	return out
}

func vertexBufferLayouts(layouts []gpu.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		attributes := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			attributes = append(attributes, wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			})
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    stepMode(l.StepMode),
			Attributes:  attributes,
		})
	}
	return out
}
