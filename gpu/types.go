package gpu

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageCopyDst
)

func (u BufferUsage) Has(flag BufferUsage) bool {
	return u&flag == flag
}

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type BindingType int

const (
	BindingUniformBuffer BindingType = iota
	BindingTexture
	BindingSampler
)

type TextureFormat uint32

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatR8Unorm
	TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSrgb
	TextureFormatDepth24Plus
)

// BytesPerPixel returns the texel size of color formats, 0 for depth formats.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case TextureFormatR8Unorm:
		return 1
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSrgb:
		return 4
	default:
		return 0
	}
}

type TextureViewDimension int

const (
	TextureViewDimension2D TextureViewDimension = iota
	TextureViewDimension2DArray
)

type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	case VertexFormatFloat32x4:
		return 16
	}
	return 0
}

type VertexStepMode int

const (
	VertexStepModeVertex VertexStepMode = iota
	VertexStepModeInstance
)

type PrimitiveTopology int

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
	PrimitiveTopologyPointList
)

func (t PrimitiveTopology) String() string {
	switch t {
	case PrimitiveTopologyTriangleList:
		return "triangle-list"
	case PrimitiveTopologyTriangleStrip:
		return "triangle-strip"
	case PrimitiveTopologyLineList:
		return "line-list"
	case PrimitiveTopologyPointList:
		return "point-list"
	}
	return "unknown"
}

type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type IndexFormat int

const (
	IndexFormatUint32 IndexFormat = iota
)

type AddressMode int

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
)

type FilterMode int

const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

type Color struct {
	R, G, B, A float64
}
