// Package gpu is the capability surface the renderer needs from a graphics
// backend: buffers, bind groups, pipelines, textures and a render pass.
// Backends live in sub packages (wgpubackend for wgpu, gputest for tests).
package gpu

type Handle interface {
	Release()
}

type Buffer interface {
	Handle
	Size() uint64
}

type BindGroupLayout interface{ Handle }
type BindGroup interface{ Handle }
type RenderPipeline interface{ Handle }
type TextureView interface{ Handle }
type Sampler interface{ Handle }

type BufferDescriptor struct {
	Label    string
	Usage    BufferUsage
	Contents []byte
}

type BindGroupLayoutEntry struct {
	Binding       uint32
	Visibility    ShaderStage
	Type          BindingType
	ViewDimension TextureViewDimension
}

type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry binds exactly one of Buffer, TextureView or Sampler.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	TextureView TextureView
	Sampler     Sampler
}

type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    VertexStepMode
	Attributes  []VertexAttribute
}

type RenderPipelineDescriptor struct {
	Label              string
	ShaderSource       string
	VertexEntryPoint   string
	FragmentEntryPoint string
	BindGroupLayouts   []BindGroupLayout
	VertexBuffers      []VertexBufferLayout
	Topology           PrimitiveTopology
	CullMode           CullMode
	SampleCount        uint32
	DepthWrite         bool
	AlphaBlend         bool
}

type TextureDescriptor struct {
	Label         string
	Width         uint32
	Height        uint32
	Layers        uint32
	Format        TextureFormat
	ViewDimension TextureViewDimension
	Data          []byte
}

type SamplerDescriptor struct {
	Label       string
	AddressMode AddressMode
	MagFilter   FilterMode
	MinFilter   FilterMode
}

// Device creates GPU resources. Every creation error is a configuration or
// driver failure; callers do not retry.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateTexture(desc *TextureDescriptor) (TextureView, error)
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	BeginFrame(clear Color) (Frame, error)
}

// Frame is one acquired surface image with a single open render pass.
type Frame interface {
	RenderPass() RenderPass
	Present() error
}

type RenderPass interface {
	SetPipeline(pipeline RenderPipeline)
	SetBindGroup(index uint32, group BindGroup)
	SetVertexBuffer(slot uint32, buffer Buffer)
	SetIndexBuffer(buffer Buffer, format IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End()
}
