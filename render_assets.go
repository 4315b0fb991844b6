package foliage

import (
	"fmt"

	"github.com/gekko3d/foliage/gpu"
)

// RenderDevice is the GPU device resource every render system draws with.
type RenderDevice struct {
	Device gpu.Device

	// frames skipped in a row because BeginFrame failed
	skipped int
}

type RenderDeviceModule struct {
	Device gpu.Device
}

func (m RenderDeviceModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&RenderDevice{Device: m.Device})
}

type GpuMesh struct {
	VertexBuffer gpu.Buffer
	IndexBuffer  gpu.Buffer // nil for non-indexed meshes
	VertexCount  uint32
	IndexCount   uint32
	Topology     gpu.PrimitiveTopology
	Layout       MeshVertexLayout
}

func (m *GpuMesh) Indexed() bool {
	return m.IndexBuffer != nil
}

type GpuImage struct {
	View      gpu.TextureView
	Sampler   gpu.Sampler
	Dimension gpu.TextureViewDimension
	Layers    uint32
}

// RenderAssets holds uploaded assets. An id that is missing here is not
// resolved yet.
type RenderAssets struct {
	meshes map[AssetId]*GpuMesh
	images map[AssetId]*GpuImage
}

func NewRenderAssets() *RenderAssets {
	return &RenderAssets{
		meshes: make(map[AssetId]*GpuMesh),
		images: make(map[AssetId]*GpuImage),
	}
}

func (r *RenderAssets) Mesh(id AssetId) (*GpuMesh, bool) {
	m, ok := r.meshes[id]
	return m, ok
}

func (r *RenderAssets) Image(id AssetId) (*GpuImage, bool) {
	img, ok := r.images[id]
	return img, ok
}

// prepareRenderAssetsSystem uploads every asset that has not been uploaded
// yet. Assets are immutable once registered, so each one uploads once.
func prepareRenderAssetsSystem(cmd *Commands, device *RenderDevice, server *AssetServer, assets *RenderAssets) {
	for id, mesh := range server.meshes {
		if _, ok := assets.meshes[id]; ok {
			continue
		}
		gpuMesh, err := uploadMesh(device.Device, string(id), mesh)
		if err != nil {
			panic(err)
		}
		assets.meshes[id] = gpuMesh
		cmd.App().Logger().Debugf("uploaded mesh %s: %d vertices, %d indices", id, gpuMesh.VertexCount, gpuMesh.IndexCount)
	}

	for id, texture := range server.textures {
		if _, ok := assets.images[id]; ok {
			continue
		}
		img, err := uploadTexture(device.Device, string(id), texture)
		if err != nil {
			panic(err)
		}
		assets.images[id] = img
		cmd.App().Logger().Debugf("uploaded texture %s: %dx%dx%d", id, texture.Width, texture.Height, texture.Layers)
	}
}

func uploadMesh(device gpu.Device, label string, mesh MeshAsset) (*GpuMesh, error) {
	layout := StandardMeshLayout()
	vertex, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label:    "mesh_vertex_buffer_" + label,
		Usage:    gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
		Contents: interleaveVertices(mesh),
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer for mesh %s: %w", label, err)
	}

	gpuMesh := &GpuMesh{
		VertexBuffer: vertex,
		VertexCount:  uint32(mesh.VertexCount()),
		Topology:     mesh.Topology,
		Layout:       layout,
	}
	if !mesh.Indexed() {
		return gpuMesh, nil
	}

	data := make([]byte, 4*len(mesh.Indices))
	for i, idx := range mesh.Indices {
		putUint32(data[i*4:], idx)
	}
	index, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label:    "mesh_index_buffer_" + label,
		Usage:    gpu.BufferUsageIndex | gpu.BufferUsageCopyDst,
		Contents: data,
	})
	if err != nil {
		return nil, fmt.Errorf("create index buffer for mesh %s: %w", label, err)
	}
	gpuMesh.IndexBuffer = index
	gpuMesh.IndexCount = uint32(len(mesh.Indices))
	return gpuMesh, nil
}

// interleaveVertices writes position, normal and uv per vertex. Missing
// normals or uvs are written as zero.
func interleaveVertices(mesh MeshAsset) []byte {
	stride := int(StandardMeshLayout().ArrayStride)
	buf := make([]byte, stride*mesh.VertexCount())
	for i, p := range mesh.Positions {
		off := i * stride
		putFloats(buf[off:], p[:]...)
		if i < len(mesh.Normals) {
			putFloats(buf[off+12:], mesh.Normals[i][:]...)
		}
		if i < len(mesh.UVs) {
			putFloats(buf[off+24:], mesh.UVs[i][:]...)
		}
	}
	return buf
}

func uploadTexture(device gpu.Device, label string, texture TextureAsset) (*GpuImage, error) {
	layers := texture.Layers
	if layers == 0 {
		layers = 1
	}
	dimension := texture.Dimension
	if layers > 1 {
		dimension = gpu.TextureViewDimension2DArray
	}

	view, err := device.CreateTexture(&gpu.TextureDescriptor{
		Label:         "texture_" + label,
		Width:         texture.Width,
		Height:        texture.Height,
		Layers:        layers,
		Format:        texture.Format,
		ViewDimension: dimension,
		Data:          texture.Texels,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", label, err)
	}
	sampler, err := device.CreateSampler(&gpu.SamplerDescriptor{
		Label:       "sampler_" + label,
		AddressMode: texture.Sampler.AddressMode,
		MagFilter:   texture.Sampler.Filter,
		MinFilter:   texture.Sampler.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %s: %w", label, err)
	}
	return &GpuImage{View: view, Sampler: sampler, Dimension: dimension, Layers: layers}, nil
}
