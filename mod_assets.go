package foliage

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/gekko3d/foliage/gpu"
)

type AssetId string

type AssetServer struct {
	meshes   map[AssetId]MeshAsset
	textures map[AssetId]TextureAsset
}

type AssetServerModule struct{}

// Mesh is the component pointing an entity at its mesh asset.
type Mesh struct {
	AssetId AssetId
}

// MeshAsset is CPU side geometry. A nil Indices means non-indexed.
type MeshAsset struct {
	Topology  gpu.PrimitiveTopology
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Indices   []uint32
}

func (m MeshAsset) Indexed() bool {
	return m.Indices != nil
}

func (m MeshAsset) VertexCount() int {
	return len(m.Positions)
}

type SamplerAsset struct {
	AddressMode gpu.AddressMode
	Filter      gpu.FilterMode
}

// TextureAsset holds tightly packed texels, layer after layer.
type TextureAsset struct {
	Texels    []uint8
	Width     uint32
	Height    uint32
	Layers    uint32
	Format    gpu.TextureFormat
	Dimension gpu.TextureViewDimension
	Sampler   SamplerAsset
}

func (server *AssetServer) AddMesh(mesh MeshAsset) Mesh {
	id := makeAssetId()
	server.meshes[id] = mesh
	return Mesh{AssetId: id}
}

func (server *AssetServer) Mesh(id AssetId) (MeshAsset, bool) {
	m, ok := server.meshes[id]
	return m, ok
}

// CreateTexture registers a single layer texture.
func (server *AssetServer) CreateTexture(texels []uint8, texWidth uint32, texHeight uint32, format gpu.TextureFormat) AssetId {
	return server.addTexture(TextureAsset{
		Texels:    texels,
		Width:     texWidth,
		Height:    texHeight,
		Layers:    1,
		Format:    format,
		Dimension: gpu.TextureViewDimension2D,
		Sampler:   SamplerAsset{AddressMode: gpu.AddressModeRepeat, Filter: gpu.FilterModeLinear},
	})
}

// CreateTextureArray registers layers stacked in texels, viewed as a 2D array
// even when there is a single layer.
func (server *AssetServer) CreateTextureArray(texels []uint8, width, height, layers uint32, format gpu.TextureFormat, sampler SamplerAsset) AssetId {
	return server.addTexture(TextureAsset{
		Texels:    texels,
		Width:     width,
		Height:    height,
		Layers:    layers,
		Format:    format,
		Dimension: gpu.TextureViewDimension2DArray,
		Sampler:   sampler,
	})
}

func (server *AssetServer) addTexture(texture TextureAsset) AssetId {
	id := makeAssetId()
	server.textures[id] = texture
	return id
}

func (server *AssetServer) Texture(id AssetId) (TextureAsset, bool) {
	t, ok := server.textures[id]
	return t, ok
}

// RemoveTexture forgets a texture. Handles to it never resolve again.
func (server *AssetServer) RemoveTexture(id AssetId) {
	delete(server.textures, id)
}

func (server *AssetServer) LoadTexture(filename string) (AssetId, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	id, err := server.DecodeTexture(file)
	if err != nil {
		return "", fmt.Errorf("load texture %s: %w", filename, err)
	}
	return id, nil
}

// DecodeTexture reads a PNG and stores it as sRGB RGBA8.
func (server *AssetServer) DecodeTexture(r io.Reader) (AssetId, error) {
	img, err := png.Decode(r)
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	rgbaImg, ok := img.(*image.RGBA)
	if !ok || rgbaImg.Stride != 4*bounds.Dx() {
		rgbaImg = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Copy(rgbaImg, image.Point{}, img, bounds, draw.Src, nil)
	}

	return server.addTexture(TextureAsset{
		Texels:    rgbaImg.Pix,
		Width:     uint32(bounds.Dx()),
		Height:    uint32(bounds.Dy()),
		Layers:    1,
		Format:    gpu.TextureFormatRGBA8UnormSrgb,
		Dimension: gpu.TextureViewDimension2D,
		Sampler:   SamplerAsset{AddressMode: gpu.AddressModeRepeat, Filter: gpu.FilterModeLinear},
	}), nil
}

func (AssetServerModule) Install(app *App, cmd *Commands) {
	app.addResources(NewAssetServer())
}

func NewAssetServer() *AssetServer {
	return &AssetServer{
		meshes:   make(map[AssetId]MeshAsset),
		textures: make(map[AssetId]TextureAsset),
	}
}

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}
