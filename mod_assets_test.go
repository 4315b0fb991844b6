package foliage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/foliage/gpu"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeTexture_ConvertsToRGBA(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	img.Set(1, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	server := NewAssetServer()
	id, err := server.DecodeTexture(bytes.NewReader(encodePNG(t, img)))
	require.NoError(t, err)

	tex, ok := server.Texture(id)
	require.True(t, ok)
	assert.Equal(t, uint32(2), tex.Width)
	assert.Equal(t, uint32(3), tex.Height)
	assert.Equal(t, uint32(1), tex.Layers)
	assert.Equal(t, gpu.TextureFormatRGBA8UnormSrgb, tex.Format)
	require.Len(t, tex.Texels, 2*3*4)
	assert.Equal(t, []uint8{10, 20, 30, 255}, tex.Texels[(2*2+1)*4:(2*2+1)*4+4])
}

func TestDecodeTexture_RejectsGarbage(t *testing.T) {
	_, err := NewAssetServer().DecodeTexture(bytes.NewReader([]byte("not a png")))
	assert.Error(t, err)
}

func TestLoadTexture(t *testing.T) {
	server := NewAssetServer()

	_, err := server.LoadTexture(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "leaf.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, image.NewRGBA(image.Rect(0, 0, 4, 4))), 0o644))
	id, err := server.LoadTexture(path)
	require.NoError(t, err)

	tex, ok := server.Texture(id)
	require.True(t, ok)
	assert.Len(t, tex.Texels, 4*4*4)

	server.RemoveTexture(id)
	_, ok = server.Texture(id)
	assert.False(t, ok)
}

func TestCreateSolidTexture(t *testing.T) {
	server := NewAssetServer()
	a := server.CreateSolidTexture(1, 2, 3, 4)
	b := server.CreateSolidTexture(1, 2, 3, 4)
	assert.NotEqual(t, a, b)

	tex, _ := server.Texture(a)
	assert.Equal(t, []uint8{1, 2, 3, 4}, tex.Texels)
	assert.Equal(t, gpu.TextureViewDimension2D, tex.Dimension)
}

func TestCreateTextureArray(t *testing.T) {
	server := NewAssetServer()
	id := server.CreateTextureArray(make([]uint8, 3*4), 2, 2, 3, gpu.TextureFormatR8Unorm, SamplerAsset{})

	tex, ok := server.Texture(id)
	require.True(t, ok)
	assert.Equal(t, uint32(3), tex.Layers)
	assert.Equal(t, gpu.TextureViewDimension2DArray, tex.Dimension)
}

func TestProceduralMeshes(t *testing.T) {
	meshes := map[string]MeshAsset{
		"straw":  GrassStrawMesh(),
		"ground": GroundMesh([2]float32{4, 2}, [2]float32{8, 4}),
		"sphere": SphereMesh(1, 4, 6),
		"box":    BoxMesh(mgl32.Vec3{1, 2, 3}),
		"cone":   ConeMesh(1, 2, 8),
	}
	for name, mesh := range meshes {
		t.Run(name, func(t *testing.T) {
			require.True(t, mesh.Indexed())
			assert.Len(t, mesh.Normals, mesh.VertexCount())
			assert.Len(t, mesh.UVs, mesh.VertexCount())
			assert.Zero(t, len(mesh.Indices)%3)
			for _, i := range mesh.Indices {
				assert.Less(t, int(i), mesh.VertexCount())
			}
		})
	}
}

func TestGroundMeshExtents(t *testing.T) {
	mesh := GroundMesh([2]float32{4, 2}, [2]float32{8, 4})
	assert.Equal(t, [3]float32{-2, -1, 0}, mesh.Positions[0])
	assert.Equal(t, [3]float32{2, 1, 0}, mesh.Positions[2])
	assert.Equal(t, [2]float32{8, 4}, mesh.UVs[1])
}

func TestGrassStrawIsUnitTall(t *testing.T) {
	mesh := GrassStrawMesh()
	top := float32(0)
	for _, p := range mesh.Positions {
		top = max(top, p[2])
	}
	assert.Equal(t, float32(1), top)
}
