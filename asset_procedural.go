package foliage

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/foliage/gpu"
)

// GrassStrawMesh is a single blade: a tip, a middle pair and a base pair.
// Blades are 1 unit tall along +Z and 0.1 wide; the grass shader scales them.
func GrassStrawMesh() MeshAsset {
	return MeshAsset{
		Topology: gpu.PrimitiveTopologyTriangleList,
		Positions: [][3]float32{
			{0, 0, 1},
			{0.05, 0, 0.5},
			{-0.05, 0, 0.5},
			{0.05, 0, 0},
			{-0.05, 0, 0},
		},
		Normals: [][3]float32{
			{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0},
		},
		UVs: [][2]float32{
			{0.5, 1},
			{1, 0.5},
			{0, 0.5},
			{1, 0},
			{0, 0},
		},
		Indices: []uint32{0, 1, 2, 1, 3, 2, 2, 3, 4},
	}
}

// GroundMesh is a quad in the XY plane centered on the origin. Its uvs run
// 0..uvScale so a repeating texture tiles across it.
func GroundMesh(size, uvScale [2]float32) MeshAsset {
	hx, hy := size[0]/2, size[1]/2
	return MeshAsset{
		Topology: gpu.PrimitiveTopologyTriangleList,
		Positions: [][3]float32{
			{-hx, -hy, 0},
			{hx, -hy, 0},
			{hx, hy, 0},
			{-hx, hy, 0},
		},
		Normals: [][3]float32{
			{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1},
		},
		UVs: [][2]float32{
			{0, uvScale[1]},
			{uvScale[0], uvScale[1]},
			{uvScale[0], 0},
			{0, 0},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

func SphereMesh(radius float32, rings, segments int) MeshAsset {
	mesh := MeshAsset{Topology: gpu.PrimitiveTopologyTriangleList}
	for i := 0; i <= rings; i++ {
		phi := math.Pi * float64(i) / float64(rings)
		for j := 0; j <= segments; j++ {
			theta := 2 * math.Pi * float64(j) / float64(segments)
			n := mgl32.Vec3{
				float32(math.Sin(phi) * math.Cos(theta)),
				float32(math.Sin(phi) * math.Sin(theta)),
				float32(math.Cos(phi)),
			}
			mesh.Positions = append(mesh.Positions, n.Mul(radius))
			mesh.Normals = append(mesh.Normals, n)
			mesh.UVs = append(mesh.UVs, [2]float32{float32(j) / float32(segments), float32(i) / float32(rings)})
		}
	}
	for i := 0; i < rings; i++ {
		for j := 0; j < segments; j++ {
			a := uint32(i*(segments+1) + j)
			b := a + uint32(segments+1)
			mesh.Indices = append(mesh.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return mesh
}

func BoxMesh(size mgl32.Vec3) MeshAsset {
	half := size.Mul(0.5)
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	mesh := MeshAsset{Topology: gpu.PrimitiveTopologyTriangleList}
	for _, f := range faces {
		base := uint32(len(mesh.Positions))
		for k, c := range corners {
			p := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
			mesh.Positions = append(mesh.Positions, [3]float32{p[0] * half[0], p[1] * half[1], p[2] * half[2]})
			mesh.Normals = append(mesh.Normals, f.n)
			mesh.UVs = append(mesh.UVs, uvs[k])
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}

// ConeMesh stands on the XY plane with its apex at +Z height.
func ConeMesh(radius, height float32, segments int) MeshAsset {
	mesh := MeshAsset{Topology: gpu.PrimitiveTopologyTriangleList}
	slope := mgl32.Vec2{height, radius}.Normalize()

	angle := func(j float64) (float32, float32) {
		theta := 2 * math.Pi * j / float64(segments)
		return float32(math.Cos(theta)), float32(math.Sin(theta))
	}

	for j := 0; j <= segments; j++ {
		c, s := angle(float64(j))
		mesh.Positions = append(mesh.Positions, [3]float32{radius * c, radius * s, 0})
		mesh.Normals = append(mesh.Normals, [3]float32{c * slope[0], s * slope[0], slope[1]})
		mesh.UVs = append(mesh.UVs, [2]float32{float32(j) / float32(segments), 1})
	}
	apex := uint32(len(mesh.Positions))
	for j := 0; j < segments; j++ {
		c, s := angle(float64(j) + 0.5)
		mesh.Positions = append(mesh.Positions, [3]float32{0, 0, height})
		mesh.Normals = append(mesh.Normals, [3]float32{c * slope[0], s * slope[0], slope[1]})
		mesh.UVs = append(mesh.UVs, [2]float32{(float32(j) + 0.5) / float32(segments), 0})
		mesh.Indices = append(mesh.Indices, uint32(j), uint32(j+1), apex+uint32(j))
	}

	center := uint32(len(mesh.Positions))
	mesh.Positions = append(mesh.Positions, [3]float32{0, 0, 0})
	mesh.Normals = append(mesh.Normals, [3]float32{0, 0, -1})
	mesh.UVs = append(mesh.UVs, [2]float32{0.5, 0.5})
	for j := 0; j <= segments; j++ {
		c, s := angle(float64(j))
		mesh.Positions = append(mesh.Positions, [3]float32{radius * c, radius * s, 0})
		mesh.Normals = append(mesh.Normals, [3]float32{0, 0, -1})
		mesh.UVs = append(mesh.UVs, [2]float32{0.5 + c*0.5, 0.5 + s*0.5})
	}
	for j := 0; j < segments; j++ {
		mesh.Indices = append(mesh.Indices, center, center+uint32(j)+2, center+uint32(j)+1)
	}
	return mesh
}

// CreateSolidTexture registers a 1x1 sRGB texture of the given color.
func (server *AssetServer) CreateSolidTexture(r, g, b, a uint8) AssetId {
	return server.addTexture(TextureAsset{
		Texels:    []uint8{r, g, b, a},
		Width:     1,
		Height:    1,
		Layers:    1,
		Format:    gpu.TextureFormatRGBA8UnormSrgb,
		Dimension: gpu.TextureViewDimension2D,
		Sampler:   SamplerAsset{AddressMode: gpu.AddressModeRepeat, Filter: gpu.FilterModeNearest},
	})
}
