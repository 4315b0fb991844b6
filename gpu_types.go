package foliage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Structs in this file mirror WGSL uniform and vertex layouts byte for byte.
// Every scalar lives in lane 0 of its own 16-byte slot; the other lanes stay zero.

var ErrGpuStructSize = errors.New("unexpected gpu struct size")

// Color is linear RGBA.
type Color struct {
	R, G, B, A float32
}

func ColorLinear(r, g, b float32) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// ColorSRGB converts sRGB components to linear.
func ColorSRGB(r, g, b float32) Color {
	return Color{R: srgbToLinear(r), G: srgbToLinear(g), B: srgbToLinear(b), A: 1}
}

func srgbToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return float32(math.Pow((float64(c)+0.055)/1.055, 2.4))
}

func (c Color) Vec4() [4]float32 {
	return [4]float32{c.R, c.G, c.B, c.A}
}

// GpuChunkGrass matches the grass shader's GrassChunk struct.
// Size: 176 bytes.
type GpuChunkGrass struct {
	Time             [4]float32 // offset   0: elapsed seconds in x
	HealthyTip       [4]float32 // offset  16
	HealthyMiddle    [4]float32 // offset  32
	HealthyBase      [4]float32 // offset  48
	UnhealthyTip     [4]float32 // offset  64
	UnhealthyMiddle  [4]float32 // offset  80
	UnhealthyBase    [4]float32 // offset  96
	ChunkXY          [2]float32 // offset 112
	ChunkHalfExtents [2]float32 // offset 120
	GrowthTextureId  [4]int32   // offset 128: layer in x
	HeightModifier   [4]float32 // offset 144: in x
	Scale            [4]float32 // offset 160: in x
}

func NewGpuChunkGrass(c ChunkGrass) GpuChunkGrass {
	return GpuChunkGrass{
		Time:             [4]float32{c.Time},
		HealthyTip:       c.HealthyTip.Vec4(),
		HealthyMiddle:    c.HealthyMiddle.Vec4(),
		HealthyBase:      c.HealthyBase.Vec4(),
		UnhealthyTip:     c.UnhealthyTip.Vec4(),
		UnhealthyMiddle:  c.UnhealthyMiddle.Vec4(),
		UnhealthyBase:    c.UnhealthyBase.Vec4(),
		ChunkXY:          c.ChunkXY,
		ChunkHalfExtents: c.ChunkHalfExtents,
		GrowthTextureId:  [4]int32{c.GrowthTextureId},
		HeightModifier:   [4]float32{c.HeightModifier},
		Scale:            [4]float32{c.Scale},
	}
}

func (g *GpuChunkGrass) Size() int {
	return int(unsafe.Sizeof(*g))
}

func (g *GpuChunkGrass) Marshal() []byte {
	buf := make([]byte, 176)
	putVec4(buf[0:], g.Time)
	putVec4(buf[16:], g.HealthyTip)
	putVec4(buf[32:], g.HealthyMiddle)
	putVec4(buf[48:], g.HealthyBase)
	putVec4(buf[64:], g.UnhealthyTip)
	putVec4(buf[80:], g.UnhealthyMiddle)
	putVec4(buf[96:], g.UnhealthyBase)
	putFloats(buf[112:], g.ChunkXY[:]...)
	putFloats(buf[120:], g.ChunkHalfExtents[:]...)
	for i, v := range g.GrowthTextureId {
		binary.LittleEndian.PutUint32(buf[128+i*4:], uint32(v))
	}
	putVec4(buf[144:], g.HeightModifier)
	putVec4(buf[160:], g.Scale)
	return buf
}

// UnmarshalGpuChunkGrass reads back a buffer produced by Marshal.
func UnmarshalGpuChunkGrass(buf []byte) (GpuChunkGrass, error) {
	var g GpuChunkGrass
	if len(buf) != g.Size() {
		return g, fmt.Errorf("%w: chunk grass is %d bytes, got %d", ErrGpuStructSize, g.Size(), len(buf))
	}
	g.Time = getVec4(buf[0:])
	g.HealthyTip = getVec4(buf[16:])
	g.HealthyMiddle = getVec4(buf[32:])
	g.HealthyBase = getVec4(buf[48:])
	g.UnhealthyTip = getVec4(buf[64:])
	g.UnhealthyMiddle = getVec4(buf[80:])
	g.UnhealthyBase = getVec4(buf[96:])
	g.ChunkXY = [2]float32{getFloat(buf[112:]), getFloat(buf[116:])}
	g.ChunkHalfExtents = [2]float32{getFloat(buf[120:]), getFloat(buf[124:])}
	for i := range g.GrowthTextureId {
		g.GrowthTextureId[i] = int32(binary.LittleEndian.Uint32(buf[128+i*4:]))
	}
	g.HeightModifier = getVec4(buf[144:])
	g.Scale = getVec4(buf[160:])
	return g, nil
}

// GpuInstance is the per-instance vertex attribute at location 3.
// Size: 16 bytes.
type GpuInstance struct {
	Position [3]float32 // offset  0
	Scale    float32    // offset 12
}

func (g *GpuInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

func (g *GpuInstance) Marshal() []byte {
	buf := make([]byte, 16)
	putFloats(buf, g.Position[0], g.Position[1], g.Position[2], g.Scale)
	return buf
}

// MarshalInstances packs instances back to back for a vertex buffer.
func MarshalInstances(instances []GpuInstance) []byte {
	buf := make([]byte, 0, len(instances)*16)
	for i := range instances {
		buf = append(buf, instances[i].Marshal()...)
	}
	return buf
}

// GpuChunkBindGroupData is the model space base transform shared by every
// instance of a chunk. Column major. Size: 64 bytes.
type GpuChunkBindGroupData struct {
	ModelTransform mgl32.Mat4
}

func (g *GpuChunkBindGroupData) Size() int {
	return int(unsafe.Sizeof(*g))
}

func (g *GpuChunkBindGroupData) Marshal() []byte {
	return marshalMat4(g.ModelTransform)
}

// GpuGridConfig: center in xy, half extents in zw. Size: 16 bytes.
type GpuGridConfig struct {
	Center      [2]float32
	HalfExtents [2]float32
}

func (g *GpuGridConfig) Size() int {
	return int(unsafe.Sizeof(*g))
}

func (g *GpuGridConfig) Marshal() []byte {
	buf := make([]byte, 16)
	putFloats(buf, g.Center[0], g.Center[1], g.HalfExtents[0], g.HalfExtents[1])
	return buf
}

// GpuViewUniform is bind group 0 of every mesh pipeline. Size: 80 bytes.
type GpuViewUniform struct {
	ViewProj mgl32.Mat4 // offset  0
	Position [4]float32 // offset 64: camera position, w unused
}

func (g *GpuViewUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

func (g *GpuViewUniform) Marshal() []byte {
	buf := make([]byte, 80)
	copy(buf, marshalMat4(g.ViewProj))
	putVec4(buf[64:], g.Position)
	return buf
}

// GpuMeshUniform is bind group 1. Size: 64 bytes.
type GpuMeshUniform struct {
	Model mgl32.Mat4
}

func (g *GpuMeshUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

func (g *GpuMeshUniform) Marshal() []byte {
	return marshalMat4(g.Model)
}

func marshalMat4(m mgl32.Mat4) []byte {
	buf := make([]byte, 64)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(m[i]))
	}
	return buf
}

func putFloats(buf []byte, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
}

func putUint32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], v)
}

func putVec4(buf []byte, v [4]float32) {
	putFloats(buf, v[:]...)
}

func getFloat(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

func getVec4(buf []byte) [4]float32 {
	return [4]float32{getFloat(buf[0:]), getFloat(buf[4:]), getFloat(buf[8:]), getFloat(buf[12:])}
}
