package foliage

import (
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/gekko3d/foliage/gpu"
)

const (
	GrowthTextureLayers     = 2
	GrowthTextureResolution = 100
	GrowthPatternScale      = 0.05
)

// Perlin parameters, shared by every layer.
const (
	perlinAlpha  = 2.0
	perlinBeta   = 2.0
	perlinOctave = 3
)

// GrowthTextures points at the shared growth texture array. A nil Handle
// keeps grass from drawing.
type GrowthTextures struct {
	Handle *AssetId
}

// GenerateGrowthTexels fills layers*resolution*resolution bytes, layer i
// from a Perlin field seeded with i+1. The output only depends on the
// arguments.
func GenerateGrowthTexels(layers, resolution int, patternScale float64) []uint8 {
	texels := make([]uint8, 0, layers*resolution*resolution)
	for i := 0; i < layers; i++ {
		noise := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctave, int64(i+1))
		for y := 0; y < resolution; y++ {
			for x := 0; x < resolution; x++ {
				n := noise.Noise2D(float64(x)*patternScale, float64(y)*patternScale)
				texels = append(texels, noiseToByte(n))
			}
		}
	}
	return texels
}

// noiseToByte maps [-1, 1] onto [0, 255], clamping values outside.
func noiseToByte(n float64) uint8 {
	v := (n + 1) / 2 * 255
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

// BuildGrowthTextures registers the growth array with the asset server.
func BuildGrowthTextures(server *AssetServer, layers, resolution int, patternScale float64) AssetId {
	texels := GenerateGrowthTexels(layers, resolution, patternScale)
	return server.CreateTextureArray(texels, uint32(resolution), uint32(resolution), uint32(layers),
		gpu.TextureFormatR8Unorm, SamplerAsset{
			AddressMode: gpu.AddressModeRepeat,
			Filter:      gpu.FilterModeLinear,
		})
}

// ExtractedGrowthTextures is the render side copy of GrowthTextures.
type ExtractedGrowthTextures struct {
	Handle *AssetId
}

func extractGrowthTexturesSystem(growth *GrowthTextures, extracted *ExtractedGrowthTextures) {
	if growth.Handle == nil {
		extracted.Handle = nil
		return
	}
	h := *growth.Handle
	extracted.Handle = &h
}
