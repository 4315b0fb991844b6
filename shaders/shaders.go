package shaders

import (
	_ "embed"
)

// Both shaders use the entry points "vertex" and "fragment".

//go:embed grass.wgsl
var GrassWGSL string

//go:embed chunk_instancing.wgsl
var ChunkInstancingWGSL string
