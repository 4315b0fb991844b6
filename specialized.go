package foliage

import (
	"fmt"

	"github.com/gekko3d/foliage/gpu"
)

// SpecializedPipelines caches one pipeline per pipeline key and vertex layout.
type SpecializedPipelines[K comparable] struct {
	cache map[specializedKey[K]]gpu.RenderPipeline
}

type specializedKey[K comparable] struct {
	key    K
	layout string
}

// Specializer produces the descriptor of a pipeline variant.
type Specializer[K comparable] interface {
	Specialize(key K, layout MeshVertexLayout) (gpu.RenderPipelineDescriptor, error)
}

// Specialize returns the cached pipeline for key, creating it on first use.
// Any failure is a configuration error and panics.
func (s *SpecializedPipelines[K]) Specialize(device gpu.Device, specializer Specializer[K], key K, layout MeshVertexLayout) gpu.RenderPipeline {
	k := specializedKey[K]{key: key, layout: layout.Key()}
	if pipeline, ok := s.cache[k]; ok {
		return pipeline
	}

	desc, err := specializer.Specialize(key, layout)
	if err != nil {
		panic(fmt.Errorf("specialize pipeline for %+v: %w", key, err))
	}
	pipeline, err := device.CreateRenderPipeline(&desc)
	if err != nil {
		panic(fmt.Errorf("create pipeline %s for %+v: %w", desc.Label, key, err))
	}

	if s.cache == nil {
		s.cache = make(map[specializedKey[K]]gpu.RenderPipeline)
	}
	s.cache[k] = pipeline
	return pipeline
}

func (s *SpecializedPipelines[K]) Len() int {
	return len(s.cache)
}
