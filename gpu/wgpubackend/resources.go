package wgpubackend

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/foliage/gpu"
)

type Buffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

func (b *Buffer) Size() uint64 { return b.size }
func (b *Buffer) Release()     { b.buffer.Release() }

type BindGroupLayout struct {
	layout *wgpu.BindGroupLayout
}

func (l *BindGroupLayout) Release() { l.layout.Release() }

type BindGroup struct {
	group *wgpu.BindGroup
}

func (g *BindGroup) Release() { g.group.Release() }

type RenderPipeline struct {
	pipeline *wgpu.RenderPipeline
}

func (p *RenderPipeline) Release() { p.pipeline.Release() }

type TextureView struct {
	view *wgpu.TextureView
}

func (v *TextureView) Release() { v.view.Release() }

type Sampler struct {
	sampler *wgpu.Sampler
}

func (s *Sampler) Release() { s.sampler.Release() }

// RenderPass forwards to the wgpu encoder. Handles from another backend
// are ignored.
type RenderPass struct {
	pass  *wgpu.RenderPassEncoder
	ended bool
}

var _ gpu.RenderPass = (*RenderPass)(nil)

func (p *RenderPass) SetPipeline(pipeline gpu.RenderPipeline) {
	if rp, ok := pipeline.(*RenderPipeline); ok {
		p.pass.SetPipeline(rp.pipeline)
	}
}

func (p *RenderPass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if g, ok := group.(*BindGroup); ok {
		p.pass.SetBindGroup(index, g.group, nil)
	}
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buffer gpu.Buffer) {
	if b, ok := buffer.(*Buffer); ok {
		p.pass.SetVertexBuffer(slot, b.buffer, 0, wgpu.WholeSize)
	}
}

func (p *RenderPass) SetIndexBuffer(buffer gpu.Buffer, _ gpu.IndexFormat) {
	if b, ok := buffer.(*Buffer); ok {
		p.pass.SetIndexBuffer(b.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
}

func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// End may be called more than once; only the first call reaches wgpu.
func (p *RenderPass) End() {
	if p.ended {
		return
	}
	p.ended = true
	p.pass.End()
	p.pass.Release()
}
