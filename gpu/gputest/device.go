// Package gputest provides an in-memory gpu.Device that records every
// resource it creates and every command issued on its render passes.
package gputest

import (
	"errors"
	"fmt"

	"github.com/gekko3d/foliage/gpu"
)

var ErrInjected = errors.New("gputest: injected failure")

type Op string

const (
	OpCreateBuffer          Op = "CreateBuffer"
	OpCreateBindGroupLayout Op = "CreateBindGroupLayout"
	OpCreateBindGroup       Op = "CreateBindGroup"
	OpCreateRenderPipeline  Op = "CreateRenderPipeline"
	OpCreateTexture         Op = "CreateTexture"
	OpCreateSampler         Op = "CreateSampler"
	OpBeginFrame            Op = "BeginFrame"
)

type Buffer struct {
	Label    string
	Usage    gpu.BufferUsage
	Contents []byte
	Released bool
}

func (b *Buffer) Size() uint64 { return uint64(len(b.Contents)) }
func (b *Buffer) Release()     { b.Released = true }

type BindGroupLayout struct {
	Desc     gpu.BindGroupLayoutDescriptor
	Released bool
}

func (l *BindGroupLayout) Release() { l.Released = true }

type BindGroup struct {
	Desc     gpu.BindGroupDescriptor
	Released bool
}

func (g *BindGroup) Release() { g.Released = true }

type RenderPipeline struct {
	Desc     gpu.RenderPipelineDescriptor
	Released bool
}

func (p *RenderPipeline) Release() { p.Released = true }

type TextureView struct {
	Desc     gpu.TextureDescriptor
	Released bool
}

func (v *TextureView) Release() { v.Released = true }

type Sampler struct {
	Desc     gpu.SamplerDescriptor
	Released bool
}

func (s *Sampler) Release() { s.Released = true }

type Device struct {
	Buffers    []*Buffer
	Layouts    []*BindGroupLayout
	BindGroups []*BindGroup
	Pipelines  []*RenderPipeline
	Textures   []*TextureView
	Samplers   []*Sampler
	Frames     []*Frame

	failures map[Op]bool
}

func NewDevice() *Device {
	return &Device{failures: make(map[Op]bool)}
}

// FailOn makes every following call of op return ErrInjected.
func (d *Device) FailOn(op Op) {
	d.failures[op] = true
}

// Recover undoes FailOn for op.
func (d *Device) Recover(op Op) {
	delete(d.failures, op)
}

func (d *Device) fail(op Op) error {
	if d.failures[op] {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.fail(OpCreateBuffer); err != nil {
		return nil, err
	}
	contents := make([]byte, len(desc.Contents))
	copy(contents, desc.Contents)
	b := &Buffer{Label: desc.Label, Usage: desc.Usage, Contents: contents}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateBindGroupLayout(desc *gpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	if err := d.fail(OpCreateBindGroupLayout); err != nil {
		return nil, err
	}
	l := &BindGroupLayout{Desc: *desc}
	d.Layouts = append(d.Layouts, l)
	return l, nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	if err := d.fail(OpCreateBindGroup); err != nil {
		return nil, err
	}
	if desc.Layout == nil {
		return nil, fmt.Errorf("bind group %q: missing layout", desc.Label)
	}
	g := &BindGroup{Desc: *desc}
	d.BindGroups = append(d.BindGroups, g)
	return g, nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.fail(OpCreateRenderPipeline); err != nil {
		return nil, err
	}
	p := &RenderPipeline{Desc: *desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.TextureView, error) {
	if err := d.fail(OpCreateTexture); err != nil {
		return nil, err
	}
	v := &TextureView{Desc: *desc}
	d.Textures = append(d.Textures, v)
	return v, nil
}

func (d *Device) CreateSampler(desc *gpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := d.fail(OpCreateSampler); err != nil {
		return nil, err
	}
	s := &Sampler{Desc: *desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) BeginFrame(clear gpu.Color) (gpu.Frame, error) {
	if err := d.fail(OpBeginFrame); err != nil {
		return nil, err
	}
	f := &Frame{Clear: clear}
	f.pass = &RenderPass{frame: f}
	d.Frames = append(d.Frames, f)
	return f, nil
}

// LastFrame returns the most recent frame or nil.
func (d *Device) LastFrame() *Frame {
	if len(d.Frames) == 0 {
		return nil
	}
	return d.Frames[len(d.Frames)-1]
}

// BuffersLabeled returns buffers whose label equals label, in creation order.
func (d *Device) BuffersLabeled(label string) []*Buffer {
	var res []*Buffer
	for _, b := range d.Buffers {
		if b.Label == label {
			res = append(res, b)
		}
	}
	return res
}

// BindGroupsLabeled returns bind groups whose label equals label, in creation order.
func (d *Device) BindGroupsLabeled(label string) []*BindGroup {
	var res []*BindGroup
	for _, g := range d.BindGroups {
		if g.Desc.Label == label {
			res = append(res, g)
		}
	}
	return res
}

// LiveBuffers returns the buffers not released yet.
func (d *Device) LiveBuffers() []*Buffer {
	var res []*Buffer
	for _, b := range d.Buffers {
		if !b.Released {
			res = append(res, b)
		}
	}
	return res
}

// LiveBindGroups returns the bind groups not released yet.
func (d *Device) LiveBindGroups() []*BindGroup {
	var res []*BindGroup
	for _, g := range d.BindGroups {
		if !g.Released {
			res = append(res, g)
		}
	}
	return res
}
