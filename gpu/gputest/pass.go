package gputest

import (
	"github.com/gekko3d/foliage/gpu"
)

type Command struct {
	Op            string
	Index         uint32
	Pipeline      gpu.RenderPipeline
	BindGroup     gpu.BindGroup
	Buffer        gpu.Buffer
	Count         uint32
	InstanceCount uint32
}

type Frame struct {
	Clear     gpu.Color
	Commands  []Command
	Ended     bool
	Presented bool

	pass *RenderPass
}

func (f *Frame) RenderPass() gpu.RenderPass { return f.pass }

func (f *Frame) Present() error {
	f.Presented = true
	return nil
}

// Draws returns the Draw and DrawIndexed commands of the frame.
func (f *Frame) Draws() []Command {
	var res []Command
	for _, c := range f.Commands {
		if c.Op == "Draw" || c.Op == "DrawIndexed" {
			res = append(res, c)
		}
	}
	return res
}

// CommandsOf returns every command with the given op.
func (f *Frame) CommandsOf(op string) []Command {
	var res []Command
	for _, c := range f.Commands {
		if c.Op == op {
			res = append(res, c)
		}
	}
	return res
}

type RenderPass struct {
	frame *Frame
}

func (p *RenderPass) record(c Command) {
	p.frame.Commands = append(p.frame.Commands, c)
}

func (p *RenderPass) SetPipeline(pipeline gpu.RenderPipeline) {
	p.record(Command{Op: "SetPipeline", Pipeline: pipeline})
}

func (p *RenderPass) SetBindGroup(index uint32, group gpu.BindGroup) {
	p.record(Command{Op: "SetBindGroup", Index: index, BindGroup: group})
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buffer gpu.Buffer) {
	p.record(Command{Op: "SetVertexBuffer", Index: slot, Buffer: buffer})
}

func (p *RenderPass) SetIndexBuffer(buffer gpu.Buffer, format gpu.IndexFormat) {
	p.record(Command{Op: "SetIndexBuffer", Buffer: buffer})
}

func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.record(Command{Op: "Draw", Count: vertexCount, InstanceCount: instanceCount})
}

func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.record(Command{Op: "DrawIndexed", Count: indexCount, InstanceCount: instanceCount})
}

func (p *RenderPass) End() {
	p.frame.Ended = true
}
