// Package wgpubackend implements gpu.Device on top of wgpu-native through
// cogentcore/webgpu.
package wgpubackend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"

	"github.com/gekko3d/foliage/gpu"
)

var ErrFrameInFlight = errors.New("previous frame not presented")

type Options struct {
	Width       int
	Height      int
	SampleCount uint32
	VSync       bool
	// ValidateShaders runs every WGSL source through naga before handing it
	// to the driver, so shader errors carry a source position.
	ValidateShaders bool
}

type Device struct {
	mu sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	sampleCount   uint32
	validate      bool

	msaaView  *wgpu.TextureView
	depthView *wgpu.TextureView

	frame *frame
}

var _ gpu.Device = (*Device)(nil)

// New creates the device for the surface and configures it at the requested
// size. Must be called from the thread owning the window.
func New(surfaceDescriptor *wgpu.SurfaceDescriptor, opts Options) (*Device, error) {
	runtime.LockOSThread()

	d := &Device{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: opts.SampleCount,
		validate:    opts.ValidateShaders,
	}
	if d.sampleCount == 0 {
		d.sampleCount = 1
	}
	if opts.VSync {
		d.presentMode = wgpu.PresentModeFifo
	}
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = device
	d.queue = device.GetQueue()

	if err := d.Resize(opts.Width, opts.Height); err != nil {
		return nil, err
	}
	return d, nil
}

// Resize reconfigures the surface and recreates the MSAA and depth targets.
// Zero sizes (a minimized window) are ignored.
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := d.surface.GetCapabilities(d.adapter)
	if len(caps.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	d.surfaceFormat = caps.Formats[0]

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   caps.AlphaModes[0],
	})

	if d.msaaView != nil {
		d.msaaView.Release()
		d.msaaView = nil
	}
	if d.depthView != nil {
		d.depthView.Release()
		d.depthView = nil
	}

	if d.sampleCount > 1 {
		view, err := d.renderTarget("msaa_texture", width, height, d.surfaceFormat)
		if err != nil {
			return err
		}
		d.msaaView = view
	}
	view, err := d.renderTarget("depth_texture", width, height, wgpu.TextureFormatDepth24Plus)
	if err != nil {
		return err
	}
	d.depthView = view
	return nil
}

func (d *Device) renderTarget(label string, width, height int, format wgpu.TextureFormat) (*wgpu.TextureView, error) {
	texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   d.sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	defer texture.Release()
	view, err := texture.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return view, nil
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	buffer, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    desc.Label,
		Contents: desc.Contents,
		Usage:    bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %s: %w", desc.Label, err)
	}
	return &Buffer{buffer: buffer, size: uint64(len(desc.Contents))}, nil
}

func (d *Device) CreateBindGroupLayout(desc *gpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entries = append(entries, bindGroupLayoutEntry(e))
	}
	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout %s: %w", desc.Label, err)
	}
	return &BindGroupLayout{layout: layout}, nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	layout, ok := desc.Layout.(*BindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %s: foreign layout %T", desc.Label, desc.Layout)
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			b, ok := e.Buffer.(*Buffer)
			if !ok {
				return nil, fmt.Errorf("bind group %s: foreign buffer %T", desc.Label, e.Buffer)
			}
			entry.Buffer = b.buffer
			entry.Size = wgpu.WholeSize
		case e.TextureView != nil:
			v, ok := e.TextureView.(*TextureView)
			if !ok {
				return nil, fmt.Errorf("bind group %s: foreign texture view %T", desc.Label, e.TextureView)
			}
			entry.TextureView = v.view
			entry.Size = wgpu.WholeSize
		case e.Sampler != nil:
			s, ok := e.Sampler.(*Sampler)
			if !ok {
				return nil, fmt.Errorf("bind group %s: foreign sampler %T", desc.Label, e.Sampler)
			}
			entry.Sampler = s.sampler
			entry.Size = wgpu.WholeSize
		default:
			return nil, fmt.Errorf("bind group %s: binding %d is empty", desc.Label, e.Binding)
		}
		entries = append(entries, entry)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %s: %w", desc.Label, err)
	}
	return &BindGroup{group: group}, nil
}

// ValidateWGSL compiles source with naga and discards the output.
func ValidateWGSL(source string) error {
	if _, err := naga.Compile(source); err != nil {
		return fmt.Errorf("invalid wgsl: %w", err)
	}
	return nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if d.validate {
		if err := ValidateWGSL(desc.ShaderSource); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", desc.Label, err)
		}
	}
	shader, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.ShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", desc.Label, err)
	}
	defer shader.Release()

	layouts := make([]*wgpu.BindGroupLayout, 0, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layout, ok := l.(*BindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: foreign layout %T at group %d", desc.Label, l, i)
		}
		layouts = append(layouts, layout.layout)
	}
	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout %s: %w", desc.Label, err)
	}
	defer pipelineLayout.Release()

	target := wgpu.ColorTargetState{
		Format:    d.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if desc.AlphaBlend {
		target.Blend = alphaBlending()
	}

	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    vertexBufferLayouts(desc.VertexBuffers),
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:         topology(desc.Topology),
			StripIndexFormat: stripIndexFormat(desc.Topology),
			FrontFace:        wgpu.FrontFaceCCW,
			CullMode:         cullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: desc.SampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline %s: %w", desc.Label, err)
	}
	return &RenderPipeline{pipeline: pipeline}, nil
}

func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.TextureView, error) {
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", desc.Label, err)
	}
	layers := desc.Layers
	if layers == 0 {
		layers = 1
	}
	extent := wgpu.Extent3D{
		Width:              desc.Width,
		Height:             desc.Height,
		DepthOrArrayLayers: layers,
	}
	texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", desc.Label, err)
	}
	defer texture.Release()

	if len(desc.Data) > 0 {
		d.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			desc.Data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  desc.Width * desc.Format.BytesPerPixel(),
				RowsPerImage: desc.Height,
			},
			&extent,
		)
	}

	view, err := texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label + "_view",
		Format:          format,
		Dimension:       viewDimension(desc.ViewDimension),
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture view %s: %w", desc.Label, err)
	}
	return &TextureView{view: view}, nil
}

func (d *Device) CreateSampler(desc *gpu.SamplerDescriptor) (gpu.Sampler, error) {
	mode := addressMode(desc.AddressMode)
	sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  mode,
		AddressModeV:  mode,
		AddressModeW:  mode,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  mipmapFilterMode(desc.MinFilter),
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %s: %w", desc.Label, err)
	}
	return &Sampler{sampler: sampler}, nil
}

// BeginFrame acquires the next surface image and opens the main pass on it,
// resolving the MSAA target into it when multisampling is on.
func (d *Device) BeginFrame(clear gpu.Color) (gpu.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frame != nil {
		return nil, ErrFrameInFlight
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("create surface view: %w", err)
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, fmt.Errorf("create command encoder: %w", err)
	}

	color := wgpu.RenderPassColorAttachment{
		View:       view,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: wgpu.Color{R: clear.R, G: clear.G, B: clear.B, A: clear.A},
	}
	if d.msaaView != nil {
		color.View = d.msaaView
		color.ResolveTarget = view
		color.StoreOp = wgpu.StoreOpDiscard
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})

	d.frame = &frame{
		device:  d,
		surface: surfaceTexture,
		view:    view,
		encoder: encoder,
		pass:    &RenderPass{pass: pass},
	}
	return d.frame, nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.msaaView != nil {
		d.msaaView.Release()
	}
	if d.depthView != nil {
		d.depthView.Release()
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.surface.Release()
	d.instance.Release()
}

type frame struct {
	device  *Device
	surface *wgpu.Texture
	view    *wgpu.TextureView
	encoder *wgpu.CommandEncoder
	pass    *RenderPass
}

func (f *frame) RenderPass() gpu.RenderPass {
	return f.pass
}

// Present ends the pass if the caller has not, submits and presents. The
// surface image is released either way.
func (f *frame) Present() error {
	d := f.device
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		f.view.Release()
		f.surface.Release()
		f.encoder.Release()
		d.frame = nil
	}()

	f.pass.End()
	commands, err := f.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish command encoder: %w", err)
	}
	defer commands.Release()

	d.queue.Submit(commands)
	d.surface.Present()
	return nil
}
