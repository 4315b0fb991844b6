package foliage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/foliage/gpu"
)

var ErrUnsupportedPipelineKey = errors.New("unsupported pipeline key")

// DrawFunctionId indexes DrawFunctions.
type DrawFunctionId int

// PhaseItem is one queued draw of a render world entity.
type PhaseItem struct {
	Entity       EntityId
	Pipeline     gpu.RenderPipeline
	DrawFunction DrawFunctionId
	Distance     float32
}

// Transparent3d is the phase grass and props are drawn in, back to front.
type Transparent3d struct {
	Items []PhaseItem
}

func (p *Transparent3d) Add(item PhaseItem) {
	p.Items = append(p.Items, item)
}

// Sort orders items by descending distance. Ties keep a stable entity order.
func (p *Transparent3d) Sort() {
	slices.SortStableFunc(p.Items, func(a, b PhaseItem) int {
		switch {
		case a.Distance > b.Distance:
			return -1
		case a.Distance < b.Distance:
			return 1
		case a.Entity < b.Entity:
			return -1
		case a.Entity > b.Entity:
			return 1
		}
		return 0
	})
}

func (p *Transparent3d) Clear() {
	p.Items = p.Items[:0]
}

// ViewDistance is the sort key of an entity at translation seen from view.
func ViewDistance(view *ExtractedView, translation mgl32.Vec3) float32 {
	return translation.Sub(view.Position).Len()
}

type RenderCommandResult int

const (
	Success RenderCommandResult = iota
	Failure
)

// RenderCommand is one step of drawing a phase item. Failure skips the rest
// of the item; an error aborts the frame.
type RenderCommand interface {
	Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error)
}

// RenderCommandFunc adapts a function to RenderCommand.
type RenderCommandFunc func(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error)

func (f RenderCommandFunc) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	return f(rcmd, pass, item)
}

// DrawCommands runs its commands in order and stops at the first Failure.
type DrawCommands []RenderCommand

func (d DrawCommands) Render(rcmd *RenderCommands, pass *TrackedRenderPass, item PhaseItem) (RenderCommandResult, error) {
	for _, c := range d {
		res, err := c.Render(rcmd, pass, item)
		if err != nil {
			return Failure, err
		}
		if res == Failure {
			return Failure, nil
		}
	}
	return Success, nil
}

type DrawFunctions struct {
	functions []RenderCommand
	names     []string
}

func (d *DrawFunctions) Add(name string, fn RenderCommand) DrawFunctionId {
	d.functions = append(d.functions, fn)
	d.names = append(d.names, name)
	return DrawFunctionId(len(d.functions) - 1)
}

// Id returns the id a draw function was registered under.
func (d *DrawFunctions) Id(name string) (DrawFunctionId, bool) {
	i := slices.Index(d.names, name)
	return DrawFunctionId(i), i >= 0
}

func (d *DrawFunctions) get(id DrawFunctionId) (RenderCommand, bool) {
	if id < 0 || int(id) >= len(d.functions) {
		return nil, false
	}
	return d.functions[id], true
}

// TrackedRenderPass drops state changes that would not change anything.
type TrackedRenderPass struct {
	pass          gpu.RenderPass
	pipeline      gpu.RenderPipeline
	bindGroups    map[uint32]gpu.BindGroup
	vertexBuffers map[uint32]gpu.Buffer
	indexBuffer   gpu.Buffer
}

func NewTrackedRenderPass(pass gpu.RenderPass) *TrackedRenderPass {
	return &TrackedRenderPass{
		pass:          pass,
		bindGroups:    make(map[uint32]gpu.BindGroup),
		vertexBuffers: make(map[uint32]gpu.Buffer),
	}
}

func (t *TrackedRenderPass) SetPipeline(pipeline gpu.RenderPipeline) {
	if t.pipeline == pipeline {
		return
	}
	t.pipeline = pipeline
	t.pass.SetPipeline(pipeline)
}

func (t *TrackedRenderPass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if current, ok := t.bindGroups[index]; ok && current == group {
		return
	}
	t.bindGroups[index] = group
	t.pass.SetBindGroup(index, group)
}

func (t *TrackedRenderPass) SetVertexBuffer(slot uint32, buffer gpu.Buffer) {
	if current, ok := t.vertexBuffers[slot]; ok && current == buffer {
		return
	}
	t.vertexBuffers[slot] = buffer
	t.pass.SetVertexBuffer(slot, buffer)
}

func (t *TrackedRenderPass) SetIndexBuffer(buffer gpu.Buffer) {
	if t.indexBuffer == buffer {
		return
	}
	t.indexBuffer = buffer
	t.pass.SetIndexBuffer(buffer, gpu.IndexFormatUint32)
}

func (t *TrackedRenderPass) Draw(vertexCount, instanceCount uint32) {
	t.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (t *TrackedRenderPass) DrawIndexed(indexCount, instanceCount uint32) {
	t.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

// ClearColor is the color the frame is cleared to.
type ClearColor struct {
	Color gpu.Color
}

// RenderModule sets up the render world side shared by every mesh pipeline:
// asset uploads, the view and mesh bind groups, the transparent phase and
// the frame loop. A RenderDevice resource must be installed before Build.
type RenderModule struct{}

func (RenderModule) Install(app *App, cmd *Commands) {
	app.RequireModule(AssetServerModule{}, cmd)
	app.RequireModule(CameraModule{}, cmd)
	app.RequireModule(VisibilityModule{}, cmd)

	if _, ok := Resource[Msaa](app); !ok {
		cmd.AddResources(&Msaa{Samples: 4})
	}
	if _, ok := Resource[ClearColor](app); !ok {
		cmd.AddResources(&ClearColor{Color: gpu.Color{R: 0.7, G: 0.8, B: 0.8, A: 1}})
	}
	cmd.AddResources(NewRenderAssets(), &Transparent3d{}, &DrawFunctions{}, &ViewBindGroup{}, &FrameResources{})
	cmd.UseSystem(System(releaseFrameResourcesSystem).InStage(Extract).RunAlways())

	cmd.UseSystem(System(prepareRenderAssetsSystem).InStage(Prepare).RunAlways())
	cmd.UseSystem(System(prepareViewBindGroupSystem).InStage(Prepare).RunAlways())
	cmd.UseSystem(System(prepareMeshBindGroupsSystem).InStage(Prepare).RunAlways())
	cmd.UseSystem(System(renderSystem).InStage(Render).RunAlways())
}

func (RenderModule) Finish(app *App, cmd *Commands) {
	device, ok := Resource[RenderDevice](app)
	if !ok {
		panic("RenderModule needs a RenderDevice resource")
	}
	pipeline, err := NewMeshPipeline(device.Device)
	if err != nil {
		panic(err)
	}
	cmd.AddResources(pipeline)
}

func renderSystem(rcmd *RenderCommands, device *RenderDevice, phase *Transparent3d, draws *DrawFunctions, clear *ClearColor) {
	defer phase.Clear()
	logger := rcmd.App().Logger()

	frame, err := device.Device.BeginFrame(clear.Color)
	if err != nil {
		if device.skipped == 0 {
			logger.Warnf("skipping frame: %v", err)
		} else {
			logger.Debugf("skipping frame: %v", err)
		}
		device.skipped++
		return
	}
	if device.skipped > 0 {
		logger.Infof("surface available again after %d skipped frames", device.skipped)
		device.skipped = 0
	}

	phase.Sort()
	pass := NewTrackedRenderPass(frame.RenderPass())
	for _, item := range phase.Items {
		draw, ok := draws.get(item.DrawFunction)
		if !ok {
			panic(fmt.Errorf("draw function %d is not registered", item.DrawFunction))
		}
		if _, err := draw.Render(rcmd, pass, item); err != nil {
			panic(fmt.Errorf("draw entity %d: %w", item.Entity, err))
		}
	}
	pass.pass.End()

	if err := frame.Present(); err != nil {
		logger.Warnf("present failed: %v", err)
	}
}
