// Package client opens the desktop window the renderer draws into.
package client

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/foliage"
	"github.com/gekko3d/foliage/gpu/wgpubackend"
)

// WindowModule opens a GLFW window and a wgpu device on it, then provides
// RenderDevice, Input and WindowState. Closing the window exits the app;
// call WindowState.Close once Run returns.
type WindowModule struct {
	Width           int
	Height          int
	Title           string
	VSync           bool
	SampleCount     uint32
	ValidateShaders bool
}

type WindowState struct {
	window *glfw.Window
	device *wgpubackend.Device

	Width  int
	Height int
}

func (mod WindowModule) Install(app *foliage.App, cmd *foliage.Commands) {
	if mod.Width <= 0 {
		mod.Width = 1280
	}
	if mod.Height <= 0 {
		mod.Height = 720
	}
	if mod.Title == "" {
		mod.Title = "foliage"
	}

	samples := mod.SampleCount
	if msaa, ok := foliage.Resource[foliage.Msaa](app); ok {
		samples = msaa.Samples
	} else {
		if samples == 0 {
			samples = 4
		}
		cmd.AddResources(&foliage.Msaa{Samples: samples})
	}

	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(fmt.Errorf("init glfw: %w", err))
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Important: tell GLFW we don't want OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(mod.Width, mod.Height, mod.Title, nil, nil)
	if err != nil {
		panic(fmt.Errorf("create window: %w", err))
	}

	device, err := wgpubackend.New(wgpuglfw.GetSurfaceDescriptor(win), wgpubackend.Options{
		Width:           mod.Width,
		Height:          mod.Height,
		SampleCount:     samples,
		VSync:           mod.VSync,
		ValidateShaders: mod.ValidateShaders,
	})
	if err != nil {
		panic(fmt.Errorf("create render device: %w", err))
	}

	input := &foliage.Input{WindowWidth: mod.Width, WindowHeight: mod.Height}
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		input.Scroll += yoff
	})
	input.MouseX, input.MouseY = win.GetCursorPos()

	cmd.AddResources(
		&WindowState{window: win, device: device, Width: mod.Width, Height: mod.Height},
		&foliage.RenderDevice{Device: device},
		input,
	)
	cmd.UseSystem(foliage.System(windowSystem).InStage(foliage.PreUpdate).RunAlways())
}

func windowSystem(cmd *foliage.Commands, state *WindowState, input *foliage.Input) {
	input.ResetFrame()
	glfw.PollEvents()

	if state.window.ShouldClose() {
		cmd.Exit()
		return
	}

	for key, glfwKey := range keyToGlfw {
		input.SetPressed(key, state.window.GetKey(glfwKey) == glfw.Press)
	}
	for btn, glfwBtn := range buttonToGlfw {
		input.SetPressed(btn, state.window.GetMouseButton(glfwBtn) == glfw.Press)
	}
	input.MoveMouse(state.window.GetCursorPos())

	width, height := state.window.GetFramebufferSize()
	input.WindowWidth, input.WindowHeight = width, height
	if width == state.Width && height == state.Height {
		return
	}
	if err := state.device.Resize(width, height); err != nil {
		panic(fmt.Errorf("resize surface: %w", err))
	}
	state.Width, state.Height = width, height
	if height > 0 {
		aspect := float32(width) / float32(height)
		foliage.MakeQuery1[foliage.CameraComponent](cmd).Map(func(_ foliage.EntityId, cam *foliage.CameraComponent) bool {
			cam.Aspect = aspect
			return true
		})
	}
}

// Close releases the device and the window.
func (state *WindowState) Close() {
	state.device.Release()
	state.window.Destroy()
	glfw.Terminate()
}

var keyToGlfw = map[int]glfw.Key{
	foliage.KeyA:       glfw.KeyA,
	foliage.KeyD:       glfw.KeyD,
	foliage.KeyE:       glfw.KeyE,
	foliage.KeyF:       glfw.KeyF,
	foliage.KeyQ:       glfw.KeyQ,
	foliage.KeyS:       glfw.KeyS,
	foliage.KeyW:       glfw.KeyW,
	foliage.KeySpace:   glfw.KeySpace,
	foliage.KeyEscape:  glfw.KeyEscape,
	foliage.KeyTab:     glfw.KeyTab,
	foliage.KeyShift:   glfw.KeyLeftShift,
	foliage.KeyControl: glfw.KeyLeftControl,
	foliage.KeyF1:      glfw.KeyF1,
	foliage.KeyF3:      glfw.KeyF3,
}

var buttonToGlfw = map[int]glfw.MouseButton{
	foliage.MouseButtonLeft:   glfw.MouseButtonLeft,
	foliage.MouseButtonRight:  glfw.MouseButtonRight,
	foliage.MouseButtonMiddle: glfw.MouseButtonMiddle,
}
