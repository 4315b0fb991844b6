package foliage

const (
	KeyA int = iota
	KeyD
	KeyE
	KeyF
	KeyQ
	KeyS
	KeyW
	KeySpace
	KeyEscape
	KeyTab
	KeyShift
	KeyControl
	KeyF1
	KeyF3
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle

	inputCount
)

// Input is the per frame snapshot of keyboard and mouse state, filled by
// the window module in PreUpdate.
type Input struct {
	Pressed [inputCount]bool

	JustPressed  [inputCount]bool
	JustReleased [inputCount]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	// Scroll is the wheel offset accumulated since the previous frame.
	Scroll float64

	WindowWidth, WindowHeight int
}

// SetPressed records the state of one key or button for this frame and
// derives the edge flags from the previous frame.
func (in *Input) SetPressed(key int, down bool) {
	in.JustPressed[key] = down && !in.Pressed[key]
	in.JustReleased[key] = !down && in.Pressed[key]
	in.Pressed[key] = down
}

// MoveMouse sets the cursor position; the delta is relative to the last call.
func (in *Input) MoveMouse(x, y float64) {
	in.MouseDeltaX = x - in.MouseX
	in.MouseDeltaY = y - in.MouseY
	in.MouseX = x
	in.MouseY = y
}

// ResetFrame clears what only lives for a single frame.
func (in *Input) ResetFrame() {
	in.Scroll = 0
}
