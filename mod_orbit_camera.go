package foliage

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCamera circles its camera around Center in the Z-up world. The right
// mouse button orbits, the left one pans and the wheel zooms.
type OrbitCamera struct {
	XAngle, YAngle       float32 // radians
	MinYAngle, MaxYAngle float32
	Distance             float32
	MinDistance          float32
	MaxDistance          float32
	Center               mgl32.Vec3
	MinCenter, MaxCenter mgl32.Vec3

	RotateSensitivity float32
	PanSensitivity    float32
	ZoomSensitivity   float32
	Enabled           bool
}

func DefaultOrbitCamera() OrbitCamera {
	return OrbitCamera{
		XAngle:            mgl32.DegToRad(45),
		YAngle:            mgl32.DegToRad(45),
		MinYAngle:         mgl32.DegToRad(1),
		MaxYAngle:         mgl32.DegToRad(85),
		Distance:          5,
		MinDistance:       1,
		MaxDistance:       400,
		MinCenter:         mgl32.Vec3{-100, -100, -100},
		MaxCenter:         mgl32.Vec3{100, 100, 100},
		RotateSensitivity: 1,
		PanSensitivity:    1,
		ZoomSensitivity:   0.8,
		Enabled:           true,
	}
}

// Orbit turns the camera by a mouse delta in pixels over dt seconds.
func (o *OrbitCamera) Orbit(dx, dy, dt float32) {
	o.XAngle -= dx * o.RotateSensitivity * dt
	o.YAngle -= dy * o.RotateSensitivity * dt
	o.YAngle = mgl32.Clamp(o.YAngle, o.MinYAngle, o.MaxYAngle)
}

// Zoom scales the distance by ZoomSensitivity^scroll.
func (o *OrbitCamera) Zoom(scroll float32) {
	o.Distance *= float32(math.Pow(float64(o.ZoomSensitivity), float64(scroll)))
	o.Distance = mgl32.Clamp(o.Distance, o.MinDistance, o.MaxDistance)
}

// Pan moves Center in the ground plane. The mouse delta is scaled by the
// field of view over the window size so the speed does not depend on the
// resolution, then by the distance to the center.
func (o *OrbitCamera) Pan(dx, dy float32, cam CameraComponent, rotation mgl32.Quat, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	fov := mgl32.DegToRad(cam.Fov)
	sx := dx * fov * cam.Aspect / float32(width)
	sy := dy * fov / float32(height)

	right := rotation.Rotate(mgl32.Vec3{1, 0, 0})
	up := rotation.Rotate(mgl32.Vec3{0, 1, 0})
	right[2], up[2] = 0, 0
	right = normalizeOrZero(right).Mul(-sx)
	up = normalizeOrZero(up).Mul(sy)

	pan := right.Add(up).Mul(o.Distance * o.PanSensitivity)
	pan[2] = 0
	o.Center = clampVec3(o.Center.Add(pan), o.MinCenter, o.MaxCenter)
}

// Transform is the camera pose for the current angles and distance.
func (o *OrbitCamera) Transform() TransformComponent {
	rot := mgl32.QuatRotate(o.XAngle, mgl32.Vec3{0, 0, 1}).Mul(mgl32.QuatRotate(o.YAngle, mgl32.Vec3{1, 0, 0}))
	position := rot.Rotate(mgl32.Vec3{0, 0, 1}).Mul(o.Distance).Add(o.Center)
	return NewTransform(position).LookAt(o.Center, mgl32.Vec3{0, 0, 1})
}

func normalizeOrZero(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}

func clampVec3(v, min, max mgl32.Vec3) mgl32.Vec3 {
	for i := range v {
		v[i] = mgl32.Clamp(v[i], min[i], max[i])
	}
	return v
}

type OrbitCameraModule struct{}

func (OrbitCameraModule) Install(app *App, cmd *Commands) {
	app.RequireModule(TimeModule{}, cmd)
	if _, ok := Resource[Input](app); !ok {
		cmd.AddResources(&Input{})
	}
	cmd.UseSystem(System(OrbitCameraSystem).InStage(PreUpdate).RunAlways())
}

// OrbitCameraSystem applies this frame's input to every enabled orbit
// camera and rewrites its transform.
func OrbitCameraSystem(cmd *Commands, input *Input, t *Time) {
	dt := float32(t.Dt.Seconds())
	dx, dy := float32(input.MouseDeltaX), float32(input.MouseDeltaY)

	MakeQuery3[OrbitCamera, CameraComponent, TransformComponent](cmd).Map(
		func(eid EntityId, orbit *OrbitCamera, cam *CameraComponent, transform *TransformComponent) bool {
			if !orbit.Enabled {
				return true
			}
			if input.Pressed[MouseButtonRight] {
				orbit.Orbit(dx, dy, dt)
			}
			if input.Pressed[MouseButtonLeft] {
				orbit.Pan(dx, dy, *cam, transform.rotation(), input.WindowWidth, input.WindowHeight)
			}
			if input.Scroll != 0 {
				orbit.Zoom(float32(input.Scroll))
			}
			*transform = orbit.Transform()
			return true
		})
}
