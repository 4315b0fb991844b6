package foliage

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraComponent is a perspective camera. The world transform of the entity
// is the camera pose; the camera looks down its local -Z axis.
type CameraComponent struct {
	Fov    float32 // vertical, degrees
	Aspect float32
	Near   float32
	Far    float32
}

func DefaultCamera() CameraComponent {
	return CameraComponent{Fov: 60, Aspect: 16.0 / 9.0, Near: 0.1, Far: 5000}
}

// Projection is OpenGL style with depth in [-1, 1].
func (c CameraComponent) Projection() mgl32.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), aspect, c.Near, c.Far)
}

func ViewMatrix(transform TransformComponent) mgl32.Mat4 {
	return transform.Matrix().Inv()
}

// OpenGLToWgpu remaps clip space depth from [-1, 1] to [0, 1].
var OpenGLToWgpu = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Frustum holds six planes (left, right, bottom, top, near, far) in
// Ax+By+Cz+D=0 form with normals pointing inside.
type Frustum [6]mgl32.Vec4

// FrustumFromViewProj extracts the planes of an OpenGL style view-projection matrix.
func FrustumFromViewProj(vp mgl32.Mat4) Frustum {
	var planes Frustum
	for i := 0; i < 3; i++ {
		planes[2*i] = mgl32.Vec4{
			vp.At(3, 0) + vp.At(i, 0),
			vp.At(3, 1) + vp.At(i, 1),
			vp.At(3, 2) + vp.At(i, 2),
			vp.At(3, 3) + vp.At(i, 3),
		}
		planes[2*i+1] = mgl32.Vec4{
			vp.At(3, 0) - vp.At(i, 0),
			vp.At(3, 1) - vp.At(i, 1),
			vp.At(3, 2) - vp.At(i, 2),
			vp.At(3, 3) - vp.At(i, 3),
		}
	}

	for i := range planes {
		length := float32(math.Sqrt(float64(planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// IntersectsAabb reports whether the world space box [min, max] is at least
// partly inside. Uses the positive vertex test, so boxes near a frustum
// corner may be reported visible.
func (f Frustum) IntersectsAabb(min, max mgl32.Vec3) bool {
	for _, plane := range f {
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = max[axis]
			} else {
				p[axis] = min[axis]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}

// singleCamera returns the only camera of the world. Zero or several cameras
// yield !ok; nothing in this engine picks between cameras.
func singleCamera(q Querier) (EntityId, TransformComponent, CameraComponent, bool) {
	var (
		id        EntityId
		transform TransformComponent
		camera    CameraComponent
		count     int
	)
	MakeQuery2[TransformComponent, CameraComponent](q).Map(func(eid EntityId, t *TransformComponent, c *CameraComponent) bool {
		count++
		id, transform, camera = eid, *t, *c
		return count < 2
	})
	if count != 1 {
		return 0, TransformComponent{}, CameraComponent{}, false
	}
	return id, transform, camera, true
}

// ExtractedView is the render world copy of the single camera.
type ExtractedView struct {
	ViewProj mgl32.Mat4 // wgpu clip space
	View     mgl32.Mat4
	Position mgl32.Vec3
	Valid    bool
}

type CameraModule struct{}

func (CameraModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&ExtractedView{})
	cmd.UseSystem(System(extractViewSystem).InStage(Extract).RunAlways())
}

func extractViewSystem(cmd *Commands, view *ExtractedView) {
	_, transform, camera, ok := singleCamera(cmd)
	if !ok {
		*view = ExtractedView{}
		return
	}
	v := ViewMatrix(transform)
	*view = ExtractedView{
		ViewProj: OpenGLToWgpu.Mul4(camera.Projection()).Mul4(v),
		View:     v,
		Position: transform.Position,
		Valid:    true,
	}
}
