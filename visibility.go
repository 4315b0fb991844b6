package foliage

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Visibility is what gameplay code asks for. DistanceCullingSystem rewrites
// Hidden every frame on entities with a DistanceCulling component, so calls
// to hide those entities only last until the next Update. Entities without
// DistanceCulling keep whatever Hidden was set to.
type Visibility struct {
	Hidden bool
}

// ComputedVisibility is the outcome for this frame, read by extraction.
type ComputedVisibility struct {
	Visible bool
}

// Aabb is an axis aligned box in the local space of the entity transform.
type Aabb struct {
	Center      mgl32.Vec3
	HalfExtents mgl32.Vec3
}

// AabbFromMinMax builds the box spanning min to max.
func AabbFromMinMax(min, max mgl32.Vec3) Aabb {
	return Aabb{
		Center:      min.Add(max).Mul(0.5),
		HalfExtents: max.Sub(min).Mul(0.5),
	}
}

// World returns the world space box enclosing a transformed by m.
func (a Aabb) World(m mgl32.Mat4) (min, max mgl32.Vec3) {
	inf := float32(math.Inf(1))
	min = mgl32.Vec3{inf, inf, inf}
	max = mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i < 8; i++ {
		corner := a.Center
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) != 0 {
				corner[axis] += a.HalfExtents[axis]
			} else {
				corner[axis] -= a.HalfExtents[axis]
			}
		}
		p := m.Mul4x1(corner.Vec4(1)).Vec3()
		for axis := 0; axis < 3; axis++ {
			min[axis] = float32(math.Min(float64(min[axis]), float64(p[axis])))
			max[axis] = float32(math.Max(float64(max[axis]), float64(p[axis])))
		}
	}
	return min, max
}

type VisibilityModule struct{}

func (VisibilityModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(computeVisibilitySystem).InStage(PostUpdate).RunAlways())
}

// computeVisibilitySystem combines Visibility with a frustum test against
// the single camera. Without exactly one camera only Visibility counts.
func computeVisibilitySystem(cmd *Commands) {
	_, camTransform, camera, ok := singleCamera(cmd)
	var frustum Frustum
	if ok {
		frustum = FrustumFromViewProj(camera.Projection().Mul4(ViewMatrix(camTransform)))
	}

	MakeQuery3[Visibility, ComputedVisibility, TransformComponent](cmd).Map(
		func(eid EntityId, vis *Visibility, computed *ComputedVisibility, transform *TransformComponent) bool {
			computed.Visible = !vis.Hidden
			if !computed.Visible || !ok {
				return true
			}
			if aabb, has := GetComponent[Aabb](cmd, eid); has {
				min, max := aabb.World(transform.Matrix())
				computed.Visible = frustum.IntersectsAabb(min, max)
			}
			return true
		})
}
