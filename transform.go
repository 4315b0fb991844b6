package foliage

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TransformComponent places an entity in the world. The world is Z-up.
type TransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform(position mgl32.Vec3) TransformComponent {
	return TransformComponent{
		Position: position,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Matrix returns T * R * S.
func (t TransformComponent) Matrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.rotation().Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

func (t TransformComponent) Translation() mgl32.Vec3 {
	return t.Position
}

// WithScale returns a copy scaled uniformly by s.
func (t TransformComponent) WithScale(s float32) TransformComponent {
	t.Scale = mgl32.Vec3{s, s, s}
	return t
}

func (t TransformComponent) WithRotation(q mgl32.Quat) TransformComponent {
	t.Rotation = q
	return t
}

// LookAt turns the transform so that its -Z axis points at target.
func (t TransformComponent) LookAt(target, up mgl32.Vec3) TransformComponent {
	view := mgl32.LookAtV(t.Position, target, up)
	t.Rotation = mgl32.Mat4ToQuat(view.Inv()).Normalize()
	return t
}

// A zero quaternion is treated as identity so zero-valued transforms stay usable.
func (t TransformComponent) rotation() mgl32.Quat {
	if t.Rotation.W == 0 && t.Rotation.V == (mgl32.Vec3{}) {
		return mgl32.QuatIdent()
	}
	return t.Rotation
}
