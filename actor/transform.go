package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// NewTransformAt creates a transform from a position and a rotation.
// The rotation is normalized and its inverse cached.
func NewTransformAt(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	rotation = rotation.Normalize()

	return Transform{
		Position:        position,
		Rotation:        rotation,
		InverseRotation: rotation.Inverse(),
	}
}

// TransformPosition maps a point from local space to the space of t
func (t Transform) TransformPosition(local mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Rotation.Rotate(local))
}

// InverseTransformPosition maps a point from the space of t back to local space
func (t Transform) InverseTransformPosition(world mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(world.Sub(t.Position))
}

// Compose returns the transform local expressed in the parent space t
func (t Transform) Compose(local Transform) Transform {
	return NewTransformAt(t.TransformPosition(local.Position), t.Rotation.Mul(local.Rotation))
}

// Relative returns world expressed in the local space of t, so that t.Compose(t.Relative(world)) == world
func (t Transform) Relative(world Transform) Transform {
	inv := t.Rotation.Conjugate()

	return NewTransformAt(inv.Rotate(world.Position.Sub(t.Position)), inv.Mul(world.Rotation))
}
