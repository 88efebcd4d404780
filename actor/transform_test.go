package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestNewTransformAt(t *testing.T) {
	// Unnormalized input rotation
	tr := NewTransformAt(mgl64.Vec3{1, 2, 3}, mgl64.Quat{W: 2, V: mgl64.Vec3{0, 0, 0}})

	if !quatAlmostEqual(tr.Rotation, mgl64.QuatIdent(), 1e-12) {
		t.Errorf("Rotation = %v, want identity", tr.Rotation)
	}
	if !quatAlmostEqual(tr.InverseRotation, mgl64.QuatIdent(), 1e-12) {
		t.Errorf("InverseRotation = %v, want identity", tr.InverseRotation)
	}
}

func TestTransform_PositionRoundTrip(t *testing.T) {
	tr := NewTransformAt(mgl64.Vec3{1, -2, 0.5}, mgl64.QuatRotate(math.Pi/3, mgl64.Vec3{1, 1, 0}.Normalize()))
	local := mgl64.Vec3{0.3, 0.7, -1.1}

	world := tr.TransformPosition(local)
	back := tr.InverseTransformPosition(world)

	if !vec3AlmostEqual(back, local, 1e-12) {
		t.Errorf("InverseTransformPosition(TransformPosition(p)) = %v, want %v", back, local)
	}
}

func TestTransform_QuarterTurn(t *testing.T) {
	tr := NewTransformAt(mgl64.Vec3{0, 0, 1}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

	got := tr.TransformPosition(mgl64.Vec3{1, 0, 0})
	if !vec3AlmostEqual(got, mgl64.Vec3{0, 1, 1}, 1e-12) {
		t.Errorf("TransformPosition() = %v, want (0, 1, 1)", got)
	}

	want := mgl64.Mat3{0, 1, 0, -1, 0, 0, 0, 0, 1}
	if !mat3Equal(tr.Rotation.Mat4().Mat3(), want, 1e-12) {
		t.Errorf("rotation matrix = %v, want %v", tr.Rotation.Mat4().Mat3(), want)
	}
}

func TestTransform_ComposeRelative(t *testing.T) {
	parent := NewTransformAt(mgl64.Vec3{2, 0, 0}, mgl64.QuatRotate(0.4, mgl64.Vec3{0, 1, 0}))
	world := NewTransformAt(mgl64.Vec3{1, 1, 1}, mgl64.QuatRotate(-0.3, mgl64.Vec3{1, 0, 0}))

	local := parent.Relative(world)
	back := parent.Compose(local)

	if !vec3AlmostEqual(back.Position, world.Position, 1e-12) {
		t.Errorf("Compose(Relative()).Position = %v, want %v", back.Position, world.Position)
	}
	if math.Abs(back.Rotation.Dot(world.Rotation)) < 1-1e-12 {
		t.Errorf("Compose(Relative()).Rotation = %v, want %v", back.Rotation, world.Rotation)
	}
}
