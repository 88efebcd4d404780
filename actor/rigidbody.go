package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity and joints
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, anchors)
	BodyTypeStatic

	// BodyTypeKinematic bodies follow their own velocity and ignore forces and joints
	BodyTypeKinematic
)

func (t BodyType) String() string {
	switch t {
	case BodyTypeDynamic:
		return "dynamic"
	case BodyTypeStatic:
		return "static"
	case BodyTypeKinematic:
		return "kinematic"
	}

	return "unknown"
}

type Material struct {
	Density float64
	mass    float64

	LinearDamping  float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping float64 // 0.0 - 1.0, typical: 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// ConstraintHandle is the view a body keeps of a constraint attached to it
type ConstraintHandle interface {
	ConstraintIndex() int
}

// RigidBody represents a rigid body in the physics simulation.
// Transform.Position is the center of mass.
type RigidBody struct {
	// Spatial properties
	PreviousTransform Transform
	Transform         Transform

	// Linear motion
	Velocity mgl64.Vec3 // Linear velocity (m/s)

	// Angular motion
	AngularVelocity mgl64.Vec3 // rad/s
	// Inertia
	InertiaLocal        mgl64.Mat3 // Inertia tensor in local space
	InverseInertiaLocal mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64
	// IsDisabled bodies are ignored by the solver, as if they were removed
	IsDisabled bool

	// Physical properties
	Material Material
	BodyType BodyType

	Shape ShapeInterface

	constraints []ConstraintHandle
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static and kinematic)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	if transform.Rotation == (mgl64.Quat{}) {
		transform.Rotation = mgl64.QuatIdent()
	}
	transform.InverseRotation = transform.Rotation.Inverse()

	rb := &RigidBody{
		PreviousTransform: transform,
		Transform:         transform,
		Shape:             shape,
		BodyType:          bodyType,
		Velocity:          mgl64.Vec3{0, 0, 0},
	}

	if bodyType != BodyTypeDynamic {
		// Static and kinematic bodies have infinite mass
		rb.Material = Material{
			Density: 0,
			mass:    math.Inf(1),
		}
		rb.InertiaLocal = shape.ComputeInertia(math.Inf(1))
		rb.InverseInertiaLocal = mgl64.Mat3{}

		return rb
	}

	rb.Material = Material{
		Density: density,
		mass:    shape.ComputeMass(density),
	}
	rb.InertiaLocal = shape.ComputeInertia(rb.Material.mass)
	rb.InverseInertiaLocal = rb.InertiaLocal.Inv()

	return rb
}

// IsDynamic reports whether the body is simulated, asleep or not
func (rb *RigidBody) IsDynamic() bool {
	return rb.BodyType == BodyTypeDynamic
}

// IsKinematic reports whether the body is immovable by forces and joints (static or kinematic)
func (rb *RigidBody) IsKinematic() bool {
	return rb.BodyType != BodyTypeDynamic
}

// InverseMass returns 0 for bodies that cannot be moved by a correction
func (rb *RigidBody) InverseMass() float64 {
	mass := rb.Material.GetMass()
	if rb.IsKinematic() || mass <= 0 || math.IsInf(mass, 1) {
		return 0
	}

	return 1.0 / mass
}

// InverseInertiaLocalDiagonal returns the diagonal of the local inverse inertia tensor
func (rb *RigidBody) InverseInertiaLocalDiagonal() mgl64.Vec3 {
	if rb.IsKinematic() {
		return mgl64.Vec3{}
	}

	return mgl64.Vec3{
		rb.InverseInertiaLocal.At(0, 0),
		rb.InverseInertiaLocal.At(1, 1),
		rb.InverseInertiaLocal.At(2, 2),
	}
}

// SetPose moves the center of mass and rotation, keeping the cached inverse rotation in sync
func (rb *RigidBody) SetPose(position mgl64.Vec3, rotation mgl64.Quat) {
	rb.Transform.Position = position
	rb.Transform.Rotation = rotation
	rb.Transform.InverseRotation = rotation.Inverse()
}

// AddConstraintHandle registers a constraint attached to the body
func (rb *RigidBody) AddConstraintHandle(handle ConstraintHandle) {
	rb.constraints = append(rb.constraints, handle)
}

// RemoveConstraintHandle unregisters a constraint, if present
func (rb *RigidBody) RemoveConstraintHandle(handle ConstraintHandle) {
	for i, h := range rb.constraints {
		if h == handle {
			rb.constraints = append(rb.constraints[:i], rb.constraints[i+1:]...)
			return
		}
	}
}

// ConstraintHandles returns the constraints attached to the body.
// The returned slice must not be modified.
func (rb *RigidBody) ConstraintHandles() []ConstraintHandle {
	return rb.constraints
}

func (rb *RigidBody) TrySleep(dt float64, timethreshold float64, velocityThreshold float64) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}

	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timethreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// Integrate predicts the pose at the end of the substep
func (rb *RigidBody) Integrate(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping || rb.IsDisabled {
		return
	}

	rb.PreviousTransform.Position = rb.Transform.Position
	rb.PreviousTransform.Rotation = rb.Transform.Rotation
	rb.PreviousTransform.InverseRotation = rb.Transform.InverseRotation

	if rb.BodyType == BodyTypeDynamic {
		// ========== LINEAR INTEGRATION ==========
		acceleration := gravity.Add(rb.accumulatedForce.Mul(rb.InverseMass()))
		rb.Velocity = rb.Velocity.Add(acceleration.Mul(dt))
		rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))

		// ========== ANGULAR INTEGRATION ==========
		angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
		rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))
		rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	// ========== UPDATE QUATERNION ==========
	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	rb.ClearForces()
}

// Update derives the velocities from the pose change of the substep
func (rb *RigidBody) Update(dt float64) {
	if rb.BodyType != BodyTypeDynamic || rb.IsSleeping || rb.IsDisabled || dt <= 0 {
		return
	}

	rb.Velocity = rb.Transform.Position.Sub(rb.PreviousTransform.Position).Mul(1.0 / dt)
	qDelta := rb.Transform.Rotation.Mul(rb.PreviousTransform.Rotation.Conjugate())
	qDelta = qDelta.Normalize()
	if qDelta.W >= 0.0 {
		rb.AngularVelocity = qDelta.V.Mul(2.0 / dt)
	} else {
		rb.AngularVelocity = qDelta.V.Mul(-2.0 / dt)
	}
}

// AddForce applies a force in N at the center of mass until the next integration
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()

		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

// AddTorque applies a torque in N⋅m until the next integration
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()

		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

// GetInertiaWorld returns R * I_local * R^T
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// GetInverseInertiaWorld returns R * I_local^(-1) * R^T
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.BodyType != BodyTypeDynamic {
		return mgl64.Mat3{0, 0, 0, 0, 0, 0, 0, 0, 0}
	}

	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
