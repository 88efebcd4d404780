package config

import (
	"fmt"

	"github.com/akmonengine/tendon"
	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/constraint"
)

// Built is a world created from a scene, with its bodies and joints by name
type Built struct {
	World  *tendon.World
	Bodies map[string]*actor.RigidBody
	Joints map[string]constraint.JointHandle

	// Names in scene order
	BodyNames  []string
	JointNames []string
}

func (s ShapeConfig) build() (actor.ShapeInterface, error) {
	switch s.Type {
	case "sphere":
		return &actor.Sphere{Radius: s.Radius}, nil
	case "box":
		return &actor.Box{HalfExtents: s.HalfExtents}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownShape, s.Type)
}

func parseBodyType(s string) (actor.BodyType, error) {
	switch s {
	case "dynamic":
		return actor.BodyTypeDynamic, nil
	case "static":
		return actor.BodyTypeStatic, nil
	case "kinematic":
		return actor.BodyTypeKinematic, nil
	}

	return actor.BodyTypeDynamic, fmt.Errorf("%w: %q", ErrUnknownBodyType, s)
}

func (b BodyConfig) build() (*actor.RigidBody, error) {
	shape, err := b.Shape.build()
	if err != nil {
		return nil, err
	}
	bodyType, err := parseBodyType(b.Type)
	if err != nil {
		return nil, err
	}

	body := actor.NewRigidBody(actor.NewTransformAt(b.Position, b.Rotation.Quat()), shape, bodyType, b.Density)
	body.Velocity = b.Velocity
	body.AngularVelocity = b.AngularVelocity
	body.Material.LinearDamping = b.LinearDamping
	body.Material.AngularDamping = b.AngularDamping

	return body, nil
}

func parseMotions(motions [3]string) ([3]constraint.JointMotionType, error) {
	var parsed [3]constraint.JointMotionType
	for i, m := range motions {
		motion, err := constraint.ParseJointMotionType(m)
		if err != nil {
			return parsed, err
		}
		parsed[i] = motion
	}
	return parsed, nil
}

// orUnlimited maps the zero "disabled" value of the scene to constraint.Unlimited
func orUnlimited(v float64) float64 {
	if v == 0 {
		return constraint.Unlimited
	}
	return v
}

// Settings converts the joint to constraint settings. The connector
// transforms are left to the caller.
func (j JointConfig) Settings() (constraint.JointSettings, error) {
	s := constraint.DefaultJointSettings()
	var err error

	s.Stiffness = j.Stiffness
	s.ParentInvMassScale = j.ParentInvMassScale

	if s.LinearMotionTypes, err = parseMotions(j.Linear.Motion); err != nil {
		return s, err
	}
	s.LinearLimit = j.Linear.Limit
	s.LinearRestitution = j.Linear.Restitution
	s.LinearContactDistance = j.Linear.ContactDistance
	if soft := j.Linear.Soft; soft != nil {
		s.SoftLinearLimitsEnabled = true
		s.SoftLinearStiffness, s.SoftLinearDamping = soft.Stiffness, soft.Damping
		if s.LinearSoftForceMode, err = constraint.ParseJointForceMode(soft.ForceMode); err != nil {
			return s, err
		}
	}

	if s.AngularMotionTypes, err = parseMotions(j.Angular.Motion); err != nil {
		return s, err
	}
	s.AngularLimits = j.Angular.Limits
	s.TwistRestitution = j.Angular.TwistRestitution
	s.SwingRestitution = j.Angular.SwingRestitution
	s.TwistContactDistance = j.Angular.TwistContactDistance
	s.SwingContactDistance = j.Angular.SwingContactDistance
	if soft := j.Angular.SoftTwist; soft != nil {
		s.SoftTwistLimitsEnabled = true
		s.SoftTwistStiffness, s.SoftTwistDamping = soft.Stiffness, soft.Damping
		if s.AngularSoftForceMode, err = constraint.ParseJointForceMode(soft.ForceMode); err != nil {
			return s, err
		}
	}
	if soft := j.Angular.SoftSwing; soft != nil {
		s.SoftSwingLimitsEnabled = true
		s.SoftSwingStiffness, s.SoftSwingDamping = soft.Stiffness, soft.Damping
		if s.AngularSoftForceMode, err = constraint.ParseJointForceMode(soft.ForceMode); err != nil {
			return s, err
		}
	}

	linearDrive := j.Linear.Drive
	s.LinearPositionDriveEnabled = linearDrive.PositionAxes
	s.LinearVelocityDriveEnabled = linearDrive.VelocityAxes
	s.LinearDrivePositionTarget = linearDrive.PositionTarget
	s.LinearDriveVelocityTarget = linearDrive.VelocityTarget
	s.LinearDriveStiffness = linearDrive.Stiffness
	s.LinearDriveDamping = linearDrive.Damping
	if s.LinearDriveForceMode, err = constraint.ParseJointForceMode(linearDrive.ForceMode); err != nil {
		return s, err
	}

	angularDrive := j.Angular.Drive
	s.AngularSLerpPositionDriveEnabled = angularDrive.SLerpPosition
	s.AngularSLerpVelocityDriveEnabled = angularDrive.SLerpVelocity
	s.AngularTwistPositionDriveEnabled = angularDrive.TwistPosition
	s.AngularTwistVelocityDriveEnabled = angularDrive.TwistVelocity
	s.AngularSwingPositionDriveEnabled = angularDrive.SwingPosition
	s.AngularSwingVelocityDriveEnabled = angularDrive.SwingVelocity
	s.AngularDrivePositionTarget = angularDrive.PositionTarget.Quat()
	s.AngularDriveVelocityTarget = angularDrive.VelocityTarget
	s.AngularDriveStiffness = angularDrive.Stiffness
	s.AngularDriveDamping = angularDrive.Damping
	if s.AngularDriveForceMode, err = constraint.ParseJointForceMode(angularDrive.ForceMode); err != nil {
		return s, err
	}

	s.LinearBreakForce = orUnlimited(j.Break.Force)
	s.AngularBreakTorque = orUnlimited(j.Break.Torque)
	s.LinearPlasticityLimit = orUnlimited(j.Plasticity.LinearLimit)
	s.AngularPlasticityLimit = orUnlimited(j.Plasticity.AngularLimit)
	if s.LinearPlasticityType, err = constraint.ParsePlasticityType(j.Plasticity.Type); err != nil {
		return s, err
	}

	s.ProjectionEnabled = j.Projection.Enabled
	s.SoftProjectionEnabled = j.Projection.Soft
	s.LinearProjection = j.Projection.Linear
	s.AngularProjection = j.Projection.Angular

	return s, nil
}

// Build validates the scene and creates its world
func (s *Scene) Build() (*Built, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	solverType, err := constraint.ParseSolverType(s.World.SolverType)
	if err != nil {
		return nil, err
	}

	w := tendon.NewWorld(s.Solver)
	w.Gravity = s.World.Gravity
	w.Substeps = s.World.Substeps
	w.Iterations = s.World.Iterations
	w.PushOutIterations = s.World.PushOutIterations
	w.Workers = s.World.Workers
	w.SleepTime = s.World.SleepTime
	w.SleepVelocity = s.World.SleepVelocity
	w.Joints.SetSolverType(solverType)

	built := &Built{
		World:  w,
		Bodies: make(map[string]*actor.RigidBody, len(s.Bodies)),
		Joints: make(map[string]constraint.JointHandle, len(s.Joints)),
	}

	for _, bc := range s.Bodies {
		body, err := bc.build()
		if err != nil {
			return nil, fmt.Errorf("body %q: %w", bc.Name, err)
		}

		w.AddBody(body)
		built.Bodies[bc.Name] = body
		built.BodyNames = append(built.BodyNames, bc.Name)
	}

	for i, jc := range s.Joints {
		name := jc.name(i)
		settings, err := jc.Settings()
		if err != nil {
			return nil, fmt.Errorf("joint %q: %w", name, err)
		}

		pair := constraint.ParticlePair{built.Bodies[jc.Child], built.Bodies[jc.Parent]}
		frame := actor.NewTransformAt(jc.Anchor, jc.AnchorRotation.Quat())
		handle := w.Joints.AddConstraintWorldFrame(pair, frame, settings)
		if jc.Disabled {
			handle.SetEnabled(false)
		}

		built.Joints[name] = handle
		built.JointNames = append(built.JointNames, name)
	}

	return built, nil
}
