package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

func countMotion(motions [3]JointMotionType, motion JointMotionType) int {
	n := 0
	for _, m := range motions {
		if m == motion {
			n++
		}
	}
	return n
}

// linearLimitAxis returns the direction and length of the connector
// separation restricted to the Limited axes: a sphere for three axes, a
// cylinder for two and a slab for one.
func (s *JointSolver) linearLimitAxis(js *JointSettings) (mgl64.Vec3, float64, bool) {
	cx := s.xs[1].Sub(s.xs[0])

	var v mgl64.Vec3
	for i := range 3 {
		if js.LinearMotionTypes[i] == MotionLimited {
			axis := s.rs[0].Rotate(unitAxis(i))
			v = v.Add(axis.Mul(cx.Dot(axis)))
		}
	}

	d := v.Len()
	if d < smallNumber {
		return mgl64.Vec3{}, 0, false
	}
	return v.Mul(1 / d), d, true
}

// applyLinearConstraints corrects the connector separation. In projection
// mode soft limits are only corrected when soft projection is enabled, and
// then as hard limits.
func (s *JointSolver) applyLinearConstraints(dt float64, ss *JointSolverSettings, js *JointSettings, stiffness float64, project bool) {
	if countMotion(js.LinearMotionTypes, MotionLocked) == 3 {
		s.applyPointConstraint(stiffness)
		return
	}

	for i := range 3 {
		if js.LinearMotionTypes[i] != MotionLocked {
			continue
		}

		axis := s.rs[0].Rotate(unitAxis(i))
		s.applyPositionConstraint(stiffness, axis, s.xs[1].Sub(s.xs[0]).Dot(axis))
	}

	if countMotion(js.LinearMotionTypes, MotionLimited) == 0 {
		return
	}

	axis, distance, ok := s.linearLimitAxis(js)
	if !ok || distance <= js.LinearLimit {
		return
	}

	overshoot := distance - js.LinearLimit
	switch {
	case !js.SoftLinearLimitsEnabled:
		s.applyPositionConstraint(stiffness, axis, overshoot)
	case project:
		if js.SoftProjectionEnabled {
			s.applyPositionConstraint(stiffness, axis, overshoot)
		}
	default:
		accelerationMode := js.LinearSoftForceMode == ForceModeAcceleration
		s.applyPositionConstraintSoft(dt, js.SoftLinearStiffness, js.SoftLinearDamping, accelerationMode, axis, overshoot, 0, &s.linearSoftLambda)
	}
}

func (s *JointSolver) relativeRotation() mgl64.Quat {
	return s.rs[0].Conjugate().Mul(s.rs[1])
}

// applyAngularConstraints corrects twist then swing. stiffness is the
// iteration stiffness, or the projection fraction in projection mode.
func (s *JointSolver) applyAngularConstraints(dt float64, ss *JointSolverSettings, js *JointSettings, stiffness float64, project bool) {
	twistK := stiffness
	swingK := stiffness
	if !project {
		twistK *= twistStiffness(ss, js)
		swingK *= swingStiffness(ss, js)
	}

	motions := js.AngularMotionTypes
	if countMotion(motions, MotionLocked) == 3 {
		s.applyLockedRotationConstraint(math.Min(twistK, swingK))
		return
	}

	switch motions[Twist] {
	case MotionLocked:
		s.applyTwistConstraint(dt, js, twistK, false, false)
	case MotionLimited:
		if ss.EnableTwistLimits {
			if !js.SoftTwistLimitsEnabled {
				s.applyTwistConstraint(dt, js, twistK, true, false)
			} else if !project {
				s.applyTwistConstraint(dt, js, twistK, true, true)
			} else if js.SoftProjectionEnabled {
				s.applyTwistConstraint(dt, js, twistK, true, false)
			}
		}
	}

	soft := js.SoftSwingLimitsEnabled
	if project && soft && !js.SoftProjectionEnabled {
		// only the locked swings are projected
		for _, i := range []AngularConstraintIndex{Swing1, Swing2} {
			if motions[i] == MotionLocked {
				s.applySwingConstraint(dt, js, i, swingK, false, false)
			}
		}
		return
	}
	if project {
		soft = false
	}

	if motions[Swing1] == MotionLimited && motions[Swing2] == MotionLimited {
		if ss.EnableSwingLimits {
			s.applyConeConstraint(dt, js, swingK, soft)
		}
		return
	}

	for _, i := range []AngularConstraintIndex{Swing1, Swing2} {
		switch motions[i] {
		case MotionLocked:
			s.applySwingConstraint(dt, js, i, swingK, false, false)
		case MotionLimited:
			if ss.EnableSwingLimits {
				s.applySwingConstraint(dt, js, i, swingK, true, soft)
			}
		}
	}
}

// limitOvershoot returns how far angle goes past ±limit, keeping its sign
func limitOvershoot(angle, limit float64) (float64, bool) {
	if math.Abs(angle) <= limit {
		return 0, false
	}
	return angle - sign(angle)*limit, true
}

func (s *JointSolver) applyTwistConstraint(dt float64, js *JointSettings, stiffness float64, limited, soft bool) {
	_, twist := decomposeSwingTwist(s.relativeRotation())
	angle := twistAngle(twist)

	if limited {
		var ok bool
		if angle, ok = limitOvershoot(angle, js.AngularLimits[Twist]); !ok {
			return
		}
	}

	axis := s.rs[1].Rotate(TwistAxis)
	if soft {
		accelerationMode := js.AngularSoftForceMode == ForceModeAcceleration
		s.applyRotationConstraintSoft(dt, js.SoftTwistStiffness, js.SoftTwistDamping, accelerationMode, axis, angle, 0, &s.twistSoftLambda)
		return
	}
	s.applyRotationConstraint(stiffness, axis, angle)
}

func (s *JointSolver) applySwingConstraint(dt float64, js *JointSettings, index AngularConstraintIndex, stiffness float64, limited, soft bool) {
	swing, _ := decomposeSwingTwist(s.relativeRotation())
	swing1, swing2 := swingAngles(swing)
	angle := swing1
	if index == Swing2 {
		angle = swing2
	}

	if limited {
		var ok bool
		if angle, ok = limitOvershoot(angle, js.AngularLimits[index]); !ok {
			return
		}
	}

	axis := s.rs[0].Rotate(index.Axis())
	if soft {
		accelerationMode := js.AngularSoftForceMode == ForceModeAcceleration
		s.applyRotationConstraintSoft(dt, js.SoftSwingStiffness, js.SoftSwingDamping, accelerationMode, axis, angle, 0, &s.swingSoftLambda)
		return
	}
	s.applyRotationConstraint(stiffness, axis, angle)
}

// applyConeConstraint limits the swing to an elliptical cone
func (s *JointSolver) applyConeConstraint(dt float64, js *JointSettings, stiffness float64, soft bool) {
	swing, _ := decomposeSwingTwist(s.relativeRotation())
	if swing.W < 0 {
		swing = swing.Scale(-1)
	}

	sinHalf := swing.V.Len()
	if sinHalf < math.Max(s.swingTolerance, smallNumber) {
		return
	}

	localAxis := swing.V.Mul(1 / sinHalf)
	angle := 2 * math.Atan2(sinHalf, swing.W)
	limit := coneLimit(js.AngularLimits[Swing1], js.AngularLimits[Swing2], localAxis)
	if angle <= limit {
		return
	}

	axis := s.rs[0].Rotate(localAxis)
	if soft {
		accelerationMode := js.AngularSoftForceMode == ForceModeAcceleration
		s.applyRotationConstraintSoft(dt, js.SoftSwingStiffness, js.SoftSwingDamping, accelerationMode, axis, angle-limit, 0, &s.swingSoftLambda)
		return
	}
	s.applyRotationConstraint(stiffness, axis, angle-limit)
}

func (s *JointSolver) applyDrives(dt float64, ss *JointSolverSettings, js *JointSettings) {
	s.applyLinearDrives(dt, ss, js)

	switch {
	case js.AngularSLerpPositionDriveEnabled || js.AngularSLerpVelocityDriveEnabled:
		s.applySLerpDrive(dt, ss, js)
	case js.AngularTwistPositionDriveEnabled || js.AngularTwistVelocityDriveEnabled ||
		js.AngularSwingPositionDriveEnabled || js.AngularSwingVelocityDriveEnabled:
		s.applySwingTwistDrives(dt, ss, js)
	}
}

// applyLinearDrives pulls the child connector toward the position target,
// expressed in the parent connector frame, and toward the velocity target.
func (s *JointSolver) applyLinearDrives(dt float64, ss *JointSolverSettings, js *JointSettings) {
	stiffness := linearDriveStiffness(ss, js)
	damping := linearDriveDamping(ss, js)
	accelerationMode := js.LinearDriveForceMode == ForceModeAcceleration

	for i := range 3 {
		position := js.LinearPositionDriveEnabled[i]
		velocity := js.LinearVelocityDriveEnabled[i]
		if js.LinearMotionTypes[i] == MotionLocked || (!position && !velocity) {
			continue
		}

		axis := s.rs[0].Rotate(unitAxis(i))
		var k, delta, targetVelDt float64
		if position {
			k = stiffness
			target := s.xs[0].Add(s.rs[0].Rotate(js.LinearDrivePositionTarget))
			delta = s.xs[1].Sub(target).Dot(axis)
		}
		if velocity {
			targetVelDt = js.LinearDriveVelocityTarget[i] * dt
		}
		if k == 0 && damping == 0 {
			continue
		}

		s.applyPositionConstraintSoft(dt, k, damping, accelerationMode, axis, delta, targetVelDt, &s.linearDriveLambdas[i])
	}
}

// applySLerpDrive drives the whole child rotation toward the target, in the parent connector frame
func (s *JointSolver) applySLerpDrive(dt float64, ss *JointSolverSettings, js *JointSettings) {
	position := js.AngularSLerpPositionDriveEnabled
	velocity := js.AngularSLerpVelocityDriveEnabled

	stiffness := 0.0
	if position {
		stiffness = angularDriveStiffness(ss, js)
	}
	damping := angularDriveDamping(ss, js)
	if stiffness == 0 && damping == 0 {
		return
	}
	accelerationMode := js.AngularDriveForceMode == ForceModeAcceleration

	for i := range 3 {
		axis := s.rs[0].Rotate(unitAxis(i))

		var angle, targetAngVelDt float64
		if position {
			target := enforceShortestArcWith(s.rs[0].Mul(js.AngularDrivePositionTarget), s.rs[1])
			angle = rotationDelta(target, s.rs[1]).Dot(axis)
		}
		if velocity {
			targetAngVelDt = js.AngularDriveVelocityTarget[i] * dt
		}

		s.applyRotationConstraintSoft(dt, stiffness, damping, accelerationMode, axis, angle, targetAngVelDt, &s.angularDriveLambdas[i])
	}
}

// applySwingTwistDrives drives twist and swing separately
func (s *JointSolver) applySwingTwistDrives(dt float64, ss *JointSolverSettings, js *JointSettings) {
	stiffness := angularDriveStiffness(ss, js)
	damping := angularDriveDamping(ss, js)
	accelerationMode := js.AngularDriveForceMode == ForceModeAcceleration

	for _, index := range []AngularConstraintIndex{Twist, Swing1, Swing2} {
		if js.AngularMotionTypes[index] == MotionLocked {
			continue
		}

		position, velocity := js.AngularSwingPositionDriveEnabled, js.AngularSwingVelocityDriveEnabled
		axis := s.rs[0].Rotate(index.Axis())
		if index == Twist {
			position, velocity = js.AngularTwistPositionDriveEnabled, js.AngularTwistVelocityDriveEnabled
			axis = s.rs[1].Rotate(TwistAxis)
		}
		if !position && !velocity {
			continue
		}

		var k, angle, targetAngVelDt float64
		if position {
			k = stiffness
			target := enforceShortestArcWith(s.rs[0].Mul(js.AngularDrivePositionTarget), s.rs[1])
			angle = rotationDelta(target, s.rs[1]).Dot(axis)
		}
		if velocity {
			targetAngVelDt = js.AngularDriveVelocityTarget.Dot(index.Axis()) * dt
		}
		if k == 0 && damping == 0 {
			continue
		}

		s.applyRotationConstraintSoft(dt, k, damping, accelerationMode, axis, angle, targetAngVelDt, &s.angularDriveLambdas[index])
	}
}
