package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ApplyProjections moves the child body only, removing a fraction of the
// residual error left by the position passes. The parent is treated as
// immovable and the net impulses are left untouched.
func (s *JointSolver) ApplyProjections(dt float64, ss *JointSolverSettings, js *JointSettings) {
	s.numActive = 0

	linear := linearProjection(ss, js)
	angular := angularProjection(ss, js)
	if !js.ProjectionEnabled || s.invMs[1] == 0 || (linear <= 0 && angular <= 0) {
		s.isActive = false
		return
	}

	invM0, invIL0 := s.invMs[0], s.invILs[0]
	netLinear, netAngular := s.netLinearImpulse, s.netAngularImpulse
	p1, q1 := s.ps[1], s.qs[1]

	s.invMs[0], s.invILs[0] = 0, mgl64.Vec3{}
	s.updateDerivedState()

	if angular > 0 {
		s.applyAngularConstraints(dt, ss, js, angular, true)
	}
	if linear > 0 {
		s.applyLinearConstraints(dt, ss, js, linear, true)
	}

	s.invMs[0], s.invILs[0] = invM0, invIL0
	s.updateDerivedState()
	s.netLinearImpulse, s.netAngularImpulse = netLinear, netAngular

	if alpha := ss.VelocityProjectionAlpha; alpha > 0 && dt > smallNumber {
		s.vs[1] = s.vs[1].Add(s.ps[1].Sub(p1).Mul(alpha / dt))
		s.ws[1] = s.ws[1].Add(rotationDelta(q1, s.qs[1]).Mul(alpha / dt))
	}

	s.isActive = s.numActive > 0
}

// ApplyVelocityConstraints removes the relative velocity along locked axes,
// and the separating velocity along limits that are reached, keeping the
// limit restitution.
func (s *JointSolver) ApplyVelocityConstraints(dt float64, ss *JointSolverSettings, js *JointSettings) {
	s.numActive = 0

	s.applyLinearVelocityConstraints(js)
	s.applyAngularVelocityConstraints(ss, js)

	s.isActive = s.numActive > 0
}

func (s *JointSolver) connectorVelocities() (mgl64.Vec3, mgl64.Vec3) {
	r0 := s.xs[0].Sub(s.ps[0])
	r1 := s.xs[1].Sub(s.ps[1])
	return s.vs[0].Add(s.ws[0].Cross(r0)), s.vs[1].Add(s.ws[1].Cross(r1))
}

func (s *JointSolver) applyLinearVelocityConstraints(js *JointSettings) {
	if countMotion(js.LinearMotionTypes, MotionLocked) == 3 {
		s.applyPointVelocityConstraint()
		return
	}

	for i := range 3 {
		if js.LinearMotionTypes[i] == MotionLocked {
			s.applyVelocityConstraint(s.rs[0].Rotate(unitAxis(i)), 0)
		}
	}

	if js.SoftLinearLimitsEnabled || countMotion(js.LinearMotionTypes, MotionLimited) == 0 {
		return
	}

	axis, distance, ok := s.linearLimitAxis(js)
	if !ok || distance < js.LinearLimit-js.LinearContactDistance {
		return
	}

	vc0, vc1 := s.connectorVelocities()
	if vn := vc1.Sub(vc0).Dot(axis); vn > 0 {
		s.applyVelocityConstraint(axis, -js.LinearRestitution*vn)
	}
}

// applyVelocityConstraint sets the relative connector velocity along axis to targetVel
func (s *JointSolver) applyVelocityConstraint(axis mgl64.Vec3, targetVel float64) {
	r0 := s.xs[0].Sub(s.ps[0])
	r1 := s.xs[1].Sub(s.ps[1])
	iira0 := s.invIs[0].Mul3x1(r0.Cross(axis))
	iira1 := s.invIs[1].Mul3x1(r1.Cross(axis))
	ii := s.invMs[0] + s.invMs[1] + r0.Cross(axis).Dot(iira0) + r1.Cross(axis).Dot(iira1)
	if ii < smallNumber {
		return
	}

	vc0, vc1 := s.connectorVelocities()
	dv := vc1.Sub(vc0).Dot(axis) - targetVel
	lambda := dv / ii

	s.vs[0] = s.vs[0].Add(axis.Mul(lambda * s.invMs[0]))
	s.vs[1] = s.vs[1].Sub(axis.Mul(lambda * s.invMs[1]))
	s.ws[0] = s.ws[0].Add(iira0.Mul(lambda))
	s.ws[1] = s.ws[1].Sub(iira1.Mul(lambda))

	s.markActive(dv, s.positionTolerance)
}

func (s *JointSolver) applyPointVelocityConstraint() {
	r0 := s.xs[0].Sub(s.ps[0])
	r1 := s.xs[1].Sub(s.ps[1])
	k, ok := invertSymmetric(jointFactorMatrix(r0, s.invIs[0], s.invMs[0]).Add(jointFactorMatrix(r1, s.invIs[1], s.invMs[1])))
	if !ok {
		return
	}

	vc0, vc1 := s.connectorVelocities()
	cv := vc1.Sub(vc0)
	dl := k.Mul3x1(cv)

	s.vs[0] = s.vs[0].Add(dl.Mul(s.invMs[0]))
	s.vs[1] = s.vs[1].Sub(dl.Mul(s.invMs[1]))
	s.ws[0] = s.ws[0].Add(s.invIs[0].Mul3x1(r0.Cross(dl)))
	s.ws[1] = s.ws[1].Sub(s.invIs[1].Mul3x1(r1.Cross(dl)))

	s.markActive(cv.Len(), s.positionTolerance)
}

func (s *JointSolver) applyAngularVelocityConstraints(ss *JointSolverSettings, js *JointSettings) {
	motions := js.AngularMotionTypes
	if countMotion(motions, MotionLocked) == 3 {
		s.applyLockedAngularVelocityConstraint()
		return
	}

	swing, twist := decomposeSwingTwist(s.relativeRotation())

	switch motions[Twist] {
	case MotionLocked:
		s.applyAngularVelocityConstraint(s.rs[1].Rotate(TwistAxis), 0)
	case MotionLimited:
		if ss.EnableTwistLimits && !js.SoftTwistLimitsEnabled {
			s.applyAngularLimitVelocity(s.rs[1].Rotate(TwistAxis), twistAngle(twist), js.AngularLimits[Twist], js.TwistContactDistance, js.TwistRestitution)
		}
	}

	swing1, swing2 := swingAngles(swing)
	angles := [3]float64{0, swing1, swing2}
	for _, i := range []AngularConstraintIndex{Swing1, Swing2} {
		axis := s.rs[0].Rotate(i.Axis())
		switch motions[i] {
		case MotionLocked:
			s.applyAngularVelocityConstraint(axis, 0)
		case MotionLimited:
			if ss.EnableSwingLimits && !js.SoftSwingLimitsEnabled {
				s.applyAngularLimitVelocity(axis, angles[i], js.AngularLimits[i], js.SwingContactDistance, js.SwingRestitution)
			}
		}
	}
}

// applyAngularLimitVelocity stops the rotation about axis moving further past a reached limit
func (s *JointSolver) applyAngularLimitVelocity(axis mgl64.Vec3, angle, limit, contactDistance, restitution float64) {
	if math.Abs(angle) < limit-contactDistance {
		return
	}

	axis = axis.Mul(sign(angle))
	if wn := s.ws[1].Sub(s.ws[0]).Dot(axis); wn > 0 {
		s.applyAngularVelocityConstraint(axis, -restitution*wn)
	}
}

func (s *JointSolver) applyAngularVelocityConstraint(axis mgl64.Vec3, targetAngVel float64) {
	ia0 := s.invIs[0].Mul3x1(axis)
	ia1 := s.invIs[1].Mul3x1(axis)
	ii := axis.Dot(ia0) + axis.Dot(ia1)
	if ii < smallNumber {
		return
	}

	dw := s.ws[1].Sub(s.ws[0]).Dot(axis) - targetAngVel
	lambda := dw / ii
	s.ws[0] = s.ws[0].Add(ia0.Mul(lambda))
	s.ws[1] = s.ws[1].Sub(ia1.Mul(lambda))

	s.markActive(dw, s.angleTolerance)
}

func (s *JointSolver) applyLockedAngularVelocityConstraint() {
	k, ok := invertSymmetric(s.invIs[0].Add(s.invIs[1]))
	if !ok {
		return
	}

	cw := s.ws[1].Sub(s.ws[0])
	dl := k.Mul3x1(cw)
	s.ws[0] = s.ws[0].Add(s.invIs[0].Mul3x1(dl))
	s.ws[1] = s.ws[1].Sub(s.invIs[1].Mul3x1(dl))

	s.markActive(cw.Len(), s.angleTolerance)
}
