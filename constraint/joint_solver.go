package constraint

import (
	"math"

	"github.com/akmonengine/tendon/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// JointBodyState is the solver view of one body of a joint
type JointBodyState struct {
	P mgl64.Vec3 // center of mass
	Q mgl64.Quat
	V mgl64.Vec3
	W mgl64.Vec3

	InvM  float64
	InvIL mgl64.Vec3 // local inverse inertia diagonal

	// Pose at the start of the substep, before integration
	PrevP mgl64.Vec3
	PrevQ mgl64.Quat
}

// JointSolver solves one joint with Gauss-Seidel position corrections.
// Body 0 is the parent and body 1 the child.
type JointSolver struct {
	// Connector frames relative to the centers of mass
	xls    [2]actor.Transform
	invILs [2]mgl64.Vec3
	invMs  [2]float64

	// Pose at the start of the substep. Soft terms and drives measure
	// velocities from it.
	prevPs [2]mgl64.Vec3
	prevQs [2]mgl64.Quat
	prevXs [2]mgl64.Vec3

	// Working state
	ps    [2]mgl64.Vec3
	qs    [2]mgl64.Quat
	vs    [2]mgl64.Vec3
	ws    [2]mgl64.Vec3
	xs    [2]mgl64.Vec3
	rs    [2]mgl64.Quat
	invIs [2]mgl64.Mat3

	// Accumulated mass-weighted corrections
	netLinearImpulse  mgl64.Vec3
	netAngularImpulse mgl64.Vec3

	linearSoftLambda    float64
	twistSoftLambda     float64
	swingSoftLambda     float64
	linearDriveLambdas  [3]float64
	angularDriveLambdas [3]float64

	positionTolerance float64
	angleTolerance    float64
	swingTolerance    float64

	stiffness float64
	numActive int
	isActive  bool
}

// Init prepares the solver for an iteration from the body states after
// integration and their poses before it
func (s *JointSolver) Init(dt float64, ss *JointSolverSettings, js *JointSettings, body0, body1 JointBodyState, connectors [2]actor.Transform) {
	s.xls = connectors
	s.invMs = [2]float64{body0.InvM * js.ParentInvMassScale, body1.InvM}
	s.invILs = [2]mgl64.Vec3{body0.InvIL.Mul(js.ParentInvMassScale), body1.InvIL}
	conditionInverseMassAndInertia(&s.invMs[0], &s.invMs[1], &s.invILs[0], &s.invILs[1], ss.MinParentMassRatio, ss.MaxInertiaRatio)

	s.ps = [2]mgl64.Vec3{body0.P, body1.P}
	s.qs = [2]mgl64.Quat{body0.Q.Normalize(), body1.Q.Normalize()}
	s.vs = [2]mgl64.Vec3{body0.V, body1.V}
	s.ws = [2]mgl64.Vec3{body0.W, body1.W}
	s.qs[1] = enforceShortestArcWith(s.qs[1], s.qs[0])
	s.updateDerivedState()

	s.prevPs = [2]mgl64.Vec3{body0.PrevP, body1.PrevP}
	s.prevQs = [2]mgl64.Quat{body0.PrevQ.Normalize(), body1.PrevQ.Normalize()}
	for i := range 2 {
		s.prevXs[i] = s.prevPs[i].Add(s.prevQs[i].Rotate(s.xls[i].Position))
	}

	s.netLinearImpulse = mgl64.Vec3{}
	s.netAngularImpulse = mgl64.Vec3{}
	s.linearSoftLambda = 0
	s.twistSoftLambda = 0
	s.swingSoftLambda = 0
	s.linearDriveLambdas = [3]float64{}
	s.angularDriveLambdas = [3]float64{}

	s.positionTolerance = ss.PositionTolerance
	s.angleTolerance = ss.AngleTolerance
	s.swingTolerance = ss.SwingTwistAngleTolerance
	s.stiffness = 1
	s.isActive = true
}

// Update loads the current body states. The solver becomes active again if
// another constraint moved either body since the last pass.
func (s *JointSolver) Update(dt, iterationStiffness float64, body0, body1 JointBodyState) {
	s.stiffness = iterationStiffness

	if body0.P != s.ps[0] || body0.Q != s.qs[0] || body0.V != s.vs[0] || body0.W != s.ws[0] ||
		body1.P != s.ps[1] || body1.Q != s.qs[1] || body1.V != s.vs[1] || body1.W != s.ws[1] {
		s.isActive = true
	}

	s.ps = [2]mgl64.Vec3{body0.P, body1.P}
	s.qs = [2]mgl64.Quat{body0.Q, body1.Q}
	s.vs = [2]mgl64.Vec3{body0.V, body1.V}
	s.ws = [2]mgl64.Vec3{body0.W, body1.W}
	s.qs[1] = enforceShortestArcWith(s.qs[1], s.qs[0])
	s.updateDerivedState()
}

func (s *JointSolver) IsActive() bool {
	return s.isActive
}

func (s *JointSolver) P(i int) mgl64.Vec3 { return s.ps[i] }
func (s *JointSolver) Q(i int) mgl64.Quat { return s.qs[i] }
func (s *JointSolver) V(i int) mgl64.Vec3 { return s.vs[i] }
func (s *JointSolver) W(i int) mgl64.Vec3 { return s.ws[i] }

// InvM returns the conditioned inverse mass used by the solver
func (s *JointSolver) InvM(i int) float64 { return s.invMs[i] }

func (s *JointSolver) NetLinearImpulse() mgl64.Vec3 {
	return s.netLinearImpulse
}

func (s *JointSolver) NetAngularImpulse() mgl64.Vec3 {
	return s.netAngularImpulse
}

// ApplyConstraints runs one position pass: limits, then drives.
// With updateVelocity, body velocities absorb the corrections.
func (s *JointSolver) ApplyConstraints(dt float64, ss *JointSolverSettings, js *JointSettings, updateVelocity bool) {
	s.numActive = 0
	ps, qs := s.ps, s.qs

	s.applyLinearConstraints(dt, ss, js, linearStiffness(ss, js)*s.stiffness, false)
	s.applyAngularConstraints(dt, ss, js, s.stiffness, false)
	if ss.EnableDrives {
		s.applyDrives(dt, ss, js)
	}

	if updateVelocity && dt > smallNumber {
		for i := range 2 {
			s.vs[i] = s.vs[i].Add(s.ps[i].Sub(ps[i]).Mul(1 / dt))
			s.ws[i] = s.ws[i].Add(rotationDelta(qs[i], s.qs[i]).Mul(1 / dt))
		}
	}

	s.isActive = s.numActive > 0
}

func (s *JointSolver) updateDerivedState() {
	for i := range 2 {
		s.xs[i] = s.ps[i].Add(s.qs[i].Rotate(s.xls[i].Position))
		s.rs[i] = s.qs[i].Mul(s.xls[i].Rotation)

		R := s.qs[i].Mat4().Mat3()
		s.invIs[i] = R.Mul3(mgl64.Diag3(s.invILs[i])).Mul3(R.Transpose())
	}
	s.rs[1] = enforceShortestArcWith(s.rs[1], s.rs[0])
}

func (s *JointSolver) markActive(correction, tolerance float64) {
	if math.Abs(correction) > tolerance {
		s.numActive++
	}
}

func (s *JointSolver) applyPositionDelta(stiffness float64, dp0, dp1 mgl64.Vec3) {
	s.ps[0] = s.ps[0].Add(dp0.Mul(stiffness))
	s.ps[1] = s.ps[1].Add(dp1.Mul(stiffness))
	s.xs[0] = s.xs[0].Add(dp0.Mul(stiffness))
	s.xs[1] = s.xs[1].Add(dp1.Mul(stiffness))
}

func (s *JointSolver) applyRotationDelta(stiffness float64, dr0, dr1 mgl64.Vec3) {
	if s.invMs[0] > 0 {
		s.qs[0] = integrateRotation(s.qs[0], dr0.Mul(stiffness))
	}
	if s.invMs[1] > 0 {
		s.qs[1] = integrateRotation(s.qs[1], dr1.Mul(stiffness))
	}
	s.qs[1] = enforceShortestArcWith(s.qs[1], s.qs[0])
	s.updateDerivedState()
}

func (s *JointSolver) applyDelta(stiffness float64, dp0, dr0, dp1, dr1 mgl64.Vec3) {
	s.applyPositionDelta(stiffness, dp0, dp1)
	s.applyRotationDelta(stiffness, dr0, dr1)
}

// applyPositionConstraint removes the error delta along axis.
// delta is the separation of the child connector from the parent connector.
func (s *JointSolver) applyPositionConstraint(stiffness float64, axis mgl64.Vec3, delta float64) {
	r0 := s.xs[0].Sub(s.ps[0])
	r1 := s.xs[1].Sub(s.ps[1])
	iira0 := s.invIs[0].Mul3x1(r0.Cross(axis))
	iira1 := s.invIs[1].Mul3x1(r1.Cross(axis))
	ii := s.invMs[0] + s.invMs[1] + r0.Cross(axis).Dot(iira0) + r1.Cross(axis).Dot(iira1)
	if ii < smallNumber {
		return
	}

	lambda := delta / ii
	dx := axis.Mul(lambda)
	s.applyDelta(stiffness, dx.Mul(s.invMs[0]), iira0.Mul(lambda), dx.Mul(-s.invMs[1]), iira1.Mul(-lambda))

	s.netLinearImpulse = s.netLinearImpulse.Add(dx.Mul(stiffness))
	s.markActive(delta*stiffness, s.positionTolerance)
}

// applyPositionConstraintSoft is the XPBD spring/damper version of
// applyPositionConstraint. targetVelDt is the wanted relative displacement of
// the child along axis since Init.
func (s *JointSolver) applyPositionConstraintSoft(dt, stiffness, damping float64, accelerationMode bool, axis mgl64.Vec3, delta, targetVelDt float64, lambda *float64) {
	r0 := s.xs[0].Sub(s.ps[0])
	r1 := s.xs[1].Sub(s.ps[1])
	iira0 := s.invIs[0].Mul3x1(r0.Cross(axis))
	iira1 := s.invIs[1].Mul3x1(r1.Cross(axis))
	ii := s.invMs[0] + s.invMs[1] + r0.Cross(axis).Dot(iira0) + r1.Cross(axis).Dot(iira1)
	if ii < smallNumber {
		return
	}

	v0 := s.xs[0].Sub(s.prevXs[0])
	v1 := s.xs[1].Sub(s.prevXs[1])
	velDt := v0.Sub(v1).Dot(axis) + targetVelDt

	spring := stiffness * dt * dt
	damp := damping * dt
	if accelerationMode {
		massScale := 1 / (s.invMs[0] + s.invMs[1])
		if math.IsInf(massScale, 0) {
			return
		}
		spring *= massScale
		damp *= massScale
	}

	dLambda := (spring*delta - damp*velDt - *lambda) / ((spring+damp)*ii + 1)
	dx := axis.Mul(dLambda)
	s.applyDelta(1, dx.Mul(s.invMs[0]), iira0.Mul(dLambda), dx.Mul(-s.invMs[1]), iira1.Mul(-dLambda))

	*lambda += dLambda
	s.netLinearImpulse = s.netLinearImpulse.Add(dx)
	s.markActive(dLambda*ii, s.positionTolerance)
}

// applyPointConstraint removes the whole connector separation at once, using
// the 3x3 effective mass of both connector points.
func (s *JointSolver) applyPointConstraint(stiffness float64) {
	r0 := s.xs[0].Sub(s.ps[0])
	r1 := s.xs[1].Sub(s.ps[1])
	k, ok := invertSymmetric(jointFactorMatrix(r0, s.invIs[0], s.invMs[0]).Add(jointFactorMatrix(r1, s.invIs[1], s.invMs[1])))
	if !ok {
		return
	}

	cx := s.xs[1].Sub(s.xs[0])
	dx := k.Mul3x1(cx)

	dp0 := dx.Mul(s.invMs[0])
	dp1 := dx.Mul(-s.invMs[1])
	dr0 := s.invIs[0].Mul3x1(r0.Cross(dx))
	dr1 := s.invIs[1].Mul3x1(r1.Cross(dx.Mul(-1)))
	s.applyDelta(stiffness, dp0, dr0, dp1, dr1)

	s.netLinearImpulse = s.netLinearImpulse.Add(dx.Mul(stiffness))
	s.markActive(cx.Len()*stiffness, s.positionTolerance)
}

// applyRotationConstraint removes the angle of the child about axis relative to the parent
func (s *JointSolver) applyRotationConstraint(stiffness float64, axis mgl64.Vec3, angle float64) {
	ia0 := s.invIs[0].Mul3x1(axis)
	ia1 := s.invIs[1].Mul3x1(axis)
	ii := axis.Dot(ia0) + axis.Dot(ia1)
	if ii < smallNumber {
		return
	}

	lambda := angle / ii
	s.applyRotationDelta(stiffness, ia0.Mul(lambda), ia1.Mul(-lambda))

	s.netAngularImpulse = s.netAngularImpulse.Add(axis.Mul(stiffness * lambda))
	s.markActive(angle*stiffness, s.angleTolerance)
}

// applyRotationConstraintSoft is the XPBD spring/damper version of applyRotationConstraint
func (s *JointSolver) applyRotationConstraintSoft(dt, stiffness, damping float64, accelerationMode bool, axis mgl64.Vec3, angle, targetAngVelDt float64, lambda *float64) {
	ia0 := s.invIs[0].Mul3x1(axis)
	ia1 := s.invIs[1].Mul3x1(axis)
	ii := axis.Dot(ia0) + axis.Dot(ia1)
	if ii < smallNumber {
		return
	}

	w0 := rotationDelta(s.prevQs[0], s.qs[0])
	w1 := rotationDelta(s.prevQs[1], s.qs[1])
	angVelDt := w0.Sub(w1).Dot(axis) + targetAngVelDt

	spring := stiffness * dt * dt
	damp := damping * dt
	if accelerationMode {
		spring /= ii
		damp /= ii
	}

	dLambda := (spring*angle - damp*angVelDt - *lambda) / ((spring+damp)*ii + 1)
	s.applyRotationDelta(1, ia0.Mul(dLambda), ia1.Mul(-dLambda))

	*lambda += dLambda
	s.netAngularImpulse = s.netAngularImpulse.Add(axis.Mul(dLambda))
	s.markActive(dLambda*ii, s.angleTolerance)
}

// applyLockedRotationConstraint removes the whole relative rotation at once
func (s *JointSolver) applyLockedRotationConstraint(stiffness float64) {
	k, ok := invertSymmetric(s.invIs[0].Add(s.invIs[1]))
	if !ok {
		return
	}

	r01 := s.rs[0].Conjugate().Mul(s.rs[1])
	local := rotationVector(r01)
	w := s.rs[0].Rotate(local)

	dl := k.Mul3x1(w)
	s.applyRotationDelta(stiffness, s.invIs[0].Mul3x1(dl), s.invIs[1].Mul3x1(dl).Mul(-1))

	s.netAngularImpulse = s.netAngularImpulse.Add(dl.Mul(stiffness))
	s.markActive(local.Len()*stiffness, s.angleTolerance)
}
