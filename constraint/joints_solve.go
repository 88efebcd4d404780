package constraint

import (
	"cmp"
	"math"
	"slices"

	"github.com/akmonengine/tendon/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// CalculateIterationStiffness ramps the solver stiffness from
// MinSolverStiffness to MaxSolverStiffness over the first iterations, and
// uses MaxSolverStiffness for the last NumIterationsAtMaxSolverStiffness.
func (c *JointConstraints) CalculateIterationStiffness(it, numIts int) float64 {
	ss := &c.settings

	stiffness := ss.MaxSolverStiffness
	if numIts > ss.NumIterationsAtMaxSolverStiffness {
		alpha := float64(it) / float64(numIts-ss.NumIterationsAtMaxSolverStiffness)
		alpha = math.Max(0, math.Min(alpha, 1))
		stiffness = ss.MinSolverStiffness + alpha*(ss.MaxSolverStiffness-ss.MinSolverStiffness)
	}

	return math.Max(0, math.Min(stiffness, 1))
}

// CanEvaluate reports whether the joint has anything to solve
func (c *JointConstraints) CanEvaluate(index int) bool {
	c.checkIndex(index)

	if c.states[index].Disabled {
		return false
	}

	parent, child := c.constrainedBodies(index)
	if parent == nil || child == nil || parent.IsDisabled || child.IsDisabled {
		return false
	}
	if parent.IsSleeping && child.IsSleeping {
		return false
	}
	if (parent.IsKinematic() && child.IsSleeping) || (child.IsKinematic() && parent.IsSleeping) {
		return false
	}
	if parent.InverseMass() < smallNumber && child.InverseMass() < smallNumber {
		return false
	}

	return true
}

// Apply runs one position iteration over every joint in index order. It
// returns whether any joint is still moving its bodies.
func (c *JointConstraints) Apply(dt float64, it, numIts int) bool {
	if c.preApplyCallback != nil {
		c.preApplyCallback(dt, c.handles)
	}

	active := false
	if c.settings.ApplyPairIterations > 0 {
		stiffness := c.CalculateIterationStiffness(it, numIts)
		for index := range c.constraintSettings {
			active = c.applySingle(dt, index, stiffness) || active
		}
	}

	if c.postApplyCallback != nil {
		c.postApplyCallback(dt, c.handles)
	}

	c.logger.Debug("joints applied", "iteration", it, "joints", len(c.constraintSettings), "active", active)
	return active
}

// ApplyPushOut runs one push-out iteration over every joint in index order
func (c *JointConstraints) ApplyPushOut(dt float64, it, numIts int) bool {
	active := false
	if c.settings.ApplyPushOutPairIterations > 0 {
		stiffness := c.CalculateIterationStiffness(it, numIts)
		for index := range c.constraintSettings {
			active = c.applyPushOutSingle(dt, index, stiffness) || active
		}
	}

	if c.postProjectCallback != nil {
		c.postProjectCallback(dt, c.handles)
	}

	c.logger.Debug("joints pushed out", "iteration", it, "solver", c.solverType, "active", active)
	return active
}

// sortedByLevel copies the valid handles of this container, stable sorted by level
func (c *JointConstraints) sortedByLevel(handles []JointHandle) []JointHandle {
	sorted := make([]JointHandle, 0, len(handles))
	for _, h := range handles {
		if h.container == c && h.IsValid() {
			sorted = append(sorted, h)
		}
	}

	slices.SortStableFunc(sorted, func(a, b JointHandle) int {
		return cmp.Compare(c.states[a.ConstraintIndex()].Level, c.states[b.ConstraintIndex()].Level)
	})
	return sorted
}

// ApplyHandles is Apply restricted to the given joints, solved in level order
func (c *JointConstraints) ApplyHandles(dt float64, handles []JointHandle, it, numIts int) bool {
	sorted := c.sortedByLevel(handles)
	if c.preApplyCallback != nil {
		c.preApplyCallback(dt, sorted)
	}

	active := false
	if c.settings.ApplyPairIterations > 0 {
		active = c.applyBatch(dt, sorted, c.CalculateIterationStiffness(it, numIts))
	}

	if c.postApplyCallback != nil {
		c.postApplyCallback(dt, sorted)
	}
	return active
}

// ApplyPushOutHandles is ApplyPushOut restricted to the given joints, solved in level order
func (c *JointConstraints) ApplyPushOutHandles(dt float64, handles []JointHandle, it, numIts int) bool {
	sorted := c.sortedByLevel(handles)

	active := false
	if c.settings.ApplyPushOutPairIterations > 0 {
		active = c.applyPushOutBatch(dt, sorted, c.CalculateIterationStiffness(it, numIts))
	}

	if c.postProjectCallback != nil {
		c.postProjectCallback(dt, sorted)
	}
	return active
}

// ApplyBatch solves the given joints in the given order, without callbacks.
// Batches may run concurrently when no dynamic body is shared between them,
// as is the case for joints of the same level and color.
func (c *JointConstraints) ApplyBatch(dt float64, handles []JointHandle, it, numIts int) bool {
	if c.settings.ApplyPairIterations <= 0 {
		return false
	}
	return c.applyBatch(dt, handles, c.CalculateIterationStiffness(it, numIts))
}

// ApplyPushOutBatch is the push-out counterpart of ApplyBatch
func (c *JointConstraints) ApplyPushOutBatch(dt float64, handles []JointHandle, it, numIts int) bool {
	if c.settings.ApplyPushOutPairIterations <= 0 {
		return false
	}
	return c.applyPushOutBatch(dt, handles, c.CalculateIterationStiffness(it, numIts))
}

// BatchFunc solves a batch of joints and reports whether any is still active
type BatchFunc func(handles []JointHandle) bool

// Scheduler runs solve on every batch of a pass, in any order or
// concurrency it sees fit, and reports whether any batch was active.
type Scheduler func(solve BatchFunc) bool

// ApplyScheduled is Apply with the joints solved by schedule. The apply
// callbacks run once around the whole pass, with every handle.
func (c *JointConstraints) ApplyScheduled(dt float64, it, numIts int, schedule Scheduler) bool {
	if c.preApplyCallback != nil {
		c.preApplyCallback(dt, c.handles)
	}

	active := false
	if c.settings.ApplyPairIterations > 0 {
		stiffness := c.CalculateIterationStiffness(it, numIts)
		active = schedule(func(handles []JointHandle) bool {
			return c.applyBatch(dt, handles, stiffness)
		})
	}

	if c.postApplyCallback != nil {
		c.postApplyCallback(dt, c.handles)
	}

	c.logger.Debug("joints applied", "iteration", it, "joints", len(c.constraintSettings), "active", active, "scheduled", true)
	return active
}

// ApplyPushOutScheduled is ApplyPushOut with the joints solved by schedule
func (c *JointConstraints) ApplyPushOutScheduled(dt float64, it, numIts int, schedule Scheduler) bool {
	active := false
	if c.settings.ApplyPushOutPairIterations > 0 {
		stiffness := c.CalculateIterationStiffness(it, numIts)
		active = schedule(func(handles []JointHandle) bool {
			return c.applyPushOutBatch(dt, handles, stiffness)
		})
	}

	if c.postProjectCallback != nil {
		c.postProjectCallback(dt, c.handles)
	}

	c.logger.Debug("joints pushed out", "iteration", it, "solver", c.solverType, "active", active, "scheduled", true)
	return active
}

func (c *JointConstraints) applyBatch(dt float64, handles []JointHandle, stiffness float64) bool {
	active := false
	for _, h := range handles {
		if index := h.ConstraintIndex(); index != InvalidIndex {
			active = c.applySingle(dt, index, stiffness) || active
		}
	}
	return active
}

func (c *JointConstraints) applyPushOutBatch(dt float64, handles []JointHandle, stiffness float64) bool {
	active := false
	for _, h := range handles {
		if index := h.ConstraintIndex(); index != InvalidIndex {
			active = c.applyPushOutSingle(dt, index, stiffness) || active
		}
	}
	return active
}

func (c *JointConstraints) applySingle(dt float64, index int, stiffness float64) bool {
	if !c.prepared[index] || !c.CanEvaluate(index) {
		return false
	}

	solver := &c.solvers[index]
	js := &c.constraintSettings[index]
	parent, child := c.constrainedBodies(index)

	wasActive := solver.IsActive()
	solver.Update(dt, stiffness, bodyState(parent), bodyState(child))
	if c.settings.EnableEarlyOut && !wasActive && !solver.IsActive() {
		return false
	}

	for range c.settings.ApplyPairIterations {
		solver.ApplyConstraints(dt, &c.settings, js, c.updateVelocityInApplyConstraints)
		if c.settings.EnableEarlyOut && !solver.IsActive() {
			break
		}
	}

	c.writeBack(index, c.updateVelocityInApplyConstraints)
	c.applyBreakThreshold(dt, index)

	// without early out every iteration runs
	return solver.IsActive() || !c.settings.EnableEarlyOut
}

func (c *JointConstraints) applyPushOutSingle(dt float64, index int, stiffness float64) bool {
	if c.solverType == SolverNone || !c.prepared[index] || !c.CanEvaluate(index) {
		return false
	}

	solver := &c.solvers[index]
	js := &c.constraintSettings[index]
	parent, child := c.constrainedBodies(index)

	wasActive := solver.IsActive()
	solver.Update(dt, stiffness, bodyState(parent), bodyState(child))
	if c.settings.EnableEarlyOut && !wasActive && !solver.IsActive() {
		return false
	}

	for range c.settings.ApplyPushOutPairIterations {
		switch c.solverType {
		case SolverStandardPbd, SolverGbfPbd:
			solver.ApplyProjections(dt, &c.settings, js)
		case SolverQuasiPbd:
			solver.ApplyVelocityConstraints(dt, &c.settings, js)
		}
		if c.settings.EnableEarlyOut && !solver.IsActive() {
			break
		}
	}

	c.writeBack(index, true)
	if c.solverType == SolverQuasiPbd {
		for _, body := range [2]*actor.RigidBody{parent, child} {
			if isMovable(body) {
				clampSmallVelocities(body)
			}
		}
	}

	return solver.IsActive() || !c.settings.EnableEarlyOut
}

func isMovable(body *actor.RigidBody) bool {
	return body.IsDynamic() && !body.IsSleeping && !body.IsDisabled
}

// writeBack copies the solver state into the bodies it may move
func (c *JointConstraints) writeBack(index int, withVelocity bool) {
	solver := &c.solvers[index]
	parent, child := c.constrainedBodies(index)

	for i, body := range [2]*actor.RigidBody{parent, child} {
		if !isMovable(body) {
			continue
		}

		body.SetPose(solver.P(i), solver.Q(i))
		if withVelocity {
			body.Velocity = solver.V(i)
			body.AngularVelocity = solver.W(i)
		}
	}
}

// applyBreakThreshold breaks the joint when the correction of the pass needed
// more than the break force or torque. The net impulses are impulse * dt, so
// they are compared with threshold * dt².
func (c *JointConstraints) applyBreakThreshold(dt float64, index int) {
	js := &c.constraintSettings[index]
	solver := &c.solvers[index]

	if js.LinearBreakForce < Unlimited {
		limit := js.LinearBreakForce * dt * dt
		if solver.NetLinearImpulse().LenSqr() > limit*limit {
			c.BreakConstraint(index)
			return
		}
	}

	if js.AngularBreakTorque < Unlimited {
		limit := js.AngularBreakTorque * dt * dt
		if solver.NetAngularImpulse().LenSqr() > limit*limit {
			c.BreakConstraint(index)
		}
	}
}

// applyPlasticityLimits moves the drive targets to the current joint
// displacement when it goes further than the plasticity limits.
func (c *JointConstraints) applyPlasticityLimits(index int) {
	js := &c.constraintSettings[index]

	hasLinear := js.LinearPlasticityLimit < Unlimited &&
		js.LinearPlasticityInitialDistanceSquared > 0 && js.LinearPlasticityInitialDistanceSquared < Unlimited
	hasAngular := js.AngularPlasticityLimit < Unlimited
	if (!hasLinear && !hasAngular) || !c.settings.EnableDrives {
		return
	}

	parent, child := c.constrainedBodies(index)
	if parent == nil || child == nil || parent.IsDisabled || child.IsDisabled {
		return
	}

	connectors := c.solverConnectors(index)
	frame0 := parent.Transform.Compose(connectors[0])
	frame1 := child.Transform.Compose(connectors[1])
	frame1.Rotation = enforceShortestArcWith(frame1.Rotation, frame0.Rotation)

	if hasLinear {
		displacement := frame0.InverseTransformPosition(frame1.Position)
		for axis := range 3 {
			if !js.LinearPositionDriveEnabled[axis] || js.LinearMotionTypes[axis] == MotionLocked {
				displacement[axis] = 0
			}
		}

		threshold := js.LinearPlasticityLimit * js.LinearPlasticityLimit * js.LinearPlasticityInitialDistanceSquared
		if displacement.Sub(js.LinearDrivePositionTarget).LenSqr() > threshold {
			switch js.LinearPlasticityType {
			case PlasticityFree:
				js.LinearDrivePositionTarget = displacement
			case PlasticityShrink, PlasticityGrow:
				// distances from the parent body center
				current := connectors[0].TransformPosition(displacement).LenSqr()
				start := connectors[0].TransformPosition(js.LinearDrivePositionTarget).LenSqr()
				if (js.LinearPlasticityType == PlasticityShrink && current < start) ||
					(js.LinearPlasticityType == PlasticityGrow && current > start) {
					js.LinearDrivePositionTarget = displacement
				}
			}
		}
	}

	if hasAngular {
		swing, twist := decomposeSwingTwist(frame0.Rotation.Conjugate().Mul(frame1.Rotation))
		motions := js.AngularMotionTypes
		if (!js.AngularSLerpPositionDriveEnabled && !js.AngularTwistPositionDriveEnabled) || motions[Twist] == MotionLocked {
			twist = mgl64.QuatIdent()
		}
		if (!js.AngularSLerpPositionDriveEnabled && !js.AngularSwingPositionDriveEnabled) ||
			(motions[Swing1] == MotionLocked && motions[Swing2] == MotionLocked) {
			swing = mgl64.QuatIdent()
		}

		displacement := swing.Mul(twist)
		if angularDistance(js.AngularDrivePositionTarget, displacement) > js.AngularPlasticityLimit {
			js.AngularDrivePositionTarget = displacement
		}
	}
}
