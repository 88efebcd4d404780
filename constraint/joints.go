package constraint

import (
	"fmt"
	"log/slog"

	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/coloring"
	"github.com/go-gl/mathgl/mgl64"
)

// ParticlePair references the two bodies of a joint without owning them.
// Index 0 is the child and index 1 the parent.
type ParticlePair [2]*actor.RigidBody

// ApplyCallback receives every handle of the pass, in solve order.
// The slice must not be modified or retained.
type ApplyCallback func(dt float64, handles []JointHandle)

type BreakCallback func(handle JointHandle)

// JointConstraints owns a set of joints stored as parallel arrays indexed by
// constraint index. Removal swaps the last joint into the freed index, so
// indices are not stable: use handles to keep a reference to a joint.
type JointConstraints struct {
	settings                         JointSolverSettings
	solverType                       SolverType
	updateVelocityInApplyConstraints bool
	logger                           *slog.Logger

	constraintSettings []JointSettings
	particles          []ParticlePair
	states             []JointState
	handles            []JointHandle
	solvers            []JointSolver
	prepared           []bool

	pool  handlePool
	graph coloring.Graph
	dirty bool

	preApplyCallback    ApplyCallback
	postApplyCallback   ApplyCallback
	postProjectCallback ApplyCallback
	breakCallback       BreakCallback
}

func NewJointConstraints(settings JointSolverSettings) *JointConstraints {
	return &JointConstraints{
		settings:   settings,
		solverType: SolverStandardPbd,
		logger:     slog.Default(),
	}
}

func ensure(condition bool, format string, args ...any) {
	if !condition {
		panic(fmt.Sprintf(format, args...))
	}
}

func (c *JointConstraints) checkIndex(index int) {
	ensure(index >= 0 && index < len(c.constraintSettings), "joint index %d out of range [0, %d)", index, len(c.constraintSettings))
}

func (c *JointConstraints) Settings() JointSolverSettings {
	return c.settings
}

func (c *JointConstraints) SetSettings(settings JointSolverSettings) {
	c.settings = settings
}

// SetLogger sets the logger used by the container. A nil logger restores slog.Default().
func (c *JointConstraints) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

func (c *JointConstraints) SolverType() SolverType {
	return c.solverType
}

// SetSolverType selects the push-out pass
func (c *JointConstraints) SetSolverType(solverType SolverType) {
	c.solverType = solverType
}

// SetUpdateVelocityInApplyConstraints makes the position passes update the body velocities too
func (c *JointConstraints) SetUpdateVelocityInApplyConstraints(enabled bool) {
	c.updateVelocityInApplyConstraints = enabled
}

func (c *JointConstraints) NumConstraints() int {
	return len(c.constraintSettings)
}

// Handles returns the handles in constraint index order. The slice must not be modified.
func (c *JointConstraints) Handles() []JointHandle {
	return c.handles
}

// AddConstraint adds a joint between pair[0] (child) and pair[1] (parent).
// The joint starts disabled when either body is nil.
func (c *JointConstraints) AddConstraint(pair ParticlePair, settings JointSettings) JointHandle {
	settings.Sanitize()

	index := len(c.constraintSettings)
	handle := c.pool.alloc(c, index)

	state := NewJointState()
	state.Disabled = pair[0] == nil || pair[1] == nil

	c.constraintSettings = append(c.constraintSettings, settings)
	c.particles = append(c.particles, pair)
	c.states = append(c.states, state)
	c.handles = append(c.handles, handle)

	for _, body := range pair {
		if body != nil {
			body.AddConstraintHandle(handle)
		}
	}

	c.dirty = true
	return handle
}

// AddConstraintWorldFrame adds a joint whose connectors both match the world frame in the current body poses
func (c *JointConstraints) AddConstraintWorldFrame(pair ParticlePair, frame actor.Transform, settings JointSettings) JointHandle {
	for i, body := range pair {
		if body != nil {
			settings.ConnectorTransforms[i] = body.Transform.Relative(frame)
		} else {
			settings.ConnectorTransforms[i] = frame
		}
	}

	return c.AddConstraint(pair, settings)
}

// AddConstraintLocalFrames adds a joint with default settings and the given connectors
func (c *JointConstraints) AddConstraintLocalFrames(pair ParticlePair, frames [2]actor.Transform) JointHandle {
	settings := DefaultJointSettings()
	settings.ConnectorTransforms = frames

	return c.AddConstraint(pair, settings)
}

// RemoveConstraint removes the joint at index. The joint that was last takes its index.
func (c *JointConstraints) RemoveConstraint(index int) {
	c.checkIndex(index)

	handle := c.handles[index]
	for _, body := range c.particles[index] {
		if body != nil {
			body.RemoveConstraintHandle(handle)
		}
	}
	c.pool.free(handle)

	last := len(c.constraintSettings) - 1
	if index != last {
		c.constraintSettings[index] = c.constraintSettings[last]
		c.particles[index] = c.particles[last]
		c.states[index] = c.states[last]
		c.handles[index] = c.handles[last]
		if last < len(c.solvers) {
			c.solvers[index] = c.solvers[last]
			c.prepared[index] = c.prepared[last]
		}
		c.pool.setIndex(c.handles[index], index)
	}

	c.constraintSettings = c.constraintSettings[:last]
	c.particles = c.particles[:last]
	c.states = c.states[:last]
	c.handles = c.handles[:last]
	if last < len(c.solvers) {
		c.solvers = c.solvers[:last]
		c.prepared = c.prepared[:last]
	}

	c.dirty = true
}

// DisconnectConstraints disables every joint attached to the removed bodies
// and forgets those bodies. The joints are kept.
func (c *JointConstraints) DisconnectConstraints(removed []*actor.RigidBody) {
	for _, body := range removed {
		for _, h := range body.ConstraintHandles() {
			handle, ok := h.(JointHandle)
			if !ok || handle.container != c {
				continue
			}

			index := handle.ConstraintIndex()
			if index == InvalidIndex {
				continue
			}

			c.states[index].Disabled = true
			for i := range c.particles[index] {
				if c.particles[index][i] == body {
					c.particles[index][i] = nil
				}
			}
			c.dirty = true
		}
	}
}

// SetConstraintEnabled disables a joint, or enables it when both of its
// bodies exist and are not disabled. A refused enable is silently ignored.
// Enabling a joint recolors the container on the next PrepareTick.
func (c *JointConstraints) SetConstraintEnabled(index int, enabled bool) {
	c.checkIndex(index)

	if !enabled {
		c.states[index].Disabled = true
		return
	}

	for _, body := range c.particles[index] {
		if body == nil || body.IsDisabled {
			return
		}
	}
	if c.states[index].Disabled {
		c.states[index].Disabled = false
		c.dirty = true
	}
}

func (c *JointConstraints) IsConstraintEnabled(index int) bool {
	c.checkIndex(index)
	return !c.states[index].Disabled
}

func (c *JointConstraints) IsConstraintBreaking(index int) bool {
	c.checkIndex(index)
	return c.states[index].Breaking
}

func (c *JointConstraints) SetConstraintBreaking(index int, breaking bool) {
	c.checkIndex(index)
	c.states[index].Breaking = breaking
}

func (c *JointConstraints) ClearConstraintBreaking(index int) {
	c.SetConstraintBreaking(index, false)
}

// BreakConstraint disables the joint, flags it breaking and calls the break callback
func (c *JointConstraints) BreakConstraint(index int) {
	c.checkIndex(index)

	c.states[index].Disabled = true
	c.states[index].Breaking = true
	c.logger.Info("joint broken", "index", index)

	if c.breakCallback != nil {
		c.breakCallback(c.handles[index])
	}
}

// FixConstraints re-enables a joint after a break. The breaking flag is kept
// until ClearConstraintBreaking.
func (c *JointConstraints) FixConstraints(index int) {
	c.SetConstraintEnabled(index, true)
}

func (c *JointConstraints) ConstraintHandle(index int) JointHandle {
	c.checkIndex(index)
	return c.handles[index]
}

func (c *JointConstraints) ConstrainedParticles(index int) ParticlePair {
	c.checkIndex(index)
	return c.particles[index]
}

// ConstrainedParticleIndices returns the external indices of the solver
// bodies 0 and 1: the parent is solved as body 0.
func (c *JointConstraints) ConstrainedParticleIndices(index int) (int, int) {
	c.checkIndex(index)
	return 1, 0
}

func (c *JointConstraints) ConstraintSettings(index int) JointSettings {
	c.checkIndex(index)
	return c.constraintSettings[index]
}

// SetConstraintSettings replaces the settings of a joint with their sanitized copy
func (c *JointConstraints) SetConstraintSettings(index int, settings JointSettings) {
	c.checkIndex(index)
	c.constraintSettings[index] = settings.Sanitized()
}

func (c *JointConstraints) ConstraintState(index int) JointState {
	c.checkIndex(index)
	return c.states[index]
}

func (c *JointConstraints) ConstraintIsland(index int) int {
	c.checkIndex(index)
	return c.states[index].Island
}

func (c *JointConstraints) ConstraintIslandSize(index int) int {
	c.checkIndex(index)
	return c.states[index].IslandSize
}

func (c *JointConstraints) ConstraintLevel(index int) int {
	c.checkIndex(index)
	return c.states[index].Level
}

func (c *JointConstraints) ConstraintColor(index int) int {
	c.checkIndex(index)
	return c.states[index].Color
}

// LinearImpulse returns the impulse per second applied to the child during the last iteration
func (c *JointConstraints) LinearImpulse(index int) mgl64.Vec3 {
	c.checkIndex(index)
	return c.states[index].LinearImpulse
}

func (c *JointConstraints) AngularImpulse(index int) mgl64.Vec3 {
	c.checkIndex(index)
	return c.states[index].AngularImpulse
}

func (c *JointConstraints) SetPreApplyCallback(callback ApplyCallback) {
	c.preApplyCallback = callback
}

func (c *JointConstraints) ClearPreApplyCallback() {
	c.preApplyCallback = nil
}

func (c *JointConstraints) SetPostApplyCallback(callback ApplyCallback) {
	c.postApplyCallback = callback
}

func (c *JointConstraints) ClearPostApplyCallback() {
	c.postApplyCallback = nil
}

func (c *JointConstraints) SetPostProjectCallback(callback ApplyCallback) {
	c.postProjectCallback = callback
}

func (c *JointConstraints) ClearPostProjectCallback() {
	c.postProjectCallback = nil
}

func (c *JointConstraints) SetBreakCallback(callback BreakCallback) {
	c.breakCallback = callback
}

func (c *JointConstraints) ClearBreakCallback() {
	c.breakCallback = nil
}

// constrainedBodies returns the parent and the child of a joint, in solver order
func (c *JointConstraints) constrainedBodies(index int) (*actor.RigidBody, *actor.RigidBody) {
	i0, i1 := c.ConstrainedParticleIndices(index)
	return c.particles[index][i0], c.particles[index][i1]
}

// solverConnectors returns the connectors in solver order
func (c *JointConstraints) solverConnectors(index int) [2]actor.Transform {
	i0, i1 := c.ConstrainedParticleIndices(index)
	connectors := c.constraintSettings[index].ConnectorTransforms
	return [2]actor.Transform{connectors[i0], connectors[i1]}
}

// CalculateConstraintSpace returns the world frames of the child and parent connectors
func (c *JointConstraints) CalculateConstraintSpace(index int) [2]actor.Transform {
	c.checkIndex(index)

	var frames [2]actor.Transform
	for i, body := range c.particles[index] {
		connector := c.constraintSettings[index].ConnectorTransforms[i]
		if body == nil {
			frames[i] = connector
			continue
		}
		frames[i] = body.Transform.Compose(connector)
	}
	return frames
}

// PrepareTick recolors and sorts the joints when some were added or
// removed, and sizes the solver states.
func (c *JointConstraints) PrepareTick() {
	if c.dirty {
		c.ColorConstraints()
		c.SortConstraints()
		c.dirty = false
	}

	n := len(c.constraintSettings)
	if cap(c.solvers) < n {
		c.solvers = make([]JointSolver, n)
		c.prepared = make([]bool, n)
	}
	c.solvers = c.solvers[:n]
	c.prepared = c.prepared[:n]
}

func (c *JointConstraints) UnprepareTick() {
	clear(c.prepared)
}

func bodyState(body *actor.RigidBody) JointBodyState {
	state := JointBodyState{
		P:     body.Transform.Position,
		Q:     body.Transform.Rotation,
		V:     body.Velocity,
		W:     body.AngularVelocity,
		PrevP: body.Transform.Position,
		PrevQ: body.Transform.Rotation,
	}

	// only integrated bodies have a meaningful previous pose
	if body.BodyType != actor.BodyTypeStatic && !body.IsSleeping && !body.IsDisabled {
		state.PrevP = body.PreviousTransform.Position
		state.PrevQ = body.PreviousTransform.Rotation
	}

	// asleep bodies are not moved by joints
	if body.IsDynamic() && !body.IsSleeping {
		state.InvM = body.InverseMass()
		state.InvIL = body.InverseInertiaLocalDiagonal()
	}
	return state
}

// PrepareIteration initializes the solver of every joint that can be evaluated
func (c *JointConstraints) PrepareIteration(dt float64) {
	ensure(len(c.solvers) == len(c.constraintSettings), "PrepareTick must run after joints are added")

	for index := range c.constraintSettings {
		c.prepared[index] = false
		if !c.CanEvaluate(index) {
			continue
		}

		js := &c.constraintSettings[index]
		if js.LinearPlasticityLimit < Unlimited && js.LinearPlasticityInitialDistanceSquared >= Unlimited {
			c.initPlasticityReference(index)
		}

		parent, child := c.constrainedBodies(index)
		c.solvers[index].Init(dt, &c.settings, js, bodyState(parent), bodyState(child), c.solverConnectors(index))
		c.prepared[index] = true
	}
}

// initPlasticityReference measures the linear plasticity reference length
// from the child connector offset, or the parent one when the child offset
// is zero.
func (c *JointConstraints) initPlasticityReference(index int) {
	js := &c.constraintSettings[index]

	distanceSquared := js.ConnectorTransforms[0].Position.LenSqr()
	if distanceSquared < smallNumber {
		distanceSquared = js.ConnectorTransforms[1].Position.LenSqr()
	}
	if distanceSquared < smallNumber {
		c.logger.Warn("linear plasticity disabled: both connectors are at the body centers", "index", index)
		distanceSquared = 0
	}

	js.LinearPlasticityInitialDistanceSquared = distanceSquared
}

// UnprepareIteration stores the impulses of the iteration and applies plasticity
func (c *JointConstraints) UnprepareIteration(dt float64) {
	for index := range c.constraintSettings {
		if c.states[index].Disabled || !c.prepared[index] {
			continue
		}

		state := &c.states[index]
		solver := &c.solvers[index]
		if dt > smallNumber {
			// the parent is solved as body 0, so impulses are flipped back to the child
			state.LinearImpulse = solver.NetLinearImpulse().Mul(-1 / dt)
			state.AngularImpulse = solver.NetAngularImpulse().Mul(-1 / dt)
		} else {
			state.LinearImpulse = mgl64.Vec3{}
			state.AngularImpulse = mgl64.Vec3{}
		}

		c.applyPlasticityLimits(index)
	}
}
