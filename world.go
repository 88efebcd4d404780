// Package tendon steps rigid bodies linked by joints: bodies are
// integrated, then the joints of constraint.JointConstraints are solved
// in position passes and push-out passes, once per substep.
package tendon

import (
	"log/slog"
	"slices"
	"time"

	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DEFAULT_WORKERS              = 1
	DEFAULT_SUBSTEPS             = 4
	DEFAULT_ITERATIONS           = 8
	DEFAULT_PUSHOUT_ITERATIONS   = 2
	DEFAULT_SLEEP_TIME           = 0.1
	DEFAULT_SLEEP_VELOCITY       = 0.05
	DEFAULT_GRAVITY_ACCELERATION = -9.81
)

type World struct {
	// List of all rigid bodies in the world
	Bodies []*actor.RigidBody
	// Gravity acceleration (m/s², or N/kg)
	Gravity           mgl64.Vec3
	Substeps          int
	Iterations        int
	PushOutIterations int
	// Workers above 1 solve the joints of a color batch concurrently
	Workers int

	// Bodies slower than SleepVelocity for SleepTime seconds fall asleep
	SleepTime     float64
	SleepVelocity float64

	Joints *constraint.JointConstraints
	Events *Events

	logger *slog.Logger
}

// NewWorld returns an empty world whose joint breaks are sent to Events
func NewWorld(settings constraint.JointSolverSettings) *World {
	w := &World{
		Gravity:           mgl64.Vec3{0, DEFAULT_GRAVITY_ACCELERATION, 0},
		Substeps:          DEFAULT_SUBSTEPS,
		Iterations:        DEFAULT_ITERATIONS,
		PushOutIterations: DEFAULT_PUSHOUT_ITERATIONS,
		Workers:           DEFAULT_WORKERS,
		SleepTime:         DEFAULT_SLEEP_TIME,
		SleepVelocity:     DEFAULT_SLEEP_VELOCITY,
		Joints:            constraint.NewJointConstraints(settings),
		Events:            NewEvents(),
		logger:            slog.Default(),
	}

	w.Joints.SetBreakCallback(func(handle constraint.JointHandle) {
		jointBreaks.Inc()
		w.Events.emitBreak(handle)
	})

	return w
}

// SetLogger sets the logger of the world and its joints, nil restores slog.Default
func (w *World) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.logger = logger
	w.Joints.SetLogger(logger)
}

// AddBody adds a rigid body to the world
func (w *World) AddBody(body *actor.RigidBody) {
	w.Bodies = append(w.Bodies, body)
}

// RemoveBody removes a rigid body from the world, and disables its joints
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := slices.Index(w.Bodies, body)
	if k != -1 {
		w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)
	}

	w.Joints.DisconnectConstraints([]*actor.RigidBody{body})
	w.Events.forget(body)
}

// AddJoint links child to parent. The settings connectors are relative to
// each body center of mass.
func (w *World) AddJoint(child, parent *actor.RigidBody, settings constraint.JointSettings) constraint.JointHandle {
	return w.Joints.AddConstraint(constraint.ParticlePair{child, parent}, settings)
}

// RemoveJoint removes the joint, invalidating its handle
func (w *World) RemoveJoint(handle constraint.JointHandle) {
	if handle.Container() != w.Joints || !handle.IsValid() {
		return
	}
	w.Joints.RemoveConstraint(handle.ConstraintIndex())
}

func (w *World) Step(dt float64) {
	start := time.Now()
	defer func() {
		stepDuration.Observe(time.Since(start).Seconds())
	}()

	w.Workers = max(DEFAULT_WORKERS, w.Workers)
	substeps := max(1, w.Substeps)
	h := dt / float64(substeps)

	for range substeps {
		// Phase 1: Prediction
		w.integrate(h)
		w.wakeJointed()

		// Phase 2: Joint positions
		w.Joints.PrepareTick()
		w.Joints.PrepareIteration(h)
		var batches [][]constraint.JointHandle
		if w.Workers > 1 {
			batches = w.Joints.ColorBatches()
		}
		w.solvePosition(h, batches)

		// Phase 3: Update Velocity
		// Calculate final velocities from the corrected positions
		w.update(h)

		// Phase 4: Push-out, projection or velocity pass depending on the solver type
		w.solvePushOut(h, batches)

		w.Joints.UnprepareIteration(h)
		w.Joints.UnprepareTick()

		w.trySleep(h)
	}

	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()

	w.recordGauges()
}

func (w *World) integrate(h float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		body.Integrate(h, w.Gravity)
	})
}

// wakeJointed wakes the sleeping bodies linked to an awake body, through
// any number of joints
func (w *World) wakeJointed() {
	for changed := true; changed; {
		changed = false

		for index := range w.Joints.NumConstraints() {
			if !w.Joints.IsConstraintEnabled(index) {
				continue
			}

			pair := w.Joints.ConstrainedParticles(index)
			if pair[0] == nil || pair[1] == nil {
				continue
			}
			for i, body := range pair {
				other := pair[1-i]
				if body.IsDynamic() && body.IsSleeping && other.IsDynamic() && !other.IsSleeping && !other.IsDisabled {
					// it was not integrated this substep
					body.Awake()
					body.PreviousTransform = body.Transform
					changed = true
				}
			}
		}
	}
}

func (w *World) solvePosition(h float64, batches [][]constraint.JointHandle) {
	used := 0
	for it := range w.Iterations {
		used++
		if !w.applyIteration(h, it, batches) {
			break
		}
	}

	solverIterations.WithLabelValues("apply").Observe(float64(used))
}

// applyIteration runs one position pass, sequentially, or batch by batch
// when there are several workers. Both orders give the same poses since
// batches are solved in level order.
func (w *World) applyIteration(h float64, it int, batches [][]constraint.JointHandle) bool {
	if w.Workers <= 1 {
		return w.Joints.Apply(h, it, w.Iterations)
	}

	return w.Joints.ApplyScheduled(h, it, w.Iterations, func(solve constraint.BatchFunc) bool {
		return batchTask(w.Workers, batches, solve)
	})
}

func (w *World) update(h float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		body.Update(h)
	})
}

func (w *World) solvePushOut(h float64, batches [][]constraint.JointHandle) {
	used := 0
	for it := range w.PushOutIterations {
		used++
		if !w.pushOutIteration(h, it, batches) {
			break
		}
	}

	solverIterations.WithLabelValues("push_out").Observe(float64(used))
}

func (w *World) pushOutIteration(h float64, it int, batches [][]constraint.JointHandle) bool {
	if w.Workers <= 1 {
		return w.Joints.ApplyPushOut(h, it, w.PushOutIterations)
	}

	return w.Joints.ApplyPushOutScheduled(h, it, w.PushOutIterations, func(solve constraint.BatchFunc) bool {
		return batchTask(w.Workers, batches, solve)
	})
}

// trySleep sets the body to sleep if its velocity is lower than the threshold, for a given duration
// this method is too simple to use a task, it slows down in multiple goroutines
func (w *World) trySleep(h float64) {
	for _, body := range w.Bodies {
		body.TrySleep(h, w.SleepTime, w.SleepVelocity)
	}
}

func (w *World) recordGauges() {
	joints := 0
	for index := range w.Joints.NumConstraints() {
		if w.Joints.IsConstraintEnabled(index) {
			joints++
		}
	}

	bodies := 0
	for _, body := range w.Bodies {
		if body.IsDynamic() && !body.IsSleeping && !body.IsDisabled {
			bodies++
		}
	}

	enabledJoints.Set(float64(joints))
	awakeBodies.Set(float64(bodies))
	w.logger.Debug("world stepped", "bodies", len(w.Bodies), "awake", bodies, "joints", joints)
}
