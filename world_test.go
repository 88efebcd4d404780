package tendon

import (
	"math"
	"testing"

	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

func newBody(position mgl64.Vec3, bodyType actor.BodyType) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransformAt(position, mgl64.QuatIdent()), &actor.Sphere{Radius: 0.25}, bodyType, 1)
}

// linkSettings joins two bodies one unit apart along X, the child on the +X side
func linkSettings() constraint.JointSettings {
	s := constraint.DefaultJointSettings()
	s.ConnectorTransforms[0] = actor.NewTransformAt(mgl64.Vec3{-0.5, 0, 0}, mgl64.QuatIdent())
	s.ConnectorTransforms[1] = actor.NewTransformAt(mgl64.Vec3{0.5, 0, 0}, mgl64.QuatIdent())
	return s
}

// chainWorld builds horizontal chains hanging from static anchors. The last
// links of the first two chains are tied together.
func chainWorld(chains, links int) *World {
	w := NewWorld(constraint.DefaultJointSolverSettings())

	var ends []*actor.RigidBody
	for c := range chains {
		origin := mgl64.Vec3{0, 0, float64(c) * 3}
		previous := newBody(origin, actor.BodyTypeStatic)
		w.AddBody(previous)

		for i := range links {
			link := newBody(origin.Add(mgl64.Vec3{float64(i + 1), 0, 0}), actor.BodyTypeDynamic)
			w.AddBody(link)
			w.AddJoint(link, previous, linkSettings())
			previous = link
		}
		ends = append(ends, previous)
	}

	if len(ends) > 1 {
		s := constraint.DefaultJointSettings()
		s.ConnectorTransforms[0] = actor.NewTransformAt(mgl64.Vec3{0, 0, -1.5}, mgl64.QuatIdent())
		s.ConnectorTransforms[1] = actor.NewTransformAt(mgl64.Vec3{0, 0, 1.5}, mgl64.QuatIdent())
		w.AddJoint(ends[1], ends[0], s)
	}

	return w
}

func jointError(h constraint.JointHandle) float64 {
	space := h.ConstraintSpace()
	return space[0].Position.Sub(space[1].Position).Len()
}

func TestNewWorld(t *testing.T) {
	w := NewWorld(constraint.DefaultJointSolverSettings())

	if w.Substeps != DEFAULT_SUBSTEPS || w.Iterations != DEFAULT_ITERATIONS || w.PushOutIterations != DEFAULT_PUSHOUT_ITERATIONS {
		t.Errorf("unexpected defaults %d/%d/%d", w.Substeps, w.Iterations, w.PushOutIterations)
	}
	if w.Gravity.Y() != DEFAULT_GRAVITY_ACCELERATION {
		t.Errorf("expected gravity %v, got %v", DEFAULT_GRAVITY_ACCELERATION, w.Gravity)
	}
	if w.Joints == nil || w.Events == nil {
		t.Fatal("joints and events must be created")
	}
}

func TestWorld_Pendulum(t *testing.T) {
	w := NewWorld(constraint.DefaultJointSolverSettings())
	anchor := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
	bob := newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	w.AddBody(anchor)
	w.AddBody(bob)

	s := constraint.DefaultJointSettings()
	s.ConnectorTransforms[0] = actor.NewTransformAt(mgl64.Vec3{-1, 0, 0}, mgl64.QuatIdent())
	h := w.AddJoint(bob, anchor, s)

	// a quarter of a period brings the bob near the bottom
	for range 30 {
		w.Step(1.0 / 60)

		if err := jointError(h); err > 1e-3 {
			t.Fatalf("joint separated by %v", err)
		}
	}

	if bob.Transform.Position.Y() >= -0.5 {
		t.Errorf("bob should swing down, got %v", bob.Transform.Position)
	}
	if anchor.Transform.Position != (mgl64.Vec3{0, 0, 0}) {
		t.Errorf("static anchor moved to %v", anchor.Transform.Position)
	}
	if d := bob.Transform.Position.Len(); math.Abs(d-1) > 1e-3 {
		t.Errorf("bob distance should stay 1, got %v", d)
	}
}

func TestWorld_ParallelMatchesSequential(t *testing.T) {
	tests := []struct {
		name       string
		solverType constraint.SolverType
		workers    int
	}{
		{"standard 2 workers", constraint.SolverStandardPbd, 2},
		{"standard 4 workers", constraint.SolverStandardPbd, 4},
		{"quasi 3 workers", constraint.SolverQuasiPbd, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sequential := chainWorld(4, 5)
			parallel := chainWorld(4, 5)
			parallel.Workers = tt.workers
			sequential.Joints.SetSolverType(tt.solverType)
			parallel.Joints.SetSolverType(tt.solverType)

			for range 30 {
				sequential.Step(1.0 / 60)
				parallel.Step(1.0 / 60)
			}

			for i := range sequential.Bodies {
				a, b := sequential.Bodies[i].Transform, parallel.Bodies[i].Transform
				if a.Position != b.Position || a.Rotation != b.Rotation {
					t.Fatalf("body %d differs: %v %v / %v %v", i, a.Position, a.Rotation, b.Position, b.Rotation)
				}
			}
		})
	}
}

func TestWorld_ChainHolds(t *testing.T) {
	w := chainWorld(2, 4)

	for range 120 {
		w.Step(1.0 / 60)
	}

	for _, h := range w.Joints.Handles() {
		if err := jointError(h); err > 1e-2 {
			t.Errorf("joint %d separated by %v", h.ConstraintIndex(), err)
		}
	}
}

func TestWorld_JointBreakEvent(t *testing.T) {
	w := NewWorld(constraint.DefaultJointSolverSettings())
	capture := &eventCapture{}
	w.Events.Subscribe(ON_JOINT_BREAK, capture.capture)

	anchor := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
	link := newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	w.AddBody(anchor)
	w.AddBody(link)

	s := linkSettings()
	s.LinearBreakForce = 1e-3
	h := w.AddJoint(link, anchor, s)

	w.Step(1.0 / 60)

	if capture.count() != 1 {
		t.Fatalf("expected 1 break event, got %d", capture.count())
	}
	if event := capture.events[0].(JointBreakEvent); event.Joint != h {
		t.Error("break event should carry the broken joint")
	}
	if h.IsEnabled() || !h.IsBreaking() {
		t.Error("broken joint should be disabled and breaking")
	}

	// a broken joint lets the body fall
	capture.reset()
	for range 10 {
		w.Step(1.0 / 60)
	}
	if capture.count() != 0 {
		t.Errorf("expected no more break events, got %d", capture.count())
	}
	if link.Transform.Position.Y() > -0.1 {
		t.Errorf("link should fall freely, got %v", link.Transform.Position)
	}
}

func TestWorld_SleepEvent(t *testing.T) {
	w := NewWorld(constraint.DefaultJointSolverSettings())
	w.Gravity = mgl64.Vec3{}
	capture := &eventCapture{}
	w.Events.Subscribe(ON_SLEEP, capture.capture)

	body := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeDynamic)
	w.AddBody(body)

	for range 10 {
		w.Step(1.0 / 60)
	}

	if !body.IsSleeping {
		t.Fatal("resting body should fall asleep")
	}
	if capture.count() != 1 {
		t.Errorf("expected 1 sleep event, got %d", capture.count())
	}
}

func TestWorld_WakeJointedBodies(t *testing.T) {
	w := NewWorld(constraint.DefaultJointSolverSettings())
	awake := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeDynamic)
	middle := newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	asleep := newBody(mgl64.Vec3{2, 0, 0}, actor.BodyTypeDynamic)
	for _, b := range []*actor.RigidBody{awake, middle, asleep} {
		w.AddBody(b)
	}
	w.AddJoint(middle, awake, linkSettings())
	w.AddJoint(asleep, middle, linkSettings())
	middle.Sleep()
	asleep.Sleep()

	w.Step(1.0 / 60)

	if middle.IsSleeping || asleep.IsSleeping {
		t.Error("bodies jointed to an awake body should wake up")
	}
	if asleep.Transform.Position.Y() >= 0 {
		t.Errorf("woken body should fall, got %v", asleep.Transform.Position)
	}
}

func TestWorld_RemoveBodyDisconnectsJoints(t *testing.T) {
	w := NewWorld(constraint.DefaultJointSolverSettings())
	anchor := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
	link := newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	w.AddBody(anchor)
	w.AddBody(link)
	h := w.AddJoint(link, anchor, linkSettings())

	w.RemoveBody(anchor)

	if len(w.Bodies) != 1 || w.Bodies[0] != link {
		t.Fatalf("expected only the link to remain, got %d bodies", len(w.Bodies))
	}
	if h.IsEnabled() {
		t.Error("joint of a removed body should be disabled")
	}
	if pair := h.ConstrainedParticles(); pair[1] != nil {
		t.Error("removed body should be detached from the joint")
	}

	// the link falls freely
	w.Step(1.0 / 60)
	if link.Transform.Position.Y() >= 0 {
		t.Errorf("link should fall, got %v", link.Transform.Position)
	}
}

func TestWorld_RemoveJoint(t *testing.T) {
	tests := []struct {
		name   string
		handle func(w *World, h constraint.JointHandle) constraint.JointHandle
		remain int
	}{
		{"valid handle", func(_ *World, h constraint.JointHandle) constraint.JointHandle { return h }, 0},
		{"zero handle", func(*World, constraint.JointHandle) constraint.JointHandle { return constraint.JointHandle{} }, 1},
		{"other world", func(*World, constraint.JointHandle) constraint.JointHandle {
			other := NewWorld(constraint.DefaultJointSolverSettings())
			return other.AddJoint(newBody(mgl64.Vec3{}, actor.BodyTypeDynamic), newBody(mgl64.Vec3{}, actor.BodyTypeDynamic), linkSettings())
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld(constraint.DefaultJointSolverSettings())
			h := w.AddJoint(newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic), newBody(mgl64.Vec3{}, actor.BodyTypeStatic), linkSettings())

			w.RemoveJoint(tt.handle(w, h))

			if w.Joints.NumConstraints() != tt.remain {
				t.Errorf("expected %d joints, got %d", tt.remain, w.Joints.NumConstraints())
			}
		})
	}
}

// drivenWorld holds a dynamic body on a static one at the origin, without gravity
func drivenWorld(s constraint.JointSettings) (*World, *actor.RigidBody) {
	w := NewWorld(constraint.DefaultJointSolverSettings())
	w.Gravity = mgl64.Vec3{}

	base := newBody(mgl64.Vec3{}, actor.BodyTypeStatic)
	body := newBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	w.AddBody(base)
	w.AddBody(body)
	w.AddJoint(body, base, s)

	return w, body
}

func TestWorld_VelocityDrivesSettle(t *testing.T) {
	linear := constraint.DefaultJointSettings()
	linear.LinearMotionTypes = [3]constraint.JointMotionType{constraint.MotionFree, constraint.MotionLocked, constraint.MotionLocked}
	linear.LinearVelocityDriveEnabled[0] = true
	linear.LinearDriveVelocityTarget = mgl64.Vec3{1, 0, 0}
	linear.LinearDriveDamping = 1000

	angular := constraint.DefaultJointSettings()
	angular.AngularTwistVelocityDriveEnabled = true
	angular.AngularDriveVelocityTarget = mgl64.Vec3{2, 0, 0}
	angular.AngularDriveDamping = 1000

	tests := []struct {
		name     string
		settings constraint.JointSettings
		velocity func(body *actor.RigidBody) mgl64.Vec3
		expected mgl64.Vec3
	}{
		{"linear", linear, func(body *actor.RigidBody) mgl64.Vec3 { return body.Velocity }, mgl64.Vec3{1, 0, 0}},
		{"angular twist", angular, func(body *actor.RigidBody) mgl64.Vec3 { return body.AngularVelocity }, mgl64.Vec3{2, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := drivenWorld(tt.settings)

			for range 120 {
				w.Step(1.0 / 60)
			}

			// the damper holds the target instead of accelerating past it
			if d := tt.velocity(body).Sub(tt.expected).Len(); d > 1e-2 {
				t.Errorf("velocity should settle at %v, got %v", tt.expected, tt.velocity(body))
			}
		})
	}
}

func TestWorld_CallbacksWithWorkers(t *testing.T) {
	count := func(workers int) (int, int, int) {
		w := chainWorld(2, 4)
		w.Workers = workers

		var pre, post, project int
		w.Joints.SetPreApplyCallback(func(_ float64, handles []constraint.JointHandle) {
			if len(handles) == w.Joints.NumConstraints() {
				pre++
			}
		})
		w.Joints.SetPostApplyCallback(func(_ float64, handles []constraint.JointHandle) {
			if len(handles) == w.Joints.NumConstraints() {
				post++
			}
		})
		w.Joints.SetPostProjectCallback(func(_ float64, handles []constraint.JointHandle) {
			if len(handles) == w.Joints.NumConstraints() {
				project++
			}
		})

		for range 3 {
			w.Step(1.0 / 60)
		}
		return pre, post, project
	}

	pre, post, project := count(1)
	if pre == 0 || post != pre || project == 0 {
		t.Fatalf("sequential passes should run the callbacks, got %d %d %d", pre, post, project)
	}

	for _, workers := range []int{2, 3} {
		p, q, r := count(workers)
		if p != pre || q != post || r != project {
			t.Errorf("%d workers: expected callbacks %d %d %d, got %d %d %d", workers, pre, post, project, p, q, r)
		}
	}
}
