package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/akmonengine/tendon"
	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	planks    = 8
	plankSize = 0.5
	dt        = 1.0 / 60
)

// plankJoint links two neighbour planks edge to edge, with some sag allowed
func plankJoint(breakForce float64) constraint.JointSettings {
	s := constraint.DefaultJointSettings()
	s.ConnectorTransforms[0] = actor.NewTransformAt(mgl64.Vec3{-plankSize / 2, 0, 0}, mgl64.QuatIdent())
	s.ConnectorTransforms[1] = actor.NewTransformAt(mgl64.Vec3{plankSize / 2, 0, 0}, mgl64.QuatIdent())
	s.AngularMotionTypes = [3]constraint.JointMotionType{constraint.MotionLocked, constraint.MotionLimited, constraint.MotionLimited}
	s.AngularLimits = [3]float64{0, 0.4, 0.4}
	s.LinearBreakForce = breakForce

	return s
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	world := tendon.NewWorld(constraint.DefaultJointSolverSettings())
	world.Workers = 2

	left := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()), &actor.Box{HalfExtents: mgl64.Vec3{0.1, 0.1, 1}}, actor.BodyTypeStatic, 1)
	world.AddBody(left)

	previous := left
	for i := range planks {
		plank := actor.NewRigidBody(
			actor.NewTransformAt(mgl64.Vec3{float64(i+1) * plankSize, 0, 0}, mgl64.QuatIdent()),
			&actor.Box{HalfExtents: mgl64.Vec3{plankSize / 2, 0.05, 1}},
			actor.BodyTypeDynamic,
			500,
		)
		world.AddBody(plank)

		breakForce := constraint.Unlimited
		if i == planks/2 {
			breakForce = 2000
		}
		world.AddJoint(plank, previous, plankJoint(breakForce))
		previous = plank
	}

	right := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{float64(planks+1) * plankSize, 0, 0}, mgl64.QuatIdent()), &actor.Box{HalfExtents: mgl64.Vec3{0.1, 0.1, 1}}, actor.BodyTypeStatic, 1)
	world.AddBody(right)
	world.AddJoint(right, previous, plankJoint(constraint.Unlimited))

	world.Events.Subscribe(tendon.ON_JOINT_BREAK, func(event tendon.Event) {
		joint := event.(tendon.JointBreakEvent).Joint
		slog.Info("joint broke", "index", joint.ConstraintIndex())
	})

	for step := 1; step <= 300; step++ {
		world.Step(dt)

		if step%60 == 0 {
			middle := world.Bodies[planks/2+1]
			fmt.Printf("t=%.1fs middle plank at %.3f\n", float64(step)*dt, middle.Transform.Position)
		}
	}
}
