// Package constraint solves joints between pairs of rigid bodies with a
// position based Gauss-Seidel solver.
//
// JointConstraints owns the joints. Each simulation substep runs
// PrepareTick, PrepareIteration, a number of Apply then ApplyPushOut
// iterations, UnprepareIteration and UnprepareTick.
package constraint

import (
	"github.com/akmonengine/tendon/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func clampSmallVelocities(rb *actor.RigidBody) {
	const velocityThreshold = 1e-5

	if rb.Velocity.Len() < velocityThreshold {
		rb.Velocity = mgl64.Vec3{0, 0, 0}
	}
	if rb.AngularVelocity.Len() < velocityThreshold {
		rb.AngularVelocity = mgl64.Vec3{0, 0, 0}
	}
}
