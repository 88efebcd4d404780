package config

import (
	"testing"

	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadChain(t *testing.T) {
	scene, err := Load("testdata/chain.yaml")
	require.NoError(t, err)

	assert.Equal(t, 2, scene.World.Workers)
	assert.Equal(t, 2, scene.World.PushOutIterations, "omitted keys keep defaults")
	assert.Equal(t, 0.5, scene.Solver.MinSolverStiffness)
	assert.True(t, scene.Solver.EnableDrives, "omitted solver keys keep defaults")
	require.Len(t, scene.Bodies, 3)
	assert.Equal(t, "dynamic", scene.Bodies[1].Type)
	assert.Equal(t, 1.0, scene.Bodies[1].Density)
	require.Len(t, scene.Joints, 2)
	assert.Equal(t, [3]string{"locked", "locked", "locked"}, scene.Joints[0].Linear.Motion)
}

func TestBuildChain(t *testing.T) {
	scene, err := Load("testdata/chain.yaml")
	require.NoError(t, err)

	built, err := scene.Build()
	require.NoError(t, err)

	w := built.World
	assert.Len(t, w.Bodies, 3)
	assert.Equal(t, []string{"ceiling", "upper", "lower"}, built.BodyNames)
	assert.Equal(t, []string{"shoulder", "elbow"}, built.JointNames)
	assert.Equal(t, 2, w.Workers)
	assert.Equal(t, constraint.SolverStandardPbd, w.Joints.SolverType())
	assert.Equal(t, actor.BodyTypeStatic, built.Bodies["ceiling"].BodyType)

	shoulder := built.Joints["shoulder"]
	require.True(t, shoulder.IsValid())
	pair := shoulder.ConstrainedParticles()
	assert.Same(t, built.Bodies["upper"], pair[0])
	assert.Same(t, built.Bodies["ceiling"], pair[1])

	// the anchor is the same world point seen from both bodies
	space := shoulder.ConstraintSpace()
	assert.InDelta(t, 0.0, space[0].Position.Sub(mgl64.Vec3{0, -0.1, 0}).Len(), 1e-9)
	assert.InDelta(t, 0.0, space[1].Position.Sub(mgl64.Vec3{0, -0.1, 0}).Len(), 1e-9)

	elbow := built.Joints["elbow"].Settings()
	assert.Equal(t, [3]constraint.JointMotionType{constraint.MotionFree, constraint.MotionLocked, constraint.MotionLocked}, elbow.AngularMotionTypes)
	assert.True(t, elbow.AngularTwistPositionDriveEnabled)
	assert.Equal(t, 50.0, elbow.AngularDriveStiffness)
	assert.Equal(t, 1000.0, elbow.LinearBreakForce)
	assert.Equal(t, constraint.Unlimited, elbow.AngularBreakTorque)
	assert.Equal(t, 0.3, elbow.AngularPlasticityLimit)

	for range 10 {
		w.Step(1.0 / 60)
	}
	assert.True(t, built.Joints["shoulder"].IsEnabled())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  error
	}{
		{
			name: "empty",
			yaml: "",
			err:  ErrEmptyScene,
		},
		{
			name: "duplicate body",
			yaml: `
bodies:
  - name: a
  - name: a
`,
			err: ErrDuplicateBody,
		},
		{
			name: "unknown body",
			yaml: `
bodies:
  - name: a
joints:
  - child: a
    parent: b
`,
			err: ErrUnknownBody,
		},
		{
			name: "self joint",
			yaml: `
bodies:
  - name: a
joints:
  - child: a
    parent: a
`,
			err: ErrSelfJoint,
		},
		{
			name: "duplicate joint",
			yaml: `
bodies:
  - name: a
  - name: b
joints:
  - {name: j, child: a, parent: b}
  - {name: j, child: b, parent: a}
`,
			err: ErrDuplicateJoint,
		},
		{
			name: "dynamic body without volume",
			yaml: `
bodies:
  - name: a
    shape: {type: box}
`,
			err: ErrEmptyShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no bodies", "world: {substeps: 2}"},
		{"bad motion", "bodies: [{name: a}, {name: b}]\njoints: [{child: a, parent: b, linear: {motion: [free, sliding, free]}}]"},
		{"bad body type", "bodies: [{name: a, type: ghost}]"},
		{"bad stiffness range", "solver: {min_solver_stiffness: 0.9, max_solver_stiffness: 0.5}\nbodies: [{name: a}]"},
		{"negative density", "bodies: [{name: a, density: -1}]"},
		{"unknown key", "bodies: [{name: a}]\ngravity: [0, 0, 0]"},
		{"bad solver type", "world: {solver_type: jacobi}\nbodies: [{name: a}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestJointSettings(t *testing.T) {
	j := DefaultJoint()
	j.Linear.Motion = [3]string{"limited", "limited", "limited"}
	j.Linear.Limit = 0.5
	j.Linear.Soft = &SoftConfig{Stiffness: 10, Damping: 1, ForceMode: "force"}
	j.Plasticity = PlasticityConfig{LinearLimit: 0.1, Type: "grow"}
	j.Projection = ProjectionConfig{Enabled: true, Linear: 0.5}

	s, err := j.Settings()
	require.NoError(t, err)

	assert.Equal(t, constraint.MotionLimited, s.LinearMotionTypes[0])
	assert.True(t, s.SoftLinearLimitsEnabled)
	assert.Equal(t, constraint.ForceModeForce, s.LinearSoftForceMode)
	assert.Equal(t, 10.0, s.SoftLinearStiffness)
	assert.Equal(t, constraint.PlasticityGrow, s.LinearPlasticityType)
	assert.Equal(t, 0.1, s.LinearPlasticityLimit)
	assert.Equal(t, constraint.Unlimited, s.AngularPlasticityLimit)
	assert.True(t, s.ProjectionEnabled)
	assert.Equal(t, 0.5, s.LinearProjection)
	assert.Equal(t, constraint.Unlimited, s.LinearPlasticityInitialDistanceSquared)

	j.Angular.Motion[0] = "spinning"
	_, err = j.Settings()
	assert.ErrorIs(t, err, constraint.ErrUnknownMotionType)
}

func TestRotationQuat(t *testing.T) {
	assert.Equal(t, mgl64.QuatIdent(), Rotation{}.Quat())
	assert.Equal(t, mgl64.QuatIdent(), Rotation{Angle: 1}.Quat())

	q := Rotation{Axis: mgl64.Vec3{0, 0, 2}, Angle: 0.5}.Quat()
	assert.True(t, q.ApproxEqual(mgl64.QuatRotate(0.5, mgl64.Vec3{0, 0, 1})))
}
