package constraint

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultJointSettings(t *testing.T) {
	s := DefaultJointSettings()

	assert.Equal(t, [3]JointMotionType{MotionLocked, MotionLocked, MotionLocked}, s.LinearMotionTypes)
	assert.Equal(t, [3]JointMotionType{MotionFree, MotionFree, MotionFree}, s.AngularMotionTypes)
	assert.Equal(t, 1.0, s.Stiffness)
	assert.Equal(t, 1.0, s.ParentInvMassScale)
	assert.Equal(t, Unlimited, s.LinearBreakForce)
	assert.Equal(t, Unlimited, s.AngularBreakTorque)
	assert.Equal(t, Unlimited, s.LinearPlasticityInitialDistanceSquared)
	assert.True(t, s.CollisionEnabled)
	assert.False(t, s.ProjectionEnabled)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *JointSettings)
		check  func(t *testing.T, s JointSettings)
	}{
		{
			name: "soft linear limit needs an unlocked axis",
			modify: func(s *JointSettings) {
				s.SoftLinearLimitsEnabled = true
			},
			check: func(t *testing.T, s JointSettings) {
				assert.False(t, s.SoftLinearLimitsEnabled)
			},
		},
		{
			name: "soft linear limit kept on a limited axis",
			modify: func(s *JointSettings) {
				s.LinearMotionTypes = [3]JointMotionType{MotionLimited, MotionLocked, MotionLocked}
				s.LinearLimit = 0.5
				s.SoftLinearLimitsEnabled = true
			},
			check: func(t *testing.T, s JointSettings) {
				assert.True(t, s.SoftLinearLimitsEnabled)
				assert.Equal(t, 0.5, s.LinearLimit)
			},
		},
		{
			name: "locked twist disables the soft twist limit",
			modify: func(s *JointSettings) {
				s.AngularMotionTypes[Twist] = MotionLocked
				s.SoftTwistLimitsEnabled = true
			},
			check: func(t *testing.T, s JointSettings) {
				assert.False(t, s.SoftTwistLimitsEnabled)
			},
		},
		{
			name: "soft swing limit needs one unlocked swing",
			modify: func(s *JointSettings) {
				s.AngularMotionTypes[Swing1] = MotionLocked
				s.AngularMotionTypes[Swing2] = MotionLimited
				s.AngularLimits[Swing2] = 0.5
				s.SoftSwingLimitsEnabled = true
			},
			check: func(t *testing.T, s JointSettings) {
				assert.True(t, s.SoftSwingLimitsEnabled)
			},
		},
		{
			name: "stale limits are cleared",
			modify: func(s *JointSettings) {
				s.LinearLimit = 3
				s.AngularMotionTypes = [3]JointMotionType{MotionFree, MotionLimited, MotionLocked}
				s.AngularLimits = [3]float64{1, 0.5, 2}
			},
			check: func(t *testing.T, s JointSettings) {
				assert.Equal(t, 0.0, s.LinearLimit)
				assert.Equal(t, [3]float64{0, 0.5, 0}, s.AngularLimits)
			},
		},
		{
			name: "tiny hard limit locks the axis",
			modify: func(s *JointSettings) {
				s.AngularMotionTypes[Twist] = MotionLimited
				s.AngularLimits[Twist] = 0.001
			},
			check: func(t *testing.T, s JointSettings) {
				assert.Equal(t, MotionLocked, s.AngularMotionTypes[Twist])
				assert.Equal(t, 0.0, s.AngularLimits[Twist])
			},
		},
		{
			name: "tiny soft limit is widened",
			modify: func(s *JointSettings) {
				s.AngularMotionTypes[Twist] = MotionLimited
				s.AngularLimits[Twist] = 0.001
				s.SoftTwistLimitsEnabled = true
			},
			check: func(t *testing.T, s JointSettings) {
				assert.Equal(t, MotionLimited, s.AngularMotionTypes[Twist])
				assert.Equal(t, MinAngularLimit, s.AngularLimits[Twist])
				assert.True(t, s.SoftTwistLimitsEnabled)
			},
		},
		{
			name: "slerp drive needs every angular axis",
			modify: func(s *JointSettings) {
				s.AngularMotionTypes[Swing2] = MotionLocked
				s.AngularSLerpPositionDriveEnabled = true
				s.AngularSLerpVelocityDriveEnabled = true
			},
			check: func(t *testing.T, s JointSettings) {
				assert.False(t, s.AngularSLerpPositionDriveEnabled)
				assert.False(t, s.AngularSLerpVelocityDriveEnabled)
			},
		},
		{
			name: "slerp drive kept on free axes",
			modify: func(s *JointSettings) {
				s.AngularSLerpPositionDriveEnabled = true
			},
			check: func(t *testing.T, s JointSettings) {
				assert.True(t, s.AngularSLerpPositionDriveEnabled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultJointSettings()
			tt.modify(&s)
			s.Sanitize()
			tt.check(t, s)
		})
	}
}

func randomMotion(r *rand.Rand) JointMotionType {
	return JointMotionType(r.Intn(3))
}

func randomLimit(r *rand.Rand) float64 {
	if r.Intn(2) == 0 {
		return r.Float64() * 2 * MinAngularLimit
	}
	return r.Float64() * 3
}

func TestSanitizeIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for range 500 {
		s := DefaultJointSettings()
		for i := range 3 {
			s.LinearMotionTypes[i] = randomMotion(r)
			s.AngularMotionTypes[i] = randomMotion(r)
			s.AngularLimits[i] = randomLimit(r)
		}
		s.LinearLimit = randomLimit(r)
		s.SoftLinearLimitsEnabled = r.Intn(2) == 0
		s.SoftTwistLimitsEnabled = r.Intn(2) == 0
		s.SoftSwingLimitsEnabled = r.Intn(2) == 0
		s.AngularSLerpPositionDriveEnabled = r.Intn(2) == 0
		s.AngularSLerpVelocityDriveEnabled = r.Intn(2) == 0

		once := s.Sanitized()
		assert.Equal(t, once, once.Sanitized())
	}
}

func TestSanitizedLeavesOriginal(t *testing.T) {
	s := DefaultJointSettings()
	s.SoftLinearLimitsEnabled = true

	sanitized := s.Sanitized()

	assert.True(t, s.SoftLinearLimitsEnabled)
	assert.False(t, sanitized.SoftLinearLimitsEnabled)
}

func TestNewJointState(t *testing.T) {
	state := NewJointState()

	assert.Equal(t, InvalidIndex, state.Island)
	assert.Equal(t, InvalidIndex, state.Level)
	assert.Equal(t, InvalidIndex, state.Color)
	assert.False(t, state.Disabled)
	assert.False(t, state.Breaking)
}

func TestParseEnums(t *testing.T) {
	motion, err := ParseJointMotionType("Limited")
	assert.NoError(t, err)
	assert.Equal(t, MotionLimited, motion)

	_, err = ParseJointMotionType("sliding")
	assert.ErrorIs(t, err, ErrUnknownMotionType)

	mode, err := ParseJointForceMode("")
	assert.NoError(t, err)
	assert.Equal(t, ForceModeAcceleration, mode)

	plasticity, err := ParsePlasticityType("grow")
	assert.NoError(t, err)
	assert.Equal(t, PlasticityGrow, plasticity)

	solver, err := ParseSolverType("quasi")
	assert.NoError(t, err)
	assert.Equal(t, SolverQuasiPbd, solver)

	_, err = ParseSolverType("jacobi")
	assert.ErrorIs(t, err, ErrUnknownSolverType)

	for _, m := range []JointMotionType{MotionFree, MotionLimited, MotionLocked} {
		parsed, err := ParseJointMotionType(m.String())
		assert.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	assert.Equal(t, "swing1", Swing1.String())
	assert.Equal(t, Swing2Axis, Swing2.Axis())
}
