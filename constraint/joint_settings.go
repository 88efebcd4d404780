package constraint

import (
	"math"

	"github.com/akmonengine/tendon/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Unlimited is the value of a threshold or limit that never triggers
const Unlimited = math.MaxFloat64

// MinAngularLimit is the smallest angle a Limited angular axis may use.
// Below it, soft limits are widened and hard limits are locked.
const MinAngularLimit = 0.01

// JointSettings is the configuration of one joint.
// Connector index 0 belongs to the child body and index 1 to the parent body.
type JointSettings struct {
	// Joint frames relative to each body center of mass
	ConnectorTransforms [2]actor.Transform

	Stiffness          float64
	LinearProjection   float64
	AngularProjection  float64
	ParentInvMassScale float64

	CollisionEnabled      bool
	ProjectionEnabled     bool
	SoftProjectionEnabled bool

	LinearMotionTypes  [3]JointMotionType
	LinearLimit        float64
	AngularMotionTypes [3]JointMotionType // indexed by AngularConstraintIndex
	AngularLimits      [3]float64         // radians, indexed by AngularConstraintIndex

	SoftLinearLimitsEnabled bool
	SoftTwistLimitsEnabled  bool
	SoftSwingLimitsEnabled  bool
	LinearSoftForceMode     JointForceMode
	AngularSoftForceMode    JointForceMode
	SoftLinearStiffness     float64
	SoftLinearDamping       float64
	SoftTwistStiffness      float64
	SoftTwistDamping        float64
	SoftSwingStiffness      float64
	SoftSwingDamping        float64

	// Restitution and contact distances of the hard limits, used by the velocity pass
	LinearRestitution     float64
	TwistRestitution      float64
	SwingRestitution      float64
	LinearContactDistance float64
	TwistContactDistance  float64
	SwingContactDistance  float64

	LinearDrivePositionTarget  mgl64.Vec3
	LinearDriveVelocityTarget  mgl64.Vec3
	LinearPositionDriveEnabled [3]bool
	LinearVelocityDriveEnabled [3]bool
	LinearDriveForceMode       JointForceMode
	LinearDriveStiffness       float64
	LinearDriveDamping         float64

	AngularDrivePositionTarget       mgl64.Quat
	AngularDriveVelocityTarget       mgl64.Vec3
	AngularSLerpPositionDriveEnabled bool
	AngularSLerpVelocityDriveEnabled bool
	AngularTwistPositionDriveEnabled bool
	AngularTwistVelocityDriveEnabled bool
	AngularSwingPositionDriveEnabled bool
	AngularSwingVelocityDriveEnabled bool
	AngularDriveForceMode            JointForceMode
	AngularDriveStiffness            float64
	AngularDriveDamping              float64

	LinearBreakForce       float64
	LinearPlasticityLimit  float64
	LinearPlasticityType   PlasticityType
	AngularBreakTorque     float64
	AngularPlasticityLimit float64

	// Reference length of the linear plasticity limit, set the first time the joint is prepared
	LinearPlasticityInitialDistanceSquared float64
}

// DefaultJointSettings returns a rigid joint: all linear axes locked and all
// angular axes free, with no drive, break or plasticity threshold.
func DefaultJointSettings() JointSettings {
	return JointSettings{
		ConnectorTransforms: [2]actor.Transform{actor.NewTransform(), actor.NewTransform()},

		Stiffness:          1,
		ParentInvMassScale: 1,
		CollisionEnabled:   true,

		LinearMotionTypes:  [3]JointMotionType{MotionLocked, MotionLocked, MotionLocked},
		LinearLimit:        Unlimited,
		AngularMotionTypes: [3]JointMotionType{MotionFree, MotionFree, MotionFree},
		AngularLimits:      [3]float64{Unlimited, Unlimited, Unlimited},

		AngularDrivePositionTarget: mgl64.QuatIdent(),

		LinearBreakForce:                       Unlimited,
		LinearPlasticityLimit:                  Unlimited,
		AngularBreakTorque:                     Unlimited,
		AngularPlasticityLimit:                 Unlimited,
		LinearPlasticityInitialDistanceSquared: Unlimited,
	}
}

// Sanitize normalizes inconsistent combinations in place. It is idempotent.
func (s *JointSettings) Sanitize() {
	if s.LinearMotionTypes[0] == MotionLocked && s.LinearMotionTypes[1] == MotionLocked && s.LinearMotionTypes[2] == MotionLocked {
		s.SoftLinearLimitsEnabled = false
	}
	if s.AngularMotionTypes[Twist] == MotionLocked {
		s.SoftTwistLimitsEnabled = false
	}
	if s.AngularMotionTypes[Swing1] == MotionLocked && s.AngularMotionTypes[Swing2] == MotionLocked {
		s.SoftSwingLimitsEnabled = false
	}

	if s.LinearMotionTypes[0] != MotionLimited && s.LinearMotionTypes[1] != MotionLimited && s.LinearMotionTypes[2] != MotionLimited {
		s.LinearLimit = 0
	}
	for i := range s.AngularMotionTypes {
		if s.AngularMotionTypes[i] != MotionLimited {
			s.AngularLimits[i] = 0
		}
	}

	// Very small limits make the constraint axes degenerate
	for i := range s.AngularMotionTypes {
		if s.AngularMotionTypes[i] != MotionLimited || s.AngularLimits[i] >= MinAngularLimit {
			continue
		}

		if s.angularSoftLimitEnabled(AngularConstraintIndex(i)) {
			s.AngularLimits[i] = MinAngularLimit
		} else {
			s.AngularMotionTypes[i] = MotionLocked
			s.AngularLimits[i] = 0
		}
	}

	// Locking a swing axis can disable the soft swing, so re-check
	if s.AngularMotionTypes[Twist] == MotionLocked {
		s.SoftTwistLimitsEnabled = false
	}
	if s.AngularMotionTypes[Swing1] == MotionLocked && s.AngularMotionTypes[Swing2] == MotionLocked {
		s.SoftSwingLimitsEnabled = false
	}

	// SLerp drives need every angular axis
	if s.AngularMotionTypes[Twist] == MotionLocked || s.AngularMotionTypes[Swing1] == MotionLocked || s.AngularMotionTypes[Swing2] == MotionLocked {
		s.AngularSLerpPositionDriveEnabled = false
		s.AngularSLerpVelocityDriveEnabled = false
	}
}

// Sanitized returns a sanitized copy of s
func (s JointSettings) Sanitized() JointSettings {
	s.Sanitize()
	return s
}

func (s *JointSettings) angularSoftLimitEnabled(i AngularConstraintIndex) bool {
	if i == Twist {
		return s.SoftTwistLimitsEnabled
	}
	return s.SoftSwingLimitsEnabled
}

// JointState is the per-tick state of a joint
type JointState struct {
	Island     int
	IslandSize int
	Level      int
	Color      int

	Disabled bool
	Breaking bool

	// Impulses applied during the last iteration, per second
	LinearImpulse  mgl64.Vec3
	AngularImpulse mgl64.Vec3
}

func NewJointState() JointState {
	return JointState{
		Island: InvalidIndex,
		Level:  InvalidIndex,
		Color:  InvalidIndex,
	}
}

// JointSolverSettings is the configuration shared by every joint of a container.
// Override fields are disabled when negative.
type JointSolverSettings struct {
	ApplyPairIterations        int `yaml:"apply_pair_iterations" validate:"gte=1"`
	ApplyPushOutPairIterations int `yaml:"apply_push_out_pair_iterations" validate:"gte=0"`

	SwingTwistAngleTolerance float64 `yaml:"swing_twist_angle_tolerance" validate:"gte=0"`
	PositionTolerance        float64 `yaml:"position_tolerance" validate:"gte=0"`
	AngleTolerance           float64 `yaml:"angle_tolerance" validate:"gte=0"`

	MinParentMassRatio float64 `yaml:"min_parent_mass_ratio" validate:"gte=0"`
	MaxInertiaRatio    float64 `yaml:"max_inertia_ratio" validate:"gte=0"`

	MinSolverStiffness                float64 `yaml:"min_solver_stiffness" validate:"gte=0,lte=1"`
	MaxSolverStiffness                float64 `yaml:"max_solver_stiffness" validate:"gte=0,lte=1,gtefield=MinSolverStiffness"`
	NumIterationsAtMaxSolverStiffness int     `yaml:"num_iterations_at_max_solver_stiffness" validate:"gte=0"`

	EnableTwistLimits bool `yaml:"enable_twist_limits"`
	EnableSwingLimits bool `yaml:"enable_swing_limits"`
	EnableDrives      bool `yaml:"enable_drives"`
	EnableEarlyOut    bool `yaml:"enable_early_out"`

	VelocityProjectionAlpha float64 `yaml:"velocity_projection_alpha" validate:"gte=0,lte=1"`

	LinearStiffnessOverride       float64 `yaml:"linear_stiffness_override" validate:"gte=-1,lte=1"`
	TwistStiffnessOverride        float64 `yaml:"twist_stiffness_override" validate:"gte=-1,lte=1"`
	SwingStiffnessOverride        float64 `yaml:"swing_stiffness_override" validate:"gte=-1,lte=1"`
	LinearProjectionOverride      float64 `yaml:"linear_projection_override" validate:"gte=-1,lte=1"`
	AngularProjectionOverride     float64 `yaml:"angular_projection_override" validate:"gte=-1,lte=1"`
	LinearDriveStiffnessOverride  float64 `yaml:"linear_drive_stiffness_override" validate:"gte=-1"`
	LinearDriveDampingOverride    float64 `yaml:"linear_drive_damping_override" validate:"gte=-1"`
	AngularDriveStiffnessOverride float64 `yaml:"angular_drive_stiffness_override" validate:"gte=-1"`
	AngularDriveDampingOverride   float64 `yaml:"angular_drive_damping_override" validate:"gte=-1"`
}

func DefaultJointSolverSettings() JointSolverSettings {
	return JointSolverSettings{
		ApplyPairIterations:        1,
		ApplyPushOutPairIterations: 1,

		SwingTwistAngleTolerance: 1.0e-6,

		MinSolverStiffness:                1,
		MaxSolverStiffness:                1,
		NumIterationsAtMaxSolverStiffness: 1,

		EnableTwistLimits: true,
		EnableSwingLimits: true,
		EnableDrives:      true,
		EnableEarlyOut:    true,

		LinearStiffnessOverride:       -1,
		TwistStiffnessOverride:        -1,
		SwingStiffnessOverride:        -1,
		LinearProjectionOverride:      -1,
		AngularProjectionOverride:     -1,
		LinearDriveStiffnessOverride:  -1,
		LinearDriveDampingOverride:    -1,
		AngularDriveStiffnessOverride: -1,
		AngularDriveDampingOverride:   -1,
	}
}
