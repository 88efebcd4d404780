package constraint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownMotionType     = errors.New("unknown joint motion type")
	ErrUnknownForceMode      = errors.New("unknown joint force mode")
	ErrUnknownPlasticityType = errors.New("unknown plasticity type")
	ErrUnknownSolverType     = errors.New("unknown solver type")
)

// JointMotionType describes how one axis of a joint is constrained
type JointMotionType int

const (
	MotionFree JointMotionType = iota
	MotionLimited
	MotionLocked
)

// JointForceMode selects whether soft stiffness and damping are mass normalized
type JointForceMode int

const (
	// ForceModeAcceleration scales stiffness and damping by the effective mass of the pair
	ForceModeAcceleration JointForceMode = iota
	ForceModeForce
)

// PlasticityType restricts how a plastic deformation may update a drive target
type PlasticityType int

const (
	PlasticityFree PlasticityType = iota
	PlasticityShrink
	PlasticityGrow
)

// SolverType selects the push-out pass of the joint solver
type SolverType int

const (
	SolverNone SolverType = iota
	SolverStandardPbd
	SolverGbfPbd
	SolverQuasiPbd
)

// AngularConstraintIndex indexes the angular axes of a joint
type AngularConstraintIndex int

const (
	Twist AngularConstraintIndex = iota
	Swing1
	Swing2
)

// Axes of the angular constraints in connector space
var (
	TwistAxis  = mgl64.Vec3{1, 0, 0}
	Swing1Axis = mgl64.Vec3{0, 0, 1}
	Swing2Axis = mgl64.Vec3{0, 1, 0}
)

// Axis returns the connector-space axis of the angular constraint
func (i AngularConstraintIndex) Axis() mgl64.Vec3 {
	switch i {
	case Swing1:
		return Swing1Axis
	case Swing2:
		return Swing2Axis
	}

	return TwistAxis
}

func (i AngularConstraintIndex) String() string {
	switch i {
	case Twist:
		return "twist"
	case Swing1:
		return "swing1"
	case Swing2:
		return "swing2"
	}

	return fmt.Sprintf("AngularConstraintIndex(%d)", int(i))
}

func (m JointMotionType) String() string {
	switch m {
	case MotionFree:
		return "free"
	case MotionLimited:
		return "limited"
	case MotionLocked:
		return "locked"
	}

	return fmt.Sprintf("JointMotionType(%d)", int(m))
}

func ParseJointMotionType(s string) (JointMotionType, error) {
	switch strings.ToLower(s) {
	case "free":
		return MotionFree, nil
	case "limited":
		return MotionLimited, nil
	case "locked":
		return MotionLocked, nil
	}

	return MotionFree, fmt.Errorf("%w: %q", ErrUnknownMotionType, s)
}

func (m JointForceMode) String() string {
	switch m {
	case ForceModeAcceleration:
		return "acceleration"
	case ForceModeForce:
		return "force"
	}

	return fmt.Sprintf("JointForceMode(%d)", int(m))
}

func ParseJointForceMode(s string) (JointForceMode, error) {
	switch strings.ToLower(s) {
	case "", "acceleration":
		return ForceModeAcceleration, nil
	case "force":
		return ForceModeForce, nil
	}

	return ForceModeAcceleration, fmt.Errorf("%w: %q", ErrUnknownForceMode, s)
}

func (p PlasticityType) String() string {
	switch p {
	case PlasticityFree:
		return "free"
	case PlasticityShrink:
		return "shrink"
	case PlasticityGrow:
		return "grow"
	}

	return fmt.Sprintf("PlasticityType(%d)", int(p))
}

func ParsePlasticityType(s string) (PlasticityType, error) {
	switch strings.ToLower(s) {
	case "", "free":
		return PlasticityFree, nil
	case "shrink":
		return PlasticityShrink, nil
	case "grow":
		return PlasticityGrow, nil
	}

	return PlasticityFree, fmt.Errorf("%w: %q", ErrUnknownPlasticityType, s)
}

func (s SolverType) String() string {
	switch s {
	case SolverNone:
		return "none"
	case SolverStandardPbd:
		return "standard"
	case SolverGbfPbd:
		return "gbf"
	case SolverQuasiPbd:
		return "quasi"
	}

	return fmt.Sprintf("SolverType(%d)", int(s))
}

func ParseSolverType(s string) (SolverType, error) {
	switch strings.ToLower(s) {
	case "none":
		return SolverNone, nil
	case "", "standard":
		return SolverStandardPbd, nil
	case "gbf":
		return SolverGbfPbd, nil
	case "quasi":
		return SolverQuasiPbd, nil
	}

	return SolverStandardPbd, fmt.Errorf("%w: %q", ErrUnknownSolverType, s)
}
