package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	smallNumber = 1e-8
	kindaSmall  = 1e-4
)

// crossMatrix returns the matrix M such that M*v == a × v
func crossMatrix(a mgl64.Vec3) mgl64.Mat3 {
	// column-major
	return mgl64.Mat3{
		0, a.Z(), -a.Y(),
		-a.Z(), 0, a.X(),
		a.Y(), -a.X(), 0,
	}
}

// jointFactorMatrix is the inverse effective mass of a point at offset r from
// the center of mass: invM*I + [r]ᵀ invI [r]
func jointFactorMatrix(r mgl64.Vec3, invI mgl64.Mat3, invM float64) mgl64.Mat3 {
	rx := crossMatrix(r)
	return rx.Transpose().Mul3(invI).Mul3(rx).Add(mgl64.Ident3().Mul(invM))
}

// invertSymmetric inverts a symmetric positive semi-definite matrix, failing
// when it is singular relative to its own scale
func invertSymmetric(m mgl64.Mat3) (mgl64.Mat3, bool) {
	trace := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	if trace <= 0 {
		return mgl64.Mat3{}, false
	}

	scale := trace / 3
	if math.Abs(m.Det()) <= 1e-12*scale*scale*scale {
		return mgl64.Mat3{}, false
	}
	return m.Inv(), true
}

// enforceShortestArcWith flips q into the hemisphere of reference
func enforceShortestArcWith(q, reference mgl64.Quat) mgl64.Quat {
	if q.Dot(reference) < 0 {
		return q.Scale(-1)
	}
	return q
}

// integrateRotation applies a small world-space rotation vector to q
func integrateRotation(q mgl64.Quat, dr mgl64.Vec3) mgl64.Quat {
	dq := mgl64.Quat{W: 0, V: dr}.Mul(q).Scale(0.5)
	return q.Add(dq).Normalize()
}

// rotationVector returns axis * angle of q, with angle in [0, π]
func rotationVector(q mgl64.Quat) mgl64.Vec3 {
	if q.W < 0 {
		q = q.Scale(-1)
	}

	sinHalf := q.V.Len()
	if sinHalf < smallNumber {
		return q.V.Mul(2)
	}

	angle := 2 * math.Atan2(sinHalf, q.W)
	return q.V.Mul(angle / sinHalf)
}

// rotationDelta returns the world rotation vector taking from to to
func rotationDelta(from, to mgl64.Quat) mgl64.Vec3 {
	return rotationVector(to.Mul(from.Conjugate()))
}

// decomposeSwingTwist splits q into swing * twist, with twist about TwistAxis
func decomposeSwingTwist(q mgl64.Quat) (swing, twist mgl64.Quat) {
	twist = mgl64.Quat{W: q.W, V: mgl64.Vec3{q.V.X(), 0, 0}}
	if twist.Len() < smallNumber {
		// 180 degree swing, the twist is undefined
		return q, mgl64.QuatIdent()
	}

	twist = twist.Normalize()
	swing = q.Mul(twist.Conjugate())
	return swing, twist
}

// twistAngle returns the signed angle of a twist quaternion, in [-π, π]
func twistAngle(twist mgl64.Quat) float64 {
	if twist.W < 0 {
		twist = twist.Scale(-1)
	}
	return 2 * math.Atan2(twist.V.X(), twist.W)
}

// swingAngles returns the swing angles about Swing1Axis (Z) and Swing2Axis (Y)
func swingAngles(swing mgl64.Quat) (swing1, swing2 float64) {
	if swing.W < 0 {
		swing = swing.Scale(-1)
	}
	return 2 * math.Atan2(swing.V.Z(), swing.W), 2 * math.Atan2(swing.V.Y(), swing.W)
}

// angularDistance returns the angle of the rotation between a and b
func angularDistance(a, b mgl64.Quat) float64 {
	d := math.Min(math.Abs(a.Normalize().Dot(b.Normalize())), 1)
	return 2 * math.Acos(d)
}

// coneLimit returns the swing limit in the direction of the local swing axis,
// on the ellipse with radius swing1Limit about Z and swing2Limit about Y
func coneLimit(swing1Limit, swing2Limit float64, axis mgl64.Vec3) float64 {
	a := swing2Limit * axis.Z()
	b := swing1Limit * axis.Y()
	d := math.Sqrt(a*a + b*b)
	if d < smallNumber {
		return math.Min(swing1Limit, swing2Limit)
	}
	return swing1Limit * swing2Limit / d
}

func unitAxis(i int) mgl64.Vec3 {
	var axis mgl64.Vec3
	axis[i] = 1
	return axis
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// conditionInertia raises the smallest components so that the ratio between
// the largest and smallest component is at most maxRatio
func conditionInertia(inertia mgl64.Vec3, maxRatio float64) mgl64.Vec3 {
	if maxRatio <= 0 {
		return inertia
	}

	iMax := math.Max(inertia.X(), math.Max(inertia.Y(), inertia.Z()))
	iMin := iMax / maxRatio
	return mgl64.Vec3{math.Max(inertia.X(), iMin), math.Max(inertia.Y(), iMin), math.Max(inertia.Z(), iMin)}
}

func invertComponents(v mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for i := range 3 {
		if v[i] > 0 {
			out[i] = 1 / v[i]
		}
	}
	return out
}

// conditionInverseMassAndInertia makes a joint between very different bodies
// easier to solve: inertia ratios are capped, and the parent is made heavier
// when it is lighter than minParentMassRatio times the child.
func conditionInverseMassAndInertia(invM0, invM1 *float64, invIL0, invIL1 *mgl64.Vec3, minParentMassRatio, maxInertiaRatio float64) {
	if maxInertiaRatio > 0 {
		if *invM0 > 0 {
			*invIL0 = invertComponents(conditionInertia(invertComponents(*invIL0), maxInertiaRatio))
		}
		if *invM1 > 0 {
			*invIL1 = invertComponents(conditionInertia(invertComponents(*invIL1), maxInertiaRatio))
		}
	}

	if minParentMassRatio > 0 && *invM0 > 0 && *invM1 > 0 {
		// parentMass / childMass
		ratio := *invM1 / *invM0
		if ratio < minParentMassRatio {
			scale := ratio / minParentMassRatio
			*invM0 *= scale
			*invIL0 = invIL0.Mul(scale)
		}
	}
}

func override(value, fallback float64) float64 {
	if value >= 0 {
		return value
	}
	return fallback
}

func linearStiffness(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.LinearStiffnessOverride, js.Stiffness)
}

func twistStiffness(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.TwistStiffnessOverride, js.Stiffness)
}

func swingStiffness(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.SwingStiffnessOverride, js.Stiffness)
}

func linearProjection(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.LinearProjectionOverride, js.LinearProjection)
}

func angularProjection(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.AngularProjectionOverride, js.AngularProjection)
}

func linearDriveStiffness(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.LinearDriveStiffnessOverride, js.LinearDriveStiffness)
}

func linearDriveDamping(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.LinearDriveDampingOverride, js.LinearDriveDamping)
}

func angularDriveStiffness(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.AngularDriveStiffnessOverride, js.AngularDriveStiffness)
}

func angularDriveDamping(ss *JointSolverSettings, js *JointSettings) float64 {
	return override(ss.AngularDriveDampingOverride, js.AngularDriveDamping)
}
