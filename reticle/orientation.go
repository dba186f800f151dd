package reticle

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// The indicator node's square lies in its local XZ plane with the surface
// normal along +Y. A square-local 2D point (x, y) sits at (x, 0, -y).

// Camera tilt thresholds between which the yaw source is blended
const (
	tiltLow  = math.Pi / 2 * 0.65
	tiltHigh = math.Pi / 2 * 0.75
)

var (
	unitX = r3.Vector{X: 1}
	unitY = r3.Vector{Y: 1}
	unitZ = r3.Vector{Z: 1}

	identityRotation = quat.Number{Real: 1}
)

// axisAngle returns the rotation of angle radians about axis
func axisAngle(axis r3.Vector, angle float64) quat.Number {
	axis = axis.Normalize()
	s := math.Sin(angle / 2)
	return quat.Number{Real: math.Cos(angle / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// rotateVector applies the unit quaternion q to v
func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return identityRotation
	}
	return quat.Scale(1/n, q)
}

// rotationBetween returns the shortest rotation taking direction a onto b
func rotationBetween(a, b r3.Vector) quat.Number {
	a, b = a.Normalize(), b.Normalize()
	d := a.Dot(b)
	if d > 1-1e-9 {
		return identityRotation
	}
	if d < -1+1e-9 {
		axis := a.Cross(unitX)
		if axis.Norm2() < 1e-12 {
			axis = a.Cross(unitZ)
		}
		return axisAngle(axis, math.Pi)
	}
	c := a.Cross(b)
	return normalizeQuat(quat.Number{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z})
}

// slerp interpolates between unit quaternions along the shorter arc
func slerp(a, b quat.Number, t float64) quat.Number {
	t = clamp01(t)
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	if dot > 0.9995 {
		return normalizeQuat(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}
	theta := math.Acos(dot)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return quat.Add(quat.Scale(wa, a), quat.Scale(wb, b))
}

// sameRotation reports whether a and b describe the same orientation
func sameRotation(a, b quat.Number, tolerance float64) bool {
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return math.Abs(dot) > 1-tolerance
}

// cameraForward is the world direction the camera looks along
func cameraForward(c CameraPose) r3.Vector {
	return rotateVector(normalizeQuat(c.Orientation), r3.Vector{Z: -1})
}

// headingYaw is the rotation about +Y that turns local -Z toward dir
func headingYaw(dir r3.Vector) float64 {
	return math.Atan2(-dir.X, -dir.Z)
}

// cameraYaw picks the yaw for a flat square so that its top edge points away
// from the viewer. Looking toward the horizon the camera heading is used;
// looking straight down the heading is unreliable and the camera's up vector
// is used instead. In between the two are blended.
func cameraYaw(c CameraPose) float64 {
	forward := cameraForward(c)
	tilt := math.Abs(math.Asin(math.Max(-1, math.Min(1, forward.Y))))
	headingAngle := headingYaw(forward)
	upAngle := headingYaw(rotateVector(normalizeQuat(c.Orientation), unitY))

	switch {
	case tilt < tiltLow:
		return headingAngle
	case tilt < tiltHigh:
		rel := math.Abs((tilt - tiltLow) / (tiltHigh - tiltLow))
		h := nearestEquivalentAngle(headingAngle, upAngle)
		return h*(1-rel) + upAngle*rel
	default:
		return upAngle
	}
}

// nearestEquivalentAngle returns angle shifted by multiples of 2π to lie
// within π of reference
func nearestEquivalentAngle(angle, reference float64) float64 {
	for angle-reference > math.Pi {
		angle -= 2 * math.Pi
	}
	for reference-angle > math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// billboardRotation stands the square up facing the camera
func billboardRotation(c CameraPose) quat.Number {
	return quat.Mul(normalizeQuat(c.Orientation), axisAngle(unitX, math.Pi/2))
}

// billboardPosition is distance meters in front of the camera
func billboardPosition(c CameraPose, distance float64) r3.Vector {
	return c.Position.Add(cameraForward(c).Mul(distance))
}

// surfaceRotation orients the square flat against a surface of the given
// alignment. normal is used when known; otherwise the camera heading decides
// the yaw.
func surfaceRotation(alignment SurfaceAlignment, normal r3.Vector, camera *CameraPose) quat.Number {
	if alignment == AlignmentVertical {
		if normal.Norm2() > 1e-12 {
			return rotationBetween(unitY, normal)
		}
		if camera == nil {
			return axisAngle(unitX, math.Pi/2)
		}
		return quat.Mul(axisAngle(unitY, cameraYaw(*camera)), axisAngle(unitX, math.Pi/2))
	}
	if camera == nil {
		return identityRotation
	}
	return axisAngle(unitY, cameraYaw(*camera))
}

// minDistanceScale keeps the indicator drawable when the camera is at the hit
const minDistanceScale = 0.1

// distanceScale grows the indicator with distance so it keeps a readable size
func distanceScale(distance float64) float64 {
	if distance < 0.7 {
		return math.Max(distance/0.7, minDistanceScale)
	}
	return 0.25*distance + 0.825
}
