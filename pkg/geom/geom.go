// Package geom provides the rotation and vector helpers used by the gaze
// engine. It sits on top of mgl64 and adds the few operations the engine
// needs that mgl64 does not offer directly: shortest-arc slerp, angular
// distance in degrees, roll-free look rotations and closest points between
// two lines.
//
// Conventions: +Z is the facing direction of every bone in its rest frame,
// +Y is up. Yaw is positive toward +X, pitch is positive downward. All
// public angles are in degrees.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the threshold under which lengths and rotation parameters are
// treated as zero.
const Epsilon = 1e-5

// distEpsilon is the threshold (degrees) under which two orientations are
// considered identical.
const distEpsilon = 1e-4

// Basis directions in a bone's rest frame.
var (
	Forward = mgl64.Vec3{0, 0, 1}
	Up      = mgl64.Vec3{0, 1, 0}
	Right   = mgl64.Vec3{1, 0, 0}
)

// Clamp restricts v to the range [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Clamp01 restricts v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Lerp performs linear interpolation between two values.
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Slerp interpolates between two orientations along the shortest arc.
// t is clamped to [0, 1].
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// Angle returns the angle in degrees of the rotation taking a to b.
func Angle(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Normalize().Dot(b.Normalize()))
	if d > 1 {
		d = 1
	}
	return mgl64.RadToDeg(2 * math.Acos(d))
}

// DistanceToRotate returns the angle between two orientations, snapped to
// zero below a small threshold so callers can branch on "no rotation".
func DistanceToRotate(src, trg mgl64.Quat) float64 {
	d := Angle(src, trg)
	if math.Abs(d) <= distEpsilon {
		return 0
	}
	return d
}

// Same reports whether two orientations are indistinguishable.
func Same(a, b mgl64.Quat) bool {
	return DistanceToRotate(a, b) == 0
}

// VecAngle returns the angle in degrees between two vectors. Zero-length
// vectors yield 0.
func VecAngle(a, b mgl64.Vec3) float64 {
	if a.Len() < Epsilon || b.Len() < Epsilon {
		return 0
	}
	return mgl64.RadToDeg(math.Atan2(a.Cross(b).Len(), a.Dot(b)))
}

// LookRotation returns the roll-free rotation that turns Forward onto dir:
// a yaw about Up followed by a pitch about Right.
func LookRotation(dir mgl64.Vec3) mgl64.Quat {
	if dir.Len() < Epsilon {
		return mgl64.QuatIdent()
	}
	d := dir.Normalize()
	yaw := math.Atan2(d.X(), d.Z())
	pitch := -math.Asin(Clamp(d.Y(), -1, 1))
	return mgl64.QuatRotate(yaw, Up).Mul(mgl64.QuatRotate(pitch, Right))
}

// YawPitch returns the yaw and pitch (degrees) of a direction.
func YawPitch(dir mgl64.Vec3) (yaw, pitch float64) {
	if dir.Len() < Epsilon {
		return 0, 0
	}
	d := dir.Normalize()
	yaw = mgl64.RadToDeg(math.Atan2(d.X(), d.Z()))
	pitch = -mgl64.RadToDeg(math.Asin(Clamp(d.Y(), -1, 1)))
	return yaw, pitch
}

// FromYawPitch builds the roll-free rotation with the given yaw and pitch.
func FromYawPitch(yaw, pitch float64) mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(yaw), Up).
		Mul(mgl64.QuatRotate(mgl64.DegToRad(pitch), Right))
}

// FromTo returns the shortest rotation turning direction a onto b.
func FromTo(a, b mgl64.Vec3) mgl64.Quat {
	if a.Len() < Epsilon || b.Len() < Epsilon {
		return mgl64.QuatIdent()
	}
	a, b = a.Normalize(), b.Normalize()
	axis := a.Cross(b)
	dot := a.Dot(b)
	if axis.Len() < Epsilon {
		if dot > 0 {
			return mgl64.QuatIdent()
		}
		// Opposite vectors: any perpendicular axis works.
		perp := a.Cross(Up)
		if perp.Len() < Epsilon {
			perp = a.Cross(Right)
		}
		return mgl64.QuatRotate(math.Pi, perp.Normalize())
	}
	return mgl64.QuatRotate(math.Atan2(axis.Len(), dot), axis.Normalize())
}

// ClosestPoints returns the parameters s and t of the closest points on the
// lines p1 + s*(p2-p1) and q1 + t*(q2-q1). Parallel lines yield s = 0.
func ClosestPoints(p1, p2, q1, q2 mgl64.Vec3) (s, t float64) {
	d1 := p2.Sub(p1)
	d2 := q2.Sub(q1)
	r := p1.Sub(q1)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)
	if e < Epsilon {
		if a < Epsilon {
			return 0, 0
		}
		return -d1.Dot(r) / a, 0
	}
	b := d1.Dot(d2)
	c := d1.Dot(r)
	denom := a*e - b*b
	if math.Abs(denom) < Epsilon*Epsilon {
		return 0, f / e
	}
	s = (b*f - c*e) / denom
	t = (a*f - b*c) / denom
	return s, t
}

// ClampAngle wraps an angle in degrees to [-180, 180].
func ClampAngle(angle float64) float64 {
	for angle > 180 {
		angle -= 360
	}
	for angle < -180 {
		angle += 360
	}
	return angle
}
