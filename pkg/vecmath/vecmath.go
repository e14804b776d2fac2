// Package vecmath provides the small set of 3D vector helpers used by the
// centerline and resampling code. Vectors are gonum r3.Vec values.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the length below which a vector is treated as degenerate.
const Epsilon = 1e-10

var (
	// AxisX, AxisY and AxisZ are the world unit axes.
	AxisX = r3.Vec{X: 1}
	AxisY = r3.Vec{Y: 1}
	AxisZ = r3.Vec{Z: 1}
)

// Length returns the Euclidean length of v.
func Length(v r3.Vec) float64 {
	return r3.Norm(v)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Normalize returns v scaled to unit length. A vector shorter than Epsilon
// normalizes to AxisZ instead of producing NaN components.
func Normalize(v r3.Vec) r3.Vec {
	return NormalizeOr(v, AxisZ)
}

// NormalizeOr is like Normalize but returns fallback for degenerate input.
func NormalizeOr(v, fallback r3.Vec) r3.Vec {
	l := r3.Norm(v)
	if l < Epsilon || math.IsNaN(l) {
		return fallback
	}
	return r3.Scale(1/l, v)
}

// Cross returns the cross product a × b.
func Cross(a, b r3.Vec) r3.Vec {
	return r3.Cross(a, b)
}

// Dot returns the dot product of a and b.
func Dot(a, b r3.Vec) float64 {
	return r3.Dot(a, b)
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// Angle returns the angle in radians between a and b, or 0 if either is
// degenerate.
func Angle(a, b r3.Vec) float64 {
	la, lb := r3.Norm(a), r3.Norm(b)
	if la < Epsilon || lb < Epsilon {
		return 0
	}
	c := r3.Dot(a, b) / (la * lb)
	// Clamp against rounding outside [-1, 1].
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c)
}

// IsDegenerate reports whether v is too short to define a direction.
func IsDegenerate(v r3.Vec) bool {
	return r3.Norm(v) < Epsilon
}
