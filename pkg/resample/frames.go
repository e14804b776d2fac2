package resample

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
	"curvedmpr/pkg/vecmath"
)

// Frame is the orthonormal basis of one cross-sectional plane
type Frame struct {
	Origin  r3.Vec
	Tangent r3.Vec
	Right   r3.Vec
	Up      r3.Vec
}

// Tangents estimates unit tangents with a forward difference at the first
// point, a backward difference at the last and central differences elsewhere.
// Degenerate differences normalise to the z axis.
func Tangents(points []models.CenterlinePoint) []r3.Vec {
	n := len(points)
	tangents := make([]r3.Vec, n)
	if n < 2 {
		for i := range tangents {
			tangents[i] = vecmath.AxisZ
		}
		return tangents
	}
	for i := 0; i < n; i++ {
		var d r3.Vec
		switch i {
		case 0:
			d = r3.Sub(points[1].Vec(), points[0].Vec())
		case n - 1:
			d = r3.Sub(points[n-1].Vec(), points[n-2].Vec())
		default:
			d = r3.Sub(points[i+1].Vec(), points[i-1].Vec())
		}
		tangents[i] = vecmath.Normalize(d)
	}
	return tangents
}

// BuildFrames propagates a plane orientation along the centerline by
// parallel transport. Each frame depends on the previous up vector, so
// frames must be built sequentially in centerline order.
func BuildFrames(points []models.CenterlinePoint, initialUp r3.Vec) []Frame {
	tangents := Tangents(points)
	frames := make([]Frame, len(points))

	var prevUp, prevRight r3.Vec
	for i, t := range tangents {
		var right r3.Vec
		if i == 0 {
			right = vecmath.Cross(initialUp, t)
			if vecmath.Length(right) < 1e-6 {
				right = vecmath.Cross(leastAlignedAxis(t), t)
			}
		} else {
			right = vecmath.Cross(prevUp, t)
			if vecmath.Length(right) < 1e-6 {
				// Tangent swung onto the previous up vector: keep the
				// previous right vector, made perpendicular to t.
				right = r3.Sub(prevRight, r3.Scale(vecmath.Dot(prevRight, t), t))
				if vecmath.Length(right) < 1e-6 {
					right = vecmath.Cross(leastAlignedAxis(t), t)
				}
			}
		}
		right = vecmath.NormalizeOr(right, vecmath.AxisX)
		up := vecmath.NormalizeOr(vecmath.Cross(t, right), vecmath.AxisY)

		frames[i] = Frame{
			Origin:  points[i].Vec(),
			Tangent: t,
			Right:   right,
			Up:      up,
		}
		prevUp, prevRight = up, right
	}
	return frames
}

// leastAlignedAxis returns the world axis most perpendicular to t
func leastAlignedAxis(t r3.Vec) r3.Vec {
	ax, ay, az := math.Abs(t.X), math.Abs(t.Y), math.Abs(t.Z)
	switch {
	case ax <= ay && ax <= az:
		return vecmath.AxisX
	case ay <= az:
		return vecmath.AxisY
	default:
		return vecmath.AxisZ
	}
}
