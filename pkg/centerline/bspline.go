package centerline

import (
	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
	"curvedmpr/pkg/vecmath"
)

// bspline is a clamped rational B-spline. With all weights equal to 1 it
// reduces to a plain polynomial B-spline.
type bspline struct {
	degree  int
	ctrl    []r3.Vec
	weights []float64
	knots   []float64
}

func newBSpline(points []models.ControlPoint, degree int, knots []float64) *bspline {
	b := &bspline{
		degree:  degree,
		ctrl:    make([]r3.Vec, len(points)),
		weights: make([]float64, len(points)),
		knots:   knots,
	}
	for i, p := range points {
		b.ctrl[i] = p.Vec()
		b.weights[i] = p.EffectiveWeight()
	}
	return b
}

// domain returns the valid parameter range [knot[p], knot[n]]
func (b *bspline) domain() (float64, float64) {
	return b.knots[b.degree], b.knots[len(b.ctrl)]
}

// span finds k with knots[k] <= t < knots[k+1], clamped to the valid domain
func (b *bspline) span(t float64) int {
	n := len(b.ctrl)
	if t >= b.knots[n] {
		return n - 1
	}
	if t <= b.knots[b.degree] {
		return b.degree
	}
	lo, hi := b.degree, n
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if t < b.knots[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// eval evaluates the curve at t using de Boor's algorithm in homogeneous
// coordinates
func (b *bspline) eval(t float64) r3.Vec {
	p := b.degree
	k := b.span(t)

	d := make([][4]float64, p+1)
	for j := 0; j <= p; j++ {
		i := j + k - p
		w := b.weights[i]
		c := b.ctrl[i]
		d[j] = [4]float64{c.X * w, c.Y * w, c.Z * w, w}
	}

	for r := 1; r <= p; r++ {
		for j := p; j >= r; j-- {
			lo := b.knots[j+k-p]
			hi := b.knots[j+1+k-r]
			alpha := 0.0
			if hi > lo {
				alpha = (t - lo) / (hi - lo)
			}
			for c := 0; c < 4; c++ {
				d[j][c] = (1-alpha)*d[j-1][c] + alpha*d[j][c]
			}
		}
	}

	w := d[p][3]
	if w == 0 {
		return r3.Vec{X: d[p][0], Y: d[p][1], Z: d[p][2]}
	}
	return r3.Vec{X: d[p][0] / w, Y: d[p][1] / w, Z: d[p][2] / w}
}

// UniformKnots returns a clamped knot vector with equally spaced interior
// knots on [0, 1] for n control points of the given degree
func UniformKnots(n, degree int) []float64 {
	knots := make([]float64, n+degree+1)
	for i := n; i < len(knots); i++ {
		knots[i] = 1
	}
	segments := n - degree
	for j := 1; j < segments; j++ {
		knots[degree+j] = float64(j) / float64(segments)
	}
	return knots
}

// ChordLengthKnots returns a clamped knot vector whose interior knots are
// averages of chord-length parameters of the control points. Unevenly
// spaced points then map to proportionally sized parameter intervals.
// Falls back to UniformKnots when all points coincide.
func ChordLengthKnots(points []models.ControlPoint, degree int) []float64 {
	n := len(points)
	params := chordParameters(points)
	if params == nil {
		return UniformKnots(n, degree)
	}

	knots := make([]float64, n+degree+1)
	for i := n; i < len(knots); i++ {
		knots[i] = 1
	}
	for j := 1; j < n-degree; j++ {
		sum := 0.0
		for i := j; i < j+degree; i++ {
			sum += params[i]
		}
		knots[degree+j] = sum / float64(degree)
	}
	return knots
}

// chordParameters maps each control point to its normalised cumulative
// chord distance. Returns nil when the total chord length is zero.
func chordParameters(points []models.ControlPoint) []float64 {
	params := make([]float64, len(points))
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += vecmath.Distance(points[i-1].Vec(), points[i].Vec())
		params[i] = total
	}
	if total < vecmath.Epsilon {
		return nil
	}
	for i := range params {
		params[i] /= total
	}
	params[len(params)-1] = 1
	return params
}

// chordLength is the sum of distances between consecutive control points
func chordLength(points []models.ControlPoint) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += vecmath.Distance(points[i-1].Vec(), points[i].Vec())
	}
	return total
}
