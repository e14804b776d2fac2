package centerline

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
	"curvedmpr/pkg/vecmath"
)

// Limits are the plausibility bounds used by Validate
type Limits struct {
	MinLength            float64 // mm
	MaxLength            float64 // mm
	MaxTurnAngle         float64 // degrees
	MaxDeviationFraction float64 // of points outside the lumen
}

// DefaultLimits returns bounds suited to coronary arteries
func DefaultLimits() Limits {
	return Limits{
		MinLength:            5,
		MaxLength:            250,
		MaxTurnAngle:         90,
		MaxDeviationFraction: 0.1,
	}
}

// Validate checks a centerline for anatomical plausibility. It reports
// problems instead of failing so the caller can decide how to proceed.
func Validate(result *models.CenterlineResult, limits Limits) models.ValidationReport {
	if result == nil || len(result.Points) == 0 {
		return models.NewValidationReport([]string{ErrEmptyCenterline.Error()})
	}

	var errs []string

	if result.TotalLength < limits.MinLength {
		errs = append(errs, fmt.Sprintf("centerline too short: %.2f mm (minimum %.2f mm)",
			result.TotalLength, limits.MinLength))
	}
	if result.TotalLength > limits.MaxLength {
		errs = append(errs, fmt.Sprintf("centerline unrealistically long: %.2f mm (maximum %.2f mm)",
			result.TotalLength, limits.MaxLength))
	}

	pts := result.Points
	for i := 1; i < len(pts)-1; i++ {
		a := r3.Sub(pts[i].Vec(), pts[i-1].Vec())
		b := r3.Sub(pts[i+1].Vec(), pts[i].Vec())
		if vecmath.IsDegenerate(a) || vecmath.IsDegenerate(b) {
			continue
		}
		angle := vecmath.Angle(a, b) * 180 / math.Pi
		if angle > limits.MaxTurnAngle {
			errs = append(errs, fmt.Sprintf("sharp turn of %.1f° at %.2f mm", angle, pts[i].Distance))
		}
	}

	outside := 0
	for _, p := range pts {
		if p.InsideLumen != nil && !*p.InsideLumen {
			outside++
		}
	}
	if frac := float64(outside) / float64(len(pts)); frac > limits.MaxDeviationFraction {
		errs = append(errs, fmt.Sprintf("%.1f%% of centerline points lie outside the lumen (maximum %.1f%%)",
			frac*100, limits.MaxDeviationFraction*100))
	}

	return models.NewValidationReport(errs)
}

// InterpolateAtDistance returns the point at arc length d by linear
// interpolation between the bracketing samples. It returns false when d is
// outside [0, TotalLength].
func InterpolateAtDistance(result *models.CenterlineResult, d float64) (models.CenterlinePoint, bool) {
	if result == nil || len(result.Points) == 0 || d < 0 || d > result.TotalLength || math.IsNaN(d) {
		return models.CenterlinePoint{}, false
	}

	pts := result.Points
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Distance >= d })
	if i == 0 {
		return clonePoint(pts[0]), true
	}
	if i == len(pts) {
		i = len(pts) - 1
	}

	lo, hi := pts[i-1], pts[i]
	t := 0.0
	if seg := hi.Distance - lo.Distance; seg > 0 {
		t = (d - lo.Distance) / seg
	}

	out := models.CenterlinePoint{
		Point3D:  models.PointFromVec(vecmath.Lerp(lo.Vec(), hi.Vec(), t)),
		Distance: d,
	}
	if lo.Radius != nil && hi.Radius != nil {
		r := *lo.Radius + (*hi.Radius-*lo.Radius)*t
		out.Radius = &r
	}
	if lo.InsideLumen != nil && hi.InsideLumen != nil {
		inside := *lo.InsideLumen && *hi.InsideLumen
		out.InsideLumen = &inside
	}
	return out, true
}

// MinResampleSpacing is the smallest spacing Resample accepts, in mm
const MinResampleSpacing = 0.1

// Resample returns a copy of result sampled every spacing mm from 0, with a
// final sample at TotalLength.
func Resample(result *models.CenterlineResult, spacing float64) (*models.CenterlineResult, error) {
	if result == nil || len(result.Points) == 0 {
		return nil, ErrEmptyCenterline
	}
	if !(spacing >= MinResampleSpacing) || math.IsInf(spacing, 1) {
		return nil, fmt.Errorf("%w: got %g, minimum %g", ErrInvalidSamplingInterval, spacing, MinResampleSpacing)
	}

	n := int(math.Floor(result.TotalLength/spacing)) + 1
	points := make([]models.CenterlinePoint, 0, n+1)
	for i := 0; i < n; i++ {
		p, ok := InterpolateAtDistance(result, float64(i)*spacing)
		if !ok {
			break
		}
		points = append(points, p)
	}
	if last := points[len(points)-1].Distance; result.TotalLength-last > 1e-9 {
		p, _ := InterpolateAtDistance(result, result.TotalLength)
		points = append(points, p)
	}

	out := &models.CenterlineResult{
		Points:        points,
		TotalLength:   result.TotalLength,
		ControlPoints: result.ControlPoints,
	}
	for _, p := range points {
		if p.InsideLumen != nil && !*p.InsideLumen {
			out.HasDeviations = true
			break
		}
	}
	return out, nil
}

func clonePoint(p models.CenterlinePoint) models.CenterlinePoint {
	out := models.CenterlinePoint{Point3D: p.Point3D, Distance: p.Distance}
	if p.Radius != nil {
		r := *p.Radius
		out.Radius = &r
	}
	if p.InsideLumen != nil {
		in := *p.InsideLumen
		out.InsideLumen = &in
	}
	return out
}
