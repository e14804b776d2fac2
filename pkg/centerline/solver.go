// Package centerline fits a smooth B-spline through ordered control points
// and samples it at near-uniform arc-length intervals.
//
// Sampling is a two-pass process. The chord length of the control polygon
// only sizes the sample budget; the reported distances are the true
// Euclidean arc length accumulated between evaluated samples.
package centerline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
	"curvedmpr/pkg/vecmath"
)

// Parameterization selects how the knot vector is built
type Parameterization int

const (
	// ChordLength spaces interior knots by accumulated control point distance
	ChordLength Parameterization = iota
	// Uniform spaces interior knots evenly
	Uniform
)

// ParseParameterization maps a config name to a Parameterization
func ParseParameterization(name string) (Parameterization, error) {
	switch name {
	case "", "chord-length":
		return ChordLength, nil
	case "uniform":
		return Uniform, nil
	default:
		return ChordLength, fmt.Errorf("unknown parameterization %q", name)
	}
}

// Config controls curve fitting and sampling
type Config struct {
	// Degree is the B-spline degree. Degree+1 control points are required.
	Degree int

	// SamplingInterval is the target arc-length spacing in mm
	SamplingInterval float64

	Parameterization Parameterization
}

// DefaultConfig returns a cubic, chord-length parameterised fit sampled every 0.5mm
func DefaultConfig() Config {
	return Config{
		Degree:           3,
		SamplingInterval: 0.5,
		Parameterization: ChordLength,
	}
}

// Solver fits centerlines with a fixed configuration. It holds no mutable
// state and is safe for concurrent use.
type Solver struct {
	cfg Config
}

// NewSolver creates a solver. A zero degree selects the default degree.
func NewSolver(cfg Config) *Solver {
	if cfg.Degree <= 0 {
		cfg.Degree = DefaultConfig().Degree
	}
	return &Solver{cfg: cfg}
}

// Config returns the solver configuration
func (s *Solver) Config() Config {
	return s.cfg
}

// MinControlPoints returns the number of control points the degree requires
func (s *Solver) MinControlPoints() int {
	return s.cfg.Degree + 1
}

// Solve fits a curve through [start, intermediate..., end] and samples it.
// When mask is non-nil every sample is classified against the lumen and,
// if the mask carries a distance transform, annotated with a local radius.
func (s *Solver) Solve(start, end models.ControlPoint, intermediate []models.ControlPoint, mask *models.SegmentationMask) (*models.CenterlineResult, error) {
	points := make([]models.ControlPoint, 0, len(intermediate)+2)
	points = append(points, start)
	points = append(points, intermediate...)
	points = append(points, end)

	if len(points) < s.MinControlPoints() {
		return nil, &InsufficientControlPointsError{Got: len(points), Required: s.MinControlPoints()}
	}
	if !(s.cfg.SamplingInterval > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSamplingInterval, s.cfg.SamplingInterval)
	}
	if mask != nil {
		if err := mask.Validate(); err != nil {
			return nil, fmt.Errorf("lumen mask: %w", err)
		}
	}

	var knots []float64
	switch s.cfg.Parameterization {
	case Uniform:
		knots = UniformKnots(len(points), s.cfg.Degree)
	default:
		knots = ChordLengthKnots(points, s.cfg.Degree)
	}
	curve := newBSpline(points, s.cfg.Degree, knots)

	// The chord estimate only sizes the sample budget
	estimated := chordLength(points)
	sampleCount := int(math.Ceil(estimated / s.cfg.SamplingInterval))
	if sampleCount < 2 {
		sampleCount = 2
	}

	tMin, tMax := curve.domain()
	samples := make([]models.CenterlinePoint, sampleCount+1)
	var prev r3.Vec
	distance := 0.0
	for i := 0; i <= sampleCount; i++ {
		t := tMin + (tMax-tMin)*float64(i)/float64(sampleCount)
		pos := curve.eval(t)
		if i > 0 {
			distance += vecmath.Distance(prev, pos)
		}
		samples[i] = models.CenterlinePoint{
			Point3D:  models.PointFromVec(pos),
			Distance: distance,
		}
		prev = pos
	}

	result := &models.CenterlineResult{
		Points:        samples,
		TotalLength:   distance,
		ControlPoints: points,
	}

	if mask != nil {
		result.HasDeviations = classifyLumen(result.Points, mask)
	}

	return result, nil
}

// classifyLumen marks each point inside or outside the mask and records
// radii from the distance transform. It returns true if any point is outside.
func classifyLumen(points []models.CenterlinePoint, mask *models.SegmentationMask) bool {
	deviations := false
	for i := range points {
		idx, ok := mask.Lookup(points[i].Point3D)
		inside := ok && mask.Data[idx] != 0
		points[i].InsideLumen = &inside
		if !inside {
			deviations = true
		}
		if ok && mask.DistanceTransform != nil {
			r := float64(mask.DistanceTransform[idx])
			points[i].Radius = &r
		}
	}
	return deviations
}
