// Package models holds the plain data types passed between the centerline,
// resampling and measurement stages.
package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point3D is a location in patient/world space, in millimetres
type Point3D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Vec returns the point as an r3 vector
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// PointFromVec converts an r3 vector back into a Point3D
func PointFromVec(v r3.Vec) Point3D {
	return Point3D{X: v.X, Y: v.Y, Z: v.Z}
}

// ControlPoint is a user supplied curve input
type ControlPoint struct {
	Point3D `yaml:",inline"`

	// Weight is the rational weight of the control point. Zero means the
	// default weight of 1.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// EffectiveWeight returns the weight used during curve evaluation
func (c ControlPoint) EffectiveWeight() float64 {
	if c.Weight <= 0 || math.IsNaN(c.Weight) {
		return 1
	}
	return c.Weight
}

// CenterlinePoint is a sampled point of a fitted centerline
type CenterlinePoint struct {
	Point3D

	// Distance is the cumulative arc length from the first sample in mm
	Distance float64 `json:"distance"`

	// Radius is the local vessel radius taken from a distance transform, if any
	Radius *float64 `json:"radius,omitempty"`

	// InsideLumen is set when the point was checked against a lumen mask
	InsideLumen *bool `json:"insideLumen,omitempty"`
}

// CenterlineResult is the immutable output of a centerline solve
type CenterlineResult struct {
	Points        []CenterlinePoint `json:"points"`
	TotalLength   float64           `json:"totalLength"`
	ControlPoints []ControlPoint    `json:"controlPoints"`

	// HasDeviations is true when any sample fell outside the supplied lumen mask
	HasDeviations bool `json:"hasDeviations"`
}

// ValidationReport is a soft-validation outcome. It is a report for the
// caller, not a precondition failure.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// NewValidationReport builds a report from the collected error messages
func NewValidationReport(errs []string) ValidationReport {
	if errs == nil {
		errs = []string{}
	}
	return ValidationReport{Valid: len(errs) == 0, Errors: errs}
}
