package centerline

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientControlPoints is matched by InsufficientControlPointsError
	ErrInsufficientControlPoints = errors.New("insufficient control points")

	// ErrInvalidSamplingInterval is returned for a non-positive sampling interval
	ErrInvalidSamplingInterval = errors.New("sampling interval must be positive")

	// ErrEmptyCenterline is returned by operations that need at least one point
	ErrEmptyCenterline = errors.New("centerline has no points")
)

// InsufficientControlPointsError reports how many control points a solve
// received and how many the curve degree requires
type InsufficientControlPointsError struct {
	Got      int
	Required int
}

func (e *InsufficientControlPointsError) Error() string {
	return fmt.Sprintf("insufficient control points: got %d, need at least %d", e.Got, e.Required)
}

// Is lets errors.Is match ErrInsufficientControlPoints
func (e *InsufficientControlPointsError) Is(target error) bool {
	return target == ErrInsufficientControlPoints
}
