package config

import (
	"fmt"

	"curvedmpr/internal/models"
)

// Validate range-checks the configuration. Problems are collected into a
// report rather than returned as an error so the caller can decide whether
// to proceed.
func (c *Config) Validate() models.ValidationReport {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.Centerline.Degree < 1 || c.Centerline.Degree > 5 {
		add("centerline degree must be between 1 and 5, got %d", c.Centerline.Degree)
	}
	if c.Centerline.SamplingInterval < 0.1 || c.Centerline.SamplingInterval > 5 {
		add("sampling interval must be between 0.1 and 5 mm, got %g", c.Centerline.SamplingInterval)
	}
	switch c.Centerline.Parameterization {
	case ParameterizationUniform, ParameterizationChordLength:
	default:
		add("unknown parameterization %q", c.Centerline.Parameterization)
	}

	if c.Validation.MinLength < 0 || c.Validation.MaxLength <= c.Validation.MinLength {
		add("validation length range [%g, %g] is invalid", c.Validation.MinLength, c.Validation.MaxLength)
	}
	if c.Validation.MaxTurnAngle <= 0 || c.Validation.MaxTurnAngle > 180 {
		add("max turn angle must be in (0, 180] degrees, got %g", c.Validation.MaxTurnAngle)
	}
	if c.Validation.MaxDeviationFraction < 0 || c.Validation.MaxDeviationFraction > 1 {
		add("max deviation fraction must be in [0, 1], got %g", c.Validation.MaxDeviationFraction)
	}

	if c.Resampling.PlaneWidth < 5 || c.Resampling.PlaneWidth > 100 {
		add("plane width must be between 5 and 100 mm, got %g", c.Resampling.PlaneWidth)
	}
	if c.Resampling.PlaneHeight < 5 || c.Resampling.PlaneHeight > 100 {
		add("plane height must be between 5 and 100 mm, got %g", c.Resampling.PlaneHeight)
	}
	if c.Resampling.PlaneResolution < 0.1 || c.Resampling.PlaneResolution > 2 {
		add("plane resolution must be between 0.1 and 2 mm, got %g", c.Resampling.PlaneResolution)
	}
	switch c.Resampling.Interpolation {
	case InterpolationTrilinear, InterpolationNearest:
	default:
		add("unknown interpolation %q", c.Resampling.Interpolation)
	}
	if c.Resampling.PreviewFactor < 1 {
		add("preview factor must be at least 1, got %d", c.Resampling.PreviewFactor)
	}
	if c.Resampling.Workers < 0 {
		add("workers must not be negative, got %d", c.Resampling.Workers)
	}

	if c.Measurement.CalciumThreshold < 0 || c.Measurement.CalciumThreshold > 1000 {
		add("calcium threshold must be between 0 and 1000 HU, got %g", c.Measurement.CalciumThreshold)
	}
	if c.Measurement.MinValidArea < 0 || c.Measurement.MinValidArea > 10 {
		add("minimum valid area must be between 0 and 10 mm², got %g", c.Measurement.MinValidArea)
	}
	if c.Measurement.DiameterAngles < 4 || c.Measurement.DiameterAngles > 720 {
		add("diameter angle count must be between 4 and 720, got %d", c.Measurement.DiameterAngles)
	}

	if c.Cache.MaxMemoryMB <= 0 {
		add("cache memory ceiling must be positive, got %d MB", c.Cache.MaxMemoryMB)
	}
	if c.Cache.MaxEntries <= 0 {
		add("cache entry ceiling must be positive, got %d", c.Cache.MaxEntries)
	}

	return models.NewValidationReport(errs)
}
