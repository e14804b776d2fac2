// Package measurement computes quantitative measurements on a single
// cross-section image and its co-registered segmentation.
package measurement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"curvedmpr/internal/models"
)

var (
	// ErrDimensionMismatch is returned when a mask does not match its image
	ErrDimensionMismatch = errors.New("segmentation dimensions do not match image")

	// ErrMissingWallMask is returned by QuantifyPlaque without a wall mask
	ErrMissingWallMask = errors.New("plaque quantification requires a wall mask")
)

// Config holds the measurement thresholds
type Config struct {
	// CalciumThreshold in HU; wall pixels strictly above it are calcified
	CalciumThreshold float64

	// DiameterAngles is the number of evenly spaced directions probed
	DiameterAngles int

	// MinValidArea in mm²; smaller lumens are flagged as not valid
	MinValidArea float64
}

// DefaultConfig returns the standard coronary thresholds
func DefaultConfig() Config {
	return Config{
		CalciumThreshold: 130,
		DiameterAngles:   360,
		MinValidArea:     0.5,
	}
}

// Engine runs measurements with a fixed configuration. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine. Non-positive angle counts use the default.
func NewEngine(cfg Config) *Engine {
	if cfg.DiameterAngles <= 0 {
		cfg.DiameterAngles = DefaultConfig().DiameterAngles
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// ComputeAll measures the lumen and, when a wall mask is present, the wall
// and its plaque composition. position is the arc length of the slice.
func (e *Engine) ComputeAll(image models.CrossSectionImage, seg models.CrossSectionSegmentation, position float64) (*models.MeasurementRecord, error) {
	if err := checkDimensions(image, seg); err != nil {
		return nil, err
	}

	lumenArea := CalculateArea(seg.Lumen, image.Spacing)
	record := &models.MeasurementRecord{
		ID:            uuid.NewString(),
		Position:      position,
		Timestamp:     time.Now(),
		LumenArea:     lumenArea,
		LumenDiameter: e.CalculateDiameters(seg.Lumen, image.Width, image.Height, image.Spacing),
		LumenDensity:  CalculateHUStatistics(image.Data, seg.Lumen),
		LumenValid:    lumenArea.Area >= e.cfg.MinValidArea,
	}

	if seg.HasWall() {
		wallArea := CalculateArea(seg.Wall, image.Spacing)
		wallDensity := CalculateHUStatistics(image.Data, seg.Wall)
		plaque, err := e.QuantifyPlaque(image, seg.Wall)
		if err != nil {
			return nil, err
		}
		record.WallArea = &wallArea
		record.WallDensity = &wallDensity
		record.Plaque = plaque

		burden := 0.0
		if total := lumenArea.Area + wallArea.Area; total > 0 {
			burden = wallArea.Area / total * 100
		}
		record.PlaqueBurden = &burden
	}

	return record, nil
}

func checkDimensions(image models.CrossSectionImage, seg models.CrossSectionSegmentation) error {
	n := image.Width * image.Height
	if len(image.Data) != n {
		return fmt.Errorf("%w: image is %dx%d with %d samples", ErrDimensionMismatch, image.Width, image.Height, len(image.Data))
	}
	if seg.Width != image.Width || seg.Height != image.Height {
		return fmt.Errorf("%w: image %dx%d, segmentation %dx%d",
			ErrDimensionMismatch, image.Width, image.Height, seg.Width, seg.Height)
	}
	if len(seg.Lumen) != n {
		return fmt.Errorf("%w: lumen mask has %d pixels, want %d", ErrDimensionMismatch, len(seg.Lumen), n)
	}
	if seg.HasWall() && len(seg.Wall) != n {
		return fmt.Errorf("%w: wall mask has %d pixels, want %d", ErrDimensionMismatch, len(seg.Wall), n)
	}
	return nil
}
