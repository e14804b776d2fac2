package measurement

import (
	"fmt"

	"curvedmpr/internal/models"
)

// QuantifyPlaque classifies every wall pixel as calcified when its value
// exceeds the calcium threshold and non-calcified otherwise.
func (e *Engine) QuantifyPlaque(image models.CrossSectionImage, wall []uint8) (*models.PlaqueQuantification, error) {
	if len(wall) == 0 {
		return nil, ErrMissingWallMask
	}
	if len(wall) != len(image.Data) {
		return nil, fmt.Errorf("%w: wall mask has %d pixels, image has %d", ErrDimensionMismatch, len(wall), len(image.Data))
	}

	var calcified, nonCalcified int
	var calcifiedSum, nonCalcifiedSum float64
	for i, m := range wall {
		if m == 0 {
			continue
		}
		v := float64(image.Data[i])
		if v > e.cfg.CalciumThreshold {
			calcified++
			calcifiedSum += v
		} else {
			nonCalcified++
			nonCalcifiedSum += v
		}
	}

	pixelArea := image.Spacing[0] * image.Spacing[1]
	total := calcified + nonCalcified
	out := &models.PlaqueQuantification{
		Threshold:          e.cfg.CalciumThreshold,
		CalcifiedPixels:    calcified,
		CalcifiedArea:      float64(calcified) * pixelArea,
		NonCalcifiedPixels: nonCalcified,
		NonCalcifiedArea:   float64(nonCalcified) * pixelArea,
		TotalArea:          float64(total) * pixelArea,
		AreaUnit:           models.UnitSquareMM,
		PercentUnit:        models.UnitPercent,
	}
	if total > 0 {
		out.CalcifiedPercentage = float64(calcified) / float64(total) * 100
		out.NonCalcifiedPercentage = float64(nonCalcified) / float64(total) * 100
	}
	if calcified > 0 {
		out.CalcifiedMeanHU = calcifiedSum / float64(calcified)
	}
	if nonCalcified > 0 {
		out.NonCalcifiedMeanHU = nonCalcifiedSum / float64(nonCalcified)
	}
	return out, nil
}
