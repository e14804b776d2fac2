package measurement

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"curvedmpr/internal/models"
)

// CalculateHUStatistics summarises the image values under the non-zero
// pixels of mask. The standard deviation is the population form. An empty
// mask yields a zero result with PixelCount 0.
func CalculateHUStatistics(data []int16, mask []uint8) models.HUStatistics {
	out := models.HUStatistics{Unit: models.UnitHU}
	values := maskedValues(data, mask)
	if len(values) == 0 {
		return out
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	out.Mean = mean
	out.StdDev = std
	out.Min = floats.Min(values)
	out.Max = floats.Max(values)
	out.Median = median(values)
	out.PixelCount = len(values)
	return out
}

func maskedValues(data []int16, mask []uint8) []float64 {
	n := min(len(data), len(mask))
	values := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if mask[i] != 0 {
			values = append(values, float64(data[i]))
		}
	}
	return values
}

// median sorts values in place and averages the middle pair for even counts
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
