package measurement

import "curvedmpr/internal/models"

// CalculateArea returns the physical area of the non-zero pixels in mask
func CalculateArea(mask []uint8, spacing [2]float64) models.AreaMeasurement {
	count := 0
	for _, v := range mask {
		if v != 0 {
			count++
		}
	}
	return models.AreaMeasurement{
		Area:       float64(count) * spacing[0] * spacing[1],
		PixelCount: count,
		Unit:       models.UnitSquareMM,
	}
}

// ExtractContour returns the mask pixels with at least one of their 8
// neighbours outside the mask. The image border counts as outside.
func ExtractContour(mask []uint8, width, height int) []models.PixelPoint {
	inside := func(x, y int) bool {
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
		return mask[y*width+x] != 0
	}

	var contour []models.PixelPoint
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !inside(x, y) {
				continue
			}
		neighbours:
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if (dx != 0 || dy != 0) && !inside(x+dx, y+dy) {
						contour = append(contour, models.PixelPoint{X: x, Y: y})
						break neighbours
					}
				}
			}
		}
	}
	return contour
}
