package measurement

import (
	"math"
	"sort"

	"curvedmpr/internal/models"
)

type polarPoint struct {
	angle float64
	pixel models.PixelPoint
	x, y  float64 // mm from the centroid
}

// CalculateDiameters probes the lumen contour in DiameterAngles evenly
// spaced directions. For each direction the contour pixels nearest in
// angle to θ and θ+π span one diameter. An empty mask yields a zero result.
func (e *Engine) CalculateDiameters(mask []uint8, width, height int, spacing [2]float64) models.DiameterMeasurement {
	out := models.DiameterMeasurement{NumAngles: e.cfg.DiameterAngles, Unit: models.UnitMM}
	if len(mask) != width*height {
		return out
	}
	contour := ExtractContour(mask, width, height)
	if len(contour) == 0 {
		return out
	}

	var cx, cy float64
	for _, p := range contour {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= float64(len(contour))
	cy /= float64(len(contour))

	polar := make([]polarPoint, len(contour))
	for i, p := range contour {
		x := (float64(p.X) - cx) * spacing[0]
		y := (float64(p.Y) - cy) * spacing[1]
		polar[i] = polarPoint{angle: math.Atan2(y, x), pixel: p, x: x, y: y}
	}
	sort.Slice(polar, func(i, j int) bool { return polar[i].angle < polar[j].angle })

	out.Min = math.Inf(1)
	sum := 0.0
	for k := 0; k < e.cfg.DiameterAngles; k++ {
		theta := 2 * math.Pi * float64(k) / float64(e.cfg.DiameterAngles)
		a := nearestInAngle(polar, theta)
		b := nearestInAngle(polar, theta+math.Pi)
		d := math.Hypot(a.x-b.x, a.y-b.y)

		sum += d
		if d < out.Min {
			out.Min = d
			out.MinEndpoints = [2]models.PixelPoint{a.pixel, b.pixel}
		}
		if d > out.Max {
			out.Max = d
			out.MaxEndpoints = [2]models.PixelPoint{a.pixel, b.pixel}
		}
	}
	out.Mean = sum / float64(e.cfg.DiameterAngles)
	return out
}

// nearestInAngle finds the point whose angle is closest to theta in a
// slice sorted by angle, wrapping around ±π.
func nearestInAngle(sorted []polarPoint, theta float64) polarPoint {
	theta = wrapAngle(theta)
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].angle >= theta })

	n := len(sorted)
	candidates := [2]polarPoint{sorted[(i-1+n)%n], sorted[i%n]}
	best := candidates[0]
	if angularDistance(candidates[1].angle, theta) < angularDistance(best.angle, theta) {
		best = candidates[1]
	}
	return best
}

// wrapAngle maps a into (-π, π]
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func angularDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
