package resample

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
)

// AirHU is written wherever a sample position falls outside the volume
const AirHU int16 = -1024

// Interpolation selects how a continuous position is sampled
type Interpolation int

const (
	Trilinear Interpolation = iota
	Nearest
)

// ParseInterpolation maps a config name to an Interpolation
func ParseInterpolation(name string) (Interpolation, bool) {
	switch name {
	case "", "trilinear":
		return Trilinear, true
	case "nearest":
		return Nearest, true
	default:
		return Trilinear, false
	}
}

func (i Interpolation) String() string {
	if i == Nearest {
		return "nearest"
	}
	return "trilinear"
}

// SampleFunc reads a volume at a world position
type SampleFunc func(v *models.VolumeData, p r3.Vec) int16

func (i Interpolation) sampler() SampleFunc {
	if i == Nearest {
		return SampleNearest
	}
	return SampleTrilinear
}

// SampleTrilinear blends the 8 voxels surrounding p. If any of them lies
// outside the volume the result is AirHU.
func SampleTrilinear(v *models.VolumeData, p r3.Vec) int16 {
	fx := (p.X - v.Origin[0]) / v.Spacing[0]
	fy := (p.Y - v.Origin[1]) / v.Spacing[1]
	fz := (p.Z - v.Origin[2]) / v.Spacing[2]

	x0, y0, z0 := math.Floor(fx), math.Floor(fy), math.Floor(fz)
	nx, ny, nz := v.Dimensions[0], v.Dimensions[1], v.Dimensions[2]
	// Written so that NaN and infinite positions fail the test
	if !(x0 >= 0 && y0 >= 0 && z0 >= 0 &&
		x0+1 < float64(nx) && y0+1 < float64(ny) && z0+1 < float64(nz)) {
		return AirHU
	}

	ix, iy, iz := int(x0), int(y0), int(z0)
	dx, dy, dz := fx-x0, fy-y0, fz-z0

	sliceSize := nx * ny
	base := iz*sliceSize + iy*nx + ix
	c000 := float64(v.Data[base])
	c100 := float64(v.Data[base+1])
	c010 := float64(v.Data[base+nx])
	c110 := float64(v.Data[base+nx+1])
	c001 := float64(v.Data[base+sliceSize])
	c101 := float64(v.Data[base+sliceSize+1])
	c011 := float64(v.Data[base+sliceSize+nx])
	c111 := float64(v.Data[base+sliceSize+nx+1])

	c00 := c000*(1-dx) + c100*dx
	c10 := c010*(1-dx) + c110*dx
	c01 := c001*(1-dx) + c101*dx
	c11 := c011*(1-dx) + c111*dx

	c0 := c00*(1-dy) + c10*dy
	c1 := c01*(1-dy) + c11*dy

	return clampInt16(c0*(1-dz) + c1*dz)
}

// SampleNearest returns the voxel nearest to p, or AirHU outside the volume
func SampleNearest(v *models.VolumeData, p r3.Vec) int16 {
	x := math.Round((p.X - v.Origin[0]) / v.Spacing[0])
	y := math.Round((p.Y - v.Origin[1]) / v.Spacing[1])
	z := math.Round((p.Z - v.Origin[2]) / v.Spacing[2])
	if !indexable(x) || !indexable(y) || !indexable(z) {
		return AirHU
	}
	ix, iy, iz := int(x), int(y), int(z)
	if !v.InBounds(ix, iy, iz) {
		return AirHU
	}
	return v.Data[v.Index(ix, iy, iz)]
}

// indexable reports whether f converts to an int without overflow. NaN is
// not indexable.
func indexable(f float64) bool {
	return f > math.MinInt32 && f < math.MaxInt32
}

func clampInt16(f float64) int16 {
	f = math.Round(f)
	if f > math.MaxInt16 {
		return math.MaxInt16
	}
	if f < math.MinInt16 {
		return math.MinInt16
	}
	return int16(f)
}
