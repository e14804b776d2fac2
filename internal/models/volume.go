package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVolume is returned when a volume's shape and sample buffer disagree
var ErrInvalidVolume = errors.New("invalid volume")

// VolumeData represents a CT volume supplied by an external loader.
// The core treats it as read-only.
type VolumeData struct {
	// Dimensions are the voxel counts along x, y and z
	Dimensions [3]int `json:"dimensions" yaml:"dimensions"`

	// Spacing is the physical voxel size in mm along x, y and z
	Spacing [3]float64 `json:"spacing" yaml:"spacing"`

	// Origin is the world position of voxel (0,0,0) in mm
	Origin [3]float64 `json:"origin" yaml:"origin"`

	// Data holds the samples in row-major order with x varying fastest:
	// idx = z*nx*ny + y*nx + x
	Data []int16 `json:"-" yaml:"-"`
}

// Index returns the flat index of voxel (x, y, z)
func (v *VolumeData) Index(x, y, z int) int {
	return z*v.Dimensions[0]*v.Dimensions[1] + y*v.Dimensions[0] + x
}

// InBounds reports whether voxel (x, y, z) lies inside the volume
func (v *VolumeData) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 &&
		x < v.Dimensions[0] && y < v.Dimensions[1] && z < v.Dimensions[2]
}

// WorldToVoxel converts a world position into continuous voxel coordinates
func (v *VolumeData) WorldToVoxel(p Point3D) (float64, float64, float64) {
	return worldToVoxel(p, v.Origin, v.Spacing)
}

// Validate checks that the sample buffer matches the declared shape
func (v *VolumeData) Validate() error {
	return validateGrid(v.Dimensions, v.Spacing, len(v.Data))
}

// SegmentationMask is a 3D binary lumen mask aligned with a VolumeData
type SegmentationMask struct {
	Dimensions [3]int     `json:"dimensions"`
	Spacing    [3]float64 `json:"spacing"`
	Origin     [3]float64 `json:"origin"`

	// Data is non-zero inside the lumen
	Data []uint8 `json:"data"`

	// DistanceTransform optionally holds the distance in mm from each voxel
	// to the lumen boundary. When present it has the same length as Data.
	DistanceTransform []float32 `json:"distanceTransform,omitempty"`
}

// WorldToVoxel converts a world position into continuous voxel coordinates
func (m *SegmentationMask) WorldToVoxel(p Point3D) (float64, float64, float64) {
	return worldToVoxel(p, m.Origin, m.Spacing)
}

// Lookup returns the flat index of the voxel nearest to p and whether it is
// inside the mask bounds
func (m *SegmentationMask) Lookup(p Point3D) (int, bool) {
	fx, fy, fz := m.WorldToVoxel(p)
	x, y, z := int(math.Round(fx)), int(math.Round(fy)), int(math.Round(fz))
	if x < 0 || y < 0 || z < 0 || x >= m.Dimensions[0] || y >= m.Dimensions[1] || z >= m.Dimensions[2] {
		return 0, false
	}
	idx := z*m.Dimensions[0]*m.Dimensions[1] + y*m.Dimensions[0] + x
	if idx >= len(m.Data) {
		return 0, false
	}
	return idx, true
}

// Validate checks that the mask buffers match the declared shape
func (m *SegmentationMask) Validate() error {
	if err := validateGrid(m.Dimensions, m.Spacing, len(m.Data)); err != nil {
		return err
	}
	if m.DistanceTransform != nil && len(m.DistanceTransform) != len(m.Data) {
		return fmt.Errorf("%w: distance transform has %d values, mask has %d",
			ErrInvalidVolume, len(m.DistanceTransform), len(m.Data))
	}
	return nil
}

// CurvedMPRVolume is a straightened volume built by resampling planes
// perpendicular to a centerline. One slice is produced per centerline point.
type CurvedMPRVolume struct {
	// Dimensions are [planeWidthPx, planeHeightPx, numSlices]
	Dimensions [3]int `json:"dimensions"`

	// Spacing is [planeRes, planeRes, samplingInterval] in mm
	Spacing [3]float64 `json:"spacing"`

	// Data holds the resampled values, slice after slice
	Data []int16 `json:"data"`

	// Centerline is the point sequence the slices were taken along
	Centerline []CenterlinePoint `json:"centerline"`

	TotalLength float64 `json:"totalLength"`
}

// NumSlices returns the number of cross sections in the volume
func (c *CurvedMPRVolume) NumSlices() int {
	return c.Dimensions[2]
}

// Slice returns cross section i as a standalone image
func (c *CurvedMPRVolume) Slice(i int) (CrossSectionImage, error) {
	if i < 0 || i >= c.Dimensions[2] {
		return CrossSectionImage{}, fmt.Errorf("slice %d out of range [0,%d)", i, c.Dimensions[2])
	}
	w, h := c.Dimensions[0], c.Dimensions[1]
	size := w * h
	data := make([]int16, size)
	copy(data, c.Data[i*size:(i+1)*size])
	return CrossSectionImage{
		Width:   w,
		Height:  h,
		Spacing: [2]float64{c.Spacing[0], c.Spacing[1]},
		Data:    data,
	}, nil
}

// CrossSectionImage is a single 2D slice of density values
type CrossSectionImage struct {
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Spacing [2]float64 `json:"spacing"`
	Data    []int16    `json:"data"`
}

// CrossSectionSegmentation pairs a binary lumen mask with an optional
// binary wall mask. Both have the same dimensions as the image.
type CrossSectionSegmentation struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Lumen  []uint8 `json:"lumen"`
	Wall   []uint8 `json:"wall,omitempty"`
}

// HasWall reports whether a wall mask is present
func (s *CrossSectionSegmentation) HasWall() bool {
	return len(s.Wall) > 0
}

func worldToVoxel(p Point3D, origin, spacing [3]float64) (float64, float64, float64) {
	return (p.X - origin[0]) / spacing[0],
		(p.Y - origin[1]) / spacing[1],
		(p.Z - origin[2]) / spacing[2]
}

func validateGrid(dims [3]int, spacing [3]float64, n int) error {
	for i := 0; i < 3; i++ {
		if dims[i] <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidVolume, i, dims[i])
		}
		if !(spacing[i] > 0) {
			return fmt.Errorf("%w: spacing %d is %g", ErrInvalidVolume, i, spacing[i])
		}
	}
	if want := dims[0] * dims[1] * dims[2]; n != want {
		return fmt.Errorf("%w: expected %d samples, got %d", ErrInvalidVolume, want, n)
	}
	return nil
}
