// Package visualization renders curved MPR volumes as grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"curvedmpr/internal/models"
)

// Window maps HU values to gray levels. Values below Center-Width/2 are
// black and values above Center+Width/2 are white.
type Window struct {
	Center float64
	Width  float64
}

// DefaultWindow is a contrast-enhanced vessel window
var DefaultWindow = Window{Center: 300, Width: 800}

// Gray maps one HU value to an 8-bit gray level
func (w Window) Gray(hu int16) uint8 {
	if w.Width <= 0 {
		if float64(hu) >= w.Center {
			return 255
		}
		return 0
	}
	lo := w.Center - w.Width/2
	t := (float64(hu) - lo) / w.Width
	return uint8(math.Round(math.Max(0, math.Min(1, t)) * 255))
}

// Viewer extracts and saves 2D views of a curved MPR volume.
//
// Axis "z" selects cross sections, one per centerline sample. Axes "x" and
// "y" select straightened longitudinal views through a fixed plane column
// or row, with the centerline running horizontally for "x" and vertically
// for "y".
type Viewer struct {
	volume *models.CurvedMPRVolume
	window Window
}

// NewViewer creates a viewer over volume
func NewViewer(volume *models.CurvedMPRVolume, window Window) *Viewer {
	return &Viewer{volume: volume, window: window}
}

func (v *Viewer) at(x, y, z int) int16 {
	w, h := v.volume.Dimensions[0], v.volume.Dimensions[1]
	return v.volume.Data[z*w*h+y*w+x]
}

// ExtractSlice extracts a 2D view along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	width, height, depth := v.volume.Dimensions[0], v.volume.Dimensions[1], v.volume.Dimensions[2]
	if len(v.volume.Data) != width*height*depth {
		return nil, fmt.Errorf("%w: curved MPR holds %d samples", models.ErrInvalidVolume, len(v.volume.Data))
	}

	var img *image.Gray

	switch axis {
	case "x", "X":
		// Plane column fixed: slices run left to right
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}
		img = image.NewGray(image.Rect(0, 0, depth, height))
		for y := 0; y < height; y++ {
			for z := 0; z < depth; z++ {
				img.SetGray(z, y, color.Gray{Y: v.window.Gray(v.at(position, y, z))})
			}
		}

	case "y", "Y":
		// Plane row fixed: slices run top to bottom
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}
		img = image.NewGray(image.Rect(0, 0, width, depth))
		for z := 0; z < depth; z++ {
			for x := 0; x < width; x++ {
				img.SetGray(x, z, color.Gray{Y: v.window.Gray(v.at(x, position, z))})
			}
		}

	case "z", "Z":
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}
		img = image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray(x, y, color.Gray{Y: v.window.Gray(v.at(x, y, position))})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// Straightened returns the longitudinal view through the plane centre
func (v *Viewer) Straightened() (image.Image, error) {
	return v.ExtractSlice("x", v.volume.Dimensions[0]/2)
}

// SaveSlice saves an extracted view as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every view along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.volume.Dimensions[0]
	case "y", "Y":
		maxPos = v.volume.Dimensions[1]
	case "z", "Z":
		maxPos = v.volume.Dimensions[2]
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
