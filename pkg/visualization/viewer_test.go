package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"curvedmpr/internal/models"
)

// testVolume builds a curved MPR where every cross section holds one value
func testVolume(width, height, depth int, values []int16) *models.CurvedMPRVolume {
	vol := &models.CurvedMPRVolume{
		Dimensions: [3]int{width, height, depth},
		Spacing:    [3]float64{0.5, 0.5, 0.5},
		Data:       make([]int16, width*height*depth),
	}
	for z := 0; z < depth; z++ {
		for i := 0; i < width*height; i++ {
			vol.Data[z*width*height+i] = values[z]
		}
	}
	return vol
}

// TestWindowGray verifies the HU to gray mapping
func TestWindowGray(t *testing.T) {
	w := Window{Center: 100, Width: 200}
	testCases := []struct {
		hu   int16
		want uint8
	}{
		{-1024, 0},
		{0, 0},
		{100, 128},
		{200, 255},
		{3000, 255},
	}
	for _, tc := range testCases {
		if got := w.Gray(tc.hu); got != tc.want {
			t.Errorf("Gray(%d): expected %d, got %d", tc.hu, tc.want, got)
		}
	}

	binary := Window{Center: 0, Width: 0}
	if binary.Gray(-1) != 0 || binary.Gray(0) != 255 {
		t.Error("zero-width window should threshold at the centre")
	}
}

// TestExtractSlice verifies that views are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 6, 4, 3
	vol := testVolume(width, height, depth, []int16{0, 100, 200})
	viewer := NewViewer(vol, Window{Center: 100, Width: 200})

	// Cross sections
	for z, want := range []uint8{0, 128, 255} {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d", width, height, bounds.Dx(), bounds.Dy())
		}
		gray, ok := img.(*image.Gray)
		if !ok {
			t.Fatalf("Expected *image.Gray, got %T", img)
		}
		if got := gray.GrayAt(width/2, height/2).Y; got != want {
			t.Errorf("Z slice %d: expected gray %d at centre, got %d", z, want, got)
		}
	}

	// Longitudinal views
	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}
	if got := imgX.(*image.Gray).GrayAt(2, 0).Y; got != 255 {
		t.Errorf("Expected the last column of the X view to come from slice 2, got %d", got)
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	straight, err := viewer.Straightened()
	if err != nil {
		t.Fatalf("Straightened: %v", err)
	}
	if straight.Bounds() != imgX.Bounds() {
		t.Errorf("Straightened view should match the centre X view")
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("z", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestSaveSliceSequence verifies that a sequence of views is written as JPEGs
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file output test in short mode")
	}

	depth := 4
	vol := testVolume(8, 8, depth, []int16{-100, 0, 300, 600})
	viewer := NewViewer(vol, DefaultWindow)
	outputDir := filepath.Join(t.TempDir(), "slices")

	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.jpg", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file %s not found", filename)
		}
	}

	if err := viewer.SaveSliceSequence("w", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
