package measurement

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"curvedmpr/internal/models"
)

// disc returns a size x size mask with a filled circle of radius r pixels
func disc(size int, r float64) []uint8 {
	mask := make([]uint8, size*size)
	c := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if math.Hypot(float64(x)-c, float64(y)-c) <= r {
				mask[y*size+x] = 1
			}
		}
	}
	return mask
}

func TestCalculateArea(t *testing.T) {
	mask := []uint8{0, 1, 1, 0, 1, 0, 2, 0, 0}
	got := CalculateArea(mask, [2]float64{0.5, 0.4})
	want := models.AreaMeasurement{Area: 4 * 0.5 * 0.4, PixelCount: 4, Unit: models.UnitSquareMM}
	if d := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); d != "" {
		t.Errorf("area mismatch (-want +got):\n%s", d)
	}

	if empty := CalculateArea(make([]uint8, 9), [2]float64{1, 1}); empty.Area != 0 || empty.PixelCount != 0 {
		t.Errorf("expected zero area for empty mask, got %+v", empty)
	}
}

func TestExtractContour(t *testing.T) {
	// 5x5 with a 3x3 block: only the centre pixel is interior
	mask := make([]uint8, 25)
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			mask[y*5+x] = 1
		}
	}
	contour := ExtractContour(mask, 5, 5)
	if len(contour) != 8 {
		t.Fatalf("expected 8 boundary pixels, got %d", len(contour))
	}
	for _, p := range contour {
		if p.X == 2 && p.Y == 2 {
			t.Error("interior pixel reported on the contour")
		}
	}

	// A full image is bounded by the border
	full := make([]uint8, 9)
	for i := range full {
		full[i] = 1
	}
	if got := ExtractContour(full, 3, 3); len(got) != 8 {
		t.Errorf("expected border pixels of a full 3x3 mask, got %d", len(got))
	}
}

func TestCalculateDiametersCircle(t *testing.T) {
	const r = 20.0
	e := NewEngine(DefaultConfig())
	got := e.CalculateDiameters(disc(61, r), 61, 61, [2]float64{1, 1})

	if got.NumAngles != 360 {
		t.Errorf("expected 360 angles, got %d", got.NumAngles)
	}
	for name, v := range map[string]float64{"min": got.Min, "max": got.Max, "mean": got.Mean} {
		if math.Abs(v-2*r) > 3 {
			t.Errorf("%s diameter %f not within 3 of %f", name, v, 2*r)
		}
	}
	if got.Min > got.Mean || got.Mean > got.Max {
		t.Errorf("expected min <= mean <= max, got %+v", got)
	}
}

func TestCalculateDiametersSpacing(t *testing.T) {
	// Doubling the pixel size doubles the physical diameter
	e := NewEngine(DefaultConfig())
	one := e.CalculateDiameters(disc(31, 10), 31, 31, [2]float64{1, 1})
	two := e.CalculateDiameters(disc(31, 10), 31, 31, [2]float64{2, 2})
	if math.Abs(two.Mean-2*one.Mean) > 1e-9 {
		t.Errorf("expected mean to scale with spacing: %f vs %f", two.Mean, one.Mean)
	}
}

func TestCalculateDiametersEmpty(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.CalculateDiameters(make([]uint8, 16), 4, 4, [2]float64{1, 1})
	if got.Min != 0 || got.Max != 0 || got.Mean != 0 {
		t.Errorf("expected zero diameters, got %+v", got)
	}
	if got.Unit != models.UnitMM {
		t.Errorf("expected unit %q, got %q", models.UnitMM, got.Unit)
	}
}

func TestCalculateHUStatistics(t *testing.T) {
	data := []int16{10, 20, 30, 40, 999}
	mask := []uint8{1, 1, 1, 1, 0}
	got := CalculateHUStatistics(data, mask)
	want := models.HUStatistics{
		Mean:       25,
		StdDev:     math.Sqrt(125),
		Min:        10,
		Max:        40,
		Median:     25,
		PixelCount: 4,
		Unit:       models.UnitHU,
	}
	if d := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); d != "" {
		t.Errorf("statistics mismatch (-want +got):\n%s", d)
	}

	odd := CalculateHUStatistics([]int16{5, -3, 100}, []uint8{1, 1, 1})
	if odd.Median != 5 {
		t.Errorf("expected median 5, got %f", odd.Median)
	}

	empty := CalculateHUStatistics(data, make([]uint8, 5))
	if empty.PixelCount != 0 || empty.Mean != 0 || empty.StdDev != 0 || empty.Median != 0 {
		t.Errorf("expected zero statistics for an empty mask, got %+v", empty)
	}
}

func TestQuantifyPlaque(t *testing.T) {
	image := models.CrossSectionImage{
		Width:   4,
		Height:  1,
		Spacing: [2]float64{0.5, 0.5},
		Data:    []int16{50, 200, 130, 400},
	}
	wall := []uint8{1, 1, 1, 1}

	got, err := NewEngine(DefaultConfig()).QuantifyPlaque(image, wall)
	if err != nil {
		t.Fatalf("QuantifyPlaque: %v", err)
	}
	want := &models.PlaqueQuantification{
		Threshold:              130,
		CalcifiedPixels:        2,
		CalcifiedArea:          0.5,
		CalcifiedPercentage:    50,
		CalcifiedMeanHU:        300,
		NonCalcifiedPixels:     2,
		NonCalcifiedArea:       0.5,
		NonCalcifiedPercentage: 50,
		NonCalcifiedMeanHU:     90,
		TotalArea:              1,
		AreaUnit:               models.UnitSquareMM,
		PercentUnit:            models.UnitPercent,
	}
	if d := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); d != "" {
		t.Errorf("plaque mismatch (-want +got):\n%s", d)
	}

	if _, err := NewEngine(DefaultConfig()).QuantifyPlaque(image, nil); !errors.Is(err, ErrMissingWallMask) {
		t.Errorf("expected ErrMissingWallMask, got %v", err)
	}
}

func sliceWithRing(size int) (models.CrossSectionImage, models.CrossSectionSegmentation) {
	lumen := disc(size, 5)
	outer := disc(size, 8)
	wall := make([]uint8, len(outer))
	data := make([]int16, len(outer))
	for i := range outer {
		switch {
		case lumen[i] != 0:
			data[i] = 350
		case outer[i] != 0:
			wall[i] = 1
			data[i] = 60
		default:
			data[i] = -100
		}
	}
	return models.CrossSectionImage{Width: size, Height: size, Spacing: [2]float64{0.5, 0.5}, Data: data},
		models.CrossSectionSegmentation{Width: size, Height: size, Lumen: lumen, Wall: wall}
}

func TestComputeAll(t *testing.T) {
	image, seg := sliceWithRing(21)
	e := NewEngine(DefaultConfig())

	record, err := e.ComputeAll(image, seg, 12.5)
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if record.ID == "" || record.Timestamp.IsZero() {
		t.Errorf("expected id and timestamp, got %q %v", record.ID, record.Timestamp)
	}
	if record.Position != 12.5 {
		t.Errorf("expected position 12.5, got %f", record.Position)
	}
	if !record.LumenValid {
		t.Error("expected a valid lumen")
	}
	if record.LumenDensity.Mean != 350 {
		t.Errorf("expected lumen mean 350, got %f", record.LumenDensity.Mean)
	}
	if record.WallArea == nil || record.WallDensity == nil || record.Plaque == nil || record.PlaqueBurden == nil {
		t.Fatalf("expected wall measurements, got %+v", record)
	}
	if record.Plaque.CalcifiedPixels != 0 || record.Plaque.NonCalcifiedPercentage != 100 {
		t.Errorf("expected all wall pixels non-calcified, got %+v", record.Plaque)
	}
	wantBurden := record.WallArea.Area / (record.WallArea.Area + record.LumenArea.Area) * 100
	if math.Abs(*record.PlaqueBurden-wantBurden) > 1e-9 {
		t.Errorf("expected burden %f, got %f", wantBurden, *record.PlaqueBurden)
	}

	// Without a wall only the lumen is measured
	seg.Wall = nil
	record, err = e.ComputeAll(image, seg, 0)
	if err != nil {
		t.Fatalf("ComputeAll without wall: %v", err)
	}
	if record.WallArea != nil || record.Plaque != nil || record.PlaqueBurden != nil {
		t.Errorf("expected no wall measurements, got %+v", record)
	}
}

func TestComputeAllTinyLumen(t *testing.T) {
	image, seg := sliceWithRing(21)
	for i := range seg.Lumen {
		seg.Lumen[i] = 0
	}
	seg.Lumen[10*21+10] = 1 // 0.25 mm²

	record, err := NewEngine(DefaultConfig()).ComputeAll(image, seg, 0)
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if record.LumenValid {
		t.Errorf("expected lumen of %f mm² to be flagged", record.LumenArea.Area)
	}
}

func TestComputeAllDimensionMismatch(t *testing.T) {
	image, seg := sliceWithRing(21)
	e := NewEngine(DefaultConfig())

	testCases := []struct {
		name   string
		mutate func(*models.CrossSectionSegmentation)
	}{
		{"width", func(s *models.CrossSectionSegmentation) { s.Width = 20 }},
		{"lumen length", func(s *models.CrossSectionSegmentation) { s.Lumen = s.Lumen[:10] }},
		{"wall length", func(s *models.CrossSectionSegmentation) { s.Wall = s.Wall[:10] }},
	}
	for _, tc := range testCases {
		s := seg
		tc.mutate(&s)
		if _, err := e.ComputeAll(image, s, 0); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("%s: expected ErrDimensionMismatch, got %v", tc.name, err)
		}
	}
}
