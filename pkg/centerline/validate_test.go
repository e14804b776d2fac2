package centerline

import (
	"errors"
	"math"
	"strings"
	"testing"

	"curvedmpr/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func TestValidateLength(t *testing.T) {
	testCases := []struct {
		name   string
		length float64
		valid  bool
		substr string
	}{
		{"too short", 3, false, "too short"},
		{"plausible", 40, true, ""},
		{"too long", 300, false, "unrealistically long"},
	}

	for _, tc := range testCases {
		report := Validate(straightLine(t, tc.length), DefaultLimits())
		if report.Valid != tc.valid {
			t.Errorf("%s: expected valid=%v, got %v (%v)", tc.name, tc.valid, report.Valid, report.Errors)
		}
		if tc.substr != "" && (len(report.Errors) == 0 || !strings.Contains(report.Errors[0], tc.substr)) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.substr, report.Errors)
		}
	}
}

func TestValidateSharpTurn(t *testing.T) {
	result := &models.CenterlineResult{
		Points: []models.CenterlinePoint{
			{Point3D: models.Point3D{X: 0}, Distance: 0},
			{Point3D: models.Point3D{X: 10}, Distance: 10},
			{Point3D: models.Point3D{X: 0, Y: 1}, Distance: 20.05},
		},
		TotalLength: 20.05,
	}
	report := Validate(result, DefaultLimits())
	if report.Valid {
		t.Fatal("expected a hairpin turn to be rejected")
	}
	if !strings.Contains(report.Errors[0], "sharp turn") {
		t.Errorf("expected a sharp turn error, got %v", report.Errors)
	}

	// A 60° bend is allowed
	result.Points[2].Point3D = models.Point3D{X: 15, Y: 5 * math.Sqrt(3)}
	result.Points[2].Distance = 20
	result.TotalLength = 20
	if report := Validate(result, DefaultLimits()); !report.Valid {
		t.Errorf("expected 60° turn to pass, got %v", report.Errors)
	}
}

func TestValidateDeviationFraction(t *testing.T) {
	result := straightLine(t, 10) // 21 points
	for i := range result.Points {
		result.Points[i].InsideLumen = boolPtr(true)
	}

	// 2/21 is under 10%
	result.Points[3].InsideLumen = boolPtr(false)
	result.Points[4].InsideLumen = boolPtr(false)
	if report := Validate(result, DefaultLimits()); !report.Valid {
		t.Errorf("expected 2 outside points to pass, got %v", report.Errors)
	}

	// 3/21 is over 10%
	result.Points[5].InsideLumen = boolPtr(false)
	report := Validate(result, DefaultLimits())
	if report.Valid {
		t.Fatal("expected 3 outside points to fail")
	}
	if !strings.Contains(report.Errors[0], "outside the lumen") {
		t.Errorf("unexpected errors %v", report.Errors)
	}
}

func TestValidateEmpty(t *testing.T) {
	if report := Validate(&models.CenterlineResult{}, DefaultLimits()); report.Valid {
		t.Error("expected empty centerline to be invalid")
	}
	if report := Validate(nil, DefaultLimits()); report.Valid {
		t.Error("expected nil centerline to be invalid")
	}
}

func TestInterpolateAtDistance(t *testing.T) {
	result := straightLine(t, 8)

	if _, ok := InterpolateAtDistance(result, -0.01); ok {
		t.Error("expected no point for negative distance")
	}
	if _, ok := InterpolateAtDistance(result, 8.01); ok {
		t.Error("expected no point beyond total length")
	}

	p, ok := InterpolateAtDistance(result, 0)
	if !ok || p.Point3D != result.Points[0].Point3D || p.Distance != 0 {
		t.Errorf("expected exact start point at d=0, got %+v %v", p, ok)
	}

	p, ok = InterpolateAtDistance(result, 3.3)
	if !ok || math.Abs(p.X-3.3) > 1e-9 || p.Distance != 3.3 {
		t.Errorf("expected x=3.3 at d=3.3, got %+v", p)
	}

	p, ok = InterpolateAtDistance(result, 8)
	if !ok || math.Abs(p.X-8) > 1e-9 {
		t.Errorf("expected end point at d=total, got %+v", p)
	}
}

func TestInterpolateAtDistanceOptionalFields(t *testing.T) {
	result := &models.CenterlineResult{
		Points: []models.CenterlinePoint{
			{Point3D: models.Point3D{X: 0}, Distance: 0, Radius: floatPtr(1), InsideLumen: boolPtr(true)},
			{Point3D: models.Point3D{X: 2}, Distance: 2, Radius: floatPtr(3), InsideLumen: boolPtr(false)},
			{Point3D: models.Point3D{X: 4}, Distance: 4},
		},
		TotalLength: 4,
	}

	p, ok := InterpolateAtDistance(result, 1)
	if !ok {
		t.Fatal("expected a point")
	}
	if p.Radius == nil || *p.Radius != 2 {
		t.Errorf("expected interpolated radius 2, got %v", p.Radius)
	}
	if p.InsideLumen == nil || *p.InsideLumen {
		t.Errorf("expected insideLumen = true AND false = false, got %v", p.InsideLumen)
	}

	p, ok = InterpolateAtDistance(result, 3)
	if !ok {
		t.Fatal("expected a point")
	}
	if p.Radius != nil || p.InsideLumen != nil {
		t.Errorf("fields undefined at one bracket must stay unset, got %+v", p)
	}
}

func TestResample(t *testing.T) {
	result := straightLine(t, 8.5)

	out, err := Resample(result, 2)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	want := []float64{0, 2, 4, 6, 8, 8.5}
	if len(out.Points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(out.Points))
	}
	for i, d := range want {
		if math.Abs(out.Points[i].Distance-d) > 1e-9 || math.Abs(out.Points[i].X-d) > 1e-9 {
			t.Errorf("point %d: expected distance/x %f, got %+v", i, d, out.Points[i])
		}
	}
	if out.TotalLength != result.TotalLength {
		t.Errorf("total length changed: %f", out.TotalLength)
	}

	for _, spacing := range []float64{0, -1, 1e-14, 0.05, math.NaN(), math.Inf(1)} {
		if _, err := Resample(result, spacing); !errors.Is(err, ErrInvalidSamplingInterval) {
			t.Errorf("spacing %g: expected ErrInvalidSamplingInterval, got %v", spacing, err)
		}
	}
	out, err = Resample(result, MinResampleSpacing)
	if err != nil {
		t.Fatalf("Resample at minimum spacing: %v", err)
	}
	if last := out.Points[len(out.Points)-1].Distance; math.Abs(last-8.5) > 1e-9 {
		t.Errorf("expected final sample at 8.5, got %f", last)
	}
}

func TestLocator(t *testing.T) {
	result := straightLine(t, 8)
	loc, err := NewLocator(result)
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}

	got := loc.Locate(models.Point3D{X: 3.3, Y: 2})
	if math.Abs(got.Point.Distance-3.3) > 1e-9 {
		t.Errorf("expected arc length 3.3, got %f", got.Point.Distance)
	}
	if math.Abs(got.Offset-2) > 1e-9 {
		t.Errorf("expected offset 2, got %f", got.Offset)
	}
	if got.Index != 6 && got.Index != 7 {
		t.Errorf("expected nearest sample 6 or 7, got %d", got.Index)
	}

	beyond := loc.Locate(models.Point3D{X: 20})
	if beyond.Index != len(result.Points)-1 || math.Abs(beyond.Offset-12) > 1e-9 {
		t.Errorf("expected clamp to the end point, got %+v", beyond)
	}

	if _, err := NewLocator(&models.CenterlineResult{}); err == nil {
		t.Error("expected error for empty centerline")
	}
}
