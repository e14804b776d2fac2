package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	report := cfg.Validate()
	if !report.Valid {
		t.Fatalf("default config should validate, got errors: %v", report.Errors)
	}

	if cfg.Centerline.Degree != 3 {
		t.Errorf("expected degree 3, got %d", cfg.Centerline.Degree)
	}
	if cfg.Centerline.SamplingInterval != 0.5 {
		t.Errorf("expected sampling interval 0.5, got %g", cfg.Centerline.SamplingInterval)
	}
	if cfg.CacheMemoryBytes() != 512*1024*1024 {
		t.Errorf("expected 512MB cache ceiling, got %d", cfg.CacheMemoryBytes())
	}
}

func TestValidateReportsRangeErrors(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		substr string
	}{
		{"sampling interval", func(c *Config) { c.Centerline.SamplingInterval = 0 }, "sampling interval"},
		{"plane width", func(c *Config) { c.Resampling.PlaneWidth = 500 }, "plane width"},
		{"plane height", func(c *Config) { c.Resampling.PlaneHeight = 1 }, "plane height"},
		{"resolution", func(c *Config) { c.Resampling.PlaneResolution = 3 }, "plane resolution"},
		{"calcium threshold", func(c *Config) { c.Measurement.CalciumThreshold = -5 }, "calcium threshold"},
		{"valid area", func(c *Config) { c.Measurement.MinValidArea = 50 }, "minimum valid area"},
		{"diameter angles", func(c *Config) { c.Measurement.DiameterAngles = 2 }, "diameter angle count"},
		{"interpolation", func(c *Config) { c.Resampling.Interpolation = "cubic" }, "interpolation"},
		{"parameterization", func(c *Config) { c.Centerline.Parameterization = "centripetal" }, "parameterization"},
		{"cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }, "cache entry ceiling"},
	}

	for _, tc := range testCases {
		cfg := DefaultConfig()
		tc.modify(cfg)
		report := cfg.Validate()
		if report.Valid {
			t.Errorf("%s: expected invalid report", tc.name)
			continue
		}
		if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], tc.substr) {
			t.Errorf("%s: expected a single error mentioning %q, got %v", tc.name, tc.substr, report.Errors)
		}
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if d := cmp.Diff(DefaultConfig(), cfg); d != "" {
		t.Errorf("expected defaults (-want +got):\n%s", d)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Resampling.PlaneWidth = 30
	cfg.Resampling.Interpolation = InterpolationNearest
	cfg.Measurement.CalciumThreshold = 350
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if d := cmp.Diff(cfg, loaded); d != "" {
		t.Errorf("config changed across save/load (-want +got):\n%s", d)
	}
}

func TestLoadConfigPartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "resampling:\n  planeResolution: 0.25\ncache:\n  maxEntries: 10\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Resampling.PlaneResolution != 0.25 {
		t.Errorf("expected plane resolution 0.25, got %g", cfg.Resampling.PlaneResolution)
	}
	if cfg.Cache.MaxEntries != 10 {
		t.Errorf("expected 10 max entries, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Resampling.PlaneWidth != 20 {
		t.Errorf("expected default plane width to survive, got %g", cfg.Resampling.PlaneWidth)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("centerline: [unterminated"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}
