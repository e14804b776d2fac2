// Package config provides configuration loading and management for curvedmpr.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Parameterization names accepted for Centerline.Parameterization
const (
	ParameterizationUniform     = "uniform"
	ParameterizationChordLength = "chord-length"
)

// Interpolation names accepted for Resampling.Interpolation
const (
	InterpolationTrilinear = "trilinear"
	InterpolationNearest   = "nearest"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Centerline fitting parameters
	Centerline struct {
		// Degree is the B-spline degree; degree+1 control points are required
		Degree int `yaml:"degree"`

		// SamplingInterval is the target arc-length spacing of samples in mm
		SamplingInterval float64 `yaml:"samplingInterval"`

		// Parameterization selects the knot vector: "uniform" or "chord-length"
		Parameterization string `yaml:"parameterization"`
	} `yaml:"centerline"`

	// Validation limits for fitted centerlines
	Validation struct {
		MinLength            float64 `yaml:"minLength"`
		MaxLength            float64 `yaml:"maxLength"`
		MaxTurnAngle         float64 `yaml:"maxTurnAngle"` // degrees
		MaxDeviationFraction float64 `yaml:"maxDeviationFraction"`
	} `yaml:"validation"`

	// Curved MPR resampling parameters
	Resampling struct {
		// PlaneWidth and PlaneHeight are the cross-section extents in mm
		PlaneWidth  float64 `yaml:"planeWidth"`
		PlaneHeight float64 `yaml:"planeHeight"`

		// PlaneResolution is the in-plane pixel size in mm
		PlaneResolution float64 `yaml:"planeResolution"`

		// Interpolation is "trilinear" or "nearest"
		Interpolation string `yaml:"interpolation"`

		// InitialUp seeds the first plane's orientation
		InitialUp [3]float64 `yaml:"initialUp"`

		// PreviewFactor is the resolution downsample factor for progressive previews
		PreviewFactor int `yaml:"previewFactor"`

		// Workers bounds the number of slices sampled concurrently
		Workers int `yaml:"workers"`
	} `yaml:"resampling"`

	// Measurement parameters
	Measurement struct {
		// CalciumThreshold separates calcified from non-calcified plaque in HU
		CalciumThreshold float64 `yaml:"calciumThreshold"`

		// MinValidArea is the smallest lumen area in mm² considered a valid measurement
		MinValidArea float64 `yaml:"minValidArea"`

		// DiameterAngles is the number of directions sampled for diameters
		DiameterAngles int `yaml:"diameterAngles"`
	} `yaml:"measurement"`

	// Result cache limits
	Cache struct {
		MaxMemoryMB int `yaml:"maxMemoryMB"`
		MaxEntries  int `yaml:"maxEntries"`
	} `yaml:"cache"`

	// REST server parameters
	Server struct {
		ListenAddr string `yaml:"listenAddr"`
		Port       int    `yaml:"port"`

		// StudyDir is where the file volume source looks for <study>.yaml/.raw pairs
		StudyDir string `yaml:"studyDir"`
	} `yaml:"server"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// WindowCenter and WindowWidth map HU to gray levels in exported images
		WindowCenter float64 `yaml:"windowCenter"`
		WindowWidth  float64 `yaml:"windowWidth"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Centerline.Degree = 3
	cfg.Centerline.SamplingInterval = 0.5
	cfg.Centerline.Parameterization = ParameterizationChordLength

	cfg.Validation.MinLength = 5
	cfg.Validation.MaxLength = 250
	cfg.Validation.MaxTurnAngle = 90
	cfg.Validation.MaxDeviationFraction = 0.1

	cfg.Resampling.PlaneWidth = 20
	cfg.Resampling.PlaneHeight = 20
	cfg.Resampling.PlaneResolution = 0.5
	cfg.Resampling.Interpolation = InterpolationTrilinear
	cfg.Resampling.InitialUp = [3]float64{0, 0, 1}
	cfg.Resampling.PreviewFactor = 4
	cfg.Resampling.Workers = runtime.NumCPU() // Use all available cores by default

	cfg.Measurement.CalciumThreshold = 130
	cfg.Measurement.MinValidArea = 0.5
	cfg.Measurement.DiameterAngles = 360

	cfg.Cache.MaxMemoryMB = 512
	cfg.Cache.MaxEntries = 50

	cfg.Server.ListenAddr = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.StudyDir = "studies"

	cfg.Output.Verbose = false
	cfg.Output.WindowCenter = 300
	cfg.Output.WindowWidth = 800

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// CacheMemoryBytes returns the cache memory ceiling in bytes
func (c *Config) CacheMemoryBytes() int64 {
	return int64(c.Cache.MaxMemoryMB) * 1024 * 1024
}
