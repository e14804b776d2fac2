package models

import "time"

// Units reported by the measurement types
const (
	UnitSquareMM = "mm²"
	UnitMM       = "mm"
	UnitHU       = "HU"
	UnitPercent  = "%"
)

// AreaMeasurement is the area of a binary mask. PixelCount is reported
// alongside the area so the value can be traced back to the mask.
type AreaMeasurement struct {
	Area       float64 `json:"area"`
	PixelCount int     `json:"pixelCount"`
	Unit       string  `json:"unit"`
}

// PixelPoint is a pixel coordinate inside a cross section
type PixelPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DiameterMeasurement summarises chord lengths through a contour centroid
type DiameterMeasurement struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`

	// MinEndpoints and MaxEndpoints are the contour pixels spanning the
	// minimum and maximum diameters
	MinEndpoints [2]PixelPoint `json:"minEndpoints"`
	MaxEndpoints [2]PixelPoint `json:"maxEndpoints"`

	NumAngles int    `json:"numAngles"`
	Unit      string `json:"unit"`
}

// HUStatistics summarises density values inside a mask
type HUStatistics struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stdDev"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Median     float64 `json:"median"`
	PixelCount int     `json:"pixelCount"`
	Unit       string  `json:"unit"`
}

// PlaqueQuantification is the per-pixel composition of a vessel wall
type PlaqueQuantification struct {
	Threshold float64 `json:"threshold"`

	CalcifiedPixels     int     `json:"calcifiedPixels"`
	CalcifiedArea       float64 `json:"calcifiedArea"`
	CalcifiedPercentage float64 `json:"calcifiedPercentage"`
	CalcifiedMeanHU     float64 `json:"calcifiedMeanHU"`

	NonCalcifiedPixels     int     `json:"nonCalcifiedPixels"`
	NonCalcifiedArea       float64 `json:"nonCalcifiedArea"`
	NonCalcifiedPercentage float64 `json:"nonCalcifiedPercentage"`
	NonCalcifiedMeanHU     float64 `json:"nonCalcifiedMeanHU"`

	TotalArea   float64 `json:"totalArea"`
	AreaUnit    string  `json:"areaUnit"`
	PercentUnit string  `json:"percentUnit"`
}

// MeasurementRecord bundles every measurement taken on one cross section.
// Wall, plaque and burden fields are only set when a wall mask was supplied.
type MeasurementRecord struct {
	ID string `json:"id"`

	// Position is the arc length along the centerline in mm
	Position  float64   `json:"position"`
	Timestamp time.Time `json:"timestamp"`

	LumenArea     AreaMeasurement     `json:"lumenArea"`
	LumenDiameter DiameterMeasurement `json:"lumenDiameter"`
	LumenDensity  HUStatistics        `json:"lumenDensity"`

	// LumenValid is false when the lumen area is below the configured minimum
	LumenValid bool `json:"lumenValid"`

	WallArea     *AreaMeasurement      `json:"wallArea,omitempty"`
	WallDensity  *HUStatistics         `json:"wallDensity,omitempty"`
	Plaque       *PlaqueQuantification `json:"plaque,omitempty"`
	PlaqueBurden *float64              `json:"plaqueBurden,omitempty"`
}
