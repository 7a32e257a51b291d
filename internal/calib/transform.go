package calib

import (
	"encoding/json"
	"fmt"
	"os"
)

// Transform is the immutable result of a two-stage calibration: a coarse
// pixel-to-wavelength polynomial and a fine correction polynomial from
// provisional to corrected Raman shift. It can be serialized and reloaded so
// a calibration survives across acquisition runs.
type Transform struct {
	ExcitationNm float64   `json:"excitation_wavelength_nm"`
	FitOrder     int       `json:"fit_order"`
	Coarse       []float64 `json:"coarse_coefficients"`
	Fine         []float64 `json:"fine_coefficients"`
	PixelCount   int       `json:"pixel_count"`
}

// Wavelength maps a detector pixel to its emission wavelength in nm.
func (t *Transform) Wavelength(pixel float64) float64 {
	return polyval(t.Coarse, pixel)
}

// Shift maps a detector pixel to its corrected Raman shift in cm^-1.
func (t *Transform) Shift(pixel float64) float64 {
	provisional := RamanShift(t.Wavelength(pixel), t.ExcitationNm)
	return polyval(t.Fine, provisional)
}

// Axis returns the corrected Raman-shift axis for an n-pixel detector.
func (t *Transform) Axis(n int) []float64 {
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = t.Shift(float64(i))
	}
	return axis
}

// Save writes the transform as JSON.
func (t *Transform) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}

// Load reads a transform previously written by Save and validates that it
// carries both polynomial stages.
func Load(path string) (*Transform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}
	var t Transform
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse calibration file %s: %w", path, err)
	}
	if len(t.Coarse) < 2 || len(t.Fine) < 2 {
		return nil, fmt.Errorf("calibration file %s is missing fit coefficients", path)
	}
	return &t, nil
}
