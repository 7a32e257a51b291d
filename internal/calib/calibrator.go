// Package calib converts raw pixel-indexed spectra to Raman-shift axes via a
// two-stage calibration: a coarse pixel-to-wavelength fit against neon
// emission lines and a fine wavenumber correction against acetonitrile Raman
// bands.
package calib

import (
	"errors"
	"fmt"
	"sort"

	"github.com/raman-lab/autoraman/internal/monitoring"
	"github.com/raman-lab/autoraman/internal/peaks"
	"github.com/raman-lab/autoraman/internal/spectrum"
)

// ErrNonMonotonicFit is returned when a fitted mapping is not strictly
// monotonic over the full detector range. This indicates a bad reference
// spectrum; continuing would silently corrupt every subsequent axis.
var ErrNonMonotonicFit = errors.New("calib: fitted mapping is not monotonic over the detector range")

// ErrPoorFit is returned when fit residuals exceed the configured limit.
var ErrPoorFit = errors.New("calib: calibration residuals exceed limit")

// Calibrator derives a Transform from a pair of reference spectra. The zero
// value is usable and applies the documented defaults.
type Calibrator struct {
	ExcitationNm        float64
	FitOrder            int
	Detector            peaks.Detector
	CoarseResidualLimit float64
	FineResidualLimit   float64
}

func (c Calibrator) excitation() float64 {
	if c.ExcitationNm == 0 {
		return DefaultExcitationNm
	}
	return c.ExcitationNm
}

func (c Calibrator) order() int {
	if c.FitOrder == 0 {
		return DefaultFitOrder
	}
	return c.FitOrder
}

func (c Calibrator) coarseLimit() float64 {
	if c.CoarseResidualLimit == 0 {
		return DefaultCoarseResidualLimit
	}
	return c.CoarseResidualLimit
}

func (c Calibrator) fineLimit() float64 {
	if c.FineResidualLimit == 0 {
		return DefaultFineResidualLimit
	}
	return c.FineResidualLimit
}

// Calibrate runs both calibration stages and returns the composed transform.
// The same inputs always produce the same transform.
func (c Calibrator) Calibrate(neon, acetonitrile spectrum.Spectrum) (*Transform, error) {
	n := neon.Len()
	if n == 0 {
		return nil, fmt.Errorf("calib: neon spectrum is empty")
	}
	if acetonitrile.Len() != n {
		return nil, fmt.Errorf("calib: reference spectra lengths differ (%d vs %d)", n, acetonitrile.Len())
	}

	coarse, err := c.coarseFit(neon)
	if err != nil {
		return nil, err
	}

	wavelength := func(p float64) float64 { return polyval(coarse, p) }
	if !strictlyMonotonic(wavelength, n) {
		return nil, fmt.Errorf("pixel-to-wavelength stage: %w", ErrNonMonotonicFit)
	}

	fine, err := c.fineFit(acetonitrile, coarse)
	if err != nil {
		return nil, err
	}

	t := &Transform{
		ExcitationNm: c.excitation(),
		FitOrder:     c.order(),
		Coarse:       coarse,
		Fine:         fine,
		PixelCount:   n,
	}
	if !strictlyMonotonic(t.Shift, n) {
		return nil, fmt.Errorf("composed mapping: %w", ErrNonMonotonicFit)
	}
	return t, nil
}

// coarseFit matches neon peaks to the reference emission lines and fits the
// pixel-to-wavelength polynomial.
func (c Calibrator) coarseFit(neon spectrum.Spectrum) ([]float64, error) {
	indices := c.Detector.Detect(neon.Intensities, len(NeonLinesNm))
	positions := make([]float64, len(indices))
	for i, idx := range indices {
		positions[i] = float64(idx)
	}

	pairs, err := peaks.Match(positions, NeonLinesNm)
	if err != nil {
		return nil, fmt.Errorf("neon spectrum: %w", err)
	}
	monitoring.Logf("calib: matched %d neon peaks", len(pairs))

	xs, ys := splitPairs(pairs)
	coeffs, err := polyfit(xs, ys, c.order())
	if err != nil {
		return nil, fmt.Errorf("neon spectrum: %w", err)
	}
	if rss := residualSumSquares(coeffs, xs, ys); rss > c.coarseLimit() {
		return nil, fmt.Errorf("coarse stage residuals %.4g exceed %.4g: %w", rss, c.coarseLimit(), ErrPoorFit)
	}
	return coeffs, nil
}

// fineFit matches acetonitrile peaks, located on the provisional Raman-shift
// axis derived from the coarse fit, to the reference bands and fits the
// correction polynomial.
func (c Calibrator) fineFit(acetonitrile spectrum.Spectrum, coarse []float64) ([]float64, error) {
	excitation := c.excitation()
	provisional := make([]float64, acetonitrile.Len())
	for i := range provisional {
		provisional[i] = RamanShift(polyval(coarse, float64(i)), excitation)
	}

	indices := c.Detector.Detect(acetonitrile.Intensities, len(AcetonitrileShiftsCm1))
	positions := make([]float64, len(indices))
	for i, idx := range indices {
		positions[i] = provisional[idx]
	}
	// The provisional axis may run in either direction depending on detector
	// orientation; matching expects ascending shift order.
	sort.Float64s(positions)

	pairs, err := peaks.Match(positions, AcetonitrileShiftsCm1)
	if err != nil {
		return nil, fmt.Errorf("acetonitrile spectrum: %w", err)
	}
	monitoring.Logf("calib: matched %d acetonitrile peaks", len(pairs))

	xs, ys := splitPairs(pairs)
	coeffs, err := polyfit(xs, ys, c.order())
	if err != nil {
		return nil, fmt.Errorf("acetonitrile spectrum: %w", err)
	}
	if rss := residualSumSquares(coeffs, xs, ys); rss > c.fineLimit() {
		return nil, fmt.Errorf("fine stage residuals %.4g exceed %.4g: %w", rss, c.fineLimit(), ErrPoorFit)
	}
	return coeffs, nil
}

func splitPairs(pairs []peaks.Pairing) (xs, ys []float64) {
	xs = make([]float64, len(pairs))
	ys = make([]float64, len(pairs))
	for i, p := range pairs {
		xs[i] = p.Detected
		ys[i] = p.Reference
	}
	return xs, ys
}
