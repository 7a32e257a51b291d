// Package spectrum defines the core spectral data model shared by the
// acquisition scheduler and the calibration engine, together with the
// averaging reduction applied to repeated captures.
package spectrum

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrEmptyAccumulator is returned by Averager.Finalize when no captures were
// accumulated. This indicates a scheduling bug, not a device fault.
var ErrEmptyAccumulator = errors.New("spectrum: no captures accumulated")

// Spectrum is one detector readout: an intensity sample per detector pixel,
// ordered by pixel index. Wavenumbers, when present, is the calibrated
// physical axis aligned 1:1 with Intensities; it stays nil until a
// calibration transform has been applied.
type Spectrum struct {
	Intensities []float64
	Wavenumbers []float64
}

// Len returns the number of detector pixels.
func (s Spectrum) Len() int { return len(s.Intensities) }

// Calibrated reports whether a physical axis has been attached.
func (s Spectrum) Calibrated() bool { return s.Wavenumbers != nil }

// CaptureResult is one raw readout plus its provenance within the sweep.
// Instances are consumed immediately by an Averager and not retained.
type CaptureResult struct {
	PositionName string
	TimePoint    int
	CaptureIndex int
	Spectrum     Spectrum
}

// Averager reduces repeated captures at one (position, time point) to a
// single representative spectrum by a running per-pixel mean. All captures
// share the same pixel axis by construction, so no resampling is performed.
type Averager struct {
	sum []float64
	n   int
}

// Accumulate folds one capture into the running mean. The first capture fixes
// the expected readout length; later captures of a different length are
// rejected.
func (a *Averager) Accumulate(cr CaptureResult) error {
	s := cr.Spectrum
	if a.n == 0 {
		a.sum = make([]float64, s.Len())
	}
	if s.Len() != len(a.sum) {
		return fmt.Errorf("spectrum: capture %d at %q has %d pixels, want %d",
			cr.CaptureIndex, cr.PositionName, s.Len(), len(a.sum))
	}
	floats.Add(a.sum, s.Intensities)
	a.n++
	return nil
}

// Count returns the number of captures accumulated so far.
func (a *Averager) Count() int { return a.n }

// Finalize returns the mean spectrum and resets the accumulator for the next
// (position, time point).
func (a *Averager) Finalize() (Spectrum, error) {
	if a.n == 0 {
		return Spectrum{}, ErrEmptyAccumulator
	}
	mean := make([]float64, len(a.sum))
	copy(mean, a.sum)
	floats.Scale(1/float64(a.n), mean)
	a.sum = nil
	a.n = 0
	return Spectrum{Intensities: mean}, nil
}
