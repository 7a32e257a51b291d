// Package peaks locates local maxima in 1-D intensity traces and pairs them
// with known reference peak lists for calibration fitting.
package peaks

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/raman-lab/autoraman/internal/spectrum"
)

// ErrInsufficientPeaks is returned when fewer than two matched pairs remain;
// a monotonic fit is not well-defined below two points.
var ErrInsufficientPeaks = errors.New("peaks: fewer than two matched peaks")

// Default detection parameters.
const (
	DefaultKernelSize    = 5
	DefaultNoiseRelative = 0.05
)

// Detector finds the most prominent local maxima in an intensity trace.
// The trace is median-filtered before detection to suppress shot noise, and
// candidate maxima are kept only when their prominence exceeds NoiseRelative
// times the dynamic range of the filtered trace.
type Detector struct {
	KernelSize    int
	NoiseRelative float64
}

// peak is one detected candidate before selection.
type peak struct {
	index      int
	prominence float64
}

// Detect returns the pixel indices of up to n peaks, ordered ascending.
// Fewer than n peaks may be returned; callers decide whether that is enough.
func (d Detector) Detect(trace []float64, n int) []int {
	kernel := d.KernelSize
	if kernel == 0 {
		kernel = DefaultKernelSize
	}
	noiseRel := d.NoiseRelative
	if noiseRel == 0 {
		noiseRel = DefaultNoiseRelative
	}

	smoothed := spectrum.MedianFilter(trace, kernel)
	if len(smoothed) < 3 {
		return nil
	}

	span := floats.Max(smoothed) - floats.Min(smoothed)
	if span <= 0 {
		return nil
	}
	threshold := noiseRel * span

	var candidates []peak
	for i := 1; i < len(smoothed)-1; i++ {
		if smoothed[i] <= smoothed[i-1] {
			continue
		}
		// Walk any plateau of equal values; the peak position is its midpoint.
		j := i
		for j+1 < len(smoothed) && smoothed[j+1] == smoothed[i] {
			j++
		}
		if j+1 >= len(smoothed) || smoothed[j+1] >= smoothed[i] {
			i = j
			continue
		}
		pos := (i + j) / 2
		if prom := prominence(smoothed, pos); prom >= threshold {
			candidates = append(candidates, peak{index: pos, prominence: prom})
		}
		i = j
	}

	// Keep the n most prominent, then restore ascending pixel order.
	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].prominence > candidates[b].prominence
	})
	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	indices := make([]int, len(candidates))
	for i, c := range candidates {
		indices[i] = c.index
	}
	sort.Ints(indices)
	return indices
}

// prominence measures how far a peak rises above the higher of the two
// valleys separating it from taller terrain (or the trace boundary).
func prominence(trace []float64, p int) float64 {
	h := trace[p]

	leftMin := h
	for i := p - 1; i >= 0; i-- {
		if trace[i] > h {
			break
		}
		if trace[i] < leftMin {
			leftMin = trace[i]
		}
	}

	rightMin := h
	for i := p + 1; i < len(trace); i++ {
		if trace[i] > h {
			break
		}
		if trace[i] < rightMin {
			rightMin = trace[i]
		}
	}

	base := leftMin
	if rightMin > base {
		base = rightMin
	}
	return h - base
}

// Pairing associates one detected peak position with a reference value.
type Pairing struct {
	Detected  float64
	Reference float64
}

// Match pairs detected peak positions with reference values. Both lists must
// be ordered ascending along the same physical direction; pairing is
// positional, and whichever list is longer has its trailing entries dropped
// rather than failing. ErrInsufficientPeaks is returned when fewer than two
// pairs survive.
func Match(detected, reference []float64) ([]Pairing, error) {
	n := len(detected)
	if len(reference) < n {
		n = len(reference)
	}
	if n < 2 {
		return nil, ErrInsufficientPeaks
	}
	pairs := make([]Pairing, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pairing{Detected: detected[i], Reference: reference[i]}
	}
	return pairs, nil
}
