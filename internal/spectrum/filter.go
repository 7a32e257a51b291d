package spectrum

import "sort"

// MedianFilter returns a median-filtered copy of values using an odd-sized
// sliding window. Edges are handled by shrinking the window, matching the
// zero-padding-free behaviour expected for spectral traces. Kernel sizes
// below 3, or even kernels, return the input unchanged (copied).
func MedianFilter(values []float64, kernel int) []float64 {
	out := make([]float64, len(values))
	if kernel < 3 || kernel%2 == 0 {
		copy(out, values)
		return out
	}
	half := kernel / 2
	window := make([]float64, 0, kernel)
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(values) {
			hi = len(values)
		}
		window = append(window[:0], values[lo:hi]...)
		sort.Float64s(window)
		out[i] = median(window)
	}
	return out
}

// median expects a sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Reverse flips values in place. Used for detectors mounted with the
// dispersion axis inverted.
func Reverse(values []float64) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}
