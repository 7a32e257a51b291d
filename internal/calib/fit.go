package calib

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// polyfit solves the least-squares polynomial of the given order through
// (x, y), returning coefficients ordered low to high degree.
func polyfit(x, y []float64, order int) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("calib: fit input lengths differ (%d vs %d)", len(x), len(y))
	}
	if order < 1 {
		return nil, fmt.Errorf("calib: fit order %d is below 1", order)
	}
	if len(x) < order+1 {
		return nil, fmt.Errorf("calib: %d points cannot constrain an order-%d fit", len(x), order)
	}

	a := mat.NewDense(len(x), order+1, nil)
	for i, xv := range x {
		p := 1.0
		for j := 0; j <= order; j++ {
			a.Set(i, j, p)
			p *= xv
		}
	}
	b := mat.NewDense(len(y), 1, y)

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return nil, fmt.Errorf("calib: least-squares solve failed: %w", err)
	}

	coeffs := make([]float64, order+1)
	for j := range coeffs {
		coeffs[j] = sol.At(j, 0)
	}
	return coeffs, nil
}

// polyval evaluates a polynomial with coefficients ordered low to high.
func polyval(coeffs []float64, x float64) float64 {
	v := 0.0
	for j := len(coeffs) - 1; j >= 0; j-- {
		v = v*x + coeffs[j]
	}
	return v
}

// residualSumSquares measures the fit quality at the fitted points.
func residualSumSquares(coeffs, x, y []float64) float64 {
	rss := 0.0
	for i := range x {
		d := polyval(coeffs, x[i]) - y[i]
		rss += d * d
	}
	return rss
}

// strictlyMonotonic reports whether f is strictly monotonic (in either
// direction) when sampled at integer points 0..n-1.
func strictlyMonotonic(f func(float64) float64, n int) bool {
	if n < 2 {
		return false
	}
	prev := f(0)
	next := f(1)
	if next == prev {
		return false
	}
	increasing := next > prev
	prev = next
	for i := 2; i < n; i++ {
		v := f(float64(i))
		if increasing && v <= prev || !increasing && v >= prev {
			return false
		}
		prev = v
	}
	return true
}
