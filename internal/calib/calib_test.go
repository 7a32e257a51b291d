package calib

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raman-lab/autoraman/internal/peaks"
	"github.com/raman-lab/autoraman/internal/spectrum"
)

// The synthetic detector used across these tests: 4096 pixels with a true
// dispersion of 0.05 nm/pixel starting at 540 nm, which spans both the neon
// lines and the acetonitrile bands at 532 nm excitation.
const (
	testPixels     = 4096
	trueInterceptNm = 540.0
	trueSlopeNm     = 0.05
)

func truePixelOfWavelength(nm float64) float64 {
	return (nm - trueInterceptNm) / trueSlopeNm
}

func truePixelOfShift(cm1 float64) float64 {
	// Invert shift = (1/exc - 1/lambda) * 1e7.
	lambda := 1 / (1/DefaultExcitationNm - cm1/1e7)
	return truePixelOfWavelength(lambda)
}

func traceWithPeaksAt(n int, centres []float64) spectrum.Spectrum {
	intensities := make([]float64, n)
	for i := range intensities {
		for _, c := range centres {
			d := (float64(i) - c) / 2.0
			intensities[i] += math.Exp(-d * d / 2)
		}
	}
	return spectrum.Spectrum{Intensities: intensities}
}

func syntheticReferences() (neon, acetonitrile spectrum.Spectrum) {
	neonCentres := make([]float64, len(NeonLinesNm))
	for i, nm := range NeonLinesNm {
		neonCentres[i] = truePixelOfWavelength(nm)
	}
	acnCentres := make([]float64, len(AcetonitrileShiftsCm1))
	for i, cm1 := range AcetonitrileShiftsCm1 {
		acnCentres[i] = truePixelOfShift(cm1)
	}
	return traceWithPeaksAt(testPixels, neonCentres), traceWithPeaksAt(testPixels, acnCentres)
}

func TestCalibrateRecoversKnownAxis(t *testing.T) {
	neon, acn := syntheticReferences()

	tr, err := Calibrator{}.Calibrate(neon, acn)
	require.NoError(t, err)
	require.NotNil(t, tr)

	assert.Equal(t, DefaultExcitationNm, tr.ExcitationNm)
	assert.Equal(t, testPixels, tr.PixelCount)

	// The coarse stage should recover the true dispersion closely.
	assert.InDelta(t, trueSlopeNm, tr.Coarse[1], 1e-4)
	assert.InDelta(t, trueInterceptNm, tr.Coarse[0], 0.2)

	// Each acetonitrile band must land on its reference shift.
	for _, cm1 := range AcetonitrileShiftsCm1 {
		got := tr.Shift(truePixelOfShift(cm1))
		assert.InDeltaf(t, cm1, got, 5.0, "band %g cm-1", cm1)
	}
}

func TestCalibrateDeterministic(t *testing.T) {
	neon, acn := syntheticReferences()

	first, err := Calibrator{}.Calibrate(neon, acn)
	require.NoError(t, err)
	second, err := Calibrator{}.Calibrate(neon, acn)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated calibration differs (-first +second):\n%s", diff)
	}
}

func TestCalibrateAxisMonotonic(t *testing.T) {
	neon, acn := syntheticReferences()
	tr, err := Calibrator{}.Calibrate(neon, acn)
	require.NoError(t, err)

	axis := tr.Axis(testPixels)
	for i := 1; i < len(axis); i++ {
		if axis[i] <= axis[i-1] {
			t.Fatalf("axis not strictly increasing at pixel %d: %g then %g", i-1, axis[i-1], axis[i])
		}
	}
}

func TestCalibrateInsufficientNeonPeaks(t *testing.T) {
	flat := spectrum.Spectrum{Intensities: make([]float64, testPixels)}
	_, acn := syntheticReferences()

	tr, err := Calibrator{}.Calibrate(flat, acn)
	assert.Nil(t, tr)
	assert.ErrorIs(t, err, peaks.ErrInsufficientPeaks)
}

func TestCalibrateSinglePeakNeon(t *testing.T) {
	oneNeonPeak := traceWithPeaksAt(testPixels, []float64{1000})
	_, acn := syntheticReferences()

	tr, err := Calibrator{}.Calibrate(oneNeonPeak, acn)
	assert.Nil(t, tr)
	assert.ErrorIs(t, err, peaks.ErrInsufficientPeaks)
}

func TestCalibrateNonMonotonicFit(t *testing.T) {
	// Three closely spaced peaks paired with the first three neon lines force
	// an order-2 fit whose vertex falls inside the detector range.
	neon := traceWithPeaksAt(2048, []float64{1000, 1100, 1200})

	tr, err := Calibrator{FitOrder: 2}.Calibrate(neon, neon)
	assert.Nil(t, tr)
	assert.ErrorIs(t, err, ErrNonMonotonicFit)
}

func TestCalibratePoorFitResiduals(t *testing.T) {
	neon, acn := syntheticReferences()

	// Peak quantization leaves small but nonzero residuals; an absurdly tight
	// limit must surface them instead of producing a transform.
	tr, err := Calibrator{CoarseResidualLimit: 1e-15}.Calibrate(neon, acn)
	assert.Nil(t, tr)
	assert.ErrorIs(t, err, ErrPoorFit)
}

func TestCalibrateLengthMismatch(t *testing.T) {
	neon, _ := syntheticReferences()
	short := spectrum.Spectrum{Intensities: make([]float64, 100)}
	_, err := Calibrator{}.Calibrate(neon, short)
	assert.Error(t, err)
}

func TestTransformRoundTrip(t *testing.T) {
	neon, acn := syntheticReferences()
	tr, err := Calibrator{}.Calibrate(neon, acn)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, tr.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	// Mapping outputs must be identical across a sampled grid of pixels.
	for p := 0; p < testPixels; p += 37 {
		px := float64(p)
		assert.Equal(t, tr.Shift(px), loaded.Shift(px), "pixel %d", p)
		assert.Equal(t, tr.Wavelength(px), loaded.Wavelength(px), "pixel %d", p)
	}
}

func TestLoadMissingCoefficients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	tr := &Transform{ExcitationNm: 532}
	require.NoError(t, tr.Save(path))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRamanShift(t *testing.T) {
	// The excitation wavelength itself is zero shift.
	assert.InDelta(t, 0, RamanShift(532, 532), 1e-12)

	// A known textbook value: 532 nm excitation, 559.3 nm emission is ~918 cm^-1.
	assert.InDelta(t, 918, RamanShift(559.313, 532), 1.0)
}
