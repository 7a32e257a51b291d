package peaks

import (
	"errors"
	"math"
	"testing"
)

// gaussianTrace builds a synthetic trace with unit-height Gaussian peaks at
// the given centres.
func gaussianTrace(n int, centres []float64, sigma float64) []float64 {
	trace := make([]float64, n)
	for i := range trace {
		for _, c := range centres {
			d := (float64(i) - c) / sigma
			trace[i] += math.Exp(-d * d / 2)
		}
	}
	return trace
}

func TestDetectWellSeparatedPeaks(t *testing.T) {
	centres := []float64{100, 300, 550, 800}
	trace := gaussianTrace(1024, centres, 3)

	got := Detector{}.Detect(trace, len(centres))
	if len(got) != len(centres) {
		t.Fatalf("detected %d peaks, want %d (%v)", len(got), len(centres), got)
	}
	for i, idx := range got {
		if math.Abs(float64(idx)-centres[i]) > 2 {
			t.Errorf("peak %d at %d, want near %g", i, idx, centres[i])
		}
	}
}

func TestDetectIgnoresNoiseBumps(t *testing.T) {
	trace := gaussianTrace(512, []float64{256}, 4)
	// Shallow ripple well below the 5% prominence threshold.
	for i := range trace {
		trace[i] += 0.01 * math.Sin(float64(i))
	}

	got := Detector{}.Detect(trace, 10)
	if len(got) != 1 {
		t.Fatalf("detected %d peaks, want 1 (%v)", len(got), got)
	}
	if math.Abs(float64(got[0])-256) > 2 {
		t.Errorf("peak at %d, want near 256", got[0])
	}
}

func TestDetectKeepsMostProminent(t *testing.T) {
	n := 1024
	trace := make([]float64, n)
	tall := gaussianTrace(n, []float64{200, 600}, 3)
	short := gaussianTrace(n, []float64{400, 800}, 3)
	for i := range trace {
		trace[i] = tall[i] + 0.3*short[i]
	}

	got := Detector{}.Detect(trace, 2)
	if len(got) != 2 {
		t.Fatalf("detected %d peaks, want 2 (%v)", len(got), got)
	}
	for i, want := range []float64{200, 600} {
		if math.Abs(float64(got[i])-want) > 2 {
			t.Errorf("peak %d at %d, want near %g", i, got[i], want)
		}
	}
}

func TestDetectFlatTrace(t *testing.T) {
	trace := make([]float64, 256)
	if got := (Detector{}).Detect(trace, 5); len(got) != 0 {
		t.Errorf("detected %d peaks in flat trace, want 0", len(got))
	}
}

func TestDetectPlateauMidpoint(t *testing.T) {
	// A flat-topped peak: detection should land on the plateau, not skip it.
	trace := []float64{0, 0, 1, 3, 3, 3, 1, 0, 0}
	got := Detector{KernelSize: 1}.Detect(trace, 1)
	if len(got) != 1 {
		t.Fatalf("detected %d peaks, want 1", len(got))
	}
	if got[0] != 4 {
		t.Errorf("plateau peak at %d, want 4", got[0])
	}
}

func TestMatchExactAssignment(t *testing.T) {
	detected := []float64{10, 20, 30}
	reference := []float64{585.249, 588.189, 594.483}

	pairs, err := Match(detected, reference)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("got %d pairs, want 3", len(pairs))
	}
	for i, p := range pairs {
		if p.Detected != detected[i] || p.Reference != reference[i] {
			t.Errorf("pair %d = %+v, want {%g %g}", i, p, detected[i], reference[i])
		}
	}
}

func TestMatchDropsUnmatchedDetections(t *testing.T) {
	pairs, err := Match([]float64{1, 2, 3, 4, 5}, []float64{100, 200})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(pairs) != 2 {
		t.Errorf("got %d pairs, want 2", len(pairs))
	}
}

func TestMatchDropsUnmatchedReferences(t *testing.T) {
	pairs, err := Match([]float64{1, 2}, []float64{100, 200, 300, 400})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(pairs) != 2 {
		t.Errorf("got %d pairs, want 2", len(pairs))
	}
}

func TestMatchInsufficient(t *testing.T) {
	if _, err := Match([]float64{1}, []float64{100, 200}); !errors.Is(err, ErrInsufficientPeaks) {
		t.Errorf("Match with one detection = %v, want ErrInsufficientPeaks", err)
	}
	if _, err := Match(nil, []float64{100, 200}); !errors.Is(err, ErrInsufficientPeaks) {
		t.Errorf("Match with no detections = %v, want ErrInsufficientPeaks", err)
	}
}
