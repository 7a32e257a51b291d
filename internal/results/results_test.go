package results

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/raman-lab/autoraman/internal/spectrum"
	"github.com/raman-lab/autoraman/internal/stage"
)

func sampleResult() Result {
	return Result{
		RunID:     "run-1",
		Position:  stage.Position{Name: "Well_A1", X: 10, Y: 20},
		TimePoint: 2,
		Captures:  4,
		Spectrum: spectrum.Spectrum{
			Intensities: []float64{1, 2, 3},
			Wavenumbers: []float64{900, 1000, 1100},
		},
		Meta: Metadata{
			PositionName: "Well_A1",
			TimePoint:    2,
			Averages:     4,
			PositionFile: "plate_positions.pos",
			DateTime:     "2025-06-01 12:00:00",
			Timelapse:    Timelapse{NumTimePoints: 3, TimeIntervalSeconds: 60},
			Processing: Processing{
				MedianFilter: MedianFilterInfo{Applied: true, KernelSize: 5},
			},
			Calibration: CalInfo{Applied: true, ExcitationWavelength: 532},
		},
	}
}

func TestCSVRecorderWritesSpectrumAndMetadata(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewCSVRecorder(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("NewCSVRecorder: %v", err)
	}

	ctx := context.Background()
	run := RunInfo{RunID: "run-1", StartedAt: time.Now(), Positions: 1, TimePoints: 3, Averages: 4}
	if err := rec.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	res := sampleResult()
	if err := rec.Record(ctx, res); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Spectrum round-trips through the CSV layer.
	loaded, err := spectrum.ReadCSV(filepath.Join(rec.Dir, "Well_A1_2.csv"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if diff := cmp.Diff(res.Spectrum, loaded); diff != "" {
		t.Errorf("spectrum mismatch (-want +got):\n%s", diff)
	}

	// Metadata round-trips through JSON.
	raw, err := os.ReadFile(filepath.Join(rec.Dir, "Well_A1_2.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if diff := cmp.Diff(res.Meta, meta); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	// The sidecar keeps the historical key names downstream tooling greps for.
	var keys map[string]any
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("parse metadata keys: %v", err)
	}
	for _, k := range []string{"Number of averages", "Stage position file"} {
		if _, ok := keys[k]; !ok {
			t.Errorf("metadata missing key %q", k)
		}
	}

	// The run record exists as well.
	if _, err := os.Stat(filepath.Join(rec.Dir, "run.json")); err != nil {
		t.Errorf("run.json missing: %v", err)
	}
}

type countingRecorder struct {
	begins  int
	records int
	fail    bool
}

func (c *countingRecorder) BeginRun(context.Context, RunInfo) error {
	c.begins++
	if c.fail {
		return errors.New("begin failed")
	}
	return nil
}

func (c *countingRecorder) Record(context.Context, Result) error {
	c.records++
	if c.fail {
		return errors.New("record failed")
	}
	return nil
}

func TestMultiFansOut(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	m := Multi{a, b}

	ctx := context.Background()
	if err := m.BeginRun(ctx, RunInfo{}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := m.Record(ctx, Result{}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if a.records != 1 || b.records != 1 {
		t.Errorf("records = %d, %d; want 1, 1", a.records, b.records)
	}
}

func TestMultiStopsAtFirstFailure(t *testing.T) {
	a := &countingRecorder{fail: true}
	b := &countingRecorder{}
	m := Multi{a, b}

	if err := m.Record(context.Background(), Result{}); err == nil {
		t.Fatal("expected error from failing recorder")
	}
	if b.records != 0 {
		t.Errorf("second recorder ran %d times after failure, want 0", b.records)
	}
}
