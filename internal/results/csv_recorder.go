package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raman-lab/autoraman/internal/spectrum"
)

// CSVRecorder writes each result as a <position>_<timepoint>.csv spectrum
// plus a matching .json metadata file in one output directory.
type CSVRecorder struct {
	Dir string
}

// NewCSVRecorder creates the output directory if needed.
func NewCSVRecorder(dir string) (*CSVRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVRecorder{Dir: dir}, nil
}

// BeginRun writes the run description for later bookkeeping.
func (c *CSVRecorder) BeginRun(_ context.Context, run RunInfo) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Dir, "run.json"), data, 0o644)
}

// Record writes the spectrum CSV and its metadata record.
func (c *CSVRecorder) Record(_ context.Context, r Result) error {
	base := fmt.Sprintf("%s_%d", r.Position.Name, r.TimePoint)

	if err := spectrum.WriteCSV(filepath.Join(c.Dir, base+".csv"), r.Spectrum); err != nil {
		return fmt.Errorf("failed to save spectrum for %s: %w", base, err)
	}

	meta, err := json.MarshalIndent(r.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", base, err)
	}
	if err := os.WriteFile(filepath.Join(c.Dir, base+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("failed to save metadata for %s: %w", base, err)
	}
	return nil
}
