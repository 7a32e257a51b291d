// Package results defines the output records the acquisition scheduler emits
// and the persistence collaborators that consume them.
package results

import (
	"context"
	"time"

	"github.com/raman-lab/autoraman/internal/spectrum"
	"github.com/raman-lab/autoraman/internal/stage"
)

// RunInfo describes one acquisition sweep.
type RunInfo struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	Positions    int       `json:"positions"`
	TimePoints   int       `json:"time_points"`
	Averages     int       `json:"averages"`
	IntervalSecs float64   `json:"time_interval_s"`
	PositionFile string    `json:"position_file,omitempty"`
}

// Result is one averaged spectrum plus its provenance, emitted per
// (position, time point).
type Result struct {
	RunID     string
	Position  stage.Position
	TimePoint int
	Captures  int
	Spectrum  spectrum.Spectrum
	Meta      Metadata
}

// Metadata is the structured record saved next to each spectrum.
type Metadata struct {
	PositionName string     `json:"PositionName"`
	TimePoint    int        `json:"TimePoint"`
	Averages     int        `json:"Number of averages"`
	PositionFile string     `json:"Stage position file,omitempty"`
	DateTime     string     `json:"DateTime"`
	Timelapse    Timelapse  `json:"Timelapse"`
	Processing   Processing `json:"Processing"`
	Calibration  CalInfo    `json:"Calibration"`
}

// Timelapse echoes the configured time series.
type Timelapse struct {
	NumTimePoints       int     `json:"NumTimePoints"`
	TimeIntervalSeconds float64 `json:"TimeIntervalSeconds"`
}

// Processing records the post-averaging filters applied before save.
type Processing struct {
	MedianFilter MedianFilterInfo `json:"MedianFilter"`
	ReverseX     bool             `json:"ReverseX"`
}

// MedianFilterInfo records whether and how the median filter ran.
type MedianFilterInfo struct {
	Applied    bool `json:"Applied"`
	KernelSize int  `json:"KernelSize"`
}

// CalInfo records whether the wavenumber axis was calibrated.
type CalInfo struct {
	Applied              bool    `json:"Applied"`
	ExcitationWavelength float64 `json:"ExcitationWavelength,omitempty"`
}

// Recorder consumes emitted results. Implementations must be safe to call
// sequentially from the scheduler loop; they are never called concurrently.
type Recorder interface {
	// BeginRun is called once before the sweep starts.
	BeginRun(ctx context.Context, run RunInfo) error
	// Record persists one result.
	Record(ctx context.Context, r Result) error
}

// Multi fans results out to several recorders in order, stopping at the
// first failure.
type Multi []Recorder

func (m Multi) BeginRun(ctx context.Context, run RunInfo) error {
	for _, r := range m {
		if err := r.BeginRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Record(ctx context.Context, res Result) error {
	for _, r := range m {
		if err := r.Record(ctx, res); err != nil {
			return err
		}
	}
	return nil
}
