// Package acquire implements the acquisition scheduling engine: it sweeps a
// set of stage positions across a timelapse series, drives the shutter around
// each capture burst, averages repeated captures, and emits one result per
// (position, time point) to the persistence collaborators.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raman-lab/autoraman/internal/spectrum"
	"github.com/raman-lab/autoraman/internal/stage"
)

// ErrShutterUnsafe is returned when the scheduler cannot guarantee the
// shutter is closed. Unlike a per-position failure this aborts the whole
// sweep: leaving the sample illuminated is not recoverable by skipping.
var ErrShutterUnsafe = errors.New("acquire: unable to confirm shutter closed")

// State names for the per-iteration machine. Surfaced for logging and the
// State accessor; transitions are internal to Run.
type State string

const (
	StateInit        State = "init"
	StatePositioning State = "positioning"
	StateShuttering  State = "shuttering"
	StateCapturing   State = "capturing"
	StateAveraging   State = "averaging"
	StateSaving      State = "saving"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

// Camera captures a single raw frame from the spectrometer. Implemented by
// the device layer or by SimCamera.
type Camera interface {
	CaptureOneFrame(ctx context.Context) (spectrum.Spectrum, error)
}

// Shutter is the subset of the shutter link the scheduler drives. The
// scheduler is the sole owner of the underlying connection; nothing else may
// write to it.
type Shutter interface {
	OpenShutter(ctx context.Context) error
	CloseShutter(ctx context.Context) error
}

// Plan describes one sweep. It is constructed once per run and never
// mutated; randomization permutes a copy of the position order, not the
// plan itself.
type Plan struct {
	Positions  []stage.Position
	TimePoints int
	// Interval is the wall-clock spacing between time points. Zero means
	// back-to-back rounds.
	Interval time.Duration
	// Averages is the number of captures reduced to one spectrum (K).
	Averages int
	// PositionFile is carried into run metadata only.
	PositionFile string
	// Shuffle, when set, permutes the position order once before the sweep
	// begins. Use stage.SeededShuffle for reproducible orders.
	Shuffle func([]stage.Position)
}

// Validate rejects plans that cannot run.
func (p Plan) Validate() error {
	if len(p.Positions) == 0 {
		return fmt.Errorf("acquire: plan has no positions")
	}
	if p.TimePoints < 1 {
		return fmt.Errorf("acquire: plan needs at least one time point, got %d", p.TimePoints)
	}
	if p.Averages < 1 {
		return fmt.Errorf("acquire: averaging count must be at least 1, got %d", p.Averages)
	}
	if p.Interval < 0 {
		return fmt.Errorf("acquire: negative time interval %s", p.Interval)
	}
	return nil
}
