package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raman-lab/autoraman/internal/calib"
	"github.com/raman-lab/autoraman/internal/monitoring"
	"github.com/raman-lab/autoraman/internal/results"
	"github.com/raman-lab/autoraman/internal/spectrum"
	"github.com/raman-lab/autoraman/internal/stage"
	"github.com/raman-lab/autoraman/internal/timeutil"
)

const (
	// DefaultCommandRetries is the number of attempts for each shutter
	// command before the iteration is abandoned.
	DefaultCommandRetries = 3
	// DefaultCaptureRetries is the number of attempts for each individual
	// camera frame.
	DefaultCaptureRetries = 3

	// safetyCloseTimeout bounds the best-effort shutter close issued when a
	// run aborts with the shutter possibly open.
	safetyCloseTimeout = 10 * time.Second
)

// SchedulerConfig carries the per-run tunables. The zero value is usable;
// retry counts default and processing steps are skipped.
type SchedulerConfig struct {
	// CommandRetries is the attempt budget per shutter command. Values
	// below 1 fall back to DefaultCommandRetries.
	CommandRetries int
	// CaptureRetries is the attempt budget per camera frame. Values below
	// 1 fall back to DefaultCaptureRetries.
	CaptureRetries int

	// KernelSize enables the post-averaging median filter when 3 or more.
	KernelSize int
	// ReverseX flips the averaged spectrum before save, for sensors wired
	// with the axis mirrored.
	ReverseX bool
	// Transform, when set, attaches a calibrated wavenumber axis to every
	// saved spectrum.
	Transform *calib.Transform

	// Clock defaults to the wall clock. Tests substitute a mock.
	Clock timeutil.Clock
}

// Scheduler runs one acquisition sweep. Construct with New; a Scheduler is
// single-use.
type Scheduler struct {
	plan    Plan
	camera  Camera
	stage   stage.Stage
	shutter Shutter
	rec     results.Recorder
	cfg     SchedulerConfig

	runID string

	mu     sync.Mutex
	state  State
	failed []string
}

// New validates the plan and prepares a scheduler with a fresh run ID.
func New(plan Plan, camera Camera, st stage.Stage, sh Shutter, rec results.Recorder, cfg SchedulerConfig) (*Scheduler, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if camera == nil || st == nil || sh == nil || rec == nil {
		return nil, fmt.Errorf("acquire: camera, stage, shutter and recorder are all required")
	}
	if cfg.CommandRetries < 1 {
		cfg.CommandRetries = DefaultCommandRetries
	}
	if cfg.CaptureRetries < 1 {
		cfg.CaptureRetries = DefaultCaptureRetries
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Scheduler{
		plan:    plan,
		camera:  camera,
		stage:   st,
		shutter: sh,
		rec:     rec,
		cfg:     cfg,
		runID:   uuid.NewString(),
		state:   StateInit,
	}, nil
}

// RunID returns the identifier stamped on every record of this run.
func (s *Scheduler) RunID() string { return s.runID }

// State reports the current machine state. Safe to call from other
// goroutines while Run is in flight.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailedIterations lists the (position, time point) iterations that were
// skipped after exhausting their retry budgets. Empty after a clean run.
func (s *Scheduler) FailedIterations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failed...)
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Scheduler) addFailed(desc string) {
	s.mu.Lock()
	s.failed = append(s.failed, desc)
	s.mu.Unlock()
}

// Run executes the sweep: for each time point in order, visit every position
// and emit one averaged result. A failed iteration is logged and skipped;
// the sweep aborts only on cancellation, a recorder setup failure, or when
// the shutter cannot be confirmed closed. The shutter is left closed on
// every exit path, including cancellation.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	positions := append([]stage.Position(nil), s.plan.Positions...)
	if s.plan.Shuffle != nil {
		s.plan.Shuffle(positions)
	}

	start := s.cfg.Clock.Now()
	run := results.RunInfo{
		RunID:        s.runID,
		StartedAt:    start,
		Positions:    len(positions),
		TimePoints:   s.plan.TimePoints,
		Averages:     s.plan.Averages,
		IntervalSecs: s.plan.Interval.Seconds(),
		PositionFile: s.plan.PositionFile,
	}
	if err := s.rec.BeginRun(ctx, run); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("failed to begin run %s: %w", s.runID, err)
	}

	defer func() {
		if err == nil {
			return
		}
		// The run is aborting mid-iteration and the shutter may still be
		// open. Close it on a fresh context; the command is idempotent so
		// a redundant close is harmless.
		s.setState(StateFailed)
		cctx, cancel := context.WithTimeout(context.Background(), safetyCloseTimeout)
		defer cancel()
		if cerr := s.withRetries(cctx, "shutter close", s.shutter.CloseShutter); cerr != nil {
			monitoring.Logf("acquire: safety close failed: %v", cerr)
			err = errors.Join(err, ErrShutterUnsafe)
		}
	}()

	monitoring.Logf("acquire: run %s started: %d positions x %d time points x %d averages",
		s.runID, len(positions), s.plan.TimePoints, s.plan.Averages)

	for t := 0; t < s.plan.TimePoints; t++ {
		if err := s.waitUntil(ctx, start.Add(time.Duration(t)*s.plan.Interval)); err != nil {
			return err
		}
		for _, pos := range positions {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.acquireOne(ctx, pos, t); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, ErrShutterUnsafe) || errors.Is(err, spectrum.ErrEmptyAccumulator) {
					return err
				}
				monitoring.Logf("acquire: skipping position %q at time point %d: %v", pos.Name, t, err)
				s.addFailed(fmt.Sprintf("%s@t%d: %v", pos.Name, t, err))
			}
		}
	}

	s.setState(StateComplete)
	if n := len(s.FailedIterations()); n > 0 {
		monitoring.Logf("acquire: run %s finished with %d skipped iterations", s.runID, n)
	} else {
		monitoring.Logf("acquire: run %s finished", s.runID)
	}
	return nil
}

// acquireOne handles a single (position, time point) iteration. The shutter
// is opened once before the capture burst and closed once after it, even
// when a capture or save step fails. A close failure is escalated to
// ErrShutterUnsafe.
func (s *Scheduler) acquireOne(ctx context.Context, pos stage.Position, t int) error {
	s.setState(StatePositioning)
	if err := s.stage.MoveTo(ctx, pos); err != nil {
		return fmt.Errorf("failed to move to %q: %w", pos.Name, err)
	}

	s.setState(StateShuttering)
	if err := s.withRetries(ctx, "shutter open", s.shutter.OpenShutter); err != nil {
		return fmt.Errorf("failed to open shutter: %w", err)
	}

	capErr := s.captureSeries(ctx, pos, t)

	s.setState(StateShuttering)
	if err := s.withRetries(ctx, "shutter close", s.shutter.CloseShutter); err != nil {
		return fmt.Errorf("%w: %v", ErrShutterUnsafe, err)
	}
	return capErr
}

// captureSeries captures K frames, averages them, applies processing and
// calibration, and hands the result to the recorder.
func (s *Scheduler) captureSeries(ctx context.Context, pos stage.Position, t int) error {
	s.setState(StateCapturing)
	var avg spectrum.Averager
	for i := 0; i < s.plan.Averages; i++ {
		frame, err := s.captureFrame(ctx)
		if err != nil {
			return fmt.Errorf("capture %d of %d failed: %w", i+1, s.plan.Averages, err)
		}
		if err := avg.Accumulate(spectrum.CaptureResult{
			PositionName: pos.Name,
			TimePoint:    t,
			CaptureIndex: i,
			Spectrum:     frame,
		}); err != nil {
			return err
		}
	}

	s.setState(StateAveraging)
	mean, err := avg.Finalize()
	if err != nil {
		return err
	}
	if s.cfg.KernelSize >= 3 {
		mean.Intensities = spectrum.MedianFilter(mean.Intensities, s.cfg.KernelSize)
	}
	if s.cfg.ReverseX {
		spectrum.Reverse(mean.Intensities)
	}
	if s.cfg.Transform != nil {
		mean.Wavenumbers = s.cfg.Transform.Axis(mean.Len())
	}

	s.setState(StateSaving)
	res := results.Result{
		RunID:     s.runID,
		Position:  pos,
		TimePoint: t,
		Captures:  s.plan.Averages,
		Spectrum:  mean,
		Meta:      s.metadata(pos, t),
	}
	if err := s.rec.Record(ctx, res); err != nil {
		return fmt.Errorf("failed to save result for %q at time point %d: %w", pos.Name, t, err)
	}
	return nil
}

func (s *Scheduler) captureFrame(ctx context.Context) (spectrum.Spectrum, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.CaptureRetries; attempt++ {
		frame, err := s.camera.CaptureOneFrame(ctx)
		if err == nil {
			return frame, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		monitoring.Logf("acquire: capture attempt %d/%d failed: %v", attempt, s.cfg.CaptureRetries, err)
	}
	return spectrum.Spectrum{}, lastErr
}

// withRetries runs op up to the command retry budget, reissuing the same
// command on failure.
func (s *Scheduler) withRetries(ctx context.Context, what string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.CommandRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		monitoring.Logf("acquire: %s attempt %d/%d failed: %v", what, attempt, s.cfg.CommandRetries, lastErr)
	}
	return lastErr
}

// waitUntil blocks until target. Targets at or before now return
// immediately; a time point is never scheduled into the past.
func (s *Scheduler) waitUntil(ctx context.Context, target time.Time) error {
	d := s.cfg.Clock.Until(target)
	if d <= 0 {
		return ctx.Err()
	}
	timer := s.cfg.Clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) metadata(pos stage.Position, t int) results.Metadata {
	m := results.Metadata{
		PositionName: pos.Name,
		TimePoint:    t,
		Averages:     s.plan.Averages,
		PositionFile: s.plan.PositionFile,
		DateTime:     s.cfg.Clock.Now().Format("2006-01-02 15:04:05"),
		Timelapse: results.Timelapse{
			NumTimePoints:       s.plan.TimePoints,
			TimeIntervalSeconds: s.plan.Interval.Seconds(),
		},
		Processing: results.Processing{
			MedianFilter: results.MedianFilterInfo{
				Applied:    s.cfg.KernelSize >= 3,
				KernelSize: s.cfg.KernelSize,
			},
			ReverseX: s.cfg.ReverseX,
		},
	}
	if s.cfg.Transform != nil {
		m.Calibration = results.CalInfo{
			Applied:              true,
			ExcitationWavelength: s.cfg.Transform.ExcitationNm,
		}
	}
	return m
}
