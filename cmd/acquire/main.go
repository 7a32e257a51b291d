// Command acquire runs one automated acquisition sweep: it visits every
// stage position at every time point, drives the laser shutter around each
// capture burst, and writes one averaged spectrum per (position, time point)
// as CSV plus metadata, optionally mirrored into a SQLite run database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raman-lab/autoraman/internal/acqdb"
	"github.com/raman-lab/autoraman/internal/acquire"
	"github.com/raman-lab/autoraman/internal/calib"
	"github.com/raman-lab/autoraman/internal/config"
	"github.com/raman-lab/autoraman/internal/monitoring"
	"github.com/raman-lab/autoraman/internal/results"
	"github.com/raman-lab/autoraman/internal/shutterlink"
	"github.com/raman-lab/autoraman/internal/stage"
)

func main() {
	profilePath := flag.String("profile", "", "Path to a JSON acquisition profile (optional)")
	positionsPath := flag.String("positions", "", "Micro-Manager position-list JSON file (required)")
	outDir := flag.String("out", "results", "Directory for CSV spectra and metadata")
	dbPath := flag.String("db", "", "SQLite run database path (optional)")
	calibPath := flag.String("calibration", "", "Calibration transform JSON from the calibrate tool (optional)")
	timePoints := flag.Int("time-points", 1, "Number of time points in the sweep")
	interval := flag.Duration("interval", 0, "Wall-clock spacing between time points")
	averages := flag.Int("averages", 1, "Captures averaged into each saved spectrum")
	shuffleSeed := flag.Int64("shuffle-seed", 0, "Randomize position order with this seed (0 keeps file order)")
	simulate := flag.Bool("simulate", false, "Use simulated spectrometer and shutter regardless of profile")
	flag.Parse()

	if *positionsPath == "" {
		fmt.Fprintln(os.Stderr, "acquire: -positions is required")
		flag.Usage()
		os.Exit(2)
	}

	profile := config.DefaultProfile()
	if *profilePath != "" {
		var err error
		profile, err = config.Load(*profilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
			os.Exit(1)
		}
	}

	positions, err := stage.LoadPositionList(*positionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
		os.Exit(1)
	}

	var transform *calib.Transform
	if *calibPath != "" {
		transform, err = calib.Load(*calibPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simShutter := *simulate || profile.GetSimulateShutter()
	simCamera := *simulate || profile.GetSimulateSpectrometer()

	var port shutterlink.Porter
	if simShutter {
		port = shutterlink.NewSimulatedPort()
	} else {
		port, err = shutterlink.OpenPort(profile.GetShutterPortPath(), profile.GetShutterPort())
		if err != nil {
			fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
			os.Exit(1)
		}
	}
	link := shutterlink.NewLink(port, shutterlink.WithTimeout(profile.GetShutterTimeout()))
	defer link.Close()
	go func() {
		if err := link.Monitor(ctx); err != nil && ctx.Err() == nil {
			monitoring.Logf("acquire: shutter link monitor stopped: %v", err)
		}
	}()

	var camera acquire.Camera
	if simCamera {
		camera = acquire.NewSimCamera(time.Now().UnixNano())
	} else {
		fmt.Fprintf(os.Stderr, "acquire: spectrometer %q is not supported by this build; set simulate_spectrometer or pass -simulate\n",
			profile.GetSpectrometerName())
		os.Exit(1)
	}

	csvRec, err := results.NewCSVRecorder(*outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
		os.Exit(1)
	}
	recorders := results.Multi{csvRec}
	if *dbPath != "" {
		db, err := acqdb.Open(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		recorders = append(recorders, db)
	}

	plan := acquire.Plan{
		Positions:    positions,
		TimePoints:   *timePoints,
		Interval:     *interval,
		Averages:     *averages,
		PositionFile: *positionsPath,
	}
	if *shuffleSeed != 0 {
		plan.Shuffle = stage.SeededShuffle(*shuffleSeed)
	}

	kernel := 0
	if profile.GetApplyMedianFilter() {
		kernel = profile.GetKernelSize()
	}
	sched, err := acquire.New(plan, camera, &stage.SimStage{}, link, recorders, acquire.SchedulerConfig{
		CommandRetries: profile.GetCommandRetries(),
		CaptureRetries: profile.GetCaptureRetries(),
		KernelSize:     kernel,
		ReverseX:       profile.GetReverseX(),
		Transform:      transform,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
		os.Exit(1)
	}

	if err := sched.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "acquire: run %s failed: %v\n", sched.RunID(), err)
		os.Exit(1)
	}
	for _, f := range sched.FailedIterations() {
		fmt.Fprintf(os.Stderr, "acquire: skipped %s\n", f)
	}
	fmt.Printf("run %s complete: results in %s\n", sched.RunID(), *outDir)
}
