// Command calibrate derives a pixel-to-Raman-shift calibration from a pair
// of reference spectra: a neon lamp emission capture for the coarse
// pixel-to-wavelength fit and an acetonitrile Raman capture for the fine
// shift correction. The resulting transform JSON is consumed by the acquire
// tool.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/raman-lab/autoraman/internal/calib"
	"github.com/raman-lab/autoraman/internal/peaks"
	"github.com/raman-lab/autoraman/internal/spectrum"
)

func main() {
	neonPath := flag.String("neon", "", "CSV spectrum of the neon calibration lamp (required)")
	acnPath := flag.String("acetonitrile", "", "CSV spectrum of the acetonitrile reference (required)")
	outPath := flag.String("out", "calibration.json", "Output path for the calibration transform")
	excitation := flag.Float64("excitation", calib.DefaultExcitationNm, "Excitation laser wavelength in nm")
	order := flag.Int("order", calib.DefaultFitOrder, "Polynomial order for both fit stages")
	kernel := flag.Int("kernel", peaks.DefaultKernelSize, "Median filter kernel for peak detection")
	flag.Parse()

	if *neonPath == "" || *acnPath == "" {
		fmt.Fprintln(os.Stderr, "calibrate: -neon and -acetonitrile are required")
		flag.Usage()
		os.Exit(2)
	}

	neon, err := spectrum.ReadCSV(*neonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
		os.Exit(1)
	}
	acn, err := spectrum.ReadCSV(*acnPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
		os.Exit(1)
	}

	cal := calib.Calibrator{
		ExcitationNm: *excitation,
		FitOrder:     *order,
		Detector:     peaks.Detector{KernelSize: *kernel},
	}
	transform, err := cal.Calibrate(neon, acn)
	if err != nil {
		switch {
		case errors.Is(err, peaks.ErrInsufficientPeaks):
			fmt.Fprintf(os.Stderr, "calibrate: %v\n(check that the reference captures are exposed well enough to resolve their lines)\n", err)
		case errors.Is(err, calib.ErrNonMonotonicFit):
			fmt.Fprintf(os.Stderr, "calibrate: %v\n(a lower -order usually fixes this)\n", err)
		default:
			fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
		}
		os.Exit(1)
	}

	if err := transform.Save(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("calibration written to %s\n", *outPath)
	fmt.Printf("  excitation: %g nm, fit order %d\n", transform.ExcitationNm, transform.FitOrder)
	fmt.Printf("  coarse coefficients: %v\n", transform.Coarse)
	fmt.Printf("  fine coefficients:   %v\n", transform.Fine)
	first, last := transform.Shift(0), transform.Shift(float64(neon.Len()-1))
	fmt.Printf("  shift axis: %.1f to %.1f cm^-1 over %d pixels\n", first, last, neon.Len())
}
