package spectrum

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// ReadCSV loads a spectrum from a two-column (Pixel, Intensity) or
// three-column (Pixel, Wavenumber, Intensity) CSV file. A non-numeric first
// row is treated as a header and skipped. Reference spectra for calibration
// are read with this same reader.
func ReadCSV(path string) (Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spectrum{}, fmt.Errorf("failed to open spectrum file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return Spectrum{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return Spectrum{}, fmt.Errorf("spectrum file %s is empty", path)
	}

	// Skip a header row if the first field is not numeric.
	if _, err := strconv.ParseFloat(rows[0][0], 64); err != nil {
		rows = rows[1:]
	}

	var s Spectrum
	for i, row := range rows {
		if len(row) < 2 {
			return Spectrum{}, fmt.Errorf("row %d of %s has %d columns, want at least 2", i+1, path, len(row))
		}
		intensityCol := len(row) - 1
		intensity, err := strconv.ParseFloat(row[intensityCol], 64)
		if err != nil {
			return Spectrum{}, fmt.Errorf("bad intensity on row %d of %s: %w", i+1, path, err)
		}
		s.Intensities = append(s.Intensities, intensity)
		if len(row) >= 3 {
			wn, err := strconv.ParseFloat(row[1], 64)
			if err != nil {
				return Spectrum{}, fmt.Errorf("bad wavenumber on row %d of %s: %w", i+1, path, err)
			}
			s.Wavenumbers = append(s.Wavenumbers, wn)
		}
	}
	return s, nil
}

// WriteCSV writes a spectrum as CSV. Uncalibrated spectra are written as
// two columns (Pixel, Intensity); calibrated spectra gain a Wavenumber
// column between them.
func WriteCSV(path string, s Spectrum) error {
	if s.Calibrated() && len(s.Wavenumbers) != s.Len() {
		return fmt.Errorf("wavenumber axis has %d entries, want %d", len(s.Wavenumbers), s.Len())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create spectrum file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Pixel", "Intensity"}
	if s.Calibrated() {
		header = []string{"Pixel", "Wavenumber", "Intensity"}
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, intensity := range s.Intensities {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(intensity, 'g', -1, 64),
		}
		if s.Calibrated() {
			row = []string{
				strconv.Itoa(i),
				strconv.FormatFloat(s.Wavenumbers[i], 'g', -1, 64),
				strconv.FormatFloat(intensity, 'g', -1, 64),
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
