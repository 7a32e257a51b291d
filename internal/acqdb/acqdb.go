// Package acqdb persists acquisition runs and per-result summaries in a local
// SQLite database so completed surveys can be queried without re-reading the
// flat output files.
package acqdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gonum.org/v1/gonum/floats"
	_ "modernc.org/sqlite"

	"github.com/raman-lab/autoraman/internal/results"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the results database. It implements results.Recorder.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the database at path and applies any
// pending schema migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}

	driver, err := sqlite.WithInstance(sqlDB, &sqlite.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to prepare migrations: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		sqlDB.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &DB{sqlDB}, nil
}

// BeginRun records the run description.
func (db *DB) BeginRun(ctx context.Context, run results.RunInfo) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, positions, time_points, averages, time_interval_s, position_file)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Positions, run.TimePoints, run.Averages, run.IntervalSecs, run.PositionFile,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}
	return nil
}

// Record stores a per-result summary row. The spectrum itself lives in the
// CSV output; the database keeps enough to find and rank results.
func (db *DB) Record(ctx context.Context, r results.Result) error {
	var peak float64
	if r.Spectrum.Len() > 0 {
		peak = floats.Max(r.Spectrum.Intensities)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO results (run_id, position, time_point, captures, calibrated, excitation_nm, pixels, peak_intensity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Position.Name, r.TimePoint, r.Captures,
		r.Meta.Calibration.Applied, r.Meta.Calibration.ExcitationWavelength,
		r.Spectrum.Len(), peak,
	)
	if err != nil {
		return fmt.Errorf("failed to record result %s/%d: %w", r.Position.Name, r.TimePoint, err)
	}
	return nil
}

// ResultRow is one stored result summary.
type ResultRow struct {
	Position      string
	TimePoint     int
	Captures      int
	Calibrated    bool
	Pixels        int
	PeakIntensity float64
}

// ResultsForRun returns the stored summaries for one run, ordered by time
// point and then position name.
func (db *DB) ResultsForRun(ctx context.Context, runID string) ([]ResultRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT position, time_point, captures, calibrated, pixels, peak_intensity
		FROM results WHERE run_id = ?
		ORDER BY time_point, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.Position, &r.TimePoint, &r.Captures, &r.Calibrated, &r.Pixels, &r.PeakIntensity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRuns returns the number of recorded runs.
func (db *DB) CountRuns(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}
