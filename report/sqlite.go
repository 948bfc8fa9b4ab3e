package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/surgekit/surge"
)

// SQLiteArchive appends a finished run to a SQLite database so that report
// artifacts from successive runs can be compared. The schema is created on
// first write.
type SQLiteArchive struct {
	path string
}

var _ surge.ReportGenerator = (*SQLiteArchive)(nil)

// NewSQLiteArchive creates a generator archiving runs into the database at
// path.
func NewSQLiteArchive(path string) *SQLiteArchive {
	return &SQLiteArchive{path: path}
}

// Write implements surge.ReportGenerator.
func (a *SQLiteArchive) Write(result *surge.TestResult) error {
	db, err := sql.Open("sqlite", a.path)
	if err != nil {
		return fmt.Errorf("report: open %s: %w", a.path, err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := a.init(ctx, db); err != nil {
		return err
	}

	runID := surge.NewID()
	_, err = db.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, ended_at, duration_ms, configured_users)
		VALUES (?, ?, ?, ?, ?)`,
		runID,
		result.StartTime.UTC().Format(time.RFC3339Nano),
		result.EndTime.UTC().Format(time.RFC3339Nano),
		result.TotalDuration.Milliseconds(),
		result.ConfiguredUsers,
	)
	if err != nil {
		return fmt.Errorf("report: insert run: %w", err)
	}

	for _, s := range result.ActionSummaries {
		_, err = db.ExecContext(ctx, `INSERT INTO action_summaries
			(run_id, action, total, success, failure, avg_ms, p50_ms, p95_ms, p99_ms, max_ms, rps)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, s.ActionName, s.TotalRequests, s.SuccessCount, s.FailureCount,
			s.AverageMs, s.P50Ms, s.P95Ms, s.P99Ms, s.MaxMs, s.RequestsPerSecond,
		)
		if err != nil {
			return fmt.Errorf("report: insert summary: %w", err)
		}
	}

	// The time series goes in as one JSON document per run; consumers that
	// want per-snapshot rows can expand it with json_each.
	series, err := json.Marshal(result.TimeSeries)
	if err != nil {
		return fmt.Errorf("report: marshal series: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO time_series (run_id, snapshots) VALUES (?, ?)`,
		runID, string(series)); err != nil {
		return fmt.Errorf("report: insert series: %w", err)
	}
	return nil
}

func (a *SQLiteArchive) init(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			configured_users INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS action_summaries (
			run_id TEXT NOT NULL REFERENCES runs(id),
			action TEXT NOT NULL,
			total INTEGER NOT NULL,
			success INTEGER NOT NULL,
			failure INTEGER NOT NULL,
			avg_ms REAL NOT NULL,
			p50_ms REAL NOT NULL,
			p95_ms REAL NOT NULL,
			p99_ms REAL NOT NULL,
			max_ms REAL NOT NULL,
			rps REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS time_series (
			run_id TEXT NOT NULL REFERENCES runs(id),
			snapshots TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("report: init schema: %w", err)
		}
	}
	return nil
}
