// Package report renders a final surge.TestResult into artifacts: an HTML
// report, CSV exports, and a SQLite archive. Generators are pure consumers;
// the target path is fixed at construction.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/surgekit/surge"
)

// CSVWriter writes the per-action summaries to one CSV file and, when a
// series path is set, the snapshot time series to a second one.
type CSVWriter struct {
	summaryPath string
	seriesPath  string
}

var _ surge.ReportGenerator = (*CSVWriter)(nil)

// CSVWriterOption configures a CSVWriter.
type CSVWriterOption func(*CSVWriter)

// WithTimeSeries also writes the full snapshot time series to path.
func WithTimeSeries(path string) CSVWriterOption {
	return func(w *CSVWriter) { w.seriesPath = path }
}

// NewCSVWriter creates a generator writing action summaries to summaryPath.
func NewCSVWriter(summaryPath string, opts ...CSVWriterOption) *CSVWriter {
	w := &CSVWriter{summaryPath: summaryPath}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements surge.ReportGenerator.
func (w *CSVWriter) Write(result *surge.TestResult) error {
	if err := w.writeSummaries(result); err != nil {
		return err
	}
	if w.seriesPath != "" {
		return w.writeSeries(result)
	}
	return nil
}

func (w *CSVWriter) writeSummaries(result *surge.TestResult) error {
	f, err := os.Create(w.summaryPath)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", w.summaryPath, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{"action", "total", "success", "failure", "avg_ms", "p50_ms", "p95_ms", "p99_ms", "max_ms", "rps"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, s := range result.ActionSummaries {
		rec := []string{
			s.ActionName,
			strconv.FormatUint(s.TotalRequests, 10),
			strconv.FormatUint(s.SuccessCount, 10),
			strconv.FormatUint(s.FailureCount, 10),
			formatMs(s.AverageMs),
			formatMs(s.P50Ms),
			formatMs(s.P95Ms),
			formatMs(s.P99Ms),
			formatMs(s.MaxMs),
			formatMs(s.RequestsPerSecond),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *CSVWriter) writeSeries(result *surge.TestResult) error {
	f, err := os.Create(w.seriesPath)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", w.seriesPath, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{"timestamp", "action", "active", "waiting", "completed", "failed", "avg_ms", "p99_ms", "rps"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, snap := range result.TimeSeries {
		rec := []string{
			snap.Timestamp.Format(time.RFC3339),
			snap.ActionName,
			strconv.FormatInt(snap.ActiveCount, 10),
			strconv.FormatInt(snap.WaitingCount, 10),
			strconv.FormatUint(snap.CompletedCount, 10),
			strconv.FormatUint(snap.FailedCount, 10),
			formatMs(snap.AverageMs),
			formatMs(snap.P99Ms),
			formatMs(snap.RequestsPerSecond),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
