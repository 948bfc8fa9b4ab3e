package report

import (
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/surgekit/surge"
)

func sampleResult() *surge.TestResult {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &surge.TestResult{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Minute),
		TotalDuration:   2 * time.Minute,
		ConfiguredUsers: 150,
		ActionSummaries: []surge.ActionSummary{
			{ActionName: "login", TotalRequests: 12000, SuccessCount: 11900, FailureCount: 100,
				AverageMs: 42.5, P50Ms: 38, P95Ms: 92, P99Ms: 140.25, MaxMs: 410, RequestsPerSecond: 100},
			{ActionName: "browse", TotalRequests: 500, SuccessCount: 500,
				AverageMs: 12, P99Ms: 30, RequestsPerSecond: 4.2},
		},
		TimeSeries: []surge.PoolMetricsSnapshot{
			{ActionName: "login", CompletedCount: 6000, FailedCount: 40, AverageMs: 41,
				P99Ms: 130, RequestsPerSecond: 99, Timestamp: start.Add(time.Minute)},
			{ActionName: "login", CompletedCount: 11900, FailedCount: 100, AverageMs: 42.5,
				P99Ms: 140.25, RequestsPerSecond: 100, Timestamp: start.Add(2 * time.Minute)},
		},
	}
}

// --- CSV ---

func TestCSVWriterSummaries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.csv")

	w := NewCSVWriter(path)
	if err := w.Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2 summaries", len(records))
	}
	if records[0][0] != "action" {
		t.Errorf("header starts %q, want action", records[0][0])
	}
	if records[1][0] != "login" || records[1][1] != "12000" {
		t.Errorf("login row = %v", records[1])
	}
	if records[1][7] != "140.25" {
		t.Errorf("login p99 = %q, want 140.25", records[1][7])
	}
}

func TestCSVWriterTimeSeries(t *testing.T) {
	dir := t.TempDir()
	summary := filepath.Join(dir, "summary.csv")
	series := filepath.Join(dir, "series.csv")

	w := NewCSVWriter(summary, WithTimeSeries(series))
	if err := w.Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := os.Open(series)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2 snapshots", len(records))
	}
}

// --- HTML ---

func TestHTMLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	w := NewHTMLWriter(path,
		WithTitle("Checkout soak"),
		WithDescription("A **soak test** of the checkout flow."),
	)
	if err := w.Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	html := string(data)

	for _, want := range []string{
		"<title>Checkout soak</title>",
		"<strong>soak test</strong>", // goldmark-rendered markdown
		"login",
		"12,000", // locale-aware grouping
		"140.25",
		"const timeSeries =",
		`"actionName":"login"`, // stable snapshot payload names
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestHTMLWriterNoDescription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	if err := NewHTMLWriter(path).Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), `class="description"`) {
		t.Error("empty description rendered a description block")
	}
}

// --- SQLite ---

func TestSQLiteArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	a := NewSQLiteArchive(path)

	if err := a.Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// A second run appends.
	if err := a.Write(sampleResult()); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var runs int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}

	var summaries int
	if err := db.QueryRow(`SELECT COUNT(*) FROM action_summaries WHERE action = 'login'`).Scan(&summaries); err != nil {
		t.Fatalf("count summaries: %v", err)
	}
	if summaries != 2 {
		t.Errorf("login summaries = %d, want 2", summaries)
	}

	var total int
	if err := db.QueryRow(`SELECT total FROM action_summaries WHERE action = 'login' LIMIT 1`).Scan(&total); err != nil {
		t.Fatalf("select total: %v", err)
	}
	if total != 12000 {
		t.Errorf("login total = %d, want 12000", total)
	}
}
