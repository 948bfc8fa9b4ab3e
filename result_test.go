package surge

import (
	"testing"
	"time"
)

func TestBuildResultUsesLatestSnapshotPerAction(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	end := time.Now()
	snaps := []PoolMetricsSnapshot{
		{ActionName: "a", CompletedCount: 10, FailedCount: 1, AverageMs: 5, P99Ms: 9, RequestsPerSecond: 2},
		{ActionName: "b", CompletedCount: 3, FailedCount: 0, AverageMs: 7},
		{ActionName: "a", CompletedCount: 50, FailedCount: 2, AverageMs: 6, P99Ms: 12, RequestsPerSecond: 4},
	}

	result := buildResult(start, end, 25, snaps)

	if result.ConfiguredUsers != 25 {
		t.Errorf("ConfiguredUsers = %d, want 25", result.ConfiguredUsers)
	}
	if result.TotalDuration != end.Sub(start) {
		t.Errorf("TotalDuration = %v, want %v", result.TotalDuration, end.Sub(start))
	}
	if len(result.ActionSummaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(result.ActionSummaries))
	}

	// First-appearance order, latest values.
	a := result.ActionSummaries[0]
	if a.ActionName != "a" {
		t.Fatalf("first summary = %q, want a", a.ActionName)
	}
	if a.TotalRequests != 52 || a.SuccessCount != 50 || a.FailureCount != 2 {
		t.Errorf("a totals = %d/%d/%d, want 52/50/2", a.TotalRequests, a.SuccessCount, a.FailureCount)
	}
	if a.P99Ms != 12 || a.RequestsPerSecond != 4 {
		t.Errorf("a p99/rps = %.1f/%.1f, want latest snapshot values 12/4", a.P99Ms, a.RequestsPerSecond)
	}

	if len(result.TimeSeries) != 3 {
		t.Errorf("TimeSeries = %d snapshots, want all 3 preserved", len(result.TimeSeries))
	}
}

func TestBuildResultEmptySeries(t *testing.T) {
	result := buildResult(time.Now(), time.Now(), 1, nil)
	if len(result.ActionSummaries) != 0 {
		t.Errorf("summaries = %d, want 0", len(result.ActionSummaries))
	}
	if len(result.TimeSeries) != 0 {
		t.Errorf("TimeSeries = %d, want 0", len(result.TimeSeries))
	}
}
