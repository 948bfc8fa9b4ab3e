package surge

import "time"

// ActionSummary totals one action over the whole run. It is derived from the
// latest snapshot observed for that action, not an aggregate across the time
// series.
type ActionSummary struct {
	ActionName        string  `json:"actionName"`
	TotalRequests     uint64  `json:"totalRequests"`
	SuccessCount      uint64  `json:"successCount"`
	FailureCount      uint64  `json:"failureCount"`
	AverageMs         float64 `json:"averageResponseTimeMs"`
	P50Ms             float64 `json:"p50ResponseTimeMs"`
	P95Ms             float64 `json:"p95ResponseTimeMs"`
	P99Ms             float64 `json:"p99ResponseTimeMs"`
	MaxMs             float64 `json:"maxResponseTimeMs"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
}

// TestResult is the final record of one load-test run, handed to report
// generators once the runtime reaches COMPLETED.
type TestResult struct {
	StartTime       time.Time             `json:"startTime"`
	EndTime         time.Time             `json:"endTime"`
	TotalDuration   time.Duration         `json:"totalDuration"`
	ConfiguredUsers int                   `json:"configuredUsers"`
	ActionSummaries []ActionSummary       `json:"actionSummaries"`
	TimeSeries      []PoolMetricsSnapshot `json:"timeSeriesSnapshots"`
}

// ReportGenerator consumes a final TestResult. Generators are pure
// consumers with no callback into the core; the target path or destination
// is fixed at construction.
type ReportGenerator interface {
	Write(result *TestResult) error
}

// buildResult folds the accumulated snapshots into a TestResult. Summaries
// come from the latest snapshot per action; the full snapshot list is
// preserved as the time series.
func buildResult(start, end time.Time, users int, snapshots []PoolMetricsSnapshot) *TestResult {
	latest := make(map[string]PoolMetricsSnapshot)
	var order []string
	for _, snap := range snapshots {
		if _, seen := latest[snap.ActionName]; !seen {
			order = append(order, snap.ActionName)
		}
		latest[snap.ActionName] = snap
	}

	summaries := make([]ActionSummary, 0, len(order))
	for _, name := range order {
		snap := latest[name]
		summaries = append(summaries, ActionSummary{
			ActionName:        name,
			TotalRequests:     snap.CompletedCount + snap.FailedCount,
			SuccessCount:      snap.CompletedCount,
			FailureCount:      snap.FailedCount,
			AverageMs:         snap.AverageMs,
			P50Ms:             snap.P50Ms,
			P95Ms:             snap.P95Ms,
			P99Ms:             snap.P99Ms,
			MaxMs:             snap.MaxMs,
			RequestsPerSecond: snap.RequestsPerSecond,
		})
	}

	series := make([]PoolMetricsSnapshot, len(snapshots))
	copy(series, snapshots)

	return &TestResult{
		StartTime:       start,
		EndTime:         end,
		TotalDuration:   end.Sub(start),
		ConfiguredUsers: users,
		ActionSummaries: summaries,
		TimeSeries:      series,
	}
}
