package report

import (
	"encoding/json"

	"github.com/surgekit/surge"
)

// seriesAsJSON renders the snapshot time series with the stable field names
// of the SSE/REST payload, shared by the HTML report's embedded data.
func seriesAsJSON(series []surge.PoolMetricsSnapshot) (string, error) {
	if len(series) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(series)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
