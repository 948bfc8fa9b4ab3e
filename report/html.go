package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/surgekit/surge"
)

// HTMLWriter renders a self-contained HTML report. An optional markdown
// description of the test plan is rendered into the report intro.
type HTMLWriter struct {
	path        string
	title       string
	description string // markdown
}

var _ surge.ReportGenerator = (*HTMLWriter)(nil)

// HTMLWriterOption configures an HTMLWriter.
type HTMLWriterOption func(*HTMLWriter)

// WithTitle sets the report title. Defaults to "Load Test Report".
func WithTitle(title string) HTMLWriterOption {
	return func(w *HTMLWriter) { w.title = title }
}

// WithDescription sets a markdown description of the test plan, rendered
// into the report intro.
func WithDescription(md string) HTMLWriterOption {
	return func(w *HTMLWriter) { w.description = md }
}

// NewHTMLWriter creates a generator writing the report to path.
func NewHTMLWriter(path string, opts ...HTMLWriterOption) *HTMLWriter {
	w := &HTMLWriter{path: path, title: "Load Test Report"}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type htmlData struct {
	Title       string
	Description template.HTML
	Start       string
	End         string
	Duration    string
	Users       string
	Summaries   []htmlSummary
	SeriesJSON  template.JS
}

type htmlSummary struct {
	Action  string
	Total   string
	Success string
	Failure string
	Avg     string
	P50     string
	P95     string
	P99     string
	Max     string
	RPS     string
}

// Write implements surge.ReportGenerator.
func (w *HTMLWriter) Write(result *surge.TestResult) error {
	p := message.NewPrinter(language.English)

	var desc template.HTML
	if w.description != "" {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(w.description), &buf); err != nil {
			return fmt.Errorf("report: render description: %w", err)
		}
		desc = template.HTML(buf.String())
	}

	data := htmlData{
		Title:       w.title,
		Description: desc,
		Start:       result.StartTime.Format(time.RFC3339),
		End:         result.EndTime.Format(time.RFC3339),
		Duration:    result.TotalDuration.Round(time.Millisecond).String(),
		Users:       p.Sprintf("%d", result.ConfiguredUsers),
	}
	for _, s := range result.ActionSummaries {
		data.Summaries = append(data.Summaries, htmlSummary{
			Action:  s.ActionName,
			Total:   p.Sprintf("%d", s.TotalRequests),
			Success: p.Sprintf("%d", s.SuccessCount),
			Failure: p.Sprintf("%d", s.FailureCount),
			Avg:     p.Sprintf("%.2f", s.AverageMs),
			P50:     p.Sprintf("%.2f", s.P50Ms),
			P95:     p.Sprintf("%.2f", s.P95Ms),
			P99:     p.Sprintf("%.2f", s.P99Ms),
			Max:     p.Sprintf("%.2f", s.MaxMs),
			RPS:     p.Sprintf("%.2f", s.RequestsPerSecond),
		})
	}
	seriesJSON, err := seriesAsJSON(result.TimeSeries)
	if err != nil {
		return err
	}
	data.SeriesJSON = template.JS(seriesJSON)

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	if err := os.WriteFile(w.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", w.path, err)
	}
	return nil
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 70rem; color: #1c1c1c; }
h1 { border-bottom: 2px solid #4464ad; padding-bottom: .3rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #d0d0d0; padding: .4rem .7rem; text-align: right; }
th { background: #f0f3fa; }
td:first-child, th:first-child { text-align: left; }
.meta { color: #555; }
.fail { color: #b02a2a; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Description}}<div class="description">{{.Description}}</div>{{end}}
<p class="meta">
Start: {{.Start}} · End: {{.End}} · Duration: {{.Duration}} · Configured users: {{.Users}}
</p>
<h2>Action summaries</h2>
<table>
<tr><th>Action</th><th>Total</th><th>Success</th><th>Failure</th><th>Avg (ms)</th><th>p50</th><th>p95</th><th>p99</th><th>Max</th><th>req/s</th></tr>
{{range .Summaries}}
<tr><td>{{.Action}}</td><td>{{.Total}}</td><td>{{.Success}}</td><td class="fail">{{.Failure}}</td><td>{{.Avg}}</td><td>{{.P50}}</td><td>{{.P95}}</td><td>{{.P99}}</td><td>{{.Max}}</td><td>{{.RPS}}</td></tr>
{{end}}
</table>
<h2>Time series</h2>
<script>const timeSeries = {{.SeriesJSON}};</script>
<div id="series-note" class="meta">Snapshot series embedded as <code>timeSeries</code> ({{len .Summaries}} actions).</div>
</body>
</html>
`))
