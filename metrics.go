package surge

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// PoolMetricsSnapshot is one point-in-time per-action metrics record. Field
// names are part of the stable JSON payload consumed by SSE/REST dashboards.
type PoolMetricsSnapshot struct {
	ActionName        string    `json:"actionName"`
	ActiveCount       int64     `json:"activeCount"`
	MaxSize           int       `json:"maxSize"`
	WaitingCount      int64     `json:"waitingCount"`
	CompletedCount    uint64    `json:"completedCount"`
	FailedCount       uint64    `json:"failedCount"`
	AverageMs         float64   `json:"averageResponseTimeMs"`
	P50Ms             float64   `json:"p50ResponseTimeMs"`
	P75Ms             float64   `json:"p75ResponseTimeMs"`
	P95Ms             float64   `json:"p95ResponseTimeMs"`
	P99Ms             float64   `json:"p99ResponseTimeMs"`
	MaxMs             float64   `json:"maxResponseTimeMs"`
	RequestsPerSecond float64   `json:"requestsPerSecond"`
	Timestamp         time.Time `json:"timestamp"`
}

// SnapshotSink receives each periodic snapshot list, in order of production.
type SnapshotSink func(snapshots []PoolMetricsSnapshot)

// PoolStats is the read surface a pool exposes to the metrics core so that
// snapshots can carry gate-level state. *ActionPool satisfies it.
type PoolStats interface {
	Name() string
	MaxSize() int
	ActiveCount() int64
	WaitingCount() int64
}

// MetricsCollector records per-action outcomes and publishes periodic
// snapshots to subscribers. All recording operations are O(1) and safe for
// concurrent use. Substitute implementations must honor the same contract.
type MetricsCollector interface {
	// RecordSuccess observes a successful execution's latency.
	RecordSuccess(action string, d time.Duration)
	// RecordFailure observes a failed execution's latency. The duration is
	// still observed for failures.
	RecordFailure(action string, d time.Duration, err error)
	// RecordActiveUsers sets the latest-wins active gauge for an action.
	RecordActiveUsers(action string, n int64)
	// BindPool attaches a pool's gate counters so snapshots can include
	// active/waiting/max for the pool's action.
	BindPool(src PoolStats)
	// Snapshot produces one record per observed action. Empty if nothing
	// has been recorded.
	Snapshot() []PoolMetricsSnapshot
	// OnSnapshot registers a sink for each periodic snapshot list.
	OnSnapshot(sink SnapshotSink)
	// Start launches the snapshot timer; the first cycle fires one interval
	// after start.
	Start(interval time.Duration)
	// Stop ends the timer. Idempotent, and safe before any Start.
	Stop()
	// History returns every snapshot produced so far, in production order.
	History() []PoolMetricsSnapshot
}

// Latency distribution bounds: 1µs .. 1h, 3 significant figures. Hdr needs
// about 185KB of counts per action for this range, with worst-case quantile
// error well below the tolerated 5%.
const (
	histMinMicros = 1
	histMaxMicros = int64(time.Hour / time.Microsecond)
	histSigFigs   = 3
)

// actionMetrics is the per-action recording state of the default collector.
type actionMetrics struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	firstSeen time.Time

	success atomic.Uint64
	failure atomic.Uint64
	active  atomic.Int64
}

func (a *actionMetrics) observe(d time.Duration) {
	micros := d.Microseconds()
	if micros < histMinMicros {
		micros = histMinMicros
	}
	if micros > histMaxMicros {
		micros = histMaxMicros
	}
	a.mu.Lock()
	_ = a.hist.RecordValue(micros)
	a.mu.Unlock()
}

// Collector is the default MetricsCollector. Latency distributions use
// HdrHistogram; counters and gauges are atomics.
type Collector struct {
	mu      sync.RWMutex
	actions map[string]*actionMetrics

	poolMu sync.RWMutex
	pools  map[string]PoolStats

	sinkMu sync.Mutex
	sinks  []SnapshotSink

	histMu  sync.RWMutex
	history []PoolMetricsSnapshot

	runMu  sync.Mutex
	stopCh chan struct{}

	logger *slog.Logger
}

var _ MetricsCollector = (*Collector)(nil)

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithCollectorLogger sets a structured logger for the collector.
func WithCollectorLogger(l *slog.Logger) CollectorOption {
	return func(c *Collector) { c.logger = l }
}

// NewCollector creates an empty collector.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		actions: make(map[string]*actionMetrics),
		pools:   make(map[string]PoolStats),
		logger:  nopLogger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) metricsFor(action string) *actionMetrics {
	c.mu.RLock()
	m, ok := c.actions[action]
	c.mu.RUnlock()
	if ok {
		return m
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok = c.actions[action]; ok {
		return m
	}
	m = &actionMetrics{
		hist:      hdrhistogram.New(histMinMicros, histMaxMicros, histSigFigs),
		firstSeen: time.Now(),
	}
	c.actions[action] = m
	return m
}

// RecordSuccess implements MetricsCollector.
func (c *Collector) RecordSuccess(action string, d time.Duration) {
	m := c.metricsFor(action)
	m.observe(d)
	m.success.Add(1)
}

// RecordFailure implements MetricsCollector.
func (c *Collector) RecordFailure(action string, d time.Duration, err error) {
	m := c.metricsFor(action)
	m.observe(d)
	m.failure.Add(1)
	c.logger.Debug("failure recorded", "action", action, "duration", d, "error", err)
}

// RecordActiveUsers implements MetricsCollector.
func (c *Collector) RecordActiveUsers(action string, n int64) {
	c.metricsFor(action).active.Store(n)
}

// BindPool implements MetricsCollector.
func (c *Collector) BindPool(src PoolStats) {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	c.pools[src.Name()] = src
}

// Snapshot implements MetricsCollector. Actions appear in name order so that
// consecutive snapshots line up for dashboard consumers.
func (c *Collector) Snapshot() []PoolMetricsSnapshot {
	c.mu.RLock()
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	now := time.Now().UTC()
	snaps := make([]PoolMetricsSnapshot, 0, len(names))
	for _, name := range names {
		c.mu.RLock()
		m := c.actions[name]
		c.mu.RUnlock()

		snap := PoolMetricsSnapshot{
			ActionName:     name,
			ActiveCount:    m.active.Load(),
			CompletedCount: m.success.Load(),
			FailedCount:    m.failure.Load(),
			Timestamp:      now,
		}

		m.mu.Lock()
		if m.hist.TotalCount() > 0 {
			snap.AverageMs = m.hist.Mean() / 1000
			snap.P50Ms = float64(m.hist.ValueAtQuantile(50)) / 1000
			snap.P75Ms = float64(m.hist.ValueAtQuantile(75)) / 1000
			snap.P95Ms = float64(m.hist.ValueAtQuantile(95)) / 1000
			snap.P99Ms = float64(m.hist.ValueAtQuantile(99)) / 1000
			snap.MaxMs = float64(m.hist.Max()) / 1000
		}
		window := now.Sub(m.firstSeen)
		m.mu.Unlock()

		total := snap.CompletedCount + snap.FailedCount
		secs := window.Seconds()
		if secs < 1 {
			secs = 1
		}
		snap.RequestsPerSecond = float64(total) / secs

		c.poolMu.RLock()
		if pool, ok := c.pools[name]; ok {
			snap.ActiveCount = pool.ActiveCount()
			snap.WaitingCount = pool.WaitingCount()
			snap.MaxSize = pool.MaxSize()
		}
		c.poolMu.RUnlock()

		snaps = append(snaps, snap)
	}
	return snaps
}

// OnSnapshot implements MetricsCollector.
func (c *Collector) OnSnapshot(sink SnapshotSink) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	c.sinks = append(c.sinks, sink)
}

// Start implements MetricsCollector. A second Start while running is a no-op.
func (c *Collector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stopCh != nil {
		return
	}
	stopCh := make(chan struct{})
	c.stopCh = stopCh
	go c.run(interval, stopCh)
}

func (c *Collector) run(interval time.Duration, stopCh chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cycle()
		case <-stopCh:
			return
		}
	}
}

// cycle takes one snapshot, records it in the history, and dispatches it to
// every sink sequentially. One cycle's dispatches complete before the next
// begins; a panicking sink is isolated and logged.
func (c *Collector) cycle() {
	snaps := c.Snapshot()
	if len(snaps) == 0 {
		return
	}
	c.histMu.Lock()
	c.history = append(c.history, snaps...)
	c.histMu.Unlock()

	c.sinkMu.Lock()
	sinks := make([]SnapshotSink, len(c.sinks))
	copy(sinks, c.sinks)
	c.sinkMu.Unlock()

	for _, sink := range sinks {
		c.dispatch(sink, snaps)
	}
}

func (c *Collector) dispatch(sink SnapshotSink, snaps []PoolMetricsSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot sink panicked", "panic", r)
		}
	}()
	sink(snaps)
}

// Stop implements MetricsCollector.
func (c *Collector) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	c.stopCh = nil
}

// History implements MetricsCollector.
func (c *Collector) History() []PoolMetricsSnapshot {
	c.histMu.RLock()
	defer c.histMu.RUnlock()
	out := make([]PoolMetricsSnapshot, len(c.history))
	copy(out, c.history)
	return out
}
