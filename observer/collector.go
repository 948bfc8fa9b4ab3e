package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/surgekit/surge"
)

// ObservedCollector wraps a surge.MetricsCollector and mirrors every
// recorded outcome to OTEL instruments. The inner collector remains the
// source of truth for snapshots, history, and subscriptions.
type ObservedCollector struct {
	inner surge.MetricsCollector
	inst  *Instruments
}

var _ surge.MetricsCollector = (*ObservedCollector)(nil)

// WrapCollector returns an instrumented collector.
func WrapCollector(inner surge.MetricsCollector, inst *Instruments) *ObservedCollector {
	return &ObservedCollector{inner: inner, inst: inst}
}

func (o *ObservedCollector) RecordSuccess(action string, d time.Duration) {
	o.inner.RecordSuccess(action, d)
	o.emit(action, d, "ok")
}

func (o *ObservedCollector) RecordFailure(action string, d time.Duration, err error) {
	o.inner.RecordFailure(action, d, err)
	o.emit(action, d, "error")
}

func (o *ObservedCollector) emit(action string, d time.Duration, status string) {
	ctx := context.Background()
	o.inst.ActionExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrActionName.String(action),
		AttrStatus.String(status),
	))
	o.inst.ActionDuration.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		AttrActionName.String(action),
		AttrStatus.String(status),
	))
}

func (o *ObservedCollector) RecordActiveUsers(action string, n int64) {
	o.inner.RecordActiveUsers(action, n)
	o.inst.ActiveUsers.Record(context.Background(), n, metric.WithAttributes(
		AttrActionName.String(action),
	))
}

func (o *ObservedCollector) BindPool(src surge.PoolStats) { o.inner.BindPool(src) }

func (o *ObservedCollector) Snapshot() []surge.PoolMetricsSnapshot { return o.inner.Snapshot() }

func (o *ObservedCollector) OnSnapshot(sink surge.SnapshotSink) { o.inner.OnSnapshot(sink) }

func (o *ObservedCollector) Start(interval time.Duration) { o.inner.Start(interval) }

func (o *ObservedCollector) Stop() { o.inner.Stop() }

func (o *ObservedCollector) History() []surge.PoolMetricsSnapshot { return o.inner.History() }
