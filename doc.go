// Package surge is a load-generation framework for Go.
//
// It sustains a target population of concurrent virtual users, each of which
// repeatedly walks a named sequence of actions against any external target
// (HTTP endpoints, databases, queues), and measures per-action latency,
// throughput, success, and failure.
//
// # Quick Start
//
// Describe the work as a scenario, compile it into a chain, and run it:
//
//	scenario := surge.NewScenario("checkout",
//		surge.Exec("login", loginAction),
//		surge.Pause(surge.UniformPause(100*time.Millisecond, 400*time.Millisecond)),
//		surge.Group("cart",
//			surge.Exec("add_item", addItemAction),
//			surge.Exec("pay", payAction),
//		),
//	)
//	chain, err := surge.Compile(scenario)
//	rt, err := surge.New(surge.Config{
//		Users:    200,
//		RampUp:   30 * time.Second,
//		Duration: 5 * time.Minute,
//		PoolSize: 50,
//	}, chain)
//	result, err := rt.Run(ctx)
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Action] — a named unit of user-defined work executed against a [Session]
//   - [Feeder] — a source of per-user attribute rows
//   - [MetricsCollector] — per-action counters, latency distribution, snapshots
//   - [ReportGenerator] — consumer of the final [TestResult]
//   - [Tracer] — optional span emission for each executed action
//
// # Included Implementations
//
// Feeders: feed (CSV, in-memory, generated).
// Protocol actions: client (HTTP, Postgres).
// Reports: report (HTML, CSV, SQLite archive).
// Live view: dashboard (SSE stream + REST control).
// Telemetry: observer (OpenTelemetry bridge).
//
// See the cmd/surge directory for a complete reference application.
package surge
