package surge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TestState is the monotonic lifecycle of a runtime.
type TestState int32

const (
	// StatePending is the state before Start.
	StatePending TestState = iota
	// StateRampingUp grows the user population linearly toward the target.
	StateRampingUp
	// StateRunning holds the full user population under steady load.
	StateRunning
	// StateStopping winds down pools and metrics after a deadline or an
	// external stop.
	StateStopping
	// StateCompleted is terminal for any run whose stop converged.
	StateCompleted
	// StateFailed is terminal, entered only on unrecoverable engine failure.
	StateFailed
)

func (s TestState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRampingUp:
		return "RAMPING_UP"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Config parameterizes one load-test run.
type Config struct {
	// Users is the target virtual-user population.
	Users int
	// RampUp is the window over which the population grows linearly from 0
	// to Users. Zero means every user starts immediately.
	RampUp time.Duration
	// Duration is the total test length, measured from Start.
	Duration time.Duration
	// PoolSize is the per-action concurrency bound.
	PoolSize int
	// MetricsInterval is the snapshot cycle length. Defaults to 1s.
	MetricsInterval time.Duration
	// PoolMode selects the worker model for every action pool.
	PoolMode PoolMode
}

func (c Config) validate() error {
	if c.Users <= 0 {
		return &ErrConfig{Field: "users", Message: "must be positive"}
	}
	if c.RampUp < 0 {
		return &ErrConfig{Field: "ramp_up", Message: "must not be negative"}
	}
	if c.Duration <= 0 {
		return &ErrConfig{Field: "duration", Message: "must be positive"}
	}
	if c.PoolSize <= 0 {
		return &ErrConfig{Field: "pool_size", Message: "must be positive"}
	}
	if c.MetricsInterval < 0 {
		return &ErrConfig{Field: "metrics_interval", Message: "must not be negative"}
	}
	return nil
}

const (
	rampTickInterval  = 200 * time.Millisecond
	gaugeTickInterval = time.Second
	gaugeFirstTick    = 500 * time.Millisecond
)

// Runtime drives one load-test run: it ramps virtual users linearly to the
// configured target, keeps every user looping through the chain for the test
// duration, and feeds the metrics core on each executable completion.
//
// A Runtime is single-use. All state is owned by the instance; multiple
// runtimes may run in the same process.
type Runtime struct {
	cfg     Config
	chain   *Chain
	pools   *PoolManager
	metrics MetricsCollector
	tracer  Tracer
	logger  *slog.Logger
	reports []ReportGenerator

	state     atomic.Int32
	startTime time.Time

	// spawned and exited define the authoritative active-user count:
	// ActiveUsers() ≡ spawned − exited. Pool gauges are reported separately.
	spawned atomic.Int64
	exited  atomic.Int64

	snapMu       sync.RWMutex
	allSnapshots []PoolMetricsSnapshot

	runCtx    context.Context
	runCancel context.CancelFunc

	done    chan struct{}
	result  *TestResult
	runErr  error
	stopped sync.WaitGroup
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets a structured logger for the runtime and its pools.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) { r.logger = l }
}

// WithMetricsCollector substitutes a custom collector.
func WithMetricsCollector(mc MetricsCollector) RuntimeOption {
	return func(r *Runtime) { r.metrics = mc }
}

// WithTracer enables span emission for every executed action.
func WithTracer(t Tracer) RuntimeOption {
	return func(r *Runtime) { r.tracer = t }
}

// WithReportGenerator appends a consumer for the final TestResult.
func WithReportGenerator(g ReportGenerator) RuntimeOption {
	return func(r *Runtime) { r.reports = append(r.reports, g) }
}

// New creates a runtime for the given chain. Configuration errors surface
// here; the runtime never starts with an invalid config.
func New(cfg Config, chain *Chain, opts ...RuntimeOption) (*Runtime, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if chain == nil || chain.Len() == 0 {
		return nil, &ErrConfig{Field: "chain", Message: "must not be empty"}
	}
	if cfg.MetricsInterval == 0 {
		cfg.MetricsInterval = time.Second
	}
	r := &Runtime{
		cfg:    cfg,
		chain:  chain,
		logger: nopLogger,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewCollector(WithCollectorLogger(r.logger))
	}
	r.pools = NewPoolManager(WithManagerLogger(r.logger))
	return r, nil
}

// NewFromScenario compiles the scenario and creates a runtime for the
// resulting chain.
func NewFromScenario(cfg Config, sc Scenario, opts ...RuntimeOption) (*Runtime, error) {
	chain, err := Compile(sc)
	if err != nil {
		return nil, err
	}
	return New(cfg, chain, opts...)
}

// Start begins the run: pools are initialized, metrics collection starts,
// and the ramp controller, gauge updater, and deadline tasks are launched.
// It returns immediately; use Wait or Done to observe completion.
func (r *Runtime) Start() error {
	if !r.state.CompareAndSwap(int32(StatePending), int32(StateRampingUp)) {
		return fmt.Errorf("surge: runtime already started (state %s)", r.State())
	}
	r.startTime = time.Now()
	r.logger.Info("run starting",
		"users", r.cfg.Users,
		"ramp_up", r.cfg.RampUp,
		"duration", r.cfg.Duration,
		"pool_size", r.cfg.PoolSize,
		"chain_len", r.chain.Len())

	if err := r.pools.Init(r.chain, r.cfg.PoolSize, r.cfg.PoolMode); err != nil {
		r.fail(fmt.Errorf("surge: pool initialization: %w", err))
		return err
	}
	for _, pool := range r.pools.Pools() {
		r.metrics.BindPool(pool)
	}
	r.metrics.OnSnapshot(func(snaps []PoolMetricsSnapshot) {
		r.snapMu.Lock()
		r.allSnapshots = append(r.allSnapshots, snaps...)
		r.snapMu.Unlock()
	})
	r.metrics.Start(r.cfg.MetricsInterval)

	r.runCtx, r.runCancel = context.WithCancel(context.Background())

	// With a zero ramp the full population must begin immediately, not a
	// tick later.
	r.rampTick()

	r.stopped.Add(3)
	go r.rampLoop()
	go r.gaugeLoop()
	go r.deadline()
	return nil
}

// Run starts the runtime and blocks until it completes, the context is
// cancelled (which stops the run cooperatively), or the run fails.
func (r *Runtime) Run(ctx context.Context) (*TestResult, error) {
	if err := r.Start(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		r.Stop()
		<-r.done
	case <-r.done:
	}
	return r.result, r.runErr
}

// State returns the current lifecycle state.
func (r *Runtime) State() TestState {
	return TestState(r.state.Load())
}

// IsRunning reports whether the run is ramping up or at steady load.
func (r *Runtime) IsRunning() bool {
	st := r.State()
	return st == StateRampingUp || st == StateRunning
}

// ActiveUsers returns the number of logically live users: spawned minus
// permanently exited.
func (r *Runtime) ActiveUsers() int64 {
	return r.spawned.Load() - r.exited.Load()
}

// Spawned returns the monotonic count of users ever spawned.
func (r *Runtime) Spawned() int64 {
	return r.spawned.Load()
}

// Metrics returns the run's collector, for dashboard subscribers.
func (r *Runtime) Metrics() MetricsCollector {
	return r.metrics
}

// Done returns a channel closed when the run reaches COMPLETED or FAILED.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run completes and returns the final result. It is
// the result future of the run: every call observes the same outcome.
func (r *Runtime) Wait(ctx context.Context) (*TestResult, error) {
	select {
	case <-r.done:
		return r.result, r.runErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// --- Periodic tasks ---

func (r *Runtime) rampLoop() {
	defer r.stopped.Done()
	ticker := time.NewTicker(rampTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.rampTick()
		case <-r.runCtx.Done():
			return
		}
	}
}

// rampTick spawns the deficit between the linear ramp target and the
// monotonic spawn counter. Spawning the deficit keeps the ramp linear,
// tolerates tick jitter, and never over-spawns.
func (r *Runtime) rampTick() {
	st := r.State()
	if st != StateRampingUp && st != StateRunning {
		return
	}
	elapsed := time.Since(r.startTime)
	frac := 1.0
	if r.cfg.RampUp > 0 && elapsed < r.cfg.RampUp {
		frac = float64(elapsed) / float64(r.cfg.RampUp)
	}
	target := int64(math.Ceil(float64(r.cfg.Users) * frac))
	if target > int64(r.cfg.Users) {
		target = int64(r.cfg.Users)
	}
	if elapsed >= r.cfg.RampUp {
		if r.state.CompareAndSwap(int32(StateRampingUp), int32(StateRunning)) {
			r.logger.Info("ramp-up complete", "users", r.spawned.Load())
		}
	}
	for deficit := target - r.spawned.Load(); deficit > 0; deficit-- {
		r.spawnUser()
	}
}

func (r *Runtime) spawnUser() {
	r.spawned.Add(1)
	sess := NewSession()
	go r.dispatch(0, sess)
}

func (r *Runtime) gaugeLoop() {
	defer r.stopped.Done()
	first := time.NewTimer(gaugeFirstTick)
	defer first.Stop()
	select {
	case <-first.C:
		r.gaugeTick()
	case <-r.runCtx.Done():
		return
	}
	ticker := time.NewTicker(gaugeTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.gaugeTick()
		case <-r.runCtx.Done():
			return
		}
	}
}

// gaugeTick copies each pool's current activeCount into the metrics gauge
// for its action. This is a gauge, not a total.
func (r *Runtime) gaugeTick() {
	for _, pool := range r.pools.Pools() {
		r.metrics.RecordActiveUsers(pool.Name(), pool.ActiveCount())
	}
}

func (r *Runtime) deadline() {
	defer r.stopped.Done()
	t := time.NewTimer(r.cfg.Duration)
	defer t.Stop()
	select {
	case <-t.C:
		r.logger.Info("test duration reached")
		go r.Stop()
	case <-r.runCtx.Done():
	}
}

// --- User loop ---

// dispatch submits the user's next step to that action's pool. A user is a
// stateful walk over the chain: within one user, step i+1 begins only after
// step i completes.
func (r *Runtime) dispatch(index int, sess *Session) {
	if !r.IsRunning() {
		r.userExit()
		return
	}
	def := r.chain.At(index)
	pool, err := r.pools.Get(def.Name)
	if err != nil {
		r.logger.Error("dispatch failed", "action", def.Name, "error", err)
		r.userExit()
		return
	}
	if err := pool.Submit(func() error {
		return r.runStep(def, index, sess)
	}); err != nil {
		r.userExit()
	}
}

// runStep executes one chain entry for one user and re-dispatches the user:
// to the next entry on success, back to index 0 with a fresh session on
// failure or chain completion.
func (r *Runtime) runStep(def ActionDefinition, index int, sess *Session) error {
	ctx := r.runCtx
	var span Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, def.Name,
			StringAttr("session.id", sess.ID()),
			IntAttr("chain.index", index))
		defer span.End()
	}

	start := time.Now()
	err := callAction(ctx, def.Body, sess)
	elapsed := time.Since(start)

	if err != nil {
		r.metrics.RecordFailure(def.Name, elapsed, err)
		if errors.Is(err, ErrExit) {
			// Early exit is a control-flow signal, not an application error.
			r.logger.Debug("chain exit", "action", def.Name, "session", sess.ID())
		} else {
			r.logger.Debug("action failed", "action", def.Name, "error", err)
			if span != nil {
				span.Error(err)
			}
		}
		r.continueUser(0, nil)
		return err
	}

	r.metrics.RecordSuccess(def.Name, elapsed)
	next := index + 1
	if next >= r.chain.Len() {
		// Chain complete: restart at the top with a fresh session for
		// continuous load.
		r.continueUser(0, nil)
	} else {
		r.continueUser(next, sess)
	}
	return nil
}

// continueUser re-dispatches the user, minting a fresh session when sess is
// nil. Once the runtime is neither RAMPING_UP nor RUNNING, the user exits
// permanently instead.
func (r *Runtime) continueUser(index int, sess *Session) {
	if !r.IsRunning() {
		r.userExit()
		return
	}
	if sess == nil {
		sess = NewSession()
	}
	r.dispatch(index, sess)
}

func (r *Runtime) userExit() {
	r.exited.Add(1)
}

// callAction invokes a user-supplied body, converting panics into errors so
// a misbehaving action can never kill a worker.
func callAction(ctx context.Context, body Action, sess *Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return body(ctx, sess)
}

// --- Stop path ---

// Stop winds the run down: the state moves to STOPPING via CAS (a losing
// caller is a no-op), new steps stop dispatching, pools drain, metrics stop,
// the result is built and handed to report generators, and the state lands
// on COMPLETED. Stop always converges; shutdown errors are logged, never
// propagated.
func (r *Runtime) Stop() {
	swapped := r.state.CompareAndSwap(int32(StateRampingUp), int32(StateStopping)) ||
		r.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	if !swapped {
		return
	}
	r.logger.Info("run stopping", "active_users", r.ActiveUsers())

	r.runCancel()
	r.stopped.Wait()
	r.pools.Shutdown()
	r.metrics.Stop()

	// The interval timer is gone; capture the closing partial interval so
	// short runs still produce summaries.
	if final := r.metrics.Snapshot(); len(final) > 0 {
		r.snapMu.Lock()
		r.allSnapshots = append(r.allSnapshots, final...)
		r.snapMu.Unlock()
	}

	end := time.Now()
	r.snapMu.RLock()
	snaps := make([]PoolMetricsSnapshot, len(r.allSnapshots))
	copy(snaps, r.allSnapshots)
	r.snapMu.RUnlock()
	r.result = buildResult(r.startTime, end, r.cfg.Users, snaps)

	for _, g := range r.reports {
		if err := g.Write(r.result); err != nil {
			r.logger.Error("report generation failed", "error", err)
		}
	}

	r.state.Store(int32(StateCompleted))
	r.logger.Info("run completed",
		"duration", end.Sub(r.startTime),
		"actions", len(r.result.ActionSummaries))
	close(r.done)
}

// fail marks the run terminally failed and resolves the result future
// exceptionally.
func (r *Runtime) fail(err error) {
	r.logger.Error("run failed", "error", err)
	r.runErr = err
	r.state.Store(int32(StateFailed))
	close(r.done)
}
