package surge

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PoolMode selects the worker model of an ActionPool.
type PoolMode int

const (
	// LightweightTasks runs one goroutine per submitted task. Preferred for
	// blocking clients: goroutines are cheap and the semaphore still bounds
	// concurrency.
	LightweightTasks PoolMode = iota
	// BoundedWorkers runs a fixed worker set: core maxSize/2, growing to
	// maxSize under backlog, a queue of 2·maxSize, caller-runs overflow, and
	// 60-second idle reaping of non-core workers.
	BoundedWorkers
)

func (m PoolMode) String() string {
	if m == BoundedWorkers {
		return "bounded_workers"
	}
	return "lightweight_tasks"
}

// ParsePoolMode maps a config string onto a PoolMode. Empty defaults to
// LightweightTasks.
func ParsePoolMode(s string) (PoolMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lightweight", "lightweight_tasks":
		return LightweightTasks, nil
	case "bounded", "bounded_workers":
		return BoundedWorkers, nil
	}
	return 0, &ErrConfig{Field: "pool_mode", Message: "must be lightweight_tasks or bounded_workers"}
}

const (
	poolShutdownGrace = 10 * time.Second
	poolIdleTimeout   = 60 * time.Second
)

// ActionPool accepts submitted tasks for one action and runs at most maxSize
// of them concurrently. Concurrency is gated by a counting semaphore of
// maxSize permits; the waiting count reflects saturation pressure.
type ActionPool struct {
	name    string
	maxSize int
	mode    PoolMode
	logger  *slog.Logger

	permits chan struct{}
	tasks   chan func() // BoundedWorkers queue, cap 2·maxSize
	workers atomic.Int32

	active    atomic.Int64
	waiting   atomic.Int64
	completed atomic.Uint64
	failed    atomic.Uint64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   atomic.Bool
	stopOnce sync.Once
}

// ActionPoolOption configures an ActionPool.
type ActionPoolOption func(*ActionPool)

// WithPoolLogger sets a structured logger for the pool. If not set, no logs
// are emitted.
func WithPoolLogger(l *slog.Logger) ActionPoolOption {
	return func(p *ActionPool) { p.logger = l }
}

// NewActionPool creates a pool for the named action with maxSize permits.
func NewActionPool(name string, maxSize int, mode PoolMode, opts ...ActionPoolOption) (*ActionPool, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ErrConfig{Field: "pool", Message: "action name must not be blank"}
	}
	if maxSize <= 0 {
		return nil, &ErrConfig{Field: "pool", Message: "max size must be positive"}
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &ActionPool{
		name:    name,
		maxSize: maxSize,
		mode:    mode,
		logger:  nopLogger,
		permits: make(chan struct{}, maxSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if mode == BoundedWorkers {
		p.tasks = make(chan func(), 2*maxSize)
		for i := 0; i < p.coreSize(); i++ {
			p.workers.Add(1)
			go p.worker(true)
		}
	}
	return p, nil
}

// Name returns the action name this pool serves.
func (p *ActionPool) Name() string { return p.name }

// MaxSize returns the pool's permit count.
func (p *ActionPool) MaxSize() int { return p.maxSize }

// ActiveCount returns the number of tasks currently holding a permit.
// Always within [0, MaxSize], and zero after shutdown completes.
func (p *ActionPool) ActiveCount() int64 { return p.active.Load() }

// WaitingCount returns the number of submitted tasks not yet holding a permit.
func (p *ActionPool) WaitingCount() int64 { return p.waiting.Load() }

// Completed returns the monotonic count of tasks that returned nil.
func (p *ActionPool) Completed() uint64 { return p.completed.Load() }

// Failed returns the monotonic count of tasks that returned an error,
// panicked, or were cancelled while waiting for a permit.
func (p *ActionPool) Failed() uint64 { return p.failed.Load() }

// Submit dispatches a task for execution. The call itself never blocks on
// the permit — waiting happens on the worker — except in BoundedWorkers mode
// when the queue overflows, where the task runs on the caller. Returns
// ErrPoolClosed once shutdown has begun.
func (p *ActionPool) Submit(task func() error) error {
	if p.closed.Load() {
		return &ErrPoolClosed{Name: p.name}
	}
	p.waiting.Add(1)
	p.wg.Add(1)
	run := func() { p.runTask(task) }
	switch p.mode {
	case BoundedWorkers:
		select {
		case p.tasks <- run:
			p.ensureWorker()
		default:
			p.ensureWorker()
			select {
			case p.tasks <- run:
			default:
				// Queue still full with every worker busy: caller-runs.
				run()
			}
		}
	default:
		go run()
	}
	return nil
}

// runTask acquires a permit, executes the task, and maintains the pool
// counters regardless of outcome.
func (p *ActionPool) runTask(task func() error) {
	defer p.wg.Done()
	// A task counts as waiting until it holds a permit, so waitingCount
	// reflects semaphore pressure, not just queue delay.
	select {
	case p.permits <- struct{}{}:
		p.waiting.Add(-1)
	case <-p.ctx.Done():
		// Cancelled while blocked on the permit.
		p.waiting.Add(-1)
		p.failed.Add(1)
		return
	}
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		<-p.permits
	}()
	err := p.invoke(task)
	if err != nil {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}
}

// invoke runs the task, converting a panic into a failure instead of
// killing the worker.
func (p *ActionPool) invoke(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "pool", p.name, "panic", r)
			err = &panicError{value: r}
		}
	}()
	return task()
}

func (p *ActionPool) coreSize() int {
	c := p.maxSize / 2
	if c < 1 {
		c = 1
	}
	return c
}

// ensureWorker grows the worker set toward maxSize while there is backlog.
func (p *ActionPool) ensureWorker() {
	for {
		n := p.workers.Load()
		if int(n) >= p.maxSize {
			return
		}
		if p.workers.CompareAndSwap(n, n+1) {
			go p.worker(false)
			return
		}
	}
}

// worker drains the task queue. Core workers live for the pool's lifetime;
// surplus workers exit after poolIdleTimeout without work.
func (p *ActionPool) worker(core bool) {
	defer p.workers.Add(-1)
	if core {
		for {
			select {
			case run := <-p.tasks:
				run()
			case <-p.ctx.Done():
				return
			}
		}
	}
	idle := time.NewTimer(poolIdleTimeout)
	defer idle.Stop()
	for {
		select {
		case run := <-p.tasks:
			run()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(poolIdleTimeout)
		case <-idle.C:
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// Shutdown refuses new submissions, waits up to 10 seconds for in-flight
// work, then force-terminates permit waiters and workers. Idempotent.
func (p *ActionPool) Shutdown() {
	p.stopOnce.Do(func() {
		p.closed.Store(true)
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(poolShutdownGrace):
			p.logger.Warn("pool shutdown grace expired, forcing termination",
				"pool", p.name,
				"waiting", p.waiting.Load(),
				"active", p.active.Load())
		}
		p.cancel()
	})
}

// panicError wraps a recovered panic value as an error.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return "surge: task panic: " + stringify(e.value)
}
