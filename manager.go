package surge

import (
	"log/slog"
	"sync"
)

// PoolManager owns exactly one ActionPool per distinct action name in a
// chain.
type PoolManager struct {
	mu     sync.RWMutex
	pools  map[string]*ActionPool
	order  []string
	logger *slog.Logger

	stopOnce sync.Once
}

// PoolManagerOption configures a PoolManager.
type PoolManagerOption func(*PoolManager)

// WithManagerLogger sets a structured logger for the manager and the pools
// it builds.
func WithManagerLogger(l *slog.Logger) PoolManagerOption {
	return func(m *PoolManager) { m.logger = l }
}

// NewPoolManager creates an empty manager. Pools are built by Init.
func NewPoolManager(opts ...PoolManagerOption) *PoolManager {
	m := &PoolManager{
		pools:  make(map[string]*ActionPool),
		logger: nopLogger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init builds one pool per distinct action name in the chain, each with
// maxSize permits and the given worker mode.
func (m *PoolManager) Init(chain *Chain, maxSize int, mode PoolMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range chain.Names() {
		if _, exists := m.pools[name]; exists {
			continue
		}
		pool, err := NewActionPool(name, maxSize, mode, WithPoolLogger(m.logger))
		if err != nil {
			return err
		}
		m.pools[name] = pool
		m.order = append(m.order, name)
	}
	m.logger.Info("pools initialized", "count", len(m.order), "max_size", maxSize, "mode", mode.String())
	return nil
}

// Get returns the pool for the named action, or ErrUnknownAction.
func (m *PoolManager) Get(name string) (*ActionPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pool, ok := m.pools[name]
	if !ok {
		return nil, &ErrUnknownAction{Name: name}
	}
	return pool, nil
}

// Pools returns every pool in creation order.
func (m *PoolManager) Pools() []*ActionPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ActionPool, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.pools[name])
	}
	return out
}

// Shutdown closes every pool and clears the registry. Idempotent.
func (m *PoolManager) Shutdown() {
	m.stopOnce.Do(func() {
		pools := m.Pools()
		for _, pool := range pools {
			pool.Shutdown()
		}
		m.mu.Lock()
		m.pools = make(map[string]*ActionPool)
		m.order = nil
		m.mu.Unlock()
		m.logger.Info("pools shut down", "count", len(pools))
	})
}
