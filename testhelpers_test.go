package surge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// noopAction succeeds without touching the session.
func noopAction(_ context.Context, _ *Session) error { return nil }

// countingAction returns an action that counts its executions.
func countingAction(n *atomic.Int64) Action {
	return func(_ context.Context, _ *Session) error {
		n.Add(1)
		return nil
	}
}

// failingAction always fails with the given error.
func failingAction(err error) Action {
	return func(_ context.Context, _ *Session) error { return err }
}

var errBoom = errors.New("boom")

// sliceFeeder is a minimal finite feeder over fixed rows, for compiler tests.
// The feed package provides the production implementations.
type sliceFeeder struct {
	name string
	mu   sync.Mutex
	rows []map[string]any
	next int
}

func (f *sliceFeeder) Name() string { return f.name }

func (f *sliceFeeder) HasNext() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next < len(f.rows)
}

func (f *sliceFeeder) Next() (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.rows) {
		return nil, ErrExhausted
	}
	row := f.rows[f.next]
	f.next++
	return row, nil
}

// mustCompile compiles or fails the test.
func mustCompile(t interface{ Fatalf(string, ...any) }, sc Scenario) *Chain {
	chain, err := Compile(sc)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return chain
}

// runChain executes every chain entry in order against sess, stopping at the
// first error, the way a single deterministic user iteration would.
func runChain(chain *Chain, sess *Session) error {
	for _, def := range chain.Actions() {
		if err := def.Body(context.Background(), sess); err != nil {
			return err
		}
	}
	return nil
}
