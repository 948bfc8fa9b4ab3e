package surge

import (
	"errors"
	"testing"
)

func TestPoolManagerInitAndGet(t *testing.T) {
	chain, err := NewChain(
		Named("login", noopAction),
		Named("browse", noopAction),
		Named("login", noopAction),
	)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	m := NewPoolManager()
	if err := m.Init(chain, 5, LightweightTasks); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer m.Shutdown()

	if got := len(m.Pools()); got != 2 {
		t.Fatalf("Pools() = %d pools, want 2 (one per distinct name)", got)
	}
	pool, err := m.Get("login")
	if err != nil {
		t.Fatalf("Get(login) error = %v", err)
	}
	if pool.MaxSize() != 5 {
		t.Errorf("MaxSize() = %d, want 5", pool.MaxSize())
	}
}

func TestPoolManagerUnknownName(t *testing.T) {
	m := NewPoolManager()
	_, err := m.Get("missing")
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	var unknown *ErrUnknownAction
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %T, want *ErrUnknownAction", err)
	}
	if unknown.Name != "missing" {
		t.Errorf("error names %q, want missing", unknown.Name)
	}
}

func TestPoolManagerShutdownClearsRegistry(t *testing.T) {
	chain, _ := NewChain(Named("a", noopAction))
	m := NewPoolManager()
	if err := m.Init(chain, 1, LightweightTasks); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	m.Shutdown()
	if _, err := m.Get("a"); err == nil {
		t.Error("expected lookup to fail after shutdown")
	}
	// Idempotent.
	m.Shutdown()
}
