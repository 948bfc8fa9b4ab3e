package surge

import "testing"

func TestNewChain(t *testing.T) {
	chain, err := NewChain(
		Named("login", noopAction),
		Named("browse", noopAction),
		Named("login", noopAction),
	)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	if chain.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", chain.Len())
	}
	for i := 0; i < chain.Len(); i++ {
		if chain.At(i).Index != i {
			t.Errorf("At(%d).Index = %d, want %d", i, chain.At(i).Index, i)
		}
	}

	names := chain.Names()
	want := []string{"login", "browse"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestNewChainEmpty(t *testing.T) {
	if _, err := NewChain(); err == nil {
		t.Fatal("expected error for empty chain")
	}
}

func TestNewChainBlankName(t *testing.T) {
	if _, err := NewChain(Named("  ", noopAction)); err == nil {
		t.Fatal("expected error for blank action name")
	}
}

func TestNewChainNilBody(t *testing.T) {
	if _, err := NewChain(ActionDefinition{Name: "x"}); err == nil {
		t.Fatal("expected error for nil body")
	}
}
