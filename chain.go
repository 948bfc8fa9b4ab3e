package surge

import (
	"fmt"
	"strings"
)

// ActionDefinition is one named executable unit of a chain. Immutable once
// inserted.
type ActionDefinition struct {
	Name  string
	Index int
	Body  Action
}

// Chain is a non-empty ordered sequence of action definitions forming one
// iteration of a virtual user's work. Immutable once built; indices are
// 0..N-1 and match position.
type Chain struct {
	defs []ActionDefinition
}

// Named pairs an action name with its body for NewChain.
func Named(name string, body Action) ActionDefinition {
	return ActionDefinition{Name: name, Body: body}
}

// NewChain builds a chain from a raw action sequence. Names must be
// non-blank and every body non-nil; the chain must not be empty.
func NewChain(actions ...ActionDefinition) (*Chain, error) {
	if len(actions) == 0 {
		return nil, &ErrConfig{Field: "chain", Message: "must not be empty"}
	}
	defs := make([]ActionDefinition, len(actions))
	for i, a := range actions {
		if strings.TrimSpace(a.Name) == "" {
			return nil, &ErrConfig{Field: "chain", Message: fmt.Sprintf("action %d has a blank name", i)}
		}
		if a.Body == nil {
			return nil, &ErrConfig{Field: "chain", Message: fmt.Sprintf("action %q has a nil body", a.Name)}
		}
		defs[i] = ActionDefinition{Name: a.Name, Index: i, Body: a.Body}
	}
	return &Chain{defs: defs}, nil
}

// Len returns the number of actions in the chain.
func (c *Chain) Len() int { return len(c.defs) }

// At returns the action definition at index i.
func (c *Chain) At(i int) ActionDefinition { return c.defs[i] }

// Actions returns a copy of the chain's definitions in order.
func (c *Chain) Actions() []ActionDefinition {
	out := make([]ActionDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Names returns the distinct action names in first-appearance order. The
// pool manager builds one pool per entry.
func (c *Chain) Names() []string {
	seen := make(map[string]bool, len(c.defs))
	var names []string
	for _, d := range c.defs {
		if !seen[d.Name] {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}
	return names
}
