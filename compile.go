package surge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Compile lowers a scenario tree into a flat, ordered chain of named
// executables whose sequential execution realizes the scenario's semantics
// for one user iteration.
//
// Repeat and Group lower structurally: Repeat unrolls into per-iteration
// copies of its inner steps and Group extends the name prefix. RepeatWhile,
// If, ExitIf, and RandomSwitch are data-dependent at runtime, so each emits
// a single executable that interprets its inner steps inline; inner actions
// then share the latency envelope and pool of the enclosing entry.
//
// Compilation is pure and deterministic for a given scenario; randomness
// occurs only at execution.
func Compile(sc Scenario) (*Chain, error) {
	if strings.TrimSpace(sc.Name) == "" {
		return nil, &ErrConfig{Field: "scenario", Message: "name must not be blank"}
	}
	if len(sc.Steps) == 0 {
		return nil, &ErrConfig{Field: "scenario", Message: "must contain at least one step"}
	}
	if err := validateSteps(sc.Steps); err != nil {
		return nil, err
	}
	var defs []ActionDefinition
	lowerSteps(&defs, "", sc.Steps)
	if len(defs) == 0 {
		return nil, &ErrConfig{Field: "scenario", Message: "lowers to an empty chain"}
	}
	for i := range defs {
		defs[i].Index = i
	}
	return &Chain{defs: defs}, nil
}

// validateSteps checks the whole tree before lowering so that construction
// errors surface synchronously, never mid-run.
func validateSteps(steps []ScenarioStep) error {
	for _, st := range steps {
		switch st.kind {
		case stepExecute:
			if strings.TrimSpace(st.name) == "" {
				return &ErrConfig{Field: "execute", Message: "action name must not be blank"}
			}
			if st.action == nil {
				return &ErrConfig{Field: "execute", Message: fmt.Sprintf("action %q has a nil body", st.name)}
			}
		case stepPause:
			if err := st.pause.validate(); err != nil {
				return err
			}
		case stepFeed:
			if st.feeder == nil {
				return &ErrConfig{Field: "feed", Message: "feeder must not be nil"}
			}
		case stepRepeat:
			if st.times < 0 {
				return &ErrConfig{Field: "repeat", Message: "count must not be negative"}
			}
			if strings.TrimSpace(st.counterKey) == "" {
				return &ErrConfig{Field: "repeat", Message: "counter key must not be blank"}
			}
			if err := validateSteps(st.steps); err != nil {
				return err
			}
		case stepRepeatWhile:
			if st.pred == nil {
				return &ErrConfig{Field: "repeat_while", Message: "predicate must not be nil"}
			}
			if err := validateSteps(st.steps); err != nil {
				return err
			}
		case stepIf:
			if st.pred == nil {
				return &ErrConfig{Field: "if", Message: "predicate must not be nil"}
			}
			if err := validateSteps(st.steps); err != nil {
				return err
			}
			if err := validateSteps(st.elseSteps); err != nil {
				return err
			}
		case stepExitIf:
			if st.pred == nil {
				return &ErrConfig{Field: "exit_if", Message: "predicate must not be nil"}
			}
		case stepRandomSwitch:
			if len(st.branches) == 0 {
				return &ErrConfig{Field: "random_switch", Message: "must have at least one branch"}
			}
			var total float64
			for _, br := range st.branches {
				if br.Weight < 0 {
					return &ErrConfig{Field: "random_switch", Message: "weights must not be negative"}
				}
				total += br.Weight
				if err := validateSteps(br.Steps); err != nil {
					return err
				}
			}
			if total <= 0 {
				return &ErrConfig{Field: "random_switch", Message: "total weight must be positive"}
			}
		case stepGroup:
			if strings.TrimSpace(st.name) == "" {
				return &ErrConfig{Field: "group", Message: "name must not be blank"}
			}
			if err := validateSteps(st.steps); err != nil {
				return err
			}
		}
	}
	return nil
}

// lowerSteps appends the lowered form of steps to defs under the given name
// prefix.
func lowerSteps(defs *[]ActionDefinition, prefix string, steps []ScenarioStep) {
	for _, st := range steps {
		switch st.kind {
		case stepExecute:
			*defs = append(*defs, ActionDefinition{Name: prefix + st.name, Body: st.action})
		case stepPause:
			*defs = append(*defs, ActionDefinition{Name: prefix + "_pause", Body: pauseAction(st.pause)})
		case stepFeed:
			*defs = append(*defs, ActionDefinition{Name: prefix + "_feed:" + st.feeder.Name(), Body: feedAction(st.feeder)})
		case stepRepeat:
			for i := 0; i < st.times; i++ {
				iterPrefix := prefix + st.counterKey + "[" + strconv.Itoa(i) + "]."
				*defs = append(*defs, ActionDefinition{Name: iterPrefix + "_counter", Body: counterAction(st.counterKey, i)})
				lowerSteps(defs, iterPrefix, st.steps)
			}
		case stepGroup:
			lowerSteps(defs, prefix+st.name+".", st.steps)
		case stepRepeatWhile:
			*defs = append(*defs, ActionDefinition{Name: prefix + "_while:" + st.name, Body: repeatWhileAction(st)})
		case stepIf:
			*defs = append(*defs, ActionDefinition{Name: prefix + "_if:" + st.name, Body: ifAction(st)})
		case stepExitIf:
			*defs = append(*defs, ActionDefinition{Name: prefix + "_exit_if", Body: exitIfAction(st.pred)})
		case stepRandomSwitch:
			*defs = append(*defs, ActionDefinition{Name: prefix + "_random_switch", Body: randomSwitchAction(st.branches)})
		}
	}
}

// --- Lowered step bodies ---

func pauseAction(p PauseStrategy) Action {
	return func(ctx context.Context, _ *Session) error {
		if d := p.Duration(); d > 0 {
			return sleepCtx(ctx, d)
		}
		return nil
	}
}

func feedAction(f Feeder) Action {
	return func(_ context.Context, sess *Session) error {
		if !f.HasNext() {
			return ErrExit
		}
		row, err := f.Next()
		if err != nil {
			// Concurrent users can drain the feeder between HasNext and Next.
			if errors.Is(err, ErrExhausted) {
				return ErrExit
			}
			return err
		}
		sess.Merge(row)
		return nil
	}
}

func counterAction(key string, i int) Action {
	return func(_ context.Context, sess *Session) error {
		sess.Set(key, i)
		return nil
	}
}

func repeatWhileAction(st ScenarioStep) Action {
	return func(ctx context.Context, sess *Session) error {
		for st.pred(sess) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := runInline(ctx, sess, st.steps); err != nil {
				return err
			}
		}
		return nil
	}
}

func ifAction(st ScenarioStep) Action {
	return func(ctx context.Context, sess *Session) error {
		if st.pred(sess) {
			return runInline(ctx, sess, st.steps)
		}
		return runInline(ctx, sess, st.elseSteps)
	}
}

func exitIfAction(pred Predicate) Action {
	return func(_ context.Context, sess *Session) error {
		if pred(sess) {
			return ErrExit
		}
		return nil
	}
}

func randomSwitchAction(branches []SwitchBranch) Action {
	return func(ctx context.Context, sess *Session) error {
		var total float64
		for _, br := range branches {
			total += br.Weight
		}
		r := rand.Float64() * total
		var cum float64
		for _, br := range branches {
			cum += br.Weight
			if cum > r {
				return runInline(ctx, sess, br.Steps)
			}
		}
		// Floating-point edge: r landed on the total. Take the last branch.
		return runInline(ctx, sess, branches[len(branches)-1].Steps)
	}
}

// runInline interprets steps directly, without dispatching each one to its
// own pool. Every variant is supported — including nested Repeat — so
// behavior is identical to compiled form, differing only in that inner
// actions share the enclosing entry's latency envelope and pool.
func runInline(ctx context.Context, sess *Session, steps []ScenarioStep) error {
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch st.kind {
		case stepExecute:
			if err := st.action(ctx, sess); err != nil {
				return err
			}
		case stepPause:
			if err := pauseAction(st.pause)(ctx, sess); err != nil {
				return err
			}
		case stepFeed:
			if err := feedAction(st.feeder)(ctx, sess); err != nil {
				return err
			}
		case stepRepeat:
			for i := 0; i < st.times; i++ {
				sess.Set(st.counterKey, i)
				if err := runInline(ctx, sess, st.steps); err != nil {
					return err
				}
			}
		case stepGroup:
			if err := runInline(ctx, sess, st.steps); err != nil {
				return err
			}
		case stepRepeatWhile:
			if err := repeatWhileAction(st)(ctx, sess); err != nil {
				return err
			}
		case stepIf:
			if err := ifAction(st)(ctx, sess); err != nil {
				return err
			}
		case stepExitIf:
			if err := exitIfAction(st.pred)(ctx, sess); err != nil {
				return err
			}
		case stepRandomSwitch:
			if err := randomSwitchAction(st.branches)(ctx, sess); err != nil {
				return err
			}
		}
	}
	return nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
