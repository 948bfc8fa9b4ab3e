package surge

// --- Scenario model ---

// stepKind tags the ScenarioStep variant.
type stepKind int

const (
	stepExecute stepKind = iota
	stepPause
	stepFeed
	stepRepeat
	stepRepeatWhile
	stepIf
	stepExitIf
	stepRandomSwitch
	stepGroup
)

func (k stepKind) String() string {
	switch k {
	case stepExecute:
		return "execute"
	case stepPause:
		return "pause"
	case stepFeed:
		return "feed"
	case stepRepeat:
		return "repeat"
	case stepRepeatWhile:
		return "repeat_while"
	case stepIf:
		return "if"
	case stepExitIf:
		return "exit_if"
	case stepRandomSwitch:
		return "random_switch"
	case stepGroup:
		return "group"
	}
	return "unknown"
}

// ScenarioStep is one node of a scenario tree. Steps are built with the
// package-level constructors (Exec, Pause, Feed, Repeat, RepeatWhile, If,
// ExitIf, RandomSwitch, Group) and are immutable once built.
type ScenarioStep struct {
	kind stepKind

	name   string // Execute action name, Group name, or If/RepeatWhile label
	action Action

	pause  PauseStrategy
	feeder Feeder

	times      int
	counterKey string

	pred Predicate

	steps     []ScenarioStep
	elseSteps []ScenarioStep

	branches []SwitchBranch
}

// SwitchBranch pairs a non-negative weight with the steps it selects.
type SwitchBranch struct {
	Weight float64
	Steps  []ScenarioStep
}

// Scenario is a named tree of steps that compiles into an action chain.
type Scenario struct {
	Name  string
	Steps []ScenarioStep
}

// NewScenario builds a scenario from the given steps. Validation happens at
// compile time.
func NewScenario(name string, steps ...ScenarioStep) Scenario {
	return Scenario{Name: name, Steps: steps}
}

// Steps is a convenience constructor for step slices, for use with If and
// Branch:
//
//	surge.If(pred, "retry", surge.Steps(surge.Exec("again", a)), nil)
func Steps(steps ...ScenarioStep) []ScenarioStep {
	return steps
}

// Exec adds a named executable action.
func Exec(name string, action Action) ScenarioStep {
	return ScenarioStep{kind: stepExecute, name: name, action: action}
}

// Pause adds a think-time step driven by the given strategy.
func Pause(strategy PauseStrategy) ScenarioStep {
	return ScenarioStep{kind: stepPause, pause: strategy}
}

// Feed adds a step that merges the feeder's next row into the session.
// A spent finite feeder aborts the chain iteration via the exit signal.
func Feed(f Feeder) ScenarioStep {
	return ScenarioStep{kind: stepFeed, feeder: f}
}

// Repeat repeats the inner steps a fixed number of times. Before each
// iteration i (0-based), session[counterKey] is set to i. The repetition is
// unrolled at compile time, so every inner action becomes a top-level chain
// entry with its own pool and latency envelope.
func Repeat(times int, counterKey string, steps ...ScenarioStep) ScenarioStep {
	return ScenarioStep{kind: stepRepeat, times: times, counterKey: counterKey, steps: steps}
}

// RepeatWhile repeats the inner steps for as long as the predicate holds.
// The predicate is evaluated before every iteration. Because the iteration
// count is data-dependent, the loop executes inline as a single chain entry.
func RepeatWhile(pred Predicate, label string, steps ...ScenarioStep) ScenarioStep {
	return ScenarioStep{kind: stepRepeatWhile, pred: pred, name: label, steps: steps}
}

// If executes thenSteps when the predicate holds and elseSteps (which may be
// nil) otherwise. The branch executes inline as a single chain entry.
func If(pred Predicate, label string, thenSteps, elseSteps []ScenarioStep) ScenarioStep {
	return ScenarioStep{kind: stepIf, pred: pred, name: label, steps: thenSteps, elseSteps: elseSteps}
}

// ExitIf aborts the remainder of the chain iteration when the predicate
// holds. The abort is counted as a failure but not logged as an error.
func ExitIf(pred Predicate) ScenarioStep {
	return ScenarioStep{kind: stepExitIf, pred: pred}
}

// RandomSwitch selects one branch per execution, with probability
// proportional to branch weight. Weights need not sum to any constant.
func RandomSwitch(branches ...SwitchBranch) ScenarioStep {
	return ScenarioStep{kind: stepRandomSwitch, branches: branches}
}

// Branch pairs a weight with its steps for use in RandomSwitch.
func Branch(weight float64, steps ...ScenarioStep) SwitchBranch {
	return SwitchBranch{Weight: weight, Steps: steps}
}

// Group lowers the inner steps under a name prefix: a group "G" containing
// Exec("x", …) produces an action named "G.x". Groups compose and emit no
// wrapper action.
func Group(name string, steps ...ScenarioStep) ScenarioStep {
	return ScenarioStep{kind: stepGroup, name: name, steps: steps}
}
