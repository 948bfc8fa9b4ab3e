package surge

import (
	"errors"
	"fmt"
)

// ErrExit is the control-flow signal that aborts the remainder of a chain
// iteration without marking the system unhealthy. It is raised by ExitIf
// steps and by exhausted finite feeders. The runtime counts it as a failure
// but does not log it as an error. Match with errors.Is.
var ErrExit = errors.New("surge: chain exit")

// ErrExhausted is returned by a finite Feeder whose rows have run out.
// Feed steps translate it into ErrExit.
var ErrExhausted = errors.New("surge: feeder exhausted")

// ErrConfig reports an invalid runtime or pool configuration. Configuration
// errors are surfaced synchronously at construction; the runtime never starts.
type ErrConfig struct {
	Field   string
	Message string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("surge: invalid config: %s: %s", e.Field, e.Message)
}

// ErrUnknownAction reports a pool lookup for an action name that has no pool.
type ErrUnknownAction struct {
	Name string
}

func (e *ErrUnknownAction) Error() string {
	return fmt.Sprintf("surge: no pool for action %q", e.Name)
}

// ErrPoolClosed reports a submission to a pool that has begun shutdown.
type ErrPoolClosed struct {
	Name string
}

func (e *ErrPoolClosed) Error() string {
	return fmt.Sprintf("surge: pool %q is shut down", e.Name)
}
