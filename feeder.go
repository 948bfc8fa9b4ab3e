package surge

import "context"

// Action is a named unit of user-defined work executed in the context of a
// session. A non-nil error marks the execution as failed; any error type is
// acceptable. Returning ErrExit (or wrapping it) aborts the remainder of the
// chain iteration without being logged as an application error.
type Action func(ctx context.Context, sess *Session) error

// Predicate evaluates a condition against the current session state. Used by
// If, RepeatWhile, and ExitIf steps.
type Predicate func(sess *Session) bool

// Feeder yields one attribute row per call. Feeders may be infinite
// (circular, random, generated) or finite; a finite feeder returns
// ErrExhausted from Next once its rows run out, and HasNext reports whether a
// further row is available. Feeders shared by concurrent users must be safe
// for concurrent use — all factories in the feed package are.
type Feeder interface {
	// Name identifies the feeder in compiled action names.
	Name() string
	// Next returns the next row, or ErrExhausted for a spent finite feeder.
	Next() (map[string]any, error)
	// HasNext reports whether Next will yield another row.
	HasNext() bool
}
