package surge

import (
	"fmt"
	"log/slog"
)

// nopLogger discards every record. Components default to it so that logging
// is strictly opt-in.
var nopLogger = slog.New(slog.DiscardHandler)

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
