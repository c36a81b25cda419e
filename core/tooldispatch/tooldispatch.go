// Package tooldispatch defines the turn controller's external contract onto
// tool execution: effect classification and a uniform invoke call. Concrete
// tools live under providers/tool; this package only names the boundary the
// controller depends on, per spec §4.4.
package tooldispatch

import (
	"context"
	"encoding/json"

	"github.com/basher83/forgeflare/core/conversation"
)

// StreamFunc receives intermediate output from a long-running tool
// invocation (e.g. Bash stdout/stderr lines) as it is produced.
type StreamFunc func(chunk string)

// Dispatcher is the controller's view of the tool catalog: classify a tool's
// side effect, and invoke it by name with JSON input.
//
// Invoke is synchronous/blocking and may be called from a worker goroutine.
// Pure tools must be safe to call concurrently on distinct inputs; mutating
// tools must be called one at a time. Invoke never returns a Go error for a
// tool-level fault — a failing tool call is reported as (content, true) so
// the fault becomes conversation data (§7, ToolFault), never a propagating
// error.
type Dispatcher interface {
	Effect(name string) conversation.Effect
	Invoke(ctx context.Context, name string, input json.RawMessage, stream StreamFunc) (content string, isError bool)
	Has(name string) bool
}
