// Package tool implements the concrete tool catalog (Read, Glob, Bash, Edit,
// Grep) and a Dispatcher that exposes them through core/tooldispatch's
// contract. Each tool's execution logic is grounded on original_source's
// tool dispatch; schemas are generated via internal/jsonschema from the
// same input structs the exec functions unmarshal into.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/tooldispatch"
	"github.com/basher83/forgeflare/core/turnctl"
)

const (
	nameRead = "Read"
	nameGlob = "Glob"
	nameBash = "Bash"
	nameEdit = "Edit"
	nameGrep = "Grep"
)

var toolEffects = map[string]conversation.Effect{
	nameRead: conversation.Pure,
	nameGlob: conversation.Pure,
	nameGrep: conversation.Pure,
	nameBash: conversation.Mutating,
	nameEdit: conversation.Mutating,
}

// Dispatcher implements tooldispatch.Dispatcher over the five built-in
// tools.
type Dispatcher struct{}

// NewDispatcher builds the built-in tool dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Has reports whether name is a known tool.
func (d *Dispatcher) Has(name string) bool {
	_, ok := toolEffects[name]
	return ok
}

// Effect classifies a tool's side-effect profile. Unknown names
// conservatively classify as Mutating, matching original_source's
// tool_effect fallback.
func (d *Dispatcher) Effect(name string) conversation.Effect {
	if eff, ok := toolEffects[name]; ok {
		return eff
	}
	return conversation.Mutating
}

// Invoke dispatches to the named tool's exec function. An unknown tool
// name is reported as a tool-level error rather than a Go error, per the
// Dispatcher contract.
func (d *Dispatcher) Invoke(ctx context.Context, name string, input json.RawMessage, stream tooldispatch.StreamFunc) (string, bool) {
	switch name {
	case nameRead:
		return readExec(input)
	case nameGlob:
		return globExec(input)
	case nameBash:
		return bashExec(ctx, input, stream)
	case nameEdit:
		return editExec(input)
	case nameGrep:
		return grepExec(input)
	default:
		return fmt.Sprintf("unknown tool: %s", name), true
	}
}

// ToolSpecs renders the five built-in tools as turnctl.ToolSpec values,
// ready to pass to the LLM client as the available tool catalog.
func ToolSpecs() []turnctl.ToolSpec {
	return []turnctl.ToolSpec{
		toolSpec(nameRead, readDescription, readSchema),
		toolSpec(nameGlob, globDescription, globSchema),
		toolSpec(nameBash, bashDescription, bashSchema),
		toolSpec(nameEdit, editDescription, editSchema),
		toolSpec(nameGrep, grepDescription, grepSchema),
	}
}

func toolSpec(name, description string, schema any) turnctl.ToolSpec {
	encoded, err := json.Marshal(schema)
	if err != nil {
		encoded = []byte("{}")
	}
	return turnctl.ToolSpec{Name: name, Description: description, InputSchema: encoded}
}
