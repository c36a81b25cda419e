// Package session defines the turn controller's external contract onto
// conversation journaling (§4 "Session Writer (contract)"): append a user
// turn, append an assistant turn, and render a final context summary.
// Concrete backends (jsonlwriter, pgsession) implement Writer.
package session

import "github.com/basher83/forgeflare/core/conversation"

// ToolAction is one recorded tool invocation, used to render the "Key
// Actions" section of a session's context summary.
type ToolAction struct {
	Name     string
	FirstArg string
}

// Writer is the append-only per-session log the controller writes to after
// every turn boundary. Implementations must make AppendUserTurn and
// AppendAssistantTurn safe to call from the controller's single goroutine
// only — no concurrent-write guarantee is required.
type Writer interface {
	// WritePrompt records the turn's originating prompt. Write-once: later
	// calls within the same session are no-ops.
	WritePrompt(prompt string) error

	// AppendUserTurn records a user message, including any ToolResult
	// blocks it carries.
	AppendUserTurn(msg conversation.Message) error

	// AppendAssistantTurn records an assistant message and the tool
	// actions dispatched from it, if any.
	AppendAssistantTurn(msg conversation.Message, actions []ToolAction) error

	// WriteContext renders a final human-readable summary (model, session
	// id, start time, cwd, key actions) to the session's store (context.md
	// for jsonlwriter, the sessions table for pgsession).
	WriteContext(model, cwd string) error
}
