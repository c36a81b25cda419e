// Package hooks implements the two-phase guard/observe PreToolUse protocol,
// the fail-open PostToolUse signalling protocol, the Stop protocol, and the
// persisted convergence ledger (§4.3). Grounded on original_source's
// hooks.rs, translated into Go idiom (os/exec + context.WithTimeout in place
// of tokio subprocess supervision).
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/basher83/forgeflare/core/parse"
	"github.com/basher83/forgeflare/providers/observability"
)

const (
	defaultTimeout     = 5000 * time.Millisecond
	defaultStopTimeout = 3000 * time.Millisecond
)

// PreResult is the outcome of the PreToolUse guard/observe protocol.
type PreResult struct {
	Blocked   bool
	Reason    string
	BlockedBy string
}

// PostResult is the outcome of the PostToolUse protocol.
type PostResult struct {
	Signaled bool
	Signal   string
	Reason   string
}

// Runner loads a hook configuration and invokes hooks at the controller's
// lifecycle points, persisting convergence state to
// <cwd>/.forgeflare/convergence.json.
type Runner struct {
	hooks []Config
	cwd   string

	convergenceDir  string
	convergencePath string
	convergenceTmp  string

	obs observability.Logger
}

// Load reads the TOML hook configuration at configPath (a missing file
// yields an empty hook set; a parse failure is reported on stderr and also
// yields an empty hook set) and prepares convergence-ledger paths rooted at
// cwd.
func Load(configPath, cwd string, obs observability.Logger) *Runner {
	hs := loadConfig(configPath)
	dir := filepath.Join(cwd, ".forgeflare")
	return &Runner{
		hooks:           hs,
		cwd:             cwd,
		convergenceDir:  dir,
		convergencePath: filepath.Join(dir, "convergence.json"),
		convergenceTmp:  filepath.Join(dir, "convergence.json.tmp"),
		obs:             obs,
	}
}

// HasHooks reports whether any hook is configured.
func (r *Runner) HasHooks() bool {
	return len(r.hooks) > 0
}

// ClearConvergenceState removes a stale convergence file from a prior run.
// Called once at startup, before the first turn.
func (r *Runner) ClearConvergenceState(ctx context.Context) {
	if err := clearConvergenceState(r.convergencePath); err != nil {
		r.warn(ctx, "failed to remove %s: %v", r.convergencePath, err)
	}
}

type guardOutput struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type postOutput struct {
	Action string `json:"action"`
	Signal string `json:"signal"`
	Reason string `json:"reason"`
}

// PreToolUse runs the guard phase (first block wins, any hook failure
// blocks closed) followed unconditionally by the observe phase (fail open).
func (r *Runner) PreToolUse(ctx context.Context, tool string, input json.RawMessage, toolIterations int) PreResult {
	var blocked bool
	var blockedBy, blockReason string

	for _, h := range r.hooks {
		if h.Event != eventPreToolUse || h.guardOrObserve() != phaseGuard || !matchesTool(h, tool) {
			continue
		}

		hookInput := map[string]any{
			"event":           eventPreToolUse,
			"phase":           phaseGuard,
			"tool":            tool,
			"input":           rawOrNull(input),
			"tool_iterations": toolIterations,
			"cwd":             r.cwd,
		}

		stdout, err := runSubprocess(ctx, h.Command, hookInput, timeoutOf(h, defaultTimeout))
		if err != nil {
			blocked = true
			blockedBy = h.Command
			blockReason = fmt.Sprintf("hook failed: %s %s (tool blocked by default)", h.Command, err.Error())
			break
		}

		out, err := parse.ParseStringAs[guardOutput](stdout)
		if err != nil {
			blocked = true
			blockedBy = h.Command
			blockReason = fmt.Sprintf("hook failed: %s returned invalid JSON (tool blocked by default)", h.Command)
			break
		}

		if out.Action == "block" {
			blocked = true
			blockedBy = h.Command
			blockReason = out.Reason
			if blockReason == "" {
				blockReason = "no reason provided"
			}
			break
		}
		// "allow" or anything else: continue to next guard
	}

	for _, h := range r.hooks {
		if h.Event != eventPreToolUse || h.Phase != phaseObserve || !matchesTool(h, tool) {
			continue
		}

		hookInput := map[string]any{
			"event":           eventPreToolUse,
			"phase":           phaseObserve,
			"tool":            tool,
			"input":           rawOrNull(input),
			"blocked":         blocked,
			"tool_iterations": toolIterations,
			"cwd":             r.cwd,
		}
		if blocked {
			hookInput["blocked_by"] = blockedBy
			hookInput["block_reason"] = blockReason
		}

		if _, err := runSubprocess(ctx, h.Command, hookInput, timeoutOf(h, defaultTimeout)); err != nil {
			r.warn(ctx, "observe hook %s failed: %v", h.Command, err)
		}
	}

	if !blocked {
		return PreResult{Blocked: false}
	}

	reason := blockReason
	if !strings.HasPrefix(reason, "hook failed:") {
		reason = fmt.Sprintf("blocked by %s: %s", blockedBy, blockReason)
	}
	return PreResult{Blocked: true, Reason: reason, BlockedBy: blockedBy}
}

// PostToolUse runs every matching hook unconditionally (fail-open). The
// first signal by configuration order is the returned outcome; every
// signal is recorded as a convergence observation in a single
// read-modify-write.
func (r *Runner) PostToolUse(ctx context.Context, tool string, input json.RawMessage, result string, isError bool, toolIterations int) PostResult {
	matching := make([]Config, 0)
	for _, h := range r.hooks {
		if h.Event == eventPostToolUse && matchesTool(h, tool) {
			matching = append(matching, h)
		}
	}
	if len(matching) == 0 {
		return PostResult{}
	}

	truncated := truncateResult(result)

	var firstSignal *PostResult
	var observations []Observation

	for _, h := range matching {
		hookInput := map[string]any{
			"event":           eventPostToolUse,
			"tool":            tool,
			"input":           rawOrNull(input),
			"result":          truncated,
			"is_error":        isError,
			"tool_iterations": toolIterations,
			"cwd":             r.cwd,
		}

		stdout, err := runSubprocess(ctx, h.Command, hookInput, timeoutOf(h, defaultTimeout))
		if err != nil {
			r.warn(ctx, "PostToolUse hook %s failed: %v", h.Command, err)
			continue
		}

		out, err := parse.ParseStringAs[postOutput](stdout)
		if err != nil {
			r.warn(ctx, "PostToolUse hook %s returned invalid JSON: %v", h.Command, err)
			continue
		}
		if out.Action != "signal" {
			continue
		}

		signal := out.Signal
		if signal == "" {
			signal = "unknown"
		}
		reason := out.Reason
		if reason == "" {
			reason = "no reason"
		}

		observations = append(observations, Observation{Signal: signal, Reason: reason, ToolIterations: toolIterations})
		if firstSignal == nil {
			firstSignal = &PostResult{Signaled: true, Signal: signal, Reason: reason}
		}
	}

	if len(observations) > 0 {
		if err := appendObservations(r.convergenceDir, r.convergencePath, r.convergenceTmp, observations); err != nil {
			r.warn(ctx, "failed to write convergence observations: %v", err)
		}
	}

	if firstSignal != nil {
		return *firstSignal
	}
	return PostResult{}
}

// Stop runs every Stop hook (fail-open, output parsed for logging only)
// then writes the convergence ledger's terminal "final" entry.
func (r *Runner) Stop(ctx context.Context, reason string, toolIterations, totalTokens int) {
	for _, h := range r.hooks {
		if h.Event != eventStop {
			continue
		}

		hookInput := map[string]any{
			"event":           eventStop,
			"reason":          reason,
			"tool_iterations": toolIterations,
			"total_tokens":    totalTokens,
			"cwd":             r.cwd,
		}

		stdout, err := runSubprocess(ctx, h.Command, hookInput, timeoutOf(h, defaultStopTimeout))
		if err != nil {
			r.warn(ctx, "Stop hook %s failed: %v", h.Command, err)
			continue
		}

		var parsed map[string]any
		if err := json.Unmarshal([]byte(stdout), &parsed); err == nil {
			action, _ := parsed["action"].(string)
			if action != "continue" {
				r.warn(ctx, "Stop hook %s returned unrecognized action: %s", h.Command, action)
			}
		}
	}

	final := FinalState{
		Reason:         reason,
		ToolIterations: toolIterations,
		TotalTokens:    totalTokens,
		Timestamp:      time.Now().UTC(),
	}
	if err := writeFinalState(r.convergenceDir, r.convergencePath, r.convergenceTmp, final); err != nil {
		r.warn(ctx, "failed to write convergence final state: %v", err)
	}
}

func timeoutOf(h Config, def time.Duration) time.Duration {
	if h.TimeoutMS == 0 {
		return def
	}
	return time.Duration(h.TimeoutMS) * time.Millisecond
}

func rawOrNull(input json.RawMessage) json.RawMessage {
	if len(input) == 0 {
		return json.RawMessage("null")
	}
	return input
}

func (r *Runner) warn(ctx context.Context, format string, args ...any) {
	if r.obs != nil {
		r.obs.Warn(ctx, fmt.Sprintf(format, args...))
		return
	}
	fmt.Printf("[hooks] "+format+"\n", args...)
}
