package hooks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestRunner(t *testing.T, hs []Config) *Runner {
	t.Helper()
	cwd := t.TempDir()
	dir := filepath.Join(cwd, ".forgeflare")
	return &Runner{
		hooks:           hs,
		cwd:             cwd,
		convergenceDir:  dir,
		convergencePath: filepath.Join(dir, "convergence.json"),
		convergenceTmp:  filepath.Join(dir, "convergence.json.tmp"),
	}
}

func TestPreToolUse_GuardAllows(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPreToolUse, Command: `echo '{"action":"allow"}'`},
	})

	got := r.PreToolUse(context.Background(), "Read", json.RawMessage(`{"file_path":"a"}`), 0)
	if got.Blocked {
		t.Fatalf("expected allow, got blocked: %+v", got)
	}
}

func TestPreToolUse_GuardBlocks(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPreToolUse, Command: `echo '{"action":"block","reason":"nope"}'`},
	})

	got := r.PreToolUse(context.Background(), "Bash", json.RawMessage(`{"command":"rm -rf /"}`), 0)
	if !got.Blocked {
		t.Fatal("expected the tool call to be blocked")
	}
	if got.Reason == "" {
		t.Error("expected a non-empty block reason")
	}
}

func TestPreToolUse_FirstBlockWins(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPreToolUse, Command: `echo '{"action":"allow"}'`},
		{Event: eventPreToolUse, Command: `echo '{"action":"block","reason":"second guard blocked it"}'`},
	})

	got := r.PreToolUse(context.Background(), "Bash", json.RawMessage(`{}`), 0)
	if !got.Blocked {
		t.Fatal("expected the second guard's block to win")
	}
	if got.BlockedBy == "" {
		t.Error("expected BlockedBy to identify the blocking hook's command")
	}
}

func TestPreToolUse_HookFailureBlocksClosed(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPreToolUse, Command: `exit 1`},
	})

	got := r.PreToolUse(context.Background(), "Bash", json.RawMessage(`{}`), 0)
	if !got.Blocked {
		t.Fatal("expected a failing guard hook to block closed, not fail open")
	}
}

func TestPreToolUse_ObserveRunsUnconditionallyEvenWhenBlocked(t *testing.T) {
	cwd := t.TempDir()
	marker := filepath.Join(cwd, "observed")
	r := &Runner{
		hooks: []Config{
			{Event: eventPreToolUse, Command: `echo '{"action":"block","reason":"denied"}'`},
			{Event: eventPreToolUse, Phase: phaseObserve, Command: "touch " + marker},
		},
		cwd:             cwd,
		convergenceDir:  filepath.Join(cwd, ".forgeflare"),
		convergencePath: filepath.Join(cwd, ".forgeflare", "convergence.json"),
		convergenceTmp:  filepath.Join(cwd, ".forgeflare", "convergence.json.tmp"),
	}

	got := r.PreToolUse(context.Background(), "Bash", json.RawMessage(`{}`), 0)
	if !got.Blocked {
		t.Fatal("expected the guard to block")
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("expected the observe hook to run even though the guard blocked")
	}
}

func TestPreToolUse_ObserveFailsOpen(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPreToolUse, Phase: phaseObserve, Command: `exit 1`},
	})

	got := r.PreToolUse(context.Background(), "Bash", json.RawMessage(`{}`), 0)
	if got.Blocked {
		t.Fatal("a failing observe hook must never block a tool call")
	}
}

func TestPreToolUse_MatchToolFilter(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPreToolUse, Command: `echo '{"action":"block","reason":"only bash"}'`, MatchTool: "Bash"},
	})

	got := r.PreToolUse(context.Background(), "Read", json.RawMessage(`{}`), 0)
	if got.Blocked {
		t.Fatal("a hook scoped to Bash must not fire for Read")
	}

	got = r.PreToolUse(context.Background(), "Bash", json.RawMessage(`{}`), 0)
	if !got.Blocked {
		t.Fatal("a hook scoped to Bash must fire for Bash")
	}
}

func TestPostToolUse_NoMatchingHooksReturnsZeroValue(t *testing.T) {
	r := newTestRunner(t, nil)
	got := r.PostToolUse(context.Background(), "Read", json.RawMessage(`{}`), "ok", false, 0)
	if got.Signaled {
		t.Error("expected no signal when no PostToolUse hooks are configured")
	}
}

func TestPostToolUse_FirstSignalWinsButAllAreRecorded(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPostToolUse, Command: `echo '{"action":"signal","signal":"converge","reason":"first"}'`},
		{Event: eventPostToolUse, Command: `echo '{"action":"signal","signal":"done","reason":"second"}'`},
	})

	got := r.PostToolUse(context.Background(), "Read", json.RawMessage(`{}`), "file contents", false, 2)
	if !got.Signaled || got.Signal != "converge" {
		t.Fatalf("expected the first-configured hook's signal to win, got %+v", got)
	}

	state := readConvergence(r.convergencePath)
	if len(state.Observations) != 2 {
		t.Fatalf("expected both hooks' signals recorded as observations, got %d", len(state.Observations))
	}
}

func TestPostToolUse_NonSignalActionRecordsNothing(t *testing.T) {
	r := newTestRunner(t, []Config{
		{Event: eventPostToolUse, Command: `echo '{"action":"continue"}'`},
	})

	got := r.PostToolUse(context.Background(), "Read", json.RawMessage(`{}`), "ok", false, 0)
	if got.Signaled {
		t.Error("a 'continue' action must never produce a signal")
	}
	if _, err := os.Stat(r.convergencePath); err == nil {
		t.Error("expected no convergence file to be written when nothing signaled")
	}
}

func TestStop_WritesFinalConvergenceEntry(t *testing.T) {
	r := newTestRunner(t, nil)

	r.Stop(context.Background(), "end_turn", 7, 12345)

	state := readConvergence(r.convergencePath)
	if state.Final == nil {
		t.Fatal("expected a final entry to be written")
	}
	if state.Final.Reason != "end_turn" || state.Final.ToolIterations != 7 || state.Final.TotalTokens != 12345 {
		t.Errorf("final state = %+v, want reason=end_turn iterations=7 tokens=12345", state.Final)
	}
}

func TestStop_RunsConfiguredStopHooks(t *testing.T) {
	cwd := t.TempDir()
	marker := filepath.Join(cwd, "stopped")
	r := &Runner{
		hooks:           []Config{{Event: eventStop, Command: "touch " + marker}},
		cwd:             cwd,
		convergenceDir:  filepath.Join(cwd, ".forgeflare"),
		convergencePath: filepath.Join(cwd, ".forgeflare", "convergence.json"),
		convergenceTmp:  filepath.Join(cwd, ".forgeflare", "convergence.json.tmp"),
	}

	r.Stop(context.Background(), "api_error", 3, 500)

	if _, err := os.Stat(marker); err != nil {
		t.Error("expected the configured Stop hook to run")
	}
}

func TestClearConvergenceState_RemovesStaleFile(t *testing.T) {
	r := newTestRunner(t, nil)
	r.Stop(context.Background(), "end_turn", 1, 1) // populates the ledger

	if _, err := os.Stat(r.convergencePath); err != nil {
		t.Fatal("expected the convergence file to exist before clearing")
	}

	r.ClearConvergenceState(context.Background())

	if _, err := os.Stat(r.convergencePath); !os.IsNotExist(err) {
		t.Error("expected the convergence file to be removed")
	}
}

func TestHasHooks(t *testing.T) {
	if (newTestRunner(t, nil)).HasHooks() {
		t.Error("expected HasHooks to be false with no configured hooks")
	}
	if !(newTestRunner(t, []Config{{Event: eventStop, Command: "true"}})).HasHooks() {
		t.Error("expected HasHooks to be true with a configured hook")
	}
}
