package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestIsDeniedCommand(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"rm -rf /", true},
		{"sudo   rm   -rf   /", true}, // whitespace-normalized match
		{"RM -RF /", true},            // case-insensitive
		{"dd if=/dev/zero of=/dev/sda", true},
		{"mkfs.ext4 /dev/sda1", true},
		{"git push --force origin main", true},
		{"git push -f", true},
		{"rm -rf /tmp/scratch", false},
		{"ls -la", false},
		{"echo hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			if got := isDeniedCommand(tt.command); got != tt.want {
				t.Errorf("isDeniedCommand(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestNormalizeCommand(t *testing.T) {
	got := normalizeCommand("  echo   hello    world  ")
	if got != "echo hello world" {
		t.Errorf("normalizeCommand() = %q", got)
	}
}

func TestBashExec_MissingCommand(t *testing.T) {
	out, isErr := bashExec(context.Background(), json.RawMessage(`{}`), nil)
	if !isErr || out != "missing required parameter: command" {
		t.Errorf("got (%q, %v)", out, isErr)
	}
}

func TestBashExec_DeniedCommandBlocked(t *testing.T) {
	input, _ := json.Marshal(BashInput{Command: "rm -rf /"})
	out, isErr := bashExec(context.Background(), input, nil)
	if !isErr {
		t.Fatal("expected a denied command to be blocked")
	}
	if !strings.Contains(out, "blocked by safety guard") {
		t.Errorf("out = %q", out)
	}
}

func TestBashExec_RunsCommandAndCapturesOutput(t *testing.T) {
	input, _ := json.Marshal(BashInput{Command: "echo hello"})
	out, isErr := bashExec(context.Background(), input, nil)
	if isErr {
		t.Fatalf("unexpected error: %q", out)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("out = %q", out)
	}
}

func TestBashExec_StreamsOutputLineByLine(t *testing.T) {
	var lines []string
	input, _ := json.Marshal(BashInput{Command: "echo one; echo two"})

	out, isErr := bashExec(context.Background(), input, func(chunk string) {
		lines = append(lines, chunk)
	})
	if isErr {
		t.Fatalf("unexpected error: %q", out)
	}
	if len(lines) != 2 || lines[0] != "one\n" || lines[1] != "two\n" {
		t.Errorf("streamed lines = %v", lines)
	}
}

func TestBashExec_NonZeroExitIsAnError(t *testing.T) {
	input, _ := json.Marshal(BashInput{Command: "exit 7"})
	out, isErr := bashExec(context.Background(), input, nil)
	if !isErr {
		t.Fatal("expected a non-zero exit to be reported as an error")
	}
	if !strings.Contains(out, "exit code 7") {
		t.Errorf("out = %q", out)
	}
}

func TestBashExec_TimeoutReportsPartialOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	input, _ := json.Marshal(BashInput{Command: "echo partial; sleep 5"})
	out, isErr := bashExec(ctx, input, nil)
	if !isErr {
		t.Fatal("expected a context deadline to be reported as an error")
	}
	if !strings.Contains(out, "partial") {
		t.Errorf("expected partial output to be preserved, got %q", out)
	}
}
