package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/basher83/forgeflare/internal/jsonschema"
)

const grepMaxCount = 50

// GrepInput is the Grep tool's argument shape.
type GrepInput struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	CaseSensitive *bool  `json:"case_sensitive,omitempty"`
}

func grepExec(rawInput json.RawMessage) (string, bool) {
	var in GrepInput
	if err := json.Unmarshal(rawInput, &in); err != nil || in.Pattern == "" {
		return "missing required parameter: pattern", true
	}

	if err := exec.Command("which", "rg").Run(); err != nil {
		return "ripgrep (rg) is not installed. Install it with: brew install ripgrep (macOS) or apt install ripgrep (Linux)", true
	}

	path := in.Path
	if path == "" {
		path = "."
	}

	args := []string{"--max-count=50", "--line-number", "--no-heading", "--color=never"}
	if in.CaseSensitive != nil && !*in.CaseSensitive {
		args = append(args, "-i")
	}
	if in.FileType != "" {
		args = append(args, "--type", in.FileType)
	}
	args = append(args, in.Pattern, path)

	cmd := exec.Command("rg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return fmt.Sprintf("failed to run rg: %v", err), true
		}
		if exitErr.ExitCode() == 1 {
			return "No matches found", false
		}
		trimmedErr := strings.TrimSpace(stderr.String())
		if trimmedErr != "" {
			return trimmedErr, true
		}
		return fmt.Sprintf("rg exited with code %d", exitErr.ExitCode()), true
	}

	trimmed := strings.TrimSpace(stdout.String())
	if trimmed == "" {
		return "No matches found", false
	}
	return trimmed, false
}

var grepSchema = jsonschema.GenerateJSONSchema[GrepInput]()

const grepDescription = "Search file contents for a pattern using ripgrep. Returns up to 50 matches per file with file:line prefixes."
