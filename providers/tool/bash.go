package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/basher83/forgeflare/core/tooldispatch"
	"github.com/basher83/forgeflare/internal/jsonschema"
)

const bashTimeout = 120 * time.Second

// bashDenyList blocks commands with obviously destructive intent before
// they ever reach a shell. Substring match against a whitespace-normalized
// lowercased command.
var bashDenyList = []string{
	"rm -rf /",
	"rm -fr /",
	"rm -rf /*",
	"rm -fr /*",
	":(){ :|:& };:",
	"dd if=/dev",
	"mkfs",
	"chmod 777 /",
	"git push --force",
	"git push -f",
}

// BashInput is the Bash tool's argument shape.
type BashInput struct {
	Command string `json:"command"`
}

func normalizeCommand(command string) string {
	return strings.Join(strings.Fields(command), " ")
}

func isDeniedCommand(command string) bool {
	normalized := strings.ToLower(normalizeCommand(command))
	for _, pattern := range bashDenyList {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	return false
}

// bashExec runs command in a shell, streaming combined stdout/stderr to
// stream (if non-nil) as it is produced and returning the accumulated
// output. A 120s wall-clock deadline kills the child and reports a timeout;
// partial output is preserved either way.
func bashExec(ctx context.Context, rawInput json.RawMessage, stream tooldispatch.StreamFunc) (string, bool) {
	var in BashInput
	if err := json.Unmarshal(rawInput, &in); err != nil || in.Command == "" {
		return "missing required parameter: command", true
	}

	if isDeniedCommand(in.Command) {
		return fmt.Sprintf("Command blocked by safety guard: %s", in.Command), true
	}

	ctx, cancel := context.WithTimeout(ctx, bashTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", in.Command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Sprintf("failed to start command: %v", err), true
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Sprintf("failed to start command: %v", err), true
	}

	if err := cmd.Start(); err != nil {
		return fmt.Sprintf("failed to start command: %v", err), true
	}

	var mu sync.Mutex
	var output strings.Builder

	emit := func(line string) {
		mu.Lock()
		output.WriteString(line)
		mu.Unlock()
		if stream != nil {
			stream(line)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(stdout, emit, &wg)
	go streamLines(stderr, emit, &wg)
	wg.Wait()

	waitErr := cmd.Wait()

	mu.Lock()
	collected := output.String()
	mu.Unlock()

	if ctx.Err() == context.DeadlineExceeded {
		if collected == "" {
			return fmt.Sprintf("Command timed out after 120s: %s", in.Command), true
		}
		return fmt.Sprintf("Command timed out after 120s (partial output):\n%s", collected), true
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			msg := fmt.Sprintf("Command failed with exit code %d", exitErr.ExitCode())
			if collected != "" {
				msg += ":\n" + collected
			}
			return msg, true
		}
		return fmt.Sprintf("failed to run command: %v", waitErr), true
	}

	return collected, false
}

// streamLines line-buffers r into emit, matching original_source's
// line-at-a-time (not byte-at-a-time) subprocess streaming.
func streamLines(r io.Reader, emit func(string), wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text() + "\n")
	}
}

var bashSchema = jsonschema.GenerateJSONSchema[BashInput]()

const bashDescription = "Execute a shell command via bash. Streams output as it is produced. 120 second timeout. Destructive commands (rm -rf /, fork bombs, etc.) are blocked."
