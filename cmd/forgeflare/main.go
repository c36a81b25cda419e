// Command forgeflare is a streaming coding agent powered by Claude. It reads
// a single prompt from piped stdin, or drops into an interactive REPL when
// stdin is a terminal, grounded on original_source/src/main.rs's CLI shape.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/cost"
	"github.com/basher83/forgeflare/core/hooks"
	"github.com/basher83/forgeflare/core/session/jsonlwriter"
	"github.com/basher83/forgeflare/core/turnctl"
	"github.com/basher83/forgeflare/providers/anthropic"
	"github.com/basher83/forgeflare/providers/observability/slogobs"
	"github.com/basher83/forgeflare/providers/tool"
)

const (
	defaultModel   = "claude-opus-4-5"
	defaultAPIURL  = "https://api.anthropic.com"
	hookConfigFile = "forgeflare.toml"
)

// opusPricing is an illustrative per-million-token rate used only for the
// CLI's verbose cost estimate; it is not authoritative billing data.
var opusPricing = cost.ModelCost{
	InputCostPerMillion:       15.0,
	OutputCostPerMillion:      75.0,
	CachedInputCostPerMillion: 1.5,
}

type cliFlags struct {
	verbose   bool
	model     string
	maxTokens int
	apiURL    string
}

func main() {
	_ = godotenv.Load()

	flags := &cliFlags{}
	root := &cobra.Command{
		Use:   "forgeflare",
		Short: "A streaming coding agent powered by Claude",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	root.Flags().BoolVar(&flags.verbose, "verbose", false, "Enable verbose debug output")
	root.Flags().StringVar(&flags.model, "model", defaultModel, "Model to use")
	root.Flags().IntVar(&flags.maxTokens, "max-tokens", 16384, "Maximum tokens in response")
	root.Flags().StringVar(&flags.apiURL, "api-url", envOr("ANTHROPIC_API_URL", defaultAPIURL), "API base URL (without /v1/messages path)")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, flags *cliFlags) error {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	obs := slogobs.New(
		slogobs.WithFormat(slogobs.FormatPretty),
		slogobs.WithOutput(os.Stderr),
	)

	client := anthropic.New(
		anthropic.WithBaseURL(strings.TrimRight(flags.apiURL, "/")+"/v1"),
		anthropic.WithObservability(obs),
	)

	if flags.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] API URL: %s\n", flags.apiURL)
		fmt.Fprintf(os.Stderr, "[verbose] Model: %s\n", flags.model)
		fmt.Fprintf(os.Stderr, "[verbose] Max tokens: %d\n", flags.maxTokens)
		keyState := "none (OAuth proxy mode)"
		if os.Getenv("ANTHROPIC_API_KEY") != "" {
			keyState = "present"
		}
		fmt.Fprintf(os.Stderr, "[verbose] API key: %s\n", keyState)
	}

	dispatcher := tool.NewDispatcher()
	hookRunner := hooks.Load(filepath.Join(cwd, hookConfigFile), cwd, obs)
	hookRunner.ClearConvergenceState(ctx)
	writer := jsonlwriter.New(filepath.Join(cwd, ".forgeflare", "sessions"), cwd, flags.model)
	buf := conversation.NewBuffer()

	cfg := turnctl.Config{
		Model:     flags.model,
		MaxTokens: flags.maxTokens,
		System:    buildSystemPrompt(cwd),
		Tools:     tool.ToolSpecs(),
	}

	var totalCostUSD float64
	toolEchoStart := func(name string, input json.RawMessage) {
		if flags.verbose {
			fmt.Fprintf(os.Stderr, "\n[tool] %s(%s)\n", name, truncateJSON(input, 100))
		} else {
			fmt.Fprintf(os.Stderr, "\n[tool] %s\n", name)
		}
	}
	toolEchoResult := func(name, content string, isError bool) {
		fmt.Fprintln(os.Stderr, formatToolResultDisplay(content, isError, flags.verbose))
	}

	controller := turnctl.New(client, dispatcher, hookRunner, writer, buf, cfg, cwd,
		turnctl.WithObservability(obs),
		turnctl.WithToolEcho(toolEchoStart, toolEchoResult),
	)

	onText := func(text string) {
		fmt.Print(text)
	}

	if !isTerminal(os.Stdin) {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		prompt := strings.TrimSpace(string(input))
		if prompt == "" {
			return nil
		}
		stopTag := controller.RunTurn(ctx, prompt, onText)
		reportTurn(flags, controller, stopTag, &totalCostUSD)
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		if useColor() {
			fmt.Fprint(os.Stderr, "\x1b[1;34m> \x1b[0m")
		} else {
			fmt.Fprint(os.Stderr, "> ")
		}

		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		prompt := strings.TrimSpace(line)
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			break
		}

		stopTag := controller.RunTurn(ctx, prompt, onText)
		reportTurn(flags, controller, stopTag, &totalCostUSD)
	}

	return nil
}

func reportTurn(flags *cliFlags, controller *turnctl.Controller, stopTag string, totalCostUSD *float64) {
	if !flags.verbose {
		return
	}
	input, output := controller.TokenBreakdown()
	turnCost := opusPricing.CalculateTotalCost(input, output, 0, 0)
	*totalCostUSD += turnCost
	fmt.Fprintf(os.Stderr, "[verbose] stop=%s tokens=%d (in=%d out=%d) cost=$%.6f total=$%.6f\n",
		stopTag, input+output, input, output, turnCost, *totalCostUSD)
}

func buildSystemPrompt(cwd string) string {
	return fmt.Sprintf(
		"You are a coding assistant with access to tools for reading, searching, editing files, "+
			"and running commands.\n\n"+
			"Environment:\n"+
			"- Working directory: %s\n"+
			"- Platform: %s\n\n"+
			"Available tools (use PascalCase names exactly):\n"+
			"- Read: Read file contents (max 1MB)\n"+
			"- Glob: List files matching a pattern (max 1000 entries)\n"+
			"- Bash: Execute shell commands (120s timeout)\n"+
			"- Edit: Edit files with exact text replacement (max 100KB, use replace_all for bulk)\n"+
			"- Grep: Search file contents with ripgrep (max 50 matches)\n\n"+
			"Guidelines:\n"+
			"- Read files before editing them\n"+
			"- Use Grep to find code before making changes\n"+
			"- Prefer targeted edits over full file rewrites\n"+
			"- Explain what you're doing and why",
		cwd, runtime.GOOS,
	)
}

func useColor() bool {
	_, noColor := os.LookupEnv("NO_COLOR")
	return !noColor
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func truncateJSON(raw json.RawMessage, maxLen int) string {
	s := string(raw)
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isUTF8Boundary(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isUTF8Boundary(b byte) bool {
	return b&0xC0 != 0x80
}

func formatToolResultDisplay(result string, isError, verbose bool) string {
	if isError {
		preview := result
		if len(preview) > 200 {
			cut := 200
			for cut > 0 && !isUTF8Boundary(preview[cut]) {
				cut--
			}
			preview = preview[:cut] + "..."
		}
		return "  Error: " + preview
	}
	if verbose {
		return result
	}
	return fmt.Sprintf("  (%d chars)", len(result))
}
