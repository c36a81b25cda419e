// Package turnctl implements the turn controller: the orchestration core
// that drives one user turn through the LLM→tools→LLM loop with retry,
// conversation-shape recovery, history trimming, response continuation,
// concurrent-vs-sequential tool dispatch, and hook weaving (spec §4.5).
package turnctl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/hooks"
	"github.com/basher83/forgeflare/core/session"
	"github.com/basher83/forgeflare/core/tooldispatch"
	"github.com/basher83/forgeflare/providers/observability"
)

// MaxToolIterations caps the number of tool-dispatch rounds within a single
// turn (§4.5 Top-of-loop invariants).
const MaxToolIterations = 50

// MaxContinuations caps automatic "Continue from where you left off."
// nudges issued when MaxTokens truncates a text-only response.
const MaxContinuations = 3

// Block budget limits (§ Block budgets and precedence).
const (
	MaxConsecutiveBlocks = 3
	MaxTotalBlocks       = 10
)

// Canonical stop tags (§6, exactly seven values).
const (
	TagEndTurn                = "end_turn"
	TagIterationLimit         = "iteration_limit"
	TagAPIError               = "api_error"
	TagContinuationCap        = "continuation_cap"
	TagBlockLimitConsecutive  = "block_limit_consecutive"
	TagBlockLimitTotal        = "block_limit_total"
	TagConvergenceSignal      = "convergence_signal"
)

// ToolSpec describes a tool's name, description, and JSON input schema as
// presented to the model — supplied by the caller (providers/tool derives
// these from the catalog via internal/jsonschema).
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Client is the controller's view of the LLM transport: one streamed call
// that returns the assembled content blocks, stop reason, and usage, or a
// classified error (an *errclass.Fault). onText receives text deltas as
// they arrive.
type Client interface {
	StreamMessage(ctx context.Context, messages []conversation.Message, system string, model string, maxTokens int, tools []ToolSpec, onText func(string)) ([]conversation.ContentBlock, conversation.StopReason, conversation.Usage, error)
}

// Config carries the per-turn model configuration.
type Config struct {
	Model     string
	MaxTokens int
	System    string
	Tools     []ToolSpec
}

// Controller drives a single user turn. Construct with New and functional
// options, then call RunTurn once per prompt.
type Controller struct {
	client     Client
	dispatcher tooldispatch.Dispatcher
	hooks      *hooks.Runner
	writer     session.Writer
	buf        *conversation.Buffer
	cfg        Config
	cwd        string
	obs        observability.Logger

	onToolStart  func(name string, input json.RawMessage)
	onToolResult func(name, content string, isError bool)

	// per-turn counters, reset at the top of RunTurn
	toolIterations        int
	continuationCount     int
	lastInputTokens       int
	consecutiveBlockCount int
	totalBlockCount       int
	totalTokens           int
	totalInputTokens      int
	totalOutputTokens     int
	stopTag               string
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithObservability attaches a structured logger for span/warn output.
func WithObservability(obs observability.Logger) Option {
	return func(c *Controller) { c.obs = obs }
}

// WithToolEcho attaches callbacks fired around every dispatched tool call —
// onStart before invocation, onResult after. Either may be nil. Intended
// for CLI-style verbose tool echoing; both run synchronously on whichever
// goroutine dispatched the tool, so they must not block.
func WithToolEcho(onStart func(name string, input json.RawMessage), onResult func(name, content string, isError bool)) Option {
	return func(c *Controller) {
		c.onToolStart = onStart
		c.onToolResult = onResult
	}
}

func (c *Controller) echoToolStart(name string, input json.RawMessage) {
	if c.onToolStart != nil {
		c.onToolStart(name, input)
	}
}

func (c *Controller) echoToolResult(name, content string, isError bool) {
	if c.onToolResult != nil {
		c.onToolResult(name, content, isError)
	}
}

// New constructs a Controller over the given conversation buffer,
// collaborators, and configuration.
func New(client Client, dispatcher tooldispatch.Dispatcher, hookRunner *hooks.Runner, writer session.Writer, buf *conversation.Buffer, cfg Config, cwd string, opts ...Option) *Controller {
	c := &Controller{
		client:     client,
		dispatcher: dispatcher,
		hooks:      hookRunner,
		writer:     writer,
		buf:        buf,
		cfg:        cfg,
		cwd:        cwd,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TotalTokens returns the combined input+output token count accumulated
// across every LLM call made during the most recent RunTurn.
func (c *Controller) TotalTokens() int {
	return c.totalTokens
}

// TokenBreakdown returns the cumulative input and output token counts
// separately, for callers (e.g. the CLI's verbose cost estimate) that need
// core/cost.ModelCost's per-kind rates rather than a single combined total.
func (c *Controller) TokenBreakdown() (input, output int) {
	return c.totalInputTokens, c.totalOutputTokens
}

func (c *Controller) resetCounters() {
	c.toolIterations = 0
	c.continuationCount = 0
	c.lastInputTokens = 0
	c.consecutiveBlockCount = 0
	c.totalBlockCount = 0
	c.totalTokens = 0
	c.totalInputTokens = 0
	c.totalOutputTokens = 0
	c.stopTag = ""
}

func (c *Controller) logf(ctx context.Context, format string, args ...any) {
	if c.obs == nil {
		return
	}
	c.obs.Info(ctx, fmt.Sprintf(format, args...))
}
