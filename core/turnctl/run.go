package turnctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/session"
)

// RunTurn drives one user turn to completion: append the prompt, loop
// through LLM calls and tool dispatch rounds, and return the canonical stop
// tag once the turn concludes. onText forwards streamed assistant text to
// the caller (e.g. the CLI's stdout).
func (c *Controller) RunTurn(ctx context.Context, prompt string, onText func(string)) string {
	c.resetCounters()

	userMsg := conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentBlock{conversation.Text(prompt)}}
	c.buf.Append(userMsg)
	if c.writer != nil {
		_ = c.writer.WritePrompt(prompt)
		_ = c.writer.AppendUserTurn(userMsg)
	}

	for {
		if c.toolIterations >= MaxToolIterations {
			c.stopTag = TagIterationLimit
			break
		}

		result, ok := c.callWithRetry(ctx, onText)
		if !ok {
			break // stopTag already set to api_error, conversation already recovered
		}

		c.lastInputTokens = result.usage.InputTokens
		c.totalTokens += result.usage.InputTokens + result.usage.OutputTokens
		c.totalInputTokens += result.usage.InputTokens
		c.totalOutputTokens += result.usage.OutputTokens

		if result.stop == conversation.StopMaxTokens {
			result.blocks = filterNullInputToolUse(result.blocks)
		}

		assistantMsg := conversation.Message{Role: conversation.RoleAssistant, Content: result.blocks}
		c.buf.Append(assistantMsg)

		done := false
		switch result.stop {
		case conversation.StopEndTurn:
			fmt.Println()
			c.stopTag = TagEndTurn
			done = true

		case conversation.StopMaxTokens:
			switch maxTokensCase(assistantMsg) {
			case maxTokensEmpty:
				c.stopTag = TagContinuationCap
				done = true
			case maxTokensHasTools:
				done = c.runToolDispatch(ctx, assistantMsg)
			case maxTokensTextOnly:
				done = c.continueOrCap()
			}

		case conversation.StopToolUse:
			done = c.runToolDispatch(ctx, assistantMsg)
		}

		if c.writer != nil {
			_ = c.writer.AppendAssistantTurn(assistantMsg, toolActionsOf(assistantMsg))
		}

		if done {
			break
		}
	}

	if c.hooks != nil {
		c.hooks.Stop(ctx, c.stopTag, c.toolIterations, c.totalTokens)
	}
	if c.writer != nil {
		_ = c.writer.WriteContext(c.cfg.Model, c.cwd)
	}

	return c.stopTag
}

// maxTokensClass classifies a (already null-filtered) assistant message
// under a MaxTokens stop, per §4.5 stop-reason branch case 2.
type maxTokensClass int

const (
	maxTokensEmpty maxTokensClass = iota
	maxTokensHasTools
	maxTokensTextOnly
)

func maxTokensCase(assistantMsg conversation.Message) maxTokensClass {
	if isPlaceholderOnly(assistantMsg.Content) {
		return maxTokensEmpty
	}
	if len(assistantMsg.ToolUseBlocks()) > 0 {
		return maxTokensHasTools
	}
	return maxTokensTextOnly
}

func isPlaceholderOnly(blocks []conversation.ContentBlock) bool {
	return len(blocks) == 1 && blocks[0].Type == conversation.BlockText && blocks[0].Text == "[Response truncated]"
}

// continueOrCap nudges a continuation when under the cap, or ends the turn
// with continuation_cap once it is reached.
func (c *Controller) continueOrCap() bool {
	if c.continuationCount < MaxContinuations {
		c.continuationCount++
		cont := conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentBlock{conversation.Text("Continue from where you left off.")}}
		c.buf.Append(cont)
		if c.writer != nil {
			_ = c.writer.AppendUserTurn(cont)
		}
		return false
	}

	c.stopTag = TagContinuationCap
	return true
}

// runToolDispatch executes a dispatch round and applies its outcome to the
// conversation and counters, returning true if the turn is over.
func (c *Controller) runToolDispatch(ctx context.Context, assistantMsg conversation.Message) bool {
	outcome := c.dispatchToolBatch(ctx, assistantMsg)

	if outcome.thresholdTag != "" {
		c.buf.PopLast() // discard: the model's turn never happened, protocol-wise
		c.stopTag = outcome.thresholdTag
		return true
	}

	if len(outcome.results) > 0 {
		resultMsg := conversation.Message{Role: conversation.RoleUser, Content: outcome.results}
		c.buf.Append(resultMsg)
		c.toolIterations++
		if c.writer != nil {
			_ = c.writer.AppendUserTurn(resultMsg)
		}
	}

	if outcome.signalBreak {
		c.stopTag = TagConvergenceSignal
		return true
	}
	return false
}

// toolActionsOf extracts a session.ToolAction per ToolUse block in msg, for
// the session writer's "Key Actions" rendering.
func toolActionsOf(msg conversation.Message) []session.ToolAction {
	blocks := msg.ToolUseBlocks()
	if len(blocks) == 0 {
		return nil
	}
	actions := make([]session.ToolAction, 0, len(blocks))
	for _, b := range blocks {
		actions = append(actions, session.ToolAction{Name: b.Name, FirstArg: extractFirstArg(b.Input)})
	}
	return actions
}

// extractFirstArg takes the first object field's value — in the order it
// appears in the JSON text, not Go's randomized map-iteration order — from
// a tool's JSON input, and truncates it to 80 bytes on a UTF-8 boundary,
// matching the session journal's compact action summary. A map[string]Any
// decode would pick an arbitrary field on every run; a single-pass token
// walk preserves the source order, matching original_source's
// extract_first_arg over serde_json::Value::Object's insertion-ordered map.
func extractFirstArg(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(input))
	tok, err := dec.Token()
	if err != nil {
		return ""
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ""
	}
	if !dec.More() {
		return "" // empty object
	}

	keyTok, err := dec.Token()
	if err != nil {
		return ""
	}
	if _, ok := keyTok.(string); !ok {
		return ""
	}

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return ""
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		value = string(raw)
	}

	const limit = 80
	if len(value) <= limit {
		return value
	}
	cut := floorCharBoundaryLocal(value, limit)
	return value[:cut] + "..."
}

func floorCharBoundaryLocal(s string, n int) int {
	for n > 0 && n < len(s) && !isUTF8Boundary(s[n]) {
		n--
	}
	return n
}

func isUTF8Boundary(b byte) bool {
	return b&0xC0 != 0x80
}
