package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/errclass"
	"github.com/basher83/forgeflare/core/turnctl"
	"github.com/basher83/forgeflare/internal/utils"
)

// StreamMessage implements turnctl.Client. It sends a streaming Messages
// request and decodes the Anthropic SSE lifecycle
// (message_start → content_block_start → content_block_delta →
// content_block_stop → message_delta → message_stop) into content blocks,
// stop reason, and usage, invoking onText for each text delta as it arrives.
//
// Mid-stream faults are reported as *errclass.Fault: an "error" event whose
// type is overloaded_error/api_error/rate_limit_error, a transport read
// error, or a stream that ends before a stop_reason was ever observed are
// all StreamTransient (recoverable by restarting the call); any other
// "error" event is StreamParse (permanent).
func (c *Client) StreamMessage(ctx context.Context, messages []conversation.Message, system string, model string, maxTokens int, tools []turnctl.ToolSpec, onText func(string)) ([]conversation.ContentBlock, conversation.StopReason, conversation.Usage, error) {
	req := anthropicRequest{
		Model:     model,
		Messages:  toAnthropicMessages(messages),
		System:    system,
		MaxTokens: maxTokens,
		Tools:     toAnthropicTools(tools),
		Stream:    true,
	}

	c.logf(ctx, "anthropic: streaming request model=%s messages=%d tools=%d", model, len(messages), len(tools))

	resp, err := c.postStream(ctx, req)
	if err != nil {
		return nil, "", conversation.Usage{}, err
	}
	defer utils.CloseWithLog(resp.Body)

	scanner := utils.NewSSEScanner(resp.Body)

	var blocks []conversation.ContentBlock
	// toolInputBufs accumulates input_json_delta fragments per block index,
	// finalized into the block's Input on content_block_stop.
	toolInputBufs := make(map[int]*[]byte)

	var usage conversation.Usage
	var stopReason conversation.StopReason

	for {
		if err := ctx.Err(); err != nil {
			return nil, "", usage, err
		}

		payload, sseErr := scanner.Next()
		if sseErr == io.EOF {
			break
		}
		if sseErr != nil {
			return nil, "", usage, errclass.NewStreamTransient(fmt.Errorf("SSE read: %w", sseErr))
		}

		event, parseErr := unmarshalStreamEvent(payload)
		if parseErr != nil {
			// A single malformed event is not worth aborting the whole
			// stream over; skip it and keep reading.
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage.InputTokens = event.Message.Usage.InputTokens
				usage.CacheCreationInputTokens = event.Message.Usage.CacheCreationInputTokens
				usage.CacheReadInputTokens = event.Message.Usage.CacheReadInputTokens
			}

		case "content_block_start":
			if event.ContentBlock == nil {
				continue
			}
			switch event.ContentBlock.Type {
			case "text":
				blocks = append(blocks, conversation.Text(""))
			case "tool_use":
				idx := len(blocks)
				blocks = append(blocks, conversation.ToolUse(event.ContentBlock.ID, event.ContentBlock.Name, nil))
				buf := make([]byte, 0, 64)
				toolInputBufs[idx] = &buf
			}

		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			index := event.Index
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text != "" {
					if onText != nil {
						onText(event.Delta.Text)
					}
					if index < len(blocks) && blocks[index].Type == conversation.BlockText {
						blocks[index].Text += event.Delta.Text
					}
				}
			case "input_json_delta":
				if buf, ok := toolInputBufs[index]; ok {
					*buf = append(*buf, event.Delta.PartialJSON...)
				}
			}

		case "content_block_stop":
			index := event.Index
			if buf, ok := toolInputBufs[index]; ok {
				delete(toolInputBufs, index)
				if index < len(blocks) && blocks[index].Type == conversation.BlockToolUse {
					if json.Valid(*buf) {
						blocks[index].Input = json.RawMessage(*buf)
					}
				}
			}

		case "message_delta":
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = mapStopReason(event.Delta.StopReason)
			}

		case "message_stop":
			// Terminal event; stop_reason was already captured on
			// message_delta. Nothing further to do.

		case "error":
			errType := "unknown"
			errMsg := "unknown stream error"
			if event.Error != nil {
				errType = event.Error.Type
				errMsg = event.Error.Message
			}
			switch errType {
			case "overloaded_error", "api_error", "rate_limit_error":
				return nil, "", usage, errclass.NewStreamTransient(fmt.Errorf("%s: %s", errType, errMsg))
			default:
				return nil, "", usage, errclass.NewStreamParse(fmt.Errorf("%s: %s", errType, errMsg))
			}

		case "ping":
			// Keep-alive; nothing to do.

		default:
			// Unknown event types are skipped for forward-compatibility.
		}
	}

	if stopReason == "" {
		return nil, "", usage, errclass.NewStreamTransient(fmt.Errorf("stream ended without stop_reason (connection drop)"))
	}

	return blocks, stopReason, usage, nil
}

func mapStopReason(raw string) conversation.StopReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return conversation.StopEndTurn
	case "max_tokens":
		return conversation.StopMaxTokens
	case "tool_use":
		return conversation.StopToolUse
	default:
		return conversation.StopEndTurn
	}
}

func toAnthropicMessages(messages []conversation.Message) []anthropicMessage {
	out := make([]anthropicMessage, len(messages))
	for i, m := range messages {
		out[i] = anthropicMessage{
			Role:    string(m.Role),
			Content: toAnthropicBlocks(m.Content),
		}
	}
	return out
}

func toAnthropicBlocks(blocks []conversation.ContentBlock) []anthropicContentBlock {
	out := make([]anthropicContentBlock, len(blocks))
	for i, b := range blocks {
		switch b.Type {
		case conversation.BlockText:
			out[i] = anthropicContentBlock{Type: "text", Text: b.Text}
		case conversation.BlockToolUse:
			input := b.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			out[i] = anthropicContentBlock{Type: "tool_use", ID: b.ID, Name: b.Name, Input: input}
		case conversation.BlockToolResult:
			out[i] = anthropicContentBlock{Type: "tool_result", ToolUseID: b.ToolUseID, Content: b.Content, IsError: b.IsError}
		}
	}
	return out
}

func toAnthropicTools(tools []turnctl.ToolSpec) []anthropicTool {
	out := make([]anthropicTool, len(tools))
	for i, t := range tools {
		out[i] = anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	return out
}
