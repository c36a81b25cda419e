package turnctl

import "github.com/basher83/forgeflare/core/conversation"

// contextBudgetBytes is the byte budget the trim gate enforces, grounded on
// original_source's CONTEXT_BUDGET_BYTES constant.
const contextBudgetBytes = 720_000

// trimThresholdTokens is 60% of a 200,000-token context window. The trim
// gate re-runs the byte-based trim once the prior call's input_tokens
// crosses this line.
const trimThresholdTokens = 120_000

// shouldTrim implements the §4.5 trim gate policy: trim on the first call of
// a turn (no usage data yet) and again once input token usage crosses the
// threshold; skip it in between.
func shouldTrim(lastInputTokens int) bool {
	return lastInputTokens == 0 || lastInputTokens >= trimThresholdTokens
}

// trimConversation applies the byte-based trim: if the conversation already
// fits the budget (or has 2 or fewer messages) it is left unchanged.
// Otherwise the first message is held aside, and messages are dropped from
// the front of the remainder — preserving role alternation by also
// dropping a leading assistant message — until the budget is met. The
// first message is always reinserted at position 0: it carries the
// session's top-level intent, and trimming from the middle would break
// tool_use/tool_result pairing.
func trimConversation(messages []conversation.Message) []conversation.Message {
	if serializedSize(messages) <= contextBudgetBytes || len(messages) <= 2 {
		return messages
	}

	first := messages[0]
	rest := append([]conversation.Message(nil), messages[1:]...)

	for len(rest) > 1 {
		if serializedSize(append([]conversation.Message{first}, rest...)) <= contextBudgetBytes {
			break
		}
		rest = rest[1:]
		if len(rest) > 0 && rest[0].Role == conversation.RoleAssistant {
			rest = rest[1:]
		}
	}

	return append([]conversation.Message{first}, rest...)
}

func serializedSize(messages []conversation.Message) int {
	b := conversation.NewBufferFrom(messages)
	return b.SerializedBytes()
}

// recoverConversation restores the conversation to a valid exchange prefix
// after a broken API call: pop a trailing user message if present, then pop
// a trailing assistant message if its content is entirely ToolUse blocks
// (an orphaned tool request with no answer) — and in that case also pop the
// user message that preceded it.
func recoverConversation(buf *conversation.Buffer) {
	if last, ok := buf.Last(); ok && last.Role == conversation.RoleUser {
		buf.PopLast()
	}
	if last, ok := buf.Last(); ok && last.Role == conversation.RoleAssistant && last.AllToolUse() {
		buf.PopLast()
		if last, ok := buf.Last(); ok && last.Role == conversation.RoleUser {
			buf.PopLast()
		}
	}
}

// filterNullInputToolUse drops ToolUse blocks whose input never arrived
// (truncation artifacts under MaxTokens that cannot be answered). If
// filtering would leave the message empty, a single placeholder Text block
// is substituted so the conversation never holds an empty-content message.
func filterNullInputToolUse(blocks []conversation.ContentBlock) []conversation.ContentBlock {
	filtered := make([]conversation.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == conversation.BlockToolUse && b.NullInput() {
			continue
		}
		filtered = append(filtered, b)
	}
	if len(filtered) == 0 {
		return []conversation.ContentBlock{conversation.Text("[Response truncated]")}
	}
	return filtered
}
