// Package conversation defines the wire-independent data model shared by
// the stream decoder, the turn controller, and the session writer: content
// blocks, messages, usage counters, and stop reasons.
package conversation

import "encoding/json"

// Role is the author of a Message. Conversations alternate strictly
// between RoleUser and RoleAssistant, starting with RoleUser.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates the shape populated on a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is a tagged variant with three shapes, represented as a
// single struct with a Type discriminator and every variant's optional
// fields — the same pattern the Anthropic wire format itself uses for
// content blocks, so conversion to and from the wire is a near no-op.
//
//   - Text{Text}: a run of assistant prose.
//   - ToolUse{ID,Name,Input}: Input is an arbitrary JSON value and may be
//     nil when the model was truncated mid-argument.
//   - ToolResult{ToolUseID,Content,IsError}: always authored by the
//     controller, never by the model.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text, for Type == BlockText.
	Text string `json:"text,omitempty"`

	// ToolUse fields, for Type == BlockToolUse.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolResult fields, for Type == BlockToolResult.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Text builds a Text content block.
func Text(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUse builds a ToolUse content block.
func ToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResult builds a ToolResult content block.
func ToolResult(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// NullInput reports whether a ToolUse block's input was never populated —
// a truncation artifact produced when the model is cut off mid-argument.
func (b ContentBlock) NullInput() bool {
	return b.Type == BlockToolUse && (len(b.Input) == 0 || string(b.Input) == "null")
}

// Message is a single conversation entry.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// AllToolUse reports whether every block in the message is a ToolUse block
// and the message is non-empty — the shape of an orphaned tool request.
func (m Message) AllToolUse() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, b := range m.Content {
		if b.Type != BlockToolUse {
			return false
		}
	}
	return true
}

// ToolUseBlocks returns the ToolUse blocks in the message, in order.
func (m Message) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Usage reports token consumption for a single API call. All counters are
// monotonic within a turn; InputTokens drives the trim gate.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// StopReason is the terminal state of a single streamed response.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopToolUse   StopReason = "tool_use"
)

// Effect classifies a tool's side-effect profile. Unknown tool names
// conservatively classify as Mutating.
type Effect int

const (
	Mutating Effect = iota
	Pure
)

func (e Effect) String() string {
	if e == Pure {
		return "pure"
	}
	return "mutating"
}
