package anthropic

import "encoding/json"

/*
	ANTHROPIC MESSAGES API - REQUEST/RESPONSE WIRE TYPES

	Trimmed to the subset core/turnctl actually drives: text, tool_use, and
	tool_result content blocks, streaming only. Thinking, vision, documents,
	prompt caching, tool_choice, and metadata are all out of scope for this
	client.
*/

// anthropicRequest is the request body for Anthropic's Messages API.
type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream"`
}

// anthropicMessage is a single message in the conversation.
type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

// anthropicContentBlock is a discriminated union via the Type field:
//   - "text": Text
//   - "tool_use": ID, Name, Input
//   - "tool_result": ToolUseID, Content, IsError
type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// anthropicTool describes a tool available to the model.
type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// anthropicUsage reports token consumption for a single request.
type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// responseContentBlock is a content block as it appears inside a
// message_start or content_block_start event. The Type field discriminates
// between text and tool_use; unknown types are ignored by the decoder.
type responseContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// anthropicResponse is the message envelope carried on a message_start
// event. Only Usage is consulted; Content always arrives empty on
// message_start and is built up from subsequent content_block events.
type anthropicResponse struct {
	ID    string         `json:"id"`
	Role  string         `json:"role"`
	Usage anthropicUsage `json:"usage"`
}
