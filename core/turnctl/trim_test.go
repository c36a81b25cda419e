package turnctl

import (
	"strings"
	"testing"

	"github.com/basher83/forgeflare/core/conversation"
)

func TestShouldTrim(t *testing.T) {
	tests := []struct {
		name            string
		lastInputTokens int
		want            bool
	}{
		{"no usage yet (first call of a turn)", 0, true},
		{"well under threshold", 60_000, false},
		{"just under threshold", trimThresholdTokens - 1, false},
		{"exactly at threshold", trimThresholdTokens, true},
		{"over threshold", trimThresholdTokens + 50_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldTrim(tt.lastInputTokens); got != tt.want {
				t.Errorf("shouldTrim(%d) = %v, want %v", tt.lastInputTokens, got, tt.want)
			}
		})
	}
}

func userMsg(text string) conversation.Message {
	return conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentBlock{conversation.Text(text)}}
}

func assistantMsg(text string) conversation.Message {
	return conversation.Message{Role: conversation.RoleAssistant, Content: []conversation.ContentBlock{conversation.Text(text)}}
}

func TestTrimConversation_UnderBudgetUnchanged(t *testing.T) {
	messages := []conversation.Message{userMsg("hello"), assistantMsg("hi there")}

	got := trimConversation(messages)
	if len(got) != len(messages) {
		t.Fatalf("expected conversation to be left unchanged, got %d messages, want %d", len(got), len(messages))
	}
}

func TestTrimConversation_TwoOrFewerMessagesNeverTrimmed(t *testing.T) {
	big := strings.Repeat("x", contextBudgetBytes+1000)
	messages := []conversation.Message{userMsg(big)}

	got := trimConversation(messages)
	if len(got) != 1 {
		t.Fatalf("a single-message conversation must never be trimmed, got %d messages", len(got))
	}
}

func TestTrimConversation_DropsFromFrontPreservingFirstAndAlternation(t *testing.T) {
	big := strings.Repeat("x", 100_000)
	var messages []conversation.Message
	messages = append(messages, userMsg("the original intent, never dropped"))
	for i := 0; i < 12; i++ {
		messages = append(messages, userMsg(big), assistantMsg(big))
	}

	got := trimConversation(messages)

	if len(got) == 0 {
		t.Fatal("expected a non-empty trimmed conversation")
	}
	if got[0].Content[0].Text != "the original intent, never dropped" {
		t.Errorf("expected first message to be preserved, got %q", got[0].Content[0].Text)
	}

	buf := conversation.NewBufferFrom(got)
	if buf.SerializedBytes() > contextBudgetBytes {
		t.Errorf("trimmed conversation size %d exceeds budget %d", buf.SerializedBytes(), contextBudgetBytes)
	}

	for i := 2; i < len(got); i++ {
		if got[i].Role == got[i-1].Role {
			t.Errorf("messages %d and %d have the same role %q; role alternation broken", i-1, i, got[i].Role)
		}
	}
}

func toolUseOnlyMsg(id, name string) conversation.Message {
	return conversation.Message{Role: conversation.RoleAssistant, Content: []conversation.ContentBlock{conversation.ToolUse(id, name, []byte(`{}`))}}
}

func TestRecoverConversation(t *testing.T) {
	t.Run("trailing user message only is popped", func(t *testing.T) {
		buf := conversation.NewBuffer()
		buf.Append(assistantMsg("done"))
		buf.Append(userMsg("next question"))

		recoverConversation(buf)

		if buf.Len() != 1 {
			t.Fatalf("expected 1 message remaining, got %d", buf.Len())
		}
		last, _ := buf.Last()
		if last.Role != conversation.RoleAssistant {
			t.Errorf("expected remaining message to be the assistant message, got role %q", last.Role)
		}
	})

	t.Run("trailing all-tool-use assistant and its preceding user message are both popped", func(t *testing.T) {
		buf := conversation.NewBuffer()
		buf.Append(userMsg("earlier turn"))
		buf.Append(userMsg("run a tool for me"))
		buf.Append(toolUseOnlyMsg("tu_1", "Read"))

		recoverConversation(buf)

		if buf.Len() != 1 {
			t.Fatalf("expected 1 message remaining, got %d", buf.Len())
		}
		last, _ := buf.Last()
		if last.Content[0].Text != "earlier turn" {
			t.Errorf("expected the surviving message to be the unrelated earlier turn, got %+v", last)
		}
	})

	t.Run("valid conversation ending on assistant text is left unchanged", func(t *testing.T) {
		buf := conversation.NewBuffer()
		buf.Append(userMsg("question"))
		buf.Append(assistantMsg("answer"))

		recoverConversation(buf)

		if buf.Len() != 2 {
			t.Errorf("expected conversation left unchanged at 2 messages, got %d", buf.Len())
		}
	})

	t.Run("empty buffer does not panic", func(t *testing.T) {
		buf := conversation.NewBuffer()
		recoverConversation(buf)
		if buf.Len() != 0 {
			t.Errorf("expected buffer to remain empty, got %d", buf.Len())
		}
	})
}

func TestFilterNullInputToolUse(t *testing.T) {
	t.Run("drops only null-input tool_use blocks", func(t *testing.T) {
		blocks := []conversation.ContentBlock{
			conversation.Text("partial text"),
			conversation.ToolUse("tu_1", "Read", []byte(`{"file_path":"a.go"}`)),
			conversation.ToolUse("tu_2", "Edit", nil),
		}

		got := filterNullInputToolUse(blocks)
		if len(got) != 2 {
			t.Fatalf("expected 2 surviving blocks, got %d", len(got))
		}
		if got[1].ID != "tu_1" {
			t.Errorf("expected the surviving tool_use block to be tu_1, got %s", got[1].ID)
		}
	})

	t.Run("substitutes a placeholder when everything is filtered out", func(t *testing.T) {
		blocks := []conversation.ContentBlock{conversation.ToolUse("tu_1", "Edit", nil)}

		got := filterNullInputToolUse(blocks)
		if len(got) != 1 || got[0].Type != conversation.BlockText || got[0].Text != "[Response truncated]" {
			t.Errorf("expected a single placeholder text block, got %+v", got)
		}
	})
}
