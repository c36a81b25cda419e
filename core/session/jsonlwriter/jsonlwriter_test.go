package jsonlwriter

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/session"
)

func TestWritePrompt_WriteOnceSemantics(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "/work", "claude-opus-4-5")

	if err := w.WritePrompt("first prompt"); err != nil {
		t.Fatal(err)
	}
	if err := w.WritePrompt("second prompt should be ignored"); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(w.dir, "prompt.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "first prompt" {
		t.Errorf("prompt.txt = %q, want first prompt preserved", content)
	}
}

func TestAppendUserTurn_WritesJSONLLine(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "/work", "claude-opus-4-5")

	msg := conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentBlock{conversation.Text("hello")}}
	if err := w.AppendUserTurn(msg); err != nil {
		t.Fatal(err)
	}

	lines := readJSONLLines(t, filepath.Join(w.dir, "full.jsonl"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 journal line, got %d", len(lines))
	}
	if lines[0].Type != "user" || lines[0].SessionID != w.SessionID() {
		t.Errorf("line = %+v", lines[0])
	}
	if lines[0].ParentUUID != nil {
		t.Error("expected the first journal line to have no parent")
	}
}

func TestAppendTurns_ChainsParentUUIDs(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "/work", "claude-opus-4-5")

	userMsg := conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentBlock{conversation.Text("hi")}}
	assistantMsg := conversation.Message{Role: conversation.RoleAssistant, Content: []conversation.ContentBlock{conversation.Text("hello back")}}

	if err := w.AppendUserTurn(userMsg); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendAssistantTurn(assistantMsg, nil); err != nil {
		t.Fatal(err)
	}

	lines := readJSONLLines(t, filepath.Join(w.dir, "full.jsonl"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 journal lines, got %d", len(lines))
	}
	if lines[1].ParentUUID == nil || *lines[1].ParentUUID != lines[0].UUID {
		t.Errorf("expected the second line's parent to be the first line's UUID; got %+v", lines[1].ParentUUID)
	}
}

func TestAppendAssistantTurn_AccumulatesToolActions(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "/work", "claude-opus-4-5")

	msg := conversation.Message{Role: conversation.RoleAssistant}
	if err := w.AppendAssistantTurn(msg, []session.ToolAction{{Name: "Read", FirstArg: "main.go"}}); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendAssistantTurn(msg, []session.ToolAction{{Name: "Bash", FirstArg: "go build"}}); err != nil {
		t.Fatal(err)
	}

	if len(w.toolActions) != 2 {
		t.Fatalf("expected 2 accumulated tool actions, got %d", len(w.toolActions))
	}
}

func TestWriteContext_RendersKeyActions(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "/work", "claude-opus-4-5")

	if err := w.AppendAssistantTurn(conversation.Message{Role: conversation.RoleAssistant}, []session.ToolAction{
		{Name: "Read", FirstArg: "main.go"},
		{Name: "Bash", FirstArg: "go test ./..."},
	}); err != nil {
		t.Fatal(err)
	}

	if err := w.WriteContext("claude-opus-4-5", "/work"); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(w.dir, "context.md"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(content)

	if !strings.Contains(out, "## Key Actions") {
		t.Error("expected a Key Actions section")
	}
	if !strings.Contains(out, "**Read**: main.go") {
		t.Errorf("expected Read action rendered, got:\n%s", out)
	}
	if !strings.Contains(out, "**Bash**: go test ./...") {
		t.Errorf("expected Bash action rendered, got:\n%s", out)
	}
	if !strings.Contains(out, "- Model: claude-opus-4-5") {
		t.Errorf("expected model metadata line, got:\n%s", out)
	}
}

func TestWriteContext_NoToolActionsOmitsKeyActionsSection(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "/work", "claude-opus-4-5")

	if err := w.WriteContext("claude-opus-4-5", "/work"); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(w.dir, "context.md"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(content), "Key Actions") {
		t.Error("expected no Key Actions section when no tool actions were recorded")
	}
}

func TestRenderFirstArg_PlainTextPassesThrough(t *testing.T) {
	if got := renderFirstArg("just plain text"); got != "just plain text" {
		t.Errorf("renderFirstArg() = %q", got)
	}
}

func TestRenderFirstArg_ConvertsHTMLToMarkdown(t *testing.T) {
	got := renderFirstArg("<p>hello <b>world</b></p>")
	if strings.Contains(got, "<p>") || strings.Contains(got, "<b>") {
		t.Errorf("expected HTML tags stripped/converted, got %q", got)
	}
	if !strings.Contains(got, "hello") || !strings.Contains(got, "world") {
		t.Errorf("expected text content preserved, got %q", got)
	}
}

func readJSONLLines(t *testing.T, path string) []jsonlLine {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []jsonlLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var l jsonlLine
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatal(err)
		}
		lines = append(lines, l)
	}
	return lines
}
