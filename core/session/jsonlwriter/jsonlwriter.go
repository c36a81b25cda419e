// Package jsonlwriter is the default session.Writer backend: an
// append-only JSONL turn journal plus two side files (prompt.txt,
// context.md), rooted at .forgeflare/sessions/<session id>. Grounded on
// original_source's session.rs, translated into Go idiom (os.OpenFile
// append mode in place of Rust's OpenOptions, google/uuid in place of the
// uuid crate).
package jsonlwriter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/google/uuid"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/session"
)

// Version is recorded on every journal line. It identifies the writer
// format, not the module's release version.
const Version = "1"

// Writer implements session.Writer over an append-only JSONL file.
type Writer struct {
	mu sync.Mutex

	sessionID string
	dir       string
	cwd       string
	model     string
	startTime time.Time

	lastUUID      string
	promptWritten bool
	toolActions   []session.ToolAction
}

// New creates a session rooted at <baseDir>/<YYYY-MM-DD>-<uuid>, matching
// original_source's session_id format. baseDir is typically
// "<cwd>/.forgeflare/sessions".
func New(baseDir, cwd, model string) *Writer {
	sessionID := fmt.Sprintf("%s-%s", time.Now().UTC().Format("2006-01-02"), uuid.New().String())
	return &Writer{
		sessionID: sessionID,
		dir:       filepath.Join(baseDir, sessionID),
		cwd:       cwd,
		model:     model,
		startTime: time.Now().UTC(),
	}
}

// SessionID returns the generated session identifier.
func (w *Writer) SessionID() string {
	return w.sessionID
}

type jsonlLine struct {
	Type       string         `json:"type"`
	SessionID  string         `json:"sessionId"`
	UUID       string         `json:"uuid"`
	ParentUUID *string        `json:"parentUuid"`
	Timestamp  string         `json:"timestamp"`
	Cwd        string         `json:"cwd"`
	Version    string         `json:"version"`
	Message    messagePayload `json:"message"`
}

type messagePayload struct {
	Role    conversation.Role           `json:"role"`
	Content []conversation.ContentBlock `json:"content"`
	Usage   *conversation.Usage         `json:"usage,omitempty"`
}

// WritePrompt records the originating prompt, once per session.
func (w *Writer) WritePrompt(prompt string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.promptWritten {
		return nil
	}
	w.promptWritten = true

	if err := w.ensureDir(); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.dir, "prompt.txt"), []byte(prompt), 0o644)
}

// AppendUserTurn appends a user message as a journal line.
func (w *Writer) AppendUserTurn(msg conversation.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLine("user", msg, nil)
}

// AppendAssistantTurn appends an assistant message as a journal line and
// records its tool actions for the eventual context.md summary.
func (w *Writer) AppendAssistantTurn(msg conversation.Message, actions []session.ToolAction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.toolActions = append(w.toolActions, actions...)
	return w.appendLine("assistant", msg, nil)
}

func (w *Writer) appendLine(turnType string, msg conversation.Message, usage *conversation.Usage) error {
	if err := w.ensureDir(); err != nil {
		return err
	}

	lineUUID := uuid.New().String()
	var parent *string
	if w.lastUUID != "" {
		p := w.lastUUID
		parent = &p
	}

	line := jsonlLine{
		Type:       turnType,
		SessionID:  w.sessionID,
		UUID:       lineUUID,
		ParentUUID: parent,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Cwd:        w.cwd,
		Version:    Version,
		Message:    messagePayload{Role: msg.Role, Content: msg.Content, Usage: usage},
	}

	encoded, err := json.Marshal(line)
	if err != nil {
		return err
	}
	w.lastUUID = lineUUID

	f, err := os.OpenFile(filepath.Join(w.dir, "full.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(encoded, '\n'))
	return err
}

// WriteContext renders context.md: session metadata plus a "Key Actions"
// section listing every tool action recorded this session, in order.
func (w *Writer) WriteContext(model, cwd string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureDir(); err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Session Context\n\n")
	fmt.Fprintf(&buf, "- Session ID: %s\n", w.sessionID)
	fmt.Fprintf(&buf, "- Model: %s\n", model)
	fmt.Fprintf(&buf, "- Start: %s\n", w.startTime.Format(time.RFC3339))
	fmt.Fprintf(&buf, "- CWD: %s\n", cwd)

	if len(w.toolActions) > 0 {
		fmt.Fprintf(&buf, "\n## Key Actions\n\n")
		for _, a := range w.toolActions {
			fmt.Fprintf(&buf, "- **%s**: %s\n", a.Name, renderFirstArg(a.FirstArg))
		}
	}

	return os.WriteFile(filepath.Join(w.dir, "context.md"), buf.Bytes(), 0o644)
}

func (w *Writer) ensureDir() error {
	return os.MkdirAll(w.dir, 0o755)
}

var htmlTagPattern = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

// renderFirstArg converts HTML-shaped tool-action arguments (e.g. a
// webfetch-style result pasted into a tool's first argument) down to
// markdown before they land in context.md. Plain-text arguments pass
// through untouched.
func renderFirstArg(arg string) string {
	if !htmlTagPattern.MatchString(arg) {
		return arg
	}
	md, err := htmltomarkdown.ConvertString(arg)
	if err != nil {
		return arg
	}
	return strings.TrimSpace(md)
}

var _ session.Writer = (*Writer)(nil)
