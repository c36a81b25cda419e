// Package pgsession is a PostgreSQL-backed session.Writer: the same
// append-only journal as jsonlwriter, persisted to two tables instead of a
// JSONL file, written through a Querier abstraction that both a connection
// pool and a transaction satisfy.
package pgsession

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/session"
)

const (
	defaultSessionsTable = "forgeflare_sessions"
	defaultJournalTable  = "forgeflare_journal"
)

// Querier abstracts the pgx query methods Writer needs. Both *pgxpool.Pool
// and pgx.Tx satisfy this interface.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Writer implements session.Writer over a PostgreSQL journal. Each instance
// is scoped to a single session. The tool-action list used to render
// context is held in memory for the lifetime of the process, same as
// jsonlwriter — only the durable journal rows are persisted eagerly.
type Writer struct {
	mu sync.Mutex

	db            Querier
	sessionsTable string
	journalTable  string

	sessionID string
	cwd       string
	model     string
	startTime time.Time

	lastUUID      string
	promptWritten bool
	toolActions   []session.ToolAction
}

// Option configures optional Writer behavior.
type Option func(*Writer)

// WithTableNames overrides the default table names ("forgeflare_sessions",
// "forgeflare_journal"). Names are sanitized via pgx.Identifier since they
// are interpolated into queries with fmt.Sprintf.
func WithTableNames(sessionsTable, journalTable string) Option {
	return func(w *Writer) {
		w.sessionsTable = pgx.Identifier{sessionsTable}.Sanitize()
		w.journalTable = pgx.Identifier{journalTable}.Sanitize()
	}
}

// New creates a PostgreSQL-backed session.Writer. db is typically a
// *pgxpool.Pool. cwd and model are recorded once in the sessions table row.
func New(db Querier, cwd, model string, opts ...Option) *Writer {
	w := &Writer{
		db:            db,
		sessionsTable: defaultSessionsTable,
		journalTable:  defaultJournalTable,
		sessionID:     fmt.Sprintf("%s-%s", time.Now().UTC().Format("2006-01-02"), uuid.New().String()),
		cwd:           cwd,
		model:         model,
		startTime:     time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SessionID returns the generated session identifier.
func (w *Writer) SessionID() string {
	return w.sessionID
}

var _ session.Writer = (*Writer)(nil)

// WritePrompt inserts the sessions-table row (write-once per session).
func (w *Writer) WritePrompt(prompt string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.promptWritten {
		return nil
	}
	w.promptWritten = true

	query := fmt.Sprintf(`INSERT INTO %s (session_id, model, cwd, prompt, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET prompt = EXCLUDED.prompt`, w.sessionsTable)

	_, err := w.db.Exec(context.Background(), query, w.sessionID, w.model, w.cwd, prompt, w.startTime)
	if err != nil {
		return fmt.Errorf("pgsession: write prompt: %w", err)
	}
	return nil
}

// AppendUserTurn appends a user message as a journal row.
func (w *Writer) AppendUserTurn(msg conversation.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLine(context.Background(), "user", msg, nil)
}

// AppendAssistantTurn appends an assistant message as a journal row and
// records its tool actions for the eventual context summary.
func (w *Writer) AppendAssistantTurn(msg conversation.Message, actions []session.ToolAction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.toolActions = append(w.toolActions, actions...)
	return w.appendLine(context.Background(), "assistant", msg, nil)
}

func (w *Writer) appendLine(ctx context.Context, turnType string, msg conversation.Message, usage *conversation.Usage) error {
	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("pgsession: marshal content: %w", err)
	}

	var usageJSON []byte
	if usage != nil {
		usageJSON, err = json.Marshal(usage)
		if err != nil {
			return fmt.Errorf("pgsession: marshal usage: %w", err)
		}
	}

	lineUUID := uuid.New().String()
	var parent *string
	if w.lastUUID != "" {
		p := w.lastUUID
		parent = &p
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, session_id, turn_type, parent_uuid, cwd, role, content, usage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, w.journalTable)

	_, err = w.db.Exec(ctx, query, lineUUID, w.sessionID, turnType, parent, w.cwd, string(msg.Role), contentJSON, usageJSON)
	if err != nil {
		return fmt.Errorf("pgsession: append turn: %w", err)
	}
	w.lastUUID = lineUUID
	return nil
}

// WriteContext renders the same context summary layout jsonlwriter writes to
// context.md and stores it in the sessions table's context column. Tool
// action arguments are written as recorded, without jsonlwriter's
// HTML-to-markdown conversion.
func (w *Writer) WriteContext(model, cwd string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf strings.Builder
	fmt.Fprintf(&buf, "# Session Context\n\n")
	fmt.Fprintf(&buf, "- Session ID: %s\n", w.sessionID)
	fmt.Fprintf(&buf, "- Model: %s\n", model)
	fmt.Fprintf(&buf, "- Start: %s\n", w.startTime.Format(time.RFC3339))
	fmt.Fprintf(&buf, "- CWD: %s\n", cwd)

	if len(w.toolActions) > 0 {
		fmt.Fprintf(&buf, "\n## Key Actions\n\n")
		for _, a := range w.toolActions {
			fmt.Fprintf(&buf, "- **%s**: %s\n", a.Name, a.FirstArg)
		}
	}

	query := fmt.Sprintf(`UPDATE %s SET context = $1 WHERE session_id = $2`, w.sessionsTable)
	if _, err := w.db.Exec(context.Background(), query, buf.String(), w.sessionID); err != nil {
		return fmt.Errorf("pgsession: write context: %w", err)
	}
	return nil
}
