package pgsession

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/session"
)

func TestNew_Defaults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	w := New(mock, "/tmp/work", "claude-opus-4-5")
	if w.sessionsTable != defaultSessionsTable {
		t.Fatalf("expected default sessions table %q, got %q", defaultSessionsTable, w.sessionsTable)
	}
	if w.journalTable != defaultJournalTable {
		t.Fatalf("expected default journal table %q, got %q", defaultJournalTable, w.journalTable)
	}
	if w.sessionID == "" {
		t.Fatal("expected a generated session ID")
	}
}

func TestNew_WithTableNames(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	w := New(mock, "/tmp/work", "claude-opus-4-5", WithTableNames("custom_sessions", "custom_journal"))

	if w.sessionsTable != `"custom_sessions"` {
		t.Fatalf("expected sanitized table name, got %q", w.sessionsTable)
	}
	if w.journalTable != `"custom_journal"` {
		t.Fatalf("expected sanitized table name, got %q", w.journalTable)
	}
}

func TestWritePrompt_InsertsOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	w := New(mock, "/tmp/work", "claude-opus-4-5")

	mock.ExpectExec("INSERT INTO forgeflare_sessions").
		WithArgs(w.sessionID, "claude-opus-4-5", "/tmp/work", "do the thing", w.startTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := w.WritePrompt("do the thing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second call is a no-op; no further expectation was registered, so
	// pgxmock will fail the test if WritePrompt issues another query.
	if err := w.WritePrompt("do the thing again"); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendUserTurn_InsertsJournalRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	w := New(mock, "/tmp/work", "claude-opus-4-5")

	mock.ExpectExec("INSERT INTO forgeflare_journal").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	msg := conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentBlock{conversation.Text("hello")}}
	if err := w.AppendUserTurn(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.lastUUID == "" {
		t.Fatal("expected lastUUID to be set after appending a turn")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendAssistantTurn_ChainsParentUUID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	w := New(mock, "/tmp/work", "claude-opus-4-5")

	mock.ExpectExec("INSERT INTO forgeflare_journal").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO forgeflare_journal").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	userMsg := conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentBlock{conversation.Text("hi")}}
	if err := w.AppendUserTurn(userMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstUUID := w.lastUUID

	asstMsg := conversation.Message{Role: conversation.RoleAssistant, Content: []conversation.ContentBlock{conversation.Text("hello there")}}
	actions := []session.ToolAction{{Name: "Read", FirstArg: "a.go"}}
	if err := w.AppendAssistantTurn(asstMsg, actions); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.lastUUID == firstUUID {
		t.Fatal("expected lastUUID to advance after the second append")
	}
	if len(w.toolActions) != 1 || w.toolActions[0].Name != "Read" {
		t.Fatalf("expected tool action to be recorded, got %+v", w.toolActions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWriteContext_UpdatesSessionsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	w := New(mock, "/tmp/work", "claude-opus-4-5")
	w.toolActions = []session.ToolAction{{Name: "Bash", FirstArg: "ls"}}

	mock.ExpectExec("UPDATE forgeflare_sessions SET context").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := w.WriteContext("claude-opus-4-5", "/tmp/work"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureSchema_CreatesTablesAndIndex(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	w := New(mock, "/tmp/work", "claude-opus-4-5")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS forgeflare_sessions").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS forgeflare_journal").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	if err := w.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var _ session.Writer = (*Writer)(nil)
