package pgsession

import (
	"context"
	"fmt"
)

// createSessionsTableSQL holds one row of per-session metadata: the
// originating prompt (write-once) and the rendered context summary
// (rewritten on every WriteContext call).
const createSessionsTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    session_id TEXT PRIMARY KEY,
    model      TEXT NOT NULL,
    cwd        TEXT NOT NULL,
    prompt     TEXT,
    context    TEXT,
    started_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// createJournalTableSQL holds the append-only turn-by-turn journal,
// equivalent to jsonlwriter's full.jsonl: one row per user or assistant
// turn, chained by parent_uuid, ordered by the monotonic seq column.
const createJournalTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    seq         BIGSERIAL NOT NULL,
    session_id  TEXT NOT NULL,
    turn_type   TEXT NOT NULL,
    parent_uuid UUID,
    cwd         TEXT NOT NULL,
    role        TEXT NOT NULL,
    content     JSONB NOT NULL,
    usage       JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createJournalSeqIndexSQL = `CREATE INDEX IF NOT EXISTS idx_%s_session_seq
    ON %s (session_id, seq)`

// EnsureSchema creates the sessions and journal tables and their indexes if
// they do not already exist. Intended for development and prototyping;
// production deployments should manage schema via migration tooling.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, fmt.Sprintf(createSessionsTableSQL, w.sessionsTable)); err != nil {
		return fmt.Errorf("pgsession: create sessions table: %w", err)
	}
	if _, err := w.db.Exec(ctx, fmt.Sprintf(createJournalTableSQL, w.journalTable)); err != nil {
		return fmt.Errorf("pgsession: create journal table: %w", err)
	}
	idxSQL := fmt.Sprintf(createJournalSeqIndexSQL, w.journalTable, w.journalTable)
	if _, err := w.db.Exec(ctx, idxSQL); err != nil {
		return fmt.Errorf("pgsession: create journal session_seq index: %w", err)
	}
	return nil
}
