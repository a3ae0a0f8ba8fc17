package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLAuditLog is the default AuditLog backend, written against
// modernc.org/sqlite (the default, embedded, no-cgo backend). Its table
// definition (AUTOINCREMENT, DATETIME) and its `?` placeholders are SQLite
// dialect: a PostgreSQL database opened through lib/pq rejects the CREATE
// TABLE, so NewSQLiteAuditLog returns an error there.
type SQLAuditLog struct {
	db *sql.DB
}

// NewSQLiteAuditLog wraps an already-opened database handle, creating the
// audit table if it does not exist yet.
func NewSQLiteAuditLog(db *sql.DB) (*SQLAuditLog, error) {
	a := &SQLAuditLog{db: db}
	if err := a.migrate(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SQLAuditLog) migrate(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS ingestion_audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		firm_name TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		rule_name TEXT,
		passed INTEGER NOT NULL,
		generation_attempt INTEGER NOT NULL,
		validation_history JSON,
		ingested_at DATETIME NOT NULL
	);`
	_, err := a.db.ExecContext(ctx, query)
	return err
}

// RecordRule implements AuditLog.
func (a *SQLAuditLog) RecordRule(ctx context.Context, firmName string, rule rules.Rule, ingestedAt time.Time) error {
	historyJSON, err := json.Marshal(rule.ValidationHistory)
	if err != nil {
		return fmt.Errorf("audit log: marshal validation history: %w", err)
	}

	const query = `INSERT INTO ingestion_audit_log (
		firm_name, rule_id, rule_name, passed, generation_attempt, validation_history, ingested_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	passed := 0
	if rule.Active {
		passed = 1
	}

	_, err = a.db.ExecContext(ctx, query,
		firmName, rule.RuleID, rule.RuleName, passed, rule.GenerationAttempt, string(historyJSON), ingestedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit log: insert failed: %w", err)
	}
	return nil
}
