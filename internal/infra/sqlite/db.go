// Package sqlite is the persistence layer. All multi-writer invariants the
// services rely on (single active session per account, guarded credit
// debits, duplicate billing-event rejection) are enforced here, at the
// storage layer, never as application-level check-then-act.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection and its schema.
type DB struct {
	db *sql.DB
}

// Open creates or opens the database under dir and runs all migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dsn := filepath.Join(dir, "nexus.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, stmt)
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
// Money columns are TEXT holding exact decimal strings.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id             TEXT PRIMARY KEY,
			email          TEXT NOT NULL UNIQUE,
			name           TEXT NOT NULL DEFAULT '',
			business_cash  TEXT NOT NULL DEFAULT '0',
			personal_cash  TEXT NOT NULL DEFAULT '0',
			tax_reserve    TEXT NOT NULL DEFAULT '0',
			credit_balance INTEGER NOT NULL DEFAULT 0,
			plan_status    TEXT NOT NULL DEFAULT 'free',
			created_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS projects (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL REFERENCES accounts(id),
			name        TEXT NOT NULL,
			budget      TEXT NOT NULL DEFAULT '0',
			hourly_rate TEXT NOT NULL DEFAULT '0',
			status      TEXT NOT NULL DEFAULT 'active',
			created_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id)`,

		`CREATE TABLE IF NOT EXISTS memberships (
			id                 TEXT PRIMARY KEY,
			project_id         TEXT NOT NULL REFERENCES projects(id),
			inviter_id         TEXT NOT NULL,
			invited_email      TEXT NOT NULL,
			account_id         TEXT NOT NULL DEFAULT '',
			role               TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'pending',
			member_hourly_rate TEXT,
			created_at         TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(project_id, invited_email)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_account ON memberships(account_id, status)`,

		// The PRIMARY KEY on account_id IS the single-active-session
		// invariant: the insert is the arbiter, racing starts lose at
		// the storage layer.
		`CREATE TABLE IF NOT EXISTS pulse_sessions (
			account_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			started_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS time_logs (
			id          TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL REFERENCES projects(id),
			account_id  TEXT NOT NULL,
			minutes     INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'pending',
			cost_impact TEXT NOT NULL DEFAULT '0',
			created_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_time_logs_project ON time_logs(project_id, status)`,

		`CREATE TABLE IF NOT EXISTS vault_movements (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id  TEXT NOT NULL,
			vault       TEXT NOT NULL,
			direction   TEXT NOT NULL,
			amount      TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_movements_account ON vault_movements(account_id)`,

		`CREATE TABLE IF NOT EXISTS recurring_costs (
			id          TEXT PRIMARY KEY,
			account_id  TEXT NOT NULL,
			label       TEXT NOT NULL,
			amount      TEXT NOT NULL DEFAULT '0',
			category    TEXT NOT NULL DEFAULT 'business',
			active      INTEGER NOT NULL DEFAULT 1,
			next_due_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_account ON recurring_costs(account_id, active)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title      TEXT NOT NULL,
			due_at     TEXT NOT NULL,
			completed  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, completed)`,

		// Processed billing events. The composite key rejects duplicate
		// deliveries before any balance or plan change is applied. Kind is
		// part of the key: the form provider reuses a sale id when the same
		// sale is later refunded or disputed, and that follow-up is a new
		// event, not a duplicate.
		`CREATE TABLE IF NOT EXISTS billing_events (
			provider    TEXT NOT NULL,
			event_id    TEXT NOT NULL,
			kind        TEXT NOT NULL,
			received_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (provider, event_id, kind)
		)`,

		`CREATE TABLE IF NOT EXISTS streaks (
			account_id   TEXT PRIMARY KEY,
			current_days INTEGER NOT NULL DEFAULT 0,
			longest_days INTEGER NOT NULL DEFAULT 0,
			last_date    TEXT NOT NULL DEFAULT ''
		)`,
	}
}
