package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: run journal
	`CREATE TABLE IF NOT EXISTS runs (
		id               TEXT PRIMARY KEY,
		started_at       DATETIME NOT NULL,
		finished_at      DATETIME NOT NULL,
		past_due         INTEGER NOT NULL DEFAULT 0,
		dry_run          INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL CHECK(status IN ('succeeded', 'failed')),
		error            TEXT NOT NULL DEFAULT '',
		resource_groups  INTEGER NOT NULL DEFAULT 0,
		existing_budgets INTEGER NOT NULL DEFAULT 0,
		created_budgets  INTEGER NOT NULL DEFAULT 0,
		failed_creations INTEGER NOT NULL DEFAULT 0,
		exceeding        INTEGER NOT NULL DEFAULT 0,
		skipped_scopes   INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS notifications (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		budget         TEXT NOT NULL,
		scope          TEXT NOT NULL,
		owner          TEXT NOT NULL DEFAULT '',
		address        TEXT NOT NULL DEFAULT '',
		direct_sent    INTEGER NOT NULL DEFAULT 0,
		broadcast_sent INTEGER NOT NULL DEFAULT 0,
		error          TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_run ON notifications(run_id);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
