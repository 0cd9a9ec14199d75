package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Journal interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordRun(ctx context.Context, run *model.RunSummary) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, past_due, dry_run, status, error,
		   resource_groups, existing_budgets, created_budgets, failed_creations, exceeding, skipped_scopes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.PastDue, run.DryRun, string(run.Status), run.Error,
		run.ResourceGroups, run.ExistingBudgets, run.CreatedBudgets, run.FailedCreations,
		run.Exceeding, run.SkippedScopes,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, n := range run.Notifications {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (run_id, budget, scope, owner, address, direct_sent, broadcast_sent, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, n.Budget, n.Scope, n.Owner, n.Address, n.DirectSent, n.BroadcastSent, n.Error,
		)
		if err != nil {
			return fmt.Errorf("insert notification for %s: %w", n.Budget, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, past_due, dry_run, status, error,
	resource_groups, existing_budgets, created_budgets, failed_creations, exceeding, skipped_scopes`

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *SQLite) GetRun(ctx context.Context, id string) (*model.RunSummary, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT budget, scope, owner, address, direct_sent, broadcast_sent, error
		 FROM notifications WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n model.NotificationOutcome
		if err := rows.Scan(&n.Budget, &n.Scope, &n.Owner, &n.Address,
			&n.DirectSent, &n.BroadcastSent, &n.Error); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		run.Notifications = append(run.Notifications, n)
	}
	return run, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.RunSummary, error) {
	var r model.RunSummary
	var status string
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.PastDue, &r.DryRun, &status, &r.Error,
		&r.ResourceGroups, &r.ExistingBudgets, &r.CreatedBudgets, &r.FailedCreations,
		&r.Exceeding, &r.SkippedScopes)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}
