package storage

import (
	"context"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
)

// Journal is an append-only record of reconciliation runs. Reconciliation never
// reads it back; it exists for operators and audits.
type Journal interface {
	// RecordRun persists a finished run and its notification outcomes.
	RecordRun(ctx context.Context, run *model.RunSummary) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)

	// GetRun retrieves a run with its notification outcomes.
	GetRun(ctx context.Context, id string) (*model.RunSummary, error)

	// Close releases resources.
	Close() error
}
