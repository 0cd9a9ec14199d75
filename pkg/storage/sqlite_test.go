package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/storage"
)

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(started time.Time) *model.RunSummary {
	return &model.RunSummary{
		StartedAt:       started,
		FinishedAt:      started.Add(2 * time.Second),
		Status:          model.RunSucceeded,
		ResourceGroups:  4,
		ExistingBudgets: 2,
		CreatedBudgets:  1,
		FailedCreations: 1,
		Exceeding:       1,
		SkippedScopes:   0,
		Notifications: []model.NotificationOutcome{
			{Budget: "devbudget-01", Scope: "/rg/1", Owner: "owner@example.com", Address: "U123", DirectSent: true, BroadcastSent: true},
		},
	}
}

func TestSQLite_RecordRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	run := sampleRun(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	require.NoError(t, db.RecordRun(ctx, run))
	assert.NotEmpty(t, run.ID)

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, got.Status)
	assert.Equal(t, 4, got.ResourceGroups)
	assert.Equal(t, 2, got.ExistingBudgets)
	assert.Equal(t, 1, got.CreatedBudgets)
	assert.Equal(t, 1, got.FailedCreations)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
	assert.Equal(t, 2*time.Second, got.Duration())

	require.Len(t, got.Notifications, 1)
	n := got.Notifications[0]
	assert.Equal(t, "devbudget-01", n.Budget)
	assert.Equal(t, "U123", n.Address)
	assert.True(t, n.DirectSent)
	assert.True(t, n.BroadcastSent)
}

func TestSQLite_RecordRun_KeepsGivenID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	run := sampleRun(time.Now().UTC())
	run.ID = "run-1"
	run.Status = model.RunFailed
	run.Error = "list resource groups: forbidden"
	run.Notifications = nil
	require.NoError(t, db.RecordRun(ctx, run))

	got, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, got.Status)
	assert.Equal(t, "list resource groups: forbidden", got.Error)
	assert.Empty(t, got.Notifications)
}

func TestSQLite_RecordRun_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	run := sampleRun(time.Now().UTC())
	run.ID = "dup"
	require.NoError(t, db.RecordRun(ctx, run))
	assert.Error(t, db.RecordRun(ctx, run))
}

func TestSQLite_ListRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun(base.Add(time.Duration(i) * time.Minute))
		run.CreatedBudgets = i
		require.NoError(t, db.RecordRun(ctx, run))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].CreatedBudgets)
	assert.Equal(t, 1, runs[1].CreatedBudgets)

	all, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetRun(context.Background(), "nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_MigrationIdempotency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	db1, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	db1.Close()

	db2, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	db2.Close()
}
