package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/monitor"
)

func newTestRepo(t *testing.T, opts ...Option) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fintrack.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func snapshotAt(ts time.Time, income string, notes ...core.Notification) monitor.Snapshot {
	return monitor.Snapshot{
		Totals: core.FinancialTotals{
			Income:  decimal.RequireFromString(income),
			Expense: decimal.RequireFromString("150.25"),
			Budget:  decimal.RequireFromString("120"),
			Goal:    decimal.RequireFromString("200"),
		},
		Notifications: notes,
		OverdueCount:  1,
		UpdatedAt:     ts,
	}
}

func TestSQLiteRepository_LatestSnapshotEmpty(t *testing.T) {
	repo := newTestRepo(t)

	_, ok, err := repo.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	ts := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	notes := []core.Notification{
		{Message: "expenses exceed income", Severity: core.SeverityWarning},
		{Message: "expenses exceed budget", Severity: core.SeverityAlert},
	}
	_, err := repo.SaveSnapshot(ctx, snapshotAt(ts.Add(-time.Hour), "1"))
	require.NoError(t, err)
	require.NoError(t, repo.Deliver(ctx, snapshotAt(ts, "100.10", notes...)))

	got, ok, err := repo.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, got.Totals.Income.Equal(decimal.RequireFromString("100.10")))
	assert.True(t, got.Totals.Expense.Equal(decimal.RequireFromString("150.25")))
	assert.Equal(t, 1, got.OverdueCount)
	assert.True(t, got.UpdatedAt.Equal(ts))
	assert.Equal(t, notes, got.Notifications)
}

func TestSQLiteRepository_RecentAlerts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	ts := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := repo.SaveSnapshot(ctx, snapshotAt(ts, "1", core.Notification{Message: "first", Severity: core.SeverityReminder}))
	require.NoError(t, err)
	_, err = repo.SaveSnapshot(ctx, snapshotAt(ts.Add(time.Minute), "1", core.Notification{Message: "second", Severity: core.SeverityAlert}))
	require.NoError(t, err)

	alerts, err := repo.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "second", alerts[0].Message)
	assert.Equal(t, core.SeverityAlert, alerts[0].Severity)
	assert.Equal(t, "first", alerts[1].Message)

	alerts, err = repo.RecentAlerts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestSQLiteRepository_Retention(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, WithRetention(2))
	ts := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.SaveSnapshot(ctx, snapshotAt(ts.Add(time.Duration(i)*time.Minute), "1",
			core.Notification{Message: "n", Severity: core.SeverityWarning}))
		require.NoError(t, err)
	}

	n, err := repo.CountSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	alerts, err := repo.RecentAlerts(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}
