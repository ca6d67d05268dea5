package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/monitor"

	_ "modernc.org/sqlite"
)

// Alert is one persisted notification.
type Alert struct {
	SnapshotID int64
	Message    string
	Severity   core.Severity
	RaisedAt   time.Time
}

// SQLiteRepository keeps the last known good snapshot and the alert
// history across monitor restarts.
type SQLiteRepository struct {
	db        *sql.DB
	queries   *Queries
	retention int
}

type Option func(*SQLiteRepository)

// WithRetention keeps at most n snapshots. Zero keeps everything.
func WithRetention(n int) Option {
	return func(r *SQLiteRepository) {
		if n > 0 {
			r.retention = n
		}
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY between the poller and HTTP reads.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Deliver implements monitor.Sink.
func (r *SQLiteRepository) Deliver(ctx context.Context, s monitor.Snapshot) error {
	_, err := r.SaveSnapshot(ctx, s)
	return err
}

// SaveSnapshot stores s and its notifications in one transaction.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s monitor.Snapshot) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	capturedAt := formatTime(s.UpdatedAt)

	id, err := q.CreateSnapshot(ctx, CreateSnapshotParams{
		Income:       s.Totals.Income.String(),
		Expense:      s.Totals.Expense.String(),
		Budget:       s.Totals.Budget.String(),
		Goal:         s.Totals.Goal.String(),
		OverdueCount: int64(s.OverdueCount),
		CapturedAt:   capturedAt,
	})
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}

	for i, n := range s.Notifications {
		err := q.CreateAlert(ctx, CreateAlertParams{
			SnapshotID: id,
			Position:   int64(i),
			Message:    n.Message,
			Severity:   string(n.Severity),
			RaisedAt:   capturedAt,
		})
		if err != nil {
			return 0, fmt.Errorf("create alert: %w", err)
		}
	}

	if r.retention > 0 {
		cutoff := id - int64(r.retention) + 1
		if err := q.DeleteAlertsBeforeSnapshot(ctx, cutoff); err != nil {
			return 0, fmt.Errorf("prune alerts: %w", err)
		}
		pruned, err := q.DeleteSnapshotsBefore(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("prune snapshots: %w", err)
		}
		if pruned > 0 {
			slog.DebugContext(ctx, "Pruned old snapshots", "count", pruned)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"id", id,
		"notifications", len(s.Notifications),
		"overdue", s.OverdueCount)
	return id, nil
}

// LatestSnapshot returns the most recently saved snapshot. ok is false
// when nothing has been stored yet.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (monitor.Snapshot, bool, error) {
	row, err := r.queries.GetLatestSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return monitor.Snapshot{}, false, nil
	}
	if err != nil {
		return monitor.Snapshot{}, false, fmt.Errorf("get latest snapshot: %w", err)
	}

	alerts, err := r.queries.GetAlertsBySnapshot(ctx, row.ID)
	if err != nil {
		return monitor.Snapshot{}, false, fmt.Errorf("get snapshot alerts: %w", err)
	}

	capturedAt, err := parseTime(row.CapturedAt)
	if err != nil {
		return monitor.Snapshot{}, false, fmt.Errorf("snapshot %d: %w", row.ID, err)
	}

	s := monitor.Snapshot{
		Totals: core.FinancialTotals{
			Income:  parseAmount(row.Income),
			Expense: parseAmount(row.Expense),
			Budget:  parseAmount(row.Budget),
			Goal:    parseAmount(row.Goal),
		},
		Notifications: make([]core.Notification, 0, len(alerts)),
		OverdueCount:  int(row.OverdueCount),
		UpdatedAt:     capturedAt,
	}
	for _, a := range alerts {
		s.Notifications = append(s.Notifications, core.Notification{
			Message:  a.Message,
			Severity: core.Severity(a.Severity),
		})
	}
	return s, true, nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (r *SQLiteRepository) RecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.queries.GetRecentAlerts(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get recent alerts: %w", err)
	}

	out := make([]Alert, 0, len(rows))
	for _, row := range rows {
		raisedAt, err := parseTime(row.RaisedAt)
		if err != nil {
			return nil, fmt.Errorf("alert %d: %w", row.ID, err)
		}
		out = append(out, Alert{
			SnapshotID: row.SnapshotID,
			Message:    row.Message,
			Severity:   core.Severity(row.Severity),
			RaisedAt:   raisedAt,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) CountSnapshots(ctx context.Context) (int64, error) {
	n, err := r.queries.CountSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ monitor.Sink = (*SQLiteRepository)(nil)
