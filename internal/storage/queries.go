package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// SnapshotRow mirrors the snapshots table. Amounts are decimal strings.
type SnapshotRow struct {
	ID           int64
	Income       string
	Expense      string
	Budget       string
	Goal         string
	OverdueCount int64
	CapturedAt   string
}

type AlertRow struct {
	ID         int64
	SnapshotID int64
	Position   int64
	Message    string
	Severity   string
	RaisedAt   string
}

const createSnapshot = `
INSERT INTO snapshots (income, expense, budget, goal, overdue_count, captured_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateSnapshotParams struct {
	Income       string
	Expense      string
	Budget       string
	Goal         string
	OverdueCount int64
	CapturedAt   string
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createSnapshot,
		arg.Income, arg.Expense, arg.Budget, arg.Goal, arg.OverdueCount, arg.CapturedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createAlert = `
INSERT INTO alerts (snapshot_id, position, message, severity, raised_at)
VALUES (?, ?, ?, ?, ?)`

type CreateAlertParams struct {
	SnapshotID int64
	Position   int64
	Message    string
	Severity   string
	RaisedAt   string
}

func (q *Queries) CreateAlert(ctx context.Context, arg CreateAlertParams) error {
	_, err := q.db.ExecContext(ctx, createAlert,
		arg.SnapshotID, arg.Position, arg.Message, arg.Severity, arg.RaisedAt)
	return err
}

const getLatestSnapshot = `
SELECT id, income, expense, budget, goal, overdue_count, captured_at
FROM snapshots
ORDER BY id DESC
LIMIT 1`

func (q *Queries) GetLatestSnapshot(ctx context.Context) (SnapshotRow, error) {
	row := q.db.QueryRowContext(ctx, getLatestSnapshot)
	var s SnapshotRow
	err := row.Scan(&s.ID, &s.Income, &s.Expense, &s.Budget, &s.Goal, &s.OverdueCount, &s.CapturedAt)
	return s, err
}

const getAlertsBySnapshot = `
SELECT id, snapshot_id, position, message, severity, raised_at
FROM alerts
WHERE snapshot_id = ?
ORDER BY position`

func (q *Queries) GetAlertsBySnapshot(ctx context.Context, snapshotID int64) ([]AlertRow, error) {
	rows, err := q.db.QueryContext(ctx, getAlertsBySnapshot, snapshotID)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

const getRecentAlerts = `
SELECT id, snapshot_id, position, message, severity, raised_at
FROM alerts
ORDER BY id DESC
LIMIT ?`

func (q *Queries) GetRecentAlerts(ctx context.Context, limit int64) ([]AlertRow, error) {
	rows, err := q.db.QueryContext(ctx, getRecentAlerts, limit)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

const countSnapshots = `SELECT COUNT(*) FROM snapshots`

func (q *Queries) CountSnapshots(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countSnapshots).Scan(&n)
	return n, err
}

const deleteAlertsBeforeSnapshot = `DELETE FROM alerts WHERE snapshot_id < ?`

func (q *Queries) DeleteAlertsBeforeSnapshot(ctx context.Context, snapshotID int64) error {
	_, err := q.db.ExecContext(ctx, deleteAlertsBeforeSnapshot, snapshotID)
	return err
}

const deleteSnapshotsBefore = `DELETE FROM snapshots WHERE id < ?`

func (q *Queries) DeleteSnapshotsBefore(ctx context.Context, snapshotID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSnapshotsBefore, snapshotID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanAlerts(rows *sql.Rows) ([]AlertRow, error) {
	defer rows.Close()
	var items []AlertRow
	for rows.Next() {
		var a AlertRow
		if err := rows.Scan(&a.ID, &a.SnapshotID, &a.Position, &a.Message, &a.Severity, &a.RaisedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
