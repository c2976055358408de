// Package storage keeps the activity journal in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pfm/internal/core"
	"pfm/internal/log"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("activity not found")

type SQLiteRepository struct {
	db     *sql.DB
	now    func() time.Time
	logger *log.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		now:    time.Now,
		logger: log.Default().WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// RecordActivity appends a to the journal as pending and returns its id.
func (r *SQLiteRepository) RecordActivity(ctx context.Context, a core.Activity) (int64, error) {
	created := a.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO activity (correlation_id, actor, resource, action, resource_id, outcome, detail, created_at, next_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CorrelationID, a.Actor, a.Resource, a.Action, a.ResourceID, string(a.Outcome), a.Detail,
		millis(created), millis(created))
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("activity id: %w", err)
	}

	r.logger.DebugContext(ctx, "Activity journaled",
		log.FieldActivityID, id,
		log.FieldResource, a.Resource,
		log.FieldOperation, a.Action)
	return id, nil
}

const activityColumns = `id, correlation_id, actor, resource, action, resource_id, outcome, detail,
	created_at, sync_status, attempts, last_error`

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(s scanner) (core.Activity, error) {
	var (
		a       core.Activity
		outcome string
		status  string
		created int64
	)
	err := s.Scan(&a.ID, &a.CorrelationID, &a.Actor, &a.Resource, &a.Action, &a.ResourceID,
		&outcome, &a.Detail, &created, &status, &a.Attempts, &a.LastError)
	if err != nil {
		return core.Activity{}, err
	}
	a.Outcome = core.Outcome(outcome)
	a.SyncStatus = core.SyncStatus(status)
	a.CreatedAt = fromMillis(created)
	return a, nil
}

func (r *SQLiteRepository) queryActivities(ctx context.Context, query string, args ...any) ([]core.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetActivity(ctx context.Context, id int64) (core.Activity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activity WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Activity{}, ErrNotFound
	}
	if err != nil {
		return core.Activity{}, fmt.Errorf("get activity %d: %w", id, err)
	}
	return a, nil
}

// ListRecent returns the newest entries first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]core.Activity, error) {
	out, err := r.queryActivities(ctx,
		`SELECT `+activityColumns+` FROM activity ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent activity: %w", err)
	}
	return out, nil
}

// DequeuePending returns pending entries whose retry time has come, oldest first.
func (r *SQLiteRepository) DequeuePending(ctx context.Context, limit int) ([]core.Activity, error) {
	out, err := r.queryActivities(ctx,
		`SELECT `+activityColumns+` FROM activity
		 WHERE sync_status = 'pending' AND next_attempt_at <= ?
		 ORDER BY id LIMIT ?`, millis(r.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue pending activity: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) setStatus(ctx context.Context, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkProcessing claims a pending entry. It fails with ErrNotFound when the
// entry is not pending any more.
func (r *SQLiteRepository) MarkProcessing(ctx context.Context, id int64) error {
	err := r.setStatus(ctx, id,
		`UPDATE activity SET sync_status = 'processing' WHERE sync_status = 'pending' AND id = ?`)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("mark activity %d processing: %w", id, err)
	}
	return err
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	err := r.setStatus(ctx, id,
		`UPDATE activity SET sync_status = 'synced', last_error = '', synced_at = ? WHERE id = ?`, millis(r.now()))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("mark activity %d synced: %w", id, err)
	}
	return err
}

// MarkRetry records a failed attempt and schedules the next one at next.
func (r *SQLiteRepository) MarkRetry(ctx context.Context, id int64, reason string, next time.Time) error {
	err := r.setStatus(ctx, id,
		`UPDATE activity SET sync_status = 'pending', attempts = attempts + 1, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		reason, millis(next))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("mark activity %d for retry: %w", id, err)
	}
	return err
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	err := r.setStatus(ctx, id,
		`UPDATE activity SET sync_status = 'failed', attempts = attempts + 1, last_error = ? WHERE id = ?`, reason)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("mark activity %d failed: %w", id, err)
	}
	return err
}

// ResetStaleProcessing puts entries left in processing by a crash back to pending.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE activity SET sync_status = 'pending' WHERE sync_status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("reset stale processing: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed makes every failed entry eligible again.
func (r *SQLiteRepository) RetryFailed(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE activity SET sync_status = 'pending', attempts = 0, next_attempt_at = ? WHERE sync_status = 'failed'`,
		millis(r.now()))
	if err != nil {
		return 0, fmt.Errorf("retry failed activity: %w", err)
	}
	return res.RowsAffected()
}

// PruneSynced deletes synced entries created before cutoff.
func (r *SQLiteRepository) PruneSynced(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM activity WHERE sync_status = 'synced' AND created_at < ?`, millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune synced activity: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Stats(ctx context.Context) (core.ActivityStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM activity GROUP BY sync_status`)
	if err != nil {
		return core.ActivityStats{}, fmt.Errorf("activity stats: %w", err)
	}
	defer rows.Close()

	var st core.ActivityStats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return core.ActivityStats{}, fmt.Errorf("activity stats: %w", err)
		}
		switch core.SyncStatus(status) {
		case core.SyncPending:
			st.Pending = n
		case core.SyncProcessing:
			st.Processing = n
		case core.SyncDone:
			st.Synced = n
		case core.SyncFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}
