package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"moneynotes/internal/core"
	"moneynotes/internal/log"
	"moneynotes/internal/queue"

	_ "modernc.org/sqlite"
)

const (
	budgetSnapshotKey = "budget"

	// DefaultClaimTTL bounds how long a crashed sync pass can hold an entry.
	DefaultClaimTTL = 5 * time.Minute
)

// SQLiteRepository is the on-device store: the durable offline queue and a
// small key/value table for snapshots. The app and the worker may open the
// same file; queue claims keep their sync passes from replaying an entry
// twice.
type SQLiteRepository struct {
	db       *sql.DB
	claimTTL time.Duration
	now      func() time.Time
}

// dsn enables WAL and waits on locks held by another process instead of
// failing with SQLITE_BUSY.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer keeps FIFO appends ordered
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, claimTTL: DefaultClaimTTL, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements queue.Store
func (r *SQLiteRepository) Append(ctx context.Context, e queue.Entry) error {
	kind, payload, err := queue.EncodeAction(e.Action)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO offline_queue (id, action, payload, enqueued_at) VALUES (?, ?, ?, ?)`,
		e.ID, string(kind), string(payload), e.EnqueuedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}

	slog.DebugContext(ctx, "Queue entry stored", log.FieldQueueEntry, e.ID, log.FieldAction, kind)
	return nil
}

// List implements queue.Store
func (r *SQLiteRepository) List(ctx context.Context) ([]queue.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, payload, enqueued_at FROM offline_queue ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []queue.Entry
	for rows.Next() {
		var id, kind, payload, enqueuedAt string
		if err := rows.Scan(&id, &kind, &payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}

		action, err := queue.DecodeAction(queue.Kind(kind), []byte(payload))
		if err != nil {
			// Skipped; the row stays on disk for inspection
			slog.ErrorContext(ctx, "Undecodable queue entry",
				log.FieldQueueEntry, id,
				log.FieldAction, kind,
				log.FieldError, err)
			continue
		}

		at, err := time.Parse(time.RFC3339Nano, enqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("parse enqueued_at for %s: %w", id, err)
		}

		entries = append(entries, queue.Entry{ID: id, Action: action, EnqueuedAt: at})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue entries: %w", err)
	}

	return entries, nil
}

// Remove implements queue.Store
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

// Len implements queue.Store
func (r *SQLiteRepository) Len(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue entries: %w", err)
	}
	return n, nil
}

// Claim implements queue.Store. A claim older than the claim TTL is treated
// as abandoned and can be taken over.
func (r *SQLiteRepository) Claim(ctx context.Context, id string) (bool, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE offline_queue SET status = 'processing', claimed_at = ?
		WHERE id = ? AND (status = 'pending' OR claimed_at < ?)`,
		now.UnixMilli(), id, now.Add(-r.claimTTL).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("claim queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim queue entry: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Queue entry already claimed", log.FieldQueueEntry, id)
	}
	return n == 1, nil
}

// Release implements queue.Store
func (r *SQLiteRepository) Release(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE offline_queue SET status = 'pending', claimed_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("release queue entry: %w", err)
	}
	return nil
}

// GetValue returns the stored value for key, or ok=false if absent.
func (r *SQLiteRepository) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (r *SQLiteRepository) SetValue(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// LoadBudgetSnapshot implements budget.SnapshotCache
func (r *SQLiteRepository) LoadBudgetSnapshot(ctx context.Context) (*core.BudgetCycle, error) {
	raw, ok, err := r.GetValue(ctx, budgetSnapshotKey)
	if err != nil || !ok {
		return nil, err
	}
	var cycle core.BudgetCycle
	if err := json.Unmarshal(raw, &cycle); err != nil {
		slog.WarnContext(ctx, "Discarding corrupt budget snapshot", log.FieldError, err)
		return nil, nil
	}
	return &cycle, nil
}

// SaveBudgetSnapshot implements budget.SnapshotCache
func (r *SQLiteRepository) SaveBudgetSnapshot(ctx context.Context, cycle core.BudgetCycle) error {
	raw, err := json.Marshal(cycle)
	if err != nil {
		return fmt.Errorf("encode budget snapshot: %w", err)
	}
	return r.SetValue(ctx, budgetSnapshotKey, raw)
}
