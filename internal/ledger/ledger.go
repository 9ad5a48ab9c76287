// Package ledger is the single entry point for transaction reads and writes.
// Writes go to the backend while it is reachable and into the offline queue
// while it is not; callers get the same result either way.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"moneynotes/internal/apperr"
	"moneynotes/internal/backend"
	"moneynotes/internal/core"
	"moneynotes/internal/log"
	"moneynotes/internal/queue"
)

// Status is the connectivity view the ledger needs.
type Status interface {
	Online() bool
	MarkOffline(ctx context.Context)
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool                { return true }
func (alwaysOnline) MarkOffline(context.Context) {}

type Ledger struct {
	store  backend.TransactionStore
	mirror *backend.Mirror
	queue  *queue.Queue
	status Status
}

// New creates a ledger. A nil status treats the backend as always reachable.
func New(store backend.TransactionStore, q *queue.Queue, status Status) *Ledger {
	if status == nil {
		status = alwaysOnline{}
	}
	return &Ledger{
		store:  store,
		mirror: backend.NewMirror(store),
		queue:  q,
		status: status,
	}
}

func (l *Ledger) Online() bool {
	return l.status.Online()
}

// LoadMonthly returns the working set, newest created first.
func (l *Ledger) LoadMonthly(ctx context.Context) ([]core.Transaction, error) {
	return l.fetch(ctx, backend.Monthly)
}

// LoadAllTime returns the archive, newest created first.
func (l *Ledger) LoadAllTime(ctx context.Context) ([]core.Transaction, error) {
	return l.fetch(ctx, backend.Archive)
}

func (l *Ledger) fetch(ctx context.Context, scope backend.Scope) ([]core.Transaction, error) {
	txns, err := l.store.Fetch(ctx, scope)
	if err != nil {
		l.observe(ctx, err)
		return nil, fmt.Errorf("load %s: %w", scope, err)
	}
	return txns, nil
}

// Add records tx. Offline, or when the backend turns out to be unreachable,
// the insert is queued and tx is returned as if it had been saved.
func (l *Ledger) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, apperr.Validation("add transaction", err)
	}

	if l.status.Online() {
		saved, err := l.mirror.Add(ctx, tx)
		if err == nil {
			slog.InfoContext(ctx, "Transaction saved",
				log.FieldTransactionID, saved.ID,
				"type", saved.Type,
				"category", saved.Category,
				"amount", saved.Amount.String())
			return saved, nil
		}
		if !l.observe(ctx, err) {
			return core.Transaction{}, err
		}
	}

	if _, err := l.queue.Enqueue(ctx, queue.Add{Transaction: tx}); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// Remove deletes one transaction from both tables, or queues the delete.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("remove transaction", core.ErrMissingID)
	}

	if l.status.Online() {
		err := l.mirror.Remove(ctx, id)
		if err == nil {
			slog.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id)
			return nil
		}
		if !l.observe(ctx, err) {
			return err
		}
	}

	_, err := l.queue.Enqueue(ctx, queue.Delete{ID: id})
	return err
}

// RemoveMany deletes several transactions from both tables, or queues the
// bulk delete.
func (l *Ledger) RemoveMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if l.status.Online() {
		err := l.mirror.RemoveMany(ctx, ids)
		if err == nil {
			slog.InfoContext(ctx, "Transactions deleted", "count", len(ids))
			return nil
		}
		if !l.observe(ctx, err) {
			return err
		}
	}

	_, err := l.queue.Enqueue(ctx, queue.DeleteMultiple{IDs: append([]string(nil), ids...)})
	return err
}

// ResetMonthly clears the working set. The archive is untouched. It is not
// queued: offline it fails with a connectivity error.
func (l *Ledger) ResetMonthly(ctx context.Context) error {
	if !l.status.Online() {
		return apperr.Connectivity("reset month", apperr.ErrOffline)
	}

	if err := l.store.DeleteAll(ctx, backend.Monthly); err != nil {
		l.observe(ctx, err)
		return fmt.Errorf("reset month: %w", err)
	}

	slog.InfoContext(ctx, "Monthly transactions reset")
	return nil
}

// observe reports whether err means the backend is unreachable, marking
// the ledger offline when it does.
func (l *Ledger) observe(ctx context.Context, err error) bool {
	if !apperr.Is(err, apperr.KindConnectivity) {
		return false
	}
	slog.WarnContext(ctx, "Backend unreachable, falling back to offline queue", log.FieldError, err)
	l.status.MarkOffline(ctx)
	return true
}
