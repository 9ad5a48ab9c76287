package backend

import (
	"context"
	"fmt"
	"log/slog"

	"moneynotes/internal/core"
	"moneynotes/internal/log"
)

// Mirror applies a mutation to the monthly table and, only if that
// succeeded, repeats it on the archive. The two writes are not atomic: an
// archive failure is logged and the monthly write stands.
type Mirror struct {
	store TransactionStore
}

func NewMirror(store TransactionStore) *Mirror {
	return &Mirror{store: store}
}

func (m *Mirror) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := m.store.Insert(ctx, Monthly, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert monthly: %w", err)
	}
	if _, err := m.store.Insert(ctx, Archive, tx); err != nil {
		m.archiveFailed(ctx, "insert", err, log.FieldTransactionID, tx.ID)
	}
	return saved, nil
}

func (m *Mirror) Remove(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, Monthly, id); err != nil {
		return fmt.Errorf("delete monthly: %w", err)
	}
	if err := m.store.Delete(ctx, Archive, id); err != nil {
		m.archiveFailed(ctx, "delete", err, log.FieldTransactionID, id)
	}
	return nil
}

func (m *Mirror) RemoveMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.store.DeleteMany(ctx, Monthly, ids); err != nil {
		return fmt.Errorf("delete monthly: %w", err)
	}
	if err := m.store.DeleteMany(ctx, Archive, ids); err != nil {
		m.archiveFailed(ctx, "delete_many", err, "count", len(ids))
	}
	return nil
}

func (m *Mirror) archiveFailed(ctx context.Context, op string, err error, args ...any) {
	slog.WarnContext(ctx, "Archive mirror failed",
		append([]any{log.FieldOperation, op, log.FieldError, err}, args...)...)
}
