package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"moneynotes/internal/apperr"
	"moneynotes/internal/core"
)

// FaultFunc is consulted before every operation; a non-nil error is
// returned instead of touching the data.
type FaultFunc func(op string, scope core.Scope) error

type Store struct {
	mu      sync.Mutex
	tables  map[core.Scope][]core.Transaction
	budget  *core.BudgetCycle
	offline bool
	fault   FaultFunc
	now     func() time.Time
}

func New() *Store {
	return &Store{
		tables: map[core.Scope][]core.Transaction{
			core.ScopeMonthly: nil,
			core.ScopeArchive: nil,
		},
		now: time.Now,
	}
}

// SetOffline makes every operation fail with a connectivity error.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *Store) check(op string, scope core.Scope) error {
	if s.offline {
		return apperr.Connectivity(op, apperr.ErrOffline)
	}
	if scope != "" && !scope.IsValid() {
		return apperr.Database(op, fmt.Errorf("unknown table %q", scope))
	}
	if s.fault != nil {
		return s.fault(op, scope)
	}
	return nil
}

// Fetch returns rows newest created first.
func (s *Store) Fetch(_ context.Context, scope core.Scope) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("fetch", scope); err != nil {
		return nil, err
	}
	rows := append([]core.Transaction(nil), s.tables[scope]...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}

func (s *Store) Insert(_ context.Context, scope core.Scope, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("insert", scope); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		return core.Transaction{}, apperr.Validation("insert", core.ErrMissingID)
	}
	for _, existing := range s.tables[scope] {
		if existing.ID == tx.ID {
			return core.Transaction{}, apperr.Database("insert", fmt.Errorf("duplicate key %s in %s", tx.ID, scope))
		}
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	s.tables[scope] = append(s.tables[scope], tx)
	return tx, nil
}

// Delete removes the row; deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, scope core.Scope, id string) error {
	return s.DeleteMany(ctx, scope, []string{id})
}

func (s *Store) DeleteMany(_ context.Context, scope core.Scope, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete", scope); err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.tables[scope][:0]
	for _, tx := range s.tables[scope] {
		if _, ok := drop[tx.ID]; !ok {
			kept = append(kept, tx)
		}
	}
	s.tables[scope] = kept
	return nil
}

func (s *Store) DeleteAll(_ context.Context, scope core.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete_all", scope); err != nil {
		return err
	}
	s.tables[scope] = nil
	return nil
}

func (s *Store) FetchBudget(_ context.Context) (*core.BudgetCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("fetch_budget", ""); err != nil {
		return nil, err
	}
	if s.budget == nil {
		return nil, nil
	}
	b := *s.budget
	return &b, nil
}

func (s *Store) SaveBudget(_ context.Context, cycle core.BudgetCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("save_budget", ""); err != nil {
		return err
	}
	s.budget = &cycle
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check("ping", "")
}
