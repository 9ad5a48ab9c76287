package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"moneynotes/internal/apperr"
	"moneynotes/internal/core"
	"moneynotes/internal/log"
)

// Store persists the active cycle remotely. SaveBudget replaces whatever
// cycle was stored before.
type Store interface {
	FetchBudget(ctx context.Context) (*core.BudgetCycle, error)
	SaveBudget(ctx context.Context, cycle core.BudgetCycle) error
}

// SnapshotCache keeps the last known cycle locally so the card renders
// without a round trip.
type SnapshotCache interface {
	LoadBudgetSnapshot(ctx context.Context) (*core.BudgetCycle, error)
	SaveBudgetSnapshot(ctx context.Context, cycle core.BudgetCycle) error
}

type Service struct {
	store Store
	cache SnapshotCache
	now   func() time.Time

	mu      sync.Mutex
	current *core.BudgetCycle
}

func NewService(store Store, cache SnapshotCache) *Service {
	return &Service{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

// Current returns the cycle from memory or the local snapshot, without
// touching the backend. It returns nil when no budget has been set up.
func (s *Service) Current(ctx context.Context) (*core.BudgetCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		c := *s.current
		return &c, nil
	}
	if s.cache == nil {
		return nil, nil
	}
	snap, err := s.cache.LoadBudgetSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budget snapshot: %w", err)
	}
	s.current = snap
	if snap == nil {
		return nil, nil
	}
	c := *snap
	return &c, nil
}

// Refresh reloads the cycle from the backend and updates the snapshot. When
// the backend is unreachable it falls back to Current.
func (s *Service) Refresh(ctx context.Context) (*core.BudgetCycle, error) {
	cycle, err := s.store.FetchBudget(ctx)
	if err != nil {
		if apperr.Is(err, apperr.KindConnectivity) {
			slog.WarnContext(ctx, "Budget refresh failed, using snapshot", log.FieldError, err)
			return s.Current(ctx)
		}
		return nil, fmt.Errorf("fetch budget: %w", err)
	}
	if cycle == nil {
		return nil, nil
	}
	s.remember(ctx, *cycle)
	c := *cycle
	return &c, nil
}

// Save sets up a budget or edits the active one. Editing keeps the cycle
// identity and start date and only changes the amount and length.
func (s *Service) Save(ctx context.Context, amount decimal.Decimal, cycleDays int) (core.BudgetCycle, error) {
	if !amount.IsPositive() {
		return core.BudgetCycle{}, apperr.Validation("save budget", fmt.Errorf("budget amount must be greater than zero"))
	}

	existing, err := s.Current(ctx)
	if err != nil {
		return core.BudgetCycle{}, err
	}

	var cycle core.BudgetCycle
	if existing != nil {
		cycle = *existing
		cycle.Amount = amount
		cycle.CycleDays = ClampDays(cycleDays)
	} else {
		cycle, err = createCycleAt(amount, cycleDays, s.now())
		if err != nil {
			return core.BudgetCycle{}, err
		}
	}

	return cycle, s.persist(ctx, cycle)
}

// NewCycle discards the active cycle and starts a fresh one with the same
// amount and length.
func (s *Service) NewCycle(ctx context.Context) (core.BudgetCycle, error) {
	existing, err := s.Current(ctx)
	if err != nil {
		return core.BudgetCycle{}, err
	}
	if existing == nil {
		return core.BudgetCycle{}, apperr.Validation("new cycle", fmt.Errorf("no budget configured"))
	}

	cycle, err := createCycleAt(existing.Amount, existing.CycleDays, s.now())
	if err != nil {
		return core.BudgetCycle{}, err
	}

	slog.InfoContext(ctx, "Starting new budget cycle",
		"previous_cycle", existing.ID,
		"cycle", cycle.ID,
		"cycle_days", cycle.CycleDays)

	return cycle, s.persist(ctx, cycle)
}

// Status evaluates the current cycle against txns. It returns nil when no
// budget exists.
func (s *Service) Status(ctx context.Context, txns []core.Transaction) (*Status, error) {
	cycle, err := s.Current(ctx)
	if err != nil || cycle == nil {
		return nil, err
	}
	st := StatusAt(*cycle, ComputeSpent(txns, cycle), s.now())
	return &st, nil
}

// persist writes the snapshot first so the card updates immediately, then
// replaces the backend copy.
func (s *Service) persist(ctx context.Context, cycle core.BudgetCycle) error {
	s.remember(ctx, cycle)

	if err := s.store.SaveBudget(ctx, cycle); err != nil {
		slog.ErrorContext(ctx, "Failed to save budget to backend", "cycle", cycle.ID, log.FieldError, err)
		return fmt.Errorf("save budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"cycle", cycle.ID,
		"amount", cycle.Amount.String(),
		"cycle_days", cycle.CycleDays)
	return nil
}

func (s *Service) remember(ctx context.Context, cycle core.BudgetCycle) {
	s.mu.Lock()
	c := cycle
	s.current = &c
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.SaveBudgetSnapshot(ctx, cycle); err != nil {
		slog.WarnContext(ctx, "Failed to write budget snapshot", log.FieldError, err)
	}
}
