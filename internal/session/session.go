// Package session holds the state of one user's open app: the monthly
// transaction list and the active budget cycle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"moneynotes/internal/apperr"
	"moneynotes/internal/budget"
	"moneynotes/internal/core"
	"moneynotes/internal/log"
	"moneynotes/internal/queue"
)

// PageSize is the history page length.
const PageSize = 10

// Ledger is the transaction facade the session drives.
type Ledger interface {
	Online() bool
	LoadMonthly(ctx context.Context) ([]core.Transaction, error)
	Add(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Remove(ctx context.Context, id string) error
	RemoveMany(ctx context.Context, ids []string) error
	ResetMonthly(ctx context.Context) error
}

type Syncer interface {
	Sync(ctx context.Context) (queue.Result, error)
}

type Pending interface {
	Len(ctx context.Context) (int, error)
}

// Form is an unparsed add-transaction submission. Empty Date and Time
// default to now.
type Form struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Note     string `json:"note,omitempty"`
}

// View is a consistent copy of the session for rendering.
type View struct {
	Transactions []core.Transaction `json:"transactions"`
	Totals       core.Totals        `json:"totals"`
	Budget       *budget.Status     `json:"budget,omitempty"`
	Online       bool               `json:"online"`
	Pending      int                `json:"pending"`
}

type Session struct {
	ledger  Ledger
	budgets *budget.Service
	syncer  Syncer
	pending Pending
	now     func() time.Time

	mu   sync.RWMutex
	txns []core.Transaction

	hookMu   sync.RWMutex
	onSynced []SyncedHook
}

// SyncedHook runs after a replay pass synced at least one entry and the
// list was reloaded.
type SyncedHook func(ctx context.Context, res queue.Result)

func New(l Ledger, budgets *budget.Service, syncer Syncer, pending Pending) *Session {
	return &Session{
		ledger:  l,
		budgets: budgets,
		syncer:  syncer,
		pending: pending,
		now:     time.Now,
	}
}

// Load fetches the monthly list and the budget concurrently, then replays
// any queued mutations if the backend is reachable.
func (s *Session) Load(ctx context.Context) error {
	var txns []core.Transaction

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = s.ledger.LoadMonthly(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.budgets.Refresh(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		if !apperr.Is(err, apperr.KindConnectivity) {
			return fmt.Errorf("load session: %w", err)
		}
		slog.WarnContext(ctx, "Loading while offline, keeping cached transactions", log.FieldError, err)
	} else {
		s.replace(txns)
	}

	if !s.ledger.Online() {
		return nil
	}
	n, err := s.pending.Len(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read offline queue length", log.FieldError, err)
		return nil
	}
	if n > 0 {
		if _, err := s.OnOnline(ctx); err != nil {
			slog.WarnContext(ctx, "Startup sync failed", log.FieldError, err)
		}
	}
	return nil
}

// Reload refreshes the monthly list from the backend.
func (s *Session) Reload(ctx context.Context) error {
	txns, err := s.ledger.LoadMonthly(ctx)
	if err != nil {
		return err
	}
	s.replace(txns)
	return nil
}

// Submit validates f, records the transaction and prepends it to the list.
func (s *Session) Submit(ctx context.Context, f Form) (core.Transaction, error) {
	tx, err := s.parseForm(f)
	if err != nil {
		return core.Transaction{}, apperr.Validation("submit", err)
	}

	saved, err := s.ledger.Add(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	s.txns = append([]core.Transaction{saved}, s.txns...)
	s.mu.Unlock()

	return saved, nil
}

func (s *Session) parseForm(f Form) (core.Transaction, error) {
	now := s.now()

	tx := core.Transaction{
		Type:     core.TxType(strings.TrimSpace(f.Type)),
		Category: strings.TrimSpace(f.Category),
		Note:     strings.TrimSpace(f.Note),
	}

	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = amount

	if f.Date == "" {
		tx.Date = core.DateOf(now)
	} else if tx.Date, err = core.ParseDate(f.Date); err != nil {
		return core.Transaction{}, err
	}

	if f.Time == "" {
		c, _ := core.NewClock(now.Hour(), now.Minute())
		tx.Time = &c
	} else {
		c, err := core.ParseClock(f.Time)
		if err != nil {
			return core.Transaction{}, err
		}
		tx.Time = &c
	}

	if !tx.Type.IsValid() {
		return core.Transaction{}, core.ErrInvalidType
	}
	if tx.Category == "" {
		return core.Transaction{}, core.ErrEmptyCategory
	}
	return tx, nil
}

// Delete removes ids from the backend (or queues the delete) and from the
// list.
func (s *Session) Delete(ctx context.Context, ids ...string) error {
	var err error
	switch len(ids) {
	case 0:
		return nil
	case 1:
		err = s.ledger.Remove(ctx, ids[0])
	default:
		err = s.ledger.RemoveMany(ctx, ids)
	}
	if err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	kept := make([]core.Transaction, 0, len(s.txns))
	for _, tx := range s.txns {
		if _, ok := drop[tx.ID]; !ok {
			kept = append(kept, tx)
		}
	}
	s.txns = kept
	s.mu.Unlock()

	return nil
}

// ResetMonth clears the monthly working set.
func (s *Session) ResetMonth(ctx context.Context) error {
	if err := s.ledger.ResetMonthly(ctx); err != nil {
		return err
	}
	s.replace(nil)
	return nil
}

// OnOnline replays the offline queue and reloads the list when anything was
// synced.
func (s *Session) OnOnline(ctx context.Context) (queue.Result, error) {
	res, err := s.syncer.Sync(ctx)
	if err != nil {
		return res, fmt.Errorf("sync offline queue: %w", err)
	}

	if res.Synced > 0 {
		if err := s.Reload(ctx); err != nil {
			slog.WarnContext(ctx, "Reload after sync failed", log.FieldError, err)
		}

		s.hookMu.RLock()
		hooks := append([]SyncedHook(nil), s.onSynced...)
		s.hookMu.RUnlock()
		for _, h := range hooks {
			h(ctx, res)
		}
	}
	return res, nil
}

// OnSynced registers h to run after every replay pass that synced entries,
// whoever triggered it.
func (s *Session) OnSynced(h SyncedHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onSynced = append(s.onSynced, h)
}

// Snapshot returns a copy of the list with totals and budget status.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	txns := s.Transactions()

	st, err := s.budgets.Status(ctx, txns)
	if err != nil {
		return View{}, fmt.Errorf("budget status: %w", err)
	}

	pending, err := s.pending.Len(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read offline queue length", log.FieldError, err)
	}

	return View{
		Transactions: txns,
		Totals:       core.ComputeTotals(txns),
		Budget:       st,
		Online:       s.ledger.Online(),
		Pending:      pending,
	}, nil
}

// SyncState is the connectivity indicator: backend reachability and the
// number of queued mutations.
type SyncState struct {
	Online  bool `json:"online"`
	Pending int  `json:"pending"`
}

func (s *Session) SyncState(ctx context.Context) (SyncState, error) {
	n, err := s.pending.Len(ctx)
	if err != nil {
		return SyncState{}, fmt.Errorf("read offline queue length: %w", err)
	}
	return SyncState{Online: s.ledger.Online(), Pending: n}, nil
}

// Transactions returns a copy of the list, newest first.
func (s *Session) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.txns...)
}

// Page returns up to limit transactions starting at offset, and the total
// count. A non-positive limit uses PageSize.
func (s *Session) Page(offset, limit int) ([]core.Transaction, int) {
	if limit <= 0 {
		limit = PageSize
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.txns)
	if offset >= total {
		return []core.Transaction{}, total
	}
	end := min(offset+limit, total)
	return append([]core.Transaction(nil), s.txns[offset:end]...), total
}

func (s *Session) replace(txns []core.Transaction) {
	s.mu.Lock()
	s.txns = append([]core.Transaction(nil), txns...)
	s.mu.Unlock()
}
