// Package budget implements the manual budget cycle: a spending cap over a
// fixed number of days that only the user restarts.
package budget

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneynotes/internal/apperr"
	"moneynotes/internal/core"
)

const (
	DefaultCycleDays = 5
	MaxCycleDays     = 30
)

// DefaultAmount pre-fills the setup form when no budget exists.
var DefaultAmount = decimal.NewFromInt(1000)

// TrackedCategories are the only expense categories counted against a cycle.
var TrackedCategories = []string{"Food", "7-Eleven"}

var hundred = decimal.NewFromInt(100)

// CreateCycle starts a new cycle now. A zero cycleDays selects the default
// length and anything else is clamped to 1..MaxCycleDays.
func CreateCycle(amount decimal.Decimal, cycleDays int) (core.BudgetCycle, error) {
	return createCycleAt(amount, cycleDays, time.Now())
}

func createCycleAt(amount decimal.Decimal, cycleDays int, now time.Time) (core.BudgetCycle, error) {
	if !amount.IsPositive() {
		return core.BudgetCycle{}, apperr.Validation("create budget", fmt.Errorf("budget amount must be greater than zero"))
	}
	return core.BudgetCycle{
		ID:        uuid.NewString(),
		Amount:    amount,
		CycleDays: ClampDays(cycleDays),
		StartDate: now,
	}, nil
}

// ClampDays normalizes a requested cycle length.
func ClampDays(days int) int {
	switch {
	case days == 0:
		return DefaultCycleDays
	case days < 1:
		return 1
	case days > MaxCycleDays:
		return MaxCycleDays
	default:
		return days
	}
}

// ComputeSpent sums tracked expenses dated at or after the cycle start,
// reading transaction dates as local wall-clock times.
func ComputeSpent(txns []core.Transaction, cycle *core.BudgetCycle) decimal.Decimal {
	return ComputeSpentIn(txns, cycle, time.Local)
}

// ComputeSpentIn is ComputeSpent with an explicit location for transaction
// dates. A nil cycle spends nothing.
func ComputeSpentIn(txns []core.Transaction, cycle *core.BudgetCycle, loc *time.Location) decimal.Decimal {
	spent := decimal.Zero
	if cycle == nil || cycle.StartDate.IsZero() {
		return spent
	}
	for _, tx := range txns {
		if tx.Type != core.Expense || !slices.Contains(TrackedCategories, tx.Category) {
			continue
		}
		if tx.OccurredAt(loc).Before(cycle.StartDate) {
			continue
		}
		spent = spent.Add(tx.Amount)
	}
	return spent
}

// Status is the budget card view of a cycle.
type Status struct {
	Cycle     core.BudgetCycle `json:"cycle"`
	Spent     decimal.Decimal  `json:"spent"`
	Remaining decimal.Decimal  `json:"remaining"`
	Percent   float64          `json:"percent"`
	Overspent bool             `json:"overspent"`
	DaysLeft  int              `json:"days_left"`
	Ended     bool             `json:"ended"`
	End       time.Time        `json:"end"`
	Label     string           `json:"label"`
}

// DaysLeft counts whole days remaining. It never goes below zero, and ending
// does not roll the cycle over.
func DaysLeft(cycle core.BudgetCycle, now time.Time) int {
	elapsed := int(math.Floor(now.Sub(cycle.StartDate).Hours() / 24))
	return max(cycle.CycleDays-elapsed, 0)
}

// StatusAt evaluates a cycle against spent at the given instant. Remaining
// may be negative.
func StatusAt(cycle core.BudgetCycle, spent decimal.Decimal, now time.Time) Status {
	s := Status{
		Cycle:     cycle,
		Spent:     spent,
		Remaining: cycle.Amount.Sub(spent),
		DaysLeft:  DaysLeft(cycle, now),
		End:       cycle.EndDate(),
	}
	s.Overspent = s.Remaining.IsNegative()
	s.Ended = s.DaysLeft == 0

	if cycle.Amount.IsPositive() {
		pct := decimal.Min(spent.Div(cycle.Amount).Mul(hundred), hundred)
		s.Percent = pct.Round(2).InexactFloat64()
	}

	switch {
	case s.Ended:
		s.Label = "Cycle ended"
	case s.DaysLeft == 1:
		s.Label = "1 day left"
	default:
		s.Label = fmt.Sprintf("%d days left", s.DaysLeft)
	}
	return s
}
