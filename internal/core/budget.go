package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetCycle is the single active spending cap. Spend is never stored; it is
// derived from the monthly transactions on demand.
type BudgetCycle struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	CycleDays int             `json:"cycle_days"`
	StartDate time.Time       `json:"start_date"`
}

// EndDate is the start plus the cycle length in calendar days.
func (b BudgetCycle) EndDate() time.Time {
	return b.StartDate.AddDate(0, 0, b.CycleDays)
}
