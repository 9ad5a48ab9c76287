package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(id string, typ TxType, amount, category string, d Date) Transaction {
	return Transaction{ID: id, Type: typ, Amount: decimal.RequireFromString(amount), Category: category, Date: d}
}

func sampleLedger() []Transaction {
	return []Transaction{
		tx("1", Income, "30000", "Salary", NewDate(2025, 1, 1)),
		tx("2", Expense, "120", "Food", NewDate(2025, 1, 1)),
		tx("3", Expense, "80", "Food", NewDate(2025, 1, 2)),
		tx("4", Expense, "500", "Bills", NewDate(2025, 1, 2)),
		tx("5", Expense, "45", "7-Eleven", NewDate(2025, 2, 3)),
		tx("6", Income, "1000", "Bonus", NewDate(2025, 2, 3)),
	}
}

func TestComputeTotals(t *testing.T) {
	got := ComputeTotals(sampleLedger())
	assert.Equal(t, "31000", got.Income.String())
	assert.Equal(t, "745", got.Expense.String())
	assert.Equal(t, "30255", got.Net.String())

	empty := ComputeTotals(nil)
	assert.True(t, empty.Net.IsZero())
}

func TestCategoryTotalsExpensesOnly(t *testing.T) {
	got := CategoryTotals(sampleLedger())
	require.Len(t, got, 3)
	assert.Equal(t, "Bills", got[0].Name)
	assert.Equal(t, "Food", got[1].Name)
	assert.Equal(t, "200", got[1].Amount.String())
	assert.Equal(t, "7-Eleven", got[2].Name)

	assert.Len(t, TopCategories(sampleLedger(), 2), 2)
	assert.Len(t, TopCategories(sampleLedger(), 5), 3)
}

func TestTodayByCategory(t *testing.T) {
	got := TodayByCategory(sampleLedger(), NewDate(2025, 1, 2))
	assert.Equal(t, "580", got.Total.String())
	require.Len(t, got.ByCategory, 2)
	assert.Equal(t, "Bills", got.ByCategory[0].Name)

	none := TodayByCategory(sampleLedger(), NewDate(2030, 1, 1))
	assert.True(t, none.Total.IsZero())
	assert.Empty(t, none.ByCategory)
}

func TestDailyTotals(t *testing.T) {
	got := DailyTotals(sampleLedger(), 2025, 1)
	require.Len(t, got, 31)
	assert.Equal(t, "30000", got[0].Income.String())
	assert.Equal(t, "120", got[0].Expense.String())
	assert.Equal(t, "580", got[1].Expense.String())
	assert.True(t, got[30].Expense.IsZero())

	assert.Len(t, DailyTotals(nil, 2024, 2), 29)
}

func TestMonthlyTotals(t *testing.T) {
	got := MonthlyTotals(sampleLedger())
	require.Len(t, got, 2)
	assert.Equal(t, "Jan 25", got[0].Label)
	assert.Equal(t, "700", got[0].Expense.String())
	assert.Equal(t, "Feb 25", got[1].Label)
	assert.Equal(t, "1000", got[1].Income.String())
}
