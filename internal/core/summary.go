package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// Overview is the summary card data for a set of transactions.
type Overview struct {
	Totals
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

type DaySummary struct {
	Date       Date             `json:"date"`
	Total      decimal.Decimal  `json:"total"`
	ByCategory []CategoryAmount `json:"by_category"`
}

type DailyPoint struct {
	Day     int             `json:"day"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type MonthlyPoint struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// ComputeTotals sums income and expense. Anything not income counts as expense.
func ComputeTotals(txns []Transaction) Totals {
	var t Totals
	for _, tx := range txns {
		if tx.IsIncome() {
			t.Income = t.Income.Add(tx.Amount)
		} else {
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Net = t.Income.Sub(t.Expense)
	return t
}

// CategoryTotals aggregates expenses by category, largest first.
func CategoryTotals(txns []Transaction) []CategoryAmount {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range txns {
		if tx.IsIncome() {
			continue
		}
		sums[tx.Category] = sums[tx.Category].Add(tx.Amount)
	}
	return sortedAmounts(sums)
}

// TopCategories returns at most n expense categories, largest first.
func TopCategories(txns []Transaction, n int) []CategoryAmount {
	all := CategoryTotals(txns)
	if n >= 0 && len(all) > n {
		return all[:n]
	}
	return all
}

// TodayByCategory breaks down the expenses dated today.
func TodayByCategory(txns []Transaction, today Date) DaySummary {
	var todays []Transaction
	for _, tx := range txns {
		if !tx.IsIncome() && tx.Date.Equal(today.Time) {
			todays = append(todays, tx)
		}
	}
	out := DaySummary{Date: today, ByCategory: CategoryTotals(todays)}
	for _, c := range out.ByCategory {
		out.Total = out.Total.Add(c.Amount)
	}
	return out
}

// DailyTotals returns one point per day of the given month.
func DailyTotals(txns []Transaction, year, month int) []DailyPoint {
	days := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	points := make([]DailyPoint, days)
	for i := range points {
		points[i].Day = i + 1
	}
	for _, tx := range txns {
		if tx.Date.Year() != year || tx.Date.Month() != month {
			continue
		}
		p := &points[tx.Date.Day()-1]
		if tx.IsIncome() {
			p.Income = p.Income.Add(tx.Amount)
		} else {
			p.Expense = p.Expense.Add(tx.Amount)
		}
	}
	return points
}

// MonthlyTotals groups transactions by calendar month, oldest first.
func MonthlyTotals(txns []Transaction) []MonthlyPoint {
	index := make(map[int]*MonthlyPoint)
	for _, tx := range txns {
		key := tx.Date.Year()*100 + tx.Date.Month()
		p, ok := index[key]
		if !ok {
			p = &MonthlyPoint{
				Year:  tx.Date.Year(),
				Month: tx.Date.Month(),
				Label: MonthLabel(tx.Date.Year(), tx.Date.Month()),
			}
			index[key] = p
		}
		if tx.IsIncome() {
			p.Income = p.Income.Add(tx.Amount)
		} else {
			p.Expense = p.Expense.Add(tx.Amount)
		}
	}

	keys := make([]int, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]MonthlyPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, *index[k])
	}
	return out
}

// MonthLabel formats a month as "Jan 25".
func MonthLabel(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("Jan 06")
}

func Summarize(txns []Transaction) Overview {
	return Overview{
		Totals:     ComputeTotals(txns),
		Count:      len(txns),
		ByCategory: CategoryTotals(txns),
	}
}

func sortedAmounts(sums map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(sums))
	for name, amount := range sums {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
