// Package core provides money parsing and formatting utilities.
//
// Amounts are carried as decimal.Decimal and shown in Thai baht.
package core

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const currencySymbol = "฿"

// ParseAmount converts a user supplied amount to a positive decimal.
//
// Thousands separators are stripped and the result is rounded to two decimal
// places. Zero, negative and malformed values return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("1,234.5") -> 1234.50, nil
//	ParseAmount("0")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, currencySymbol)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatTHB renders an amount as baht with grouping and two decimals,
// e.g. "฿1,234.00" or "-฿12.50".
func FormatTHB(d decimal.Decimal) string {
	neg := d.IsNegative()
	if neg {
		d = d.Neg()
	}
	s := currencySymbol + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
	if neg {
		return "-" + s
	}
	return s
}
