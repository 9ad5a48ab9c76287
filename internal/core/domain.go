package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

type (
	TxType string

	// Date is a calendar date. Only the year, month and day are meaningful.
	Date struct {
		time.Time
	}

	// Clock is a wall-clock time of day without a date.
	Clock struct {
		Hour   int
		Minute int
	}

	Transaction struct {
		ID        string          `json:"id"`
		Type      TxType          `json:"type"`
		Amount    decimal.Decimal `json:"amount"`
		Category  string          `json:"category"`
		Date      Date            `json:"date"`
		Time      *Clock          `json:"time,omitempty"`
		Note      string          `json:"note,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}
)

var (
	IncomeCategories  = []string{"Salary", "Bonus", "Freelance", "Other Income"}
	ExpenseCategories = []string{"Food", "7-Eleven", "AIS and Premium", "Cigarettes", "Bills", "Transport", "Shopping", "Other"}
)

var (
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidClock    = errors.New("invalid time")
	ErrMissingID       = errors.New("missing transaction id")
)

func (t TxType) IsValid() bool {
	return t == Income || t == Expense
}

// CategoriesFor returns the configured category list for a transaction type.
func CategoriesFor(t TxType) []string {
	if t == Income {
		return IncomeCategories
	}
	return ExpenseCategories
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Day() int {
	return d.Time.Day()
}

func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewClock validates and builds a Clock.
func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidClock, hour, minute)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// ParseClock accepts HH:MM and HH:MM:SS, discarding seconds.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if len(s) > 5 {
		s = s[:5]
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// OccurredAt combines the transaction date and time in loc. A missing time
// means midnight.
func (t Transaction) OccurredAt(loc *time.Location) time.Time {
	hour, minute := 0, 0
	if t.Time != nil {
		hour, minute = t.Time.Hour, t.Time.Minute
	}
	return time.Date(t.Date.Year(), time.Month(t.Date.Month()), t.Date.Day(), hour, minute, 0, 0, loc)
}

func (t Transaction) IsIncome() bool {
	return t.Type == Income
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !slices.Contains(CategoriesFor(t.Type), t.Category) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, t.Category)
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Time != nil {
		if _, err := NewClock(t.Time.Hour, t.Time.Minute); err != nil {
			return err
		}
	}
	if len(t.Note) > 500 {
		return errors.New("note too long (max 500 characters)")
	}
	return nil
}
