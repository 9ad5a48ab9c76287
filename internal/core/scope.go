package core

// Scope names one of the two transaction tables.
type Scope string

const (
	// ScopeMonthly is the resettable working set.
	ScopeMonthly Scope = "transactions"
	// ScopeArchive is the permanent copy; it is never bulk reset.
	ScopeArchive Scope = "transactions_archive"
)

func (s Scope) String() string {
	return string(s)
}

func (s Scope) IsValid() bool {
	return s == ScopeMonthly || s == ScopeArchive
}
