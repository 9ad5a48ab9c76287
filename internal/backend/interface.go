package backend

import (
	"context"

	"moneynotes/internal/core"
)

// Scope aliases core.Scope.
type Scope = core.Scope

const (
	Monthly = core.ScopeMonthly
	Archive = core.ScopeArchive
)

// TransactionStore is the hosted table API, addressed by scope. Fetch returns
// rows newest created first.
type TransactionStore interface {
	Fetch(ctx context.Context, scope Scope) ([]core.Transaction, error)
	Insert(ctx context.Context, scope Scope, tx core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, scope Scope, id string) error
	DeleteMany(ctx context.Context, scope Scope, ids []string) error
	DeleteAll(ctx context.Context, scope Scope) error
}

// BudgetStore holds the singleton budget row. FetchBudget returns nil when
// none exists and SaveBudget replaces any existing row.
type BudgetStore interface {
	FetchBudget(ctx context.Context) (*core.BudgetCycle, error)
	SaveBudget(ctx context.Context, cycle core.BudgetCycle) error
}

// Backend represents the hosted relational backend.
type Backend interface {
	TransactionStore
	BudgetStore

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Postgres specific
	DatabaseURL   string
	MaxConns      int32
	RunMigrations bool
}

// BackendType represents the type of backend
type BackendType string

const (
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
