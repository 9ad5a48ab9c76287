package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"moneynotes/internal/apperr"
	"moneynotes/internal/core"
	"moneynotes/internal/log"
)

type Options struct {
	DatabaseURL   string
	MaxConns      int32
	RunMigrations bool
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.RunMigrations {
		if err := RunMigrations(opts.DatabaseURL); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	cfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

const selectColumns = `id, type, amount::text, category, date, time, note, created_at`

// Fetch returns rows newest created first.
func (s *Store) Fetch(ctx context.Context, scope core.Scope) ([]core.Transaction, error) {
	if !scope.IsValid() {
		return nil, apperr.Database("fetch", fmt.Errorf("unknown table %q", scope))
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY created_at DESC`, selectColumns, scope))
	if err != nil {
		return nil, classify("fetch "+scope.String(), err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, apperr.Database("scan "+scope.String(), err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch "+scope.String(), err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, scope core.Scope, tx core.Transaction) (core.Transaction, error) {
	if !scope.IsValid() {
		return core.Transaction{}, apperr.Database("insert", fmt.Errorf("unknown table %q", scope))
	}

	var clock pgtype.Text
	if tx.Time != nil {
		clock = pgtype.Text{String: tx.Time.String(), Valid: true}
	}
	var createdAt *time.Time
	if !tx.CreatedAt.IsZero() {
		createdAt = &tx.CreatedAt
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, type, amount, category, date, time, note, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, COALESCE($8, now()))
		RETURNING %s`, scope, selectColumns),
		tx.ID, string(tx.Type), tx.Amount.String(), tx.Category, tx.Date.Time, clock, tx.Note, createdAt)

	saved, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, classify("insert "+scope.String(), err)
	}

	slog.DebugContext(ctx, "Transaction inserted", log.FieldScope, scope.String(), log.FieldTransactionID, saved.ID)
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, scope core.Scope, id string) error {
	if !scope.IsValid() {
		return apperr.Database("delete", fmt.Errorf("unknown table %q", scope))
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, scope), id); err != nil {
		return classify("delete "+scope.String(), err)
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, scope core.Scope, ids []string) error {
	if !scope.IsValid() {
		return apperr.Database("delete", fmt.Errorf("unknown table %q", scope))
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, scope), ids); err != nil {
		return classify("delete "+scope.String(), err)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, scope core.Scope) error {
	if !scope.IsValid() {
		return apperr.Database("delete_all", fmt.Errorf("unknown table %q", scope))
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, scope))
	if err != nil {
		return classify("delete_all "+scope.String(), err)
	}
	slog.InfoContext(ctx, "Table cleared", log.FieldScope, scope.String(), "rows", tag.RowsAffected())
	return nil
}

func (s *Store) FetchBudget(ctx context.Context) (*core.BudgetCycle, error) {
	var (
		b      core.BudgetCycle
		amount string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, amount::text, cycle_days, start_date
		FROM budget
		ORDER BY created_at DESC
		LIMIT 1`).Scan(&b.ID, &amount, &b.CycleDays, &b.StartDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("fetch budget", err)
	}
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, apperr.Database("fetch budget", fmt.Errorf("parse amount %q: %w", amount, err))
	}
	return &b, nil
}

// SaveBudget replaces the singleton budget row.
func (s *Store) SaveBudget(ctx context.Context, cycle core.BudgetCycle) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM budget`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO budget (id, amount, cycle_days, start_date)
			VALUES ($1, $2::numeric, $3, $4)`,
			cycle.ID, cycle.Amount.String(), cycle.CycleDays, cycle.StartDate)
		return err
	})
	if err != nil {
		return classify("save budget", err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx     core.Transaction
		kind   string
		amount string
		date   time.Time
		clock  pgtype.Text
	)
	if err := row.Scan(&tx.ID, &kind, &amount, &tx.Category, &date, &clock, &tx.Note, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}

	tx.Type = core.TxType(kind)
	tx.Date = core.DateOf(date)

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if clock.Valid {
		c, err := core.ParseClock(clock.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse time %q: %w", clock.String, err)
		}
		tx.Time = &c
	}
	return tx, nil
}

// classify maps driver failures onto the application error kinds: server
// side rejections are database errors, everything that never reached the
// server is a connectivity error.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return apperr.Database(op, fmt.Errorf("%s (%s): %w", pgErr.Message, pgErr.Code, err))
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || apperr.KindOf(err) == apperr.KindConnectivity {
		return apperr.Connectivity(op, err)
	}
	return apperr.Database(op, err)
}
