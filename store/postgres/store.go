// Package postgres is the PostgreSQL backend, built on the grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	creditstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("credits/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/postgres: %w: %v", credits.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	m, err := toAccountModel(a)
	if err != nil {
		return err
	}
	res, err := s.pg.NewInsert(m).
		OnConflict("(account_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/postgres: create account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrAccountExists
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	m := new(accountModel)
	err := s.pg.NewSelect(m).
		Where("account_id = $1", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/postgres: get account: %w", err)
	}
	return fromAccountModel(m)
}

// UpdateAccount is a single conditional UPDATE; the affected-row count
// tells a lost race apart from success.
func (s *Store) UpdateAccount(ctx context.Context, a *account.Account, expectedVersion int64) error {
	m, err := toAccountModel(a)
	if err != nil {
		return err
	}
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("plan_tier = $1", m.PlanTier).
		Set("plan_ref = $2", m.PlanRef).
		Set("plan_allowance = $3", m.PlanAllowance).
		Set("current_balance = $4", m.CurrentBalance).
		Set("purchased_credits = $5", m.PurchasedCredits).
		Set("initial_purchased_credits = $6", m.InitialPurchasedCredits).
		Set("credits_used_this_cycle = $7", m.CreditsUsedThisCycle).
		Set("forfeited_credits = $8", m.ForfeitedCredits).
		Set("cycle_start = $9", m.CycleStart).
		Set("cycle_end = $10", m.CycleEnd).
		Set("version = $11", m.Version).
		Set("pending = $12", m.Pending).
		Set("updated_at = $13", m.UpdatedAt).
		Where("account_id = $14", m.AccountID).
		Where("version = $15", expectedVersion).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/postgres: update account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, getErr := s.GetAccount(ctx, a.ID); errors.Is(getErr, credits.ErrAccountNotFound) {
			return credits.ErrAccountNotFound
		}
		return credits.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel
	q := s.pg.NewSelect(&models).OrderExpr("account_id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/postgres: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Transaction Store ====================

func (s *Store) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	_, err := s.pg.NewInsert(toTransactionModel(t)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/postgres: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models).Where("account_id = $1", accountID)

	if opts.Kind != "" {
		q = q.Where("kind = $2", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("sequence DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/postgres: list transactions: %w", err)
	}

	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) SumTransactions(ctx context.Context, accountID string) (types.Credits, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(amount), 0) FROM credit_transactions
		WHERE account_id = $1
	`, accountID).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("credits/postgres: sum transactions: %w", err)
	}
	return types.Credits(total), nil
}

func (s *Store) FindByExternalRef(ctx context.Context, accountID, ref string) (*transaction.Transaction, error) {
	if ref == "" {
		return nil, credits.ErrTransactionNotFound
	}
	m := new(transactionModel)
	err := s.pg.NewSelect(m).
		Where("account_id = $1", accountID).
		Where("external_ref = $2", ref).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("credits/postgres: find by external ref: %w", err)
	}
	return fromTransactionModel(m)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
