// Package sqlite is the SQLite backend, built on the grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	creditstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("credits/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/sqlite: %w: %v", credits.ErrMigrationFailed, err)
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
	res, err := s.sdb.NewInsert(m).
		OnConflict("(account_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/sqlite: create account: %w", err)
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
	err := s.sdb.NewSelect(m).
		Where("account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/sqlite: get account: %w", err)
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
	res, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("plan_tier = ?", m.PlanTier).
		Set("plan_ref = ?", m.PlanRef).
		Set("plan_allowance = ?", m.PlanAllowance).
		Set("current_balance = ?", m.CurrentBalance).
		Set("purchased_credits = ?", m.PurchasedCredits).
		Set("initial_purchased_credits = ?", m.InitialPurchasedCredits).
		Set("credits_used_this_cycle = ?", m.CreditsUsedThisCycle).
		Set("forfeited_credits = ?", m.ForfeitedCredits).
		Set("cycle_start = ?", m.CycleStart).
		Set("cycle_end = ?", m.CycleEnd).
		Set("version = ?", m.Version).
		Set("pending = ?", m.Pending).
		Set("updated_at = ?", m.UpdatedAt).
		Where("account_id = ?", m.AccountID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/sqlite: update account: %w", err)
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
	q := s.sdb.NewSelect(&models).OrderExpr("account_id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/sqlite: list accounts: %w", err)
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
	_, err := s.sdb.NewInsert(toTransactionModel(t)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/sqlite: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.sdb.NewSelect(&models).Where("account_id = ?", accountID)

	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("sequence DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/sqlite: list transactions: %w", err)
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
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(amount), 0) FROM credit_transactions
		WHERE account_id = ?
	`, accountID).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("credits/sqlite: sum transactions: %w", err)
	}
	return types.Credits(total), nil
}

func (s *Store) FindByExternalRef(ctx context.Context, accountID, ref string) (*transaction.Transaction, error) {
	if ref == "" {
		return nil, credits.ErrTransactionNotFound
	}
	m := new(transactionModel)
	err := s.sdb.NewSelect(m).
		Where("account_id = ?", accountID).
		Where("external_ref = ?", ref).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("credits/sqlite: find by external ref: %w", err)
	}
	return fromTransactionModel(m)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
