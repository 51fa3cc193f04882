// Package mongo is the MongoDB backend, built on the grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	creditstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Collection name constants.
const (
	colAccounts     = "credit_accounts"
	colTransactions = "credit_transactions"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all credit collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(toAccountModel(a)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAccountExists
		}
		return fmt.Errorf("credits/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

// UpdateAccount replaces the document only while its version still matches.
func (s *Store) UpdateAccount(ctx context.Context, a *account.Account, expectedVersion int64) error {
	m := toAccountModel(a)

	update := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": m.AccountID, "version": expectedVersion}).
		Set("plan_tier", m.PlanTier).
		Set("plan_ref", m.PlanRef).
		Set("plan_allowance", m.PlanAllowance).
		Set("current_balance", m.CurrentBalance).
		Set("purchased_credits", m.PurchasedCredits).
		Set("initial_purchased_credits", m.InitialPurchasedCredits).
		Set("credits_used_this_cycle", m.CreditsUsedThisCycle).
		Set("forfeited_credits", m.ForfeitedCredits).
		Set("cycle_start", m.CycleStart).
		Set("cycle_end", m.CycleEnd).
		Set("version", m.Version).
		Set("pending", m.Pending).
		Set("updated_at", m.UpdatedAt)

	res, err := update.Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: update account: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, getErr := s.GetAccount(ctx, a.ID); errors.Is(getErr, credits.ErrAccountNotFound) {
			return credits.ErrAccountNotFound
		}
		return credits.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list accounts: %w", err)
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
	_, err := s.mdb.NewInsert(toTransactionModel(t)).Exec(ctx)
	if err != nil {
		// Replays of a stored id are expected after a failed commit.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("credits/mongo: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel

	filter := bson.M{"account_id": accountID}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "sequence", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list transactions: %w", err)
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
	pipeline := bson.A{
		bson.M{"$match": bson.M{"account_id": accountID}},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("credits/mongo: sum transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("credits/mongo: sum decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return types.Credits(results[0].Total), nil
}

func (s *Store) FindByExternalRef(ctx context.Context, accountID, ref string) (*transaction.Transaction, error) {
	if ref == "" {
		return nil, credits.ErrTransactionNotFound
	}
	var m transactionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"account_id": accountID, "external_ref": ref}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("credits/mongo: find by external ref: %w", err)
	}
	return fromTransactionModel(&m)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all credit collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "cycle_end", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "sequence", Value: -1}}},
			{
				Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "external_ref", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
					"kind":         string(transaction.KindPurchase),
					"external_ref": bson.M{"$gt": ""},
				}),
			},
		},
	}
}
