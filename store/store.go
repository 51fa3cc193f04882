// Package store defines the unified persistence contract for the credit
// ledger. Backends live in the subpackages.
package store

import (
	"context"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/transaction"
)

// Store is the unified storage interface for accounts and the transaction
// log.
type Store interface {
	account.Store
	transaction.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
