package transaction

import (
	"context"

	"github.com/xraph/credits/types"
)

// Store is the append-only transaction log. Implementations never update or
// delete a stored transaction.
type Store interface {
	// AppendTransaction stores t. Appending an ID that is already stored is a
	// no-op so callers may retry freely.
	AppendTransaction(ctx context.Context, t *Transaction) error
	// ListTransactions returns an account's transactions, most recent first.
	ListTransactions(ctx context.Context, accountID string, opts ListOpts) ([]*Transaction, error)
	SumTransactions(ctx context.Context, accountID string) (types.Credits, error)
	FindByExternalRef(ctx context.Context, accountID, ref string) (*Transaction, error)
}

type ListOpts struct {
	Kind   Kind
	Limit  int
	Offset int
}
