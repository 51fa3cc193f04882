package credits

import (
	"context"

	"github.com/xraph/credits/transaction"
)

// Transaction listing limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// ListRecentTransactions returns up to limit of the account's transactions,
// most recent first. A limit of zero or less uses DefaultHistoryLimit and
// larger limits are capped at MaxHistoryLimit.
func (l *Ledger) ListRecentTransactions(ctx context.Context, accountID string, limit int) ([]*transaction.Transaction, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	// Loading flushes a pending transaction so the latest change is listed.
	if _, err := l.load(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListTransactions(ctx, accountID, transaction.ListOpts{Limit: limit})
}
