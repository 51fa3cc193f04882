package account

import "context"

type Store interface {
	// CreateAccount inserts a if no account with a.ID exists.
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	// UpdateAccount replaces the stored account only if its version still
	// equals expectedVersion.
	UpdateAccount(ctx context.Context, a *Account, expectedVersion int64) error
	// ListAccounts pages through accounts ordered by id.
	ListAccounts(ctx context.Context, opts ListOpts) ([]*Account, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}
