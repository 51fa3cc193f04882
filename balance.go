package credits

import (
	"context"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/types"
)

// Allocate returns the account, creating it with tier's allowance when it
// does not exist yet. An empty tier is resolved through the subscription
// service. An existing account is only brought up to date; its tier changes
// through ChangePlan.
func (l *Ledger) Allocate(ctx context.Context, accountID string, tier plan.Tier) (*account.Account, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	var out *account.Account
	err := l.withRetry(ctx, accountID, "allocate", func(ctx context.Context) error {
		s, err := l.getOrCreate(ctx, accountID, tier)
		if err != nil {
			return err
		}
		if s, err = l.reconcile(ctx, s, ""); err != nil {
			return err
		}
		out = s.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetBalance returns the spendable balance. The account is created on first
// use and an expired cycle is reconciled.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (types.Credits, error) {
	a, err := l.Allocate(ctx, accountID, "")
	if err != nil {
		return 0, err
	}
	return a.CurrentBalance, nil
}

// Account returns the up-to-date state of an existing account.
func (l *Ledger) Account(ctx context.Context, accountID string) (*account.Account, error) {
	var out *account.Account
	err := l.withRetry(ctx, accountID, "account", func(ctx context.Context) error {
		s, err := l.current(ctx, accountID)
		if err != nil {
			return err
		}
		out = s.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
