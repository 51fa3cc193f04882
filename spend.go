package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entitlement"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// SpendResult reports a successful debit.
type SpendResult struct {
	AccountID    string                   `json:"account_id"`
	BalanceAfter types.Credits            `json:"balance_after"`
	Transaction  *transaction.Transaction `json:"transaction"`
}

// Spend atomically debits amount credits from the account's combined pool.
// It never creates an account. A balance short of amount fails with an
// *InsufficientCreditsError and leaves the account untouched.
func (l *Ledger) Spend(ctx context.Context, accountID string, amount types.Credits) (*SpendResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	var result *SpendResult
	var committed *account.Account
	err := l.withRetry(ctx, accountID, "spend", func(ctx context.Context) error {
		cur, err := l.current(ctx, accountID)
		if err != nil {
			return err
		}
		if cur.CurrentBalance < amount {
			return &InsufficientCreditsError{
				AccountID: accountID,
				Requested: amount,
				Available: cur.CurrentBalance,
			}
		}

		n := l.next(cur)
		if n.CurrentBalance, err = cur.CurrentBalance.Sub(amount); err != nil {
			return err
		}
		if n.CreditsUsedThisCycle, err = cur.CreditsUsedThisCycle.Add(amount); err != nil {
			return err
		}
		// The pool is fungible; the purchased part is only drawn once the
		// monthly remainder is exhausted.
		n.PurchasedCredits = cur.PurchasedCredits.Min(n.CurrentBalance)

		n.Pending, err = l.record(n, transaction.KindUsage, -amount,
			cur.CurrentBalance, n.CurrentBalance, "usage", "")
		if err != nil {
			return err
		}

		s, err := l.commit(ctx, cur, n)
		if err != nil {
			return err
		}
		committed = s.Clone()
		result = &SpendResult{
			AccountID:    accountID,
			BalanceAfter: s.CurrentBalance,
			Transaction:  n.Pending,
		}
		return nil
	})
	if err != nil {
		var ice *InsufficientCreditsError
		if errors.As(err, &ice) {
			l.logger.Info("spend rejected: insufficient credits",
				"account_id", accountID,
				"requested", ice.Requested,
				"available", ice.Available,
			)
			l.plugins.EmitInsufficientCredits(ctx, accountID, ice.Requested, ice.Available)
		}
		return nil, err
	}

	l.logger.Debug("credits spent",
		"account_id", accountID,
		"amount", amount,
		"balance", result.BalanceAfter,
	)
	l.plugins.EmitCreditsSpent(ctx, committed, result.Transaction)
	return result, nil
}

// Check reports whether the account could afford amount right now without
// debiting it.
func (l *Ledger) Check(ctx context.Context, accountID string, amount types.Credits) (*entitlement.Result, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	a, err := l.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	res := &entitlement.Result{
		AccountID: accountID,
		Requested: amount,
		Available: a.CurrentBalance,
		Allowed:   a.CurrentBalance >= amount,
	}
	if !res.Allowed {
		res.Shortfall = amount - a.CurrentBalance
		res.Reason = "insufficient credits"
	}
	return res, nil
}
