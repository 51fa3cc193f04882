package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// AddPurchasedCredits adds bought credits to an existing account. Purchased
// credits never expire. A non-empty externalRef may fund at most one
// purchase per account; a replay fails with ErrDuplicatePurchase.
func (l *Ledger) AddPurchasedCredits(ctx context.Context, accountID string, amount types.Credits, externalRef string) (*account.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	externalRef = strings.TrimSpace(externalRef)

	var out *account.Account
	var tx *transaction.Transaction
	err := l.withRetry(ctx, accountID, "purchase", func(ctx context.Context) error {
		cur, err := l.current(ctx, accountID)
		if err != nil {
			return err
		}

		if externalRef != "" {
			_, err := l.store.FindByExternalRef(ctx, accountID, externalRef)
			if err == nil {
				return fmt.Errorf("%w: %s", ErrDuplicatePurchase, externalRef)
			}
			if !errors.Is(err, ErrTransactionNotFound) {
				return err
			}
		}

		n := l.next(cur)
		if n.PurchasedCredits, err = cur.PurchasedCredits.Add(amount); err != nil {
			return err
		}
		if n.CurrentBalance, err = cur.CurrentBalance.Add(amount); err != nil {
			return err
		}

		n.Pending, err = l.record(n, transaction.KindPurchase, amount,
			cur.CurrentBalance, n.CurrentBalance, "purchased credits", externalRef)
		if err != nil {
			return err
		}

		s, err := l.commit(ctx, cur, n)
		if err != nil {
			return err
		}
		out, tx = s.Clone(), n.Pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("purchased credits added",
		"account_id", accountID,
		"amount", amount,
		"external_ref", externalRef,
		"balance", out.CurrentBalance,
	)
	l.plugins.EmitCreditsPurchased(ctx, out.Clone(), tx)
	return out, nil
}

// Correction is an administrative balance adjustment.
type Correction struct {
	// Delta is added to the balance; negative values remove credits.
	Delta types.Credits `json:"delta"`
	// AdjustPurchased applies Delta to the purchased credits as well. This is
	// the only way purchased credits can be reduced.
	AdjustPurchased bool   `json:"adjust_purchased"`
	Reason          string `json:"reason"`
}

// CorrectBalance applies an administrative correction and records it as an
// ADMIN_CORRECTION transaction. Results below zero or below the purchased
// floor are rejected with ErrBalanceFloor.
func (l *Ledger) CorrectBalance(ctx context.Context, accountID string, c Correction) (*account.Account, error) {
	if c.Delta == 0 {
		return nil, fmt.Errorf("%w: correction delta must be non-zero", ErrInvalidAmount)
	}
	if strings.TrimSpace(c.Reason) == "" {
		return nil, ValidationError{Field: "reason", Message: "must not be empty"}
	}

	var out *account.Account
	var tx *transaction.Transaction
	err := l.withRetry(ctx, accountID, "correct", func(ctx context.Context) error {
		cur, err := l.current(ctx, accountID)
		if err != nil {
			return err
		}

		n := l.next(cur)
		if n.CurrentBalance, err = cur.CurrentBalance.Add(c.Delta); err != nil {
			return err
		}
		if c.AdjustPurchased {
			if n.PurchasedCredits, err = cur.PurchasedCredits.Add(c.Delta); err != nil {
				return err
			}
		}
		if n.CurrentBalance < 0 || n.PurchasedCredits < 0 || n.CurrentBalance < n.PurchasedCredits {
			return fmt.Errorf("%w: balance %d, purchased %d after correction of %d",
				ErrBalanceFloor, n.CurrentBalance, n.PurchasedCredits, c.Delta)
		}

		n.Pending, err = l.record(n, transaction.KindAdminCorrection, c.Delta,
			cur.CurrentBalance, n.CurrentBalance, c.Reason, "")
		if err != nil {
			return err
		}

		s, err := l.commit(ctx, cur, n)
		if err != nil {
			return err
		}
		out, tx = s.Clone(), n.Pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("balance corrected",
		"account_id", accountID,
		"delta", c.Delta,
		"adjust_purchased", c.AdjustPurchased,
		"reason", c.Reason,
		"balance", out.CurrentBalance,
	)
	l.plugins.EmitBalanceCorrected(ctx, out.Clone(), tx)
	return out, nil
}
