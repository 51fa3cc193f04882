package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
)

// ChangePlan moves an account to newTier. An upgrade is applied at once:
// the monthly remainder is kept, the new allowance is granted on top and the
// cycle end does not move. A downgrade or lateral move only changes the
// allowance used from the next reset on. A missing account is opened on
// newTier.
func (l *Ledger) ChangePlan(ctx context.Context, accountID string, newTier plan.Tier) (*account.Account, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	if newTier.Normalize() == "" {
		return nil, fmt.Errorf("%w: empty tier", ErrInvalidPlanTier)
	}

	var out *account.Account
	var oldTier plan.Tier
	var grant *transaction.Transaction
	changed := false
	err := l.withRetry(ctx, accountID, "change_plan", func(ctx context.Context) error {
		changed, grant = false, nil

		cur, err := l.load(ctx, accountID)
		if errors.Is(err, ErrAccountNotFound) {
			s, err := l.open(ctx, accountID, newTier, "")
			if err != nil {
				return err
			}
			out = s.Clone()
			return nil
		}
		if err != nil {
			return err
		}

		oldTier = cur.PlanTier
		if cur.Expired(l.now()) {
			// The new cycle starts on the new tier; there is nothing left
			// to merge.
			s, err := l.reconcile(ctx, cur, newTier)
			if err != nil {
				return err
			}
			out, changed = s.Clone(), s.PlanTier != oldTier
			return nil
		}

		tier, allowance := l.resolve(accountID, newTier)
		if tier == cur.PlanTier {
			out = cur.Clone()
			return nil
		}

		n := l.next(cur)
		n.PlanTier = tier
		n.PlanAllowance = allowance

		if allowance > cur.PlanAllowance {
			remaining := cur.MonthlyRemaining()
			if n.CurrentBalance, err = remaining.Add(cur.PurchasedCredits); err != nil {
				return err
			}
			if n.CurrentBalance, err = n.CurrentBalance.Add(allowance); err != nil {
				return err
			}
			n.Pending, err = l.record(n, transaction.KindAllocation, allowance,
				cur.CurrentBalance, n.CurrentBalance,
				fmt.Sprintf("upgrade from %s to %s", cur.PlanTier, tier), "")
			if err != nil {
				return err
			}
		}

		s, err := l.commit(ctx, cur, n)
		if err != nil {
			return err
		}
		out, changed, grant = s.Clone(), true, n.Pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		l.logger.Info("plan changed",
			"account_id", accountID,
			"old_tier", oldTier,
			"new_tier", out.PlanTier,
			"allowance", out.PlanAllowance,
			"balance", out.CurrentBalance,
		)
		l.plugins.EmitPlanChanged(ctx, out.Clone(), oldTier, out.PlanTier)
		if grant != nil {
			l.plugins.EmitCreditsAllocated(ctx, out.Clone(), grant)
		}
	}
	return out, nil
}
