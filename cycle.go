package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/subscription"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// setCycleEnd closes a one-month cycle. Month arithmetic follows
// time.AddDate, so Jan 31 rolls to Mar 3 in non-leap years.
func setCycleEnd(a *account.Account) {
	a.CycleEnd = a.CycleStart.AddDate(0, 1, 0)
}

func validateAccountID(accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return ValidationError{Field: "account_id", Message: "must not be empty"}
	}
	return nil
}

// tierFor asks the subscription service for the account's tier. ok is false
// when no answer was available and the caller should keep what it has.
func (l *Ledger) tierFor(ctx context.Context, accountID string) (tier plan.Tier, planRef string, ok bool) {
	if l.subs == nil {
		return "", "", false
	}
	sub, err := l.subs.Lookup(ctx, accountID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			l.logger.Debug("no subscription for account", "account_id", accountID)
		} else {
			l.logger.Warn("subscription lookup failed, keeping stored tier",
				"account_id", accountID,
				"error", err,
			)
		}
		return "", "", false
	}
	return sub.Tier, sub.PlanRef, true
}

// resolve maps a tier to its allowance, logging unknown tiers.
func (l *Ledger) resolve(accountID string, tier plan.Tier) (plan.Tier, types.Credits) {
	allowance, known := l.policy.Resolve(tier)
	canonical := l.policy.Canonical(tier)
	if !known {
		l.logger.Warn("unknown plan tier, using default",
			"account_id", accountID,
			"tier", tier,
			"default_tier", canonical,
			"error", ErrInvalidPlanTier,
		)
	}
	return canonical, allowance
}

// getOrCreate returns the account, creating it on first use. tier, when
// non-empty, is used for creation; otherwise the subscription service is
// asked. Concurrent first use creates the account once.
func (l *Ledger) getOrCreate(ctx context.Context, accountID string, tier plan.Tier) (snapshot, error) {
	s, err := l.load(ctx, accountID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return snapshot{}, err
	}

	planRef := ""
	if tier == "" {
		if t, ref, ok := l.tierFor(ctx, accountID); ok {
			tier, planRef = t, ref
		}
	}
	return l.open(ctx, accountID, tier, planRef)
}

func (l *Ledger) open(ctx context.Context, accountID string, tier plan.Tier, planRef string) (snapshot, error) {
	now := l.now()
	tier, allowance := l.resolve(accountID, tier)

	a := &account.Account{
		ID:             accountID,
		PlanTier:       tier,
		PlanRef:        planRef,
		PlanAllowance:  allowance,
		CurrentBalance: allowance,
		CycleStart:     now,
		Version:        1,
		Entity:         types.NewEntityAt(now),
	}
	setCycleEnd(a)

	if allowance > 0 {
		tx, err := l.record(a, transaction.KindAllocation, allowance, 0, allowance,
			fmt.Sprintf("initial %s allowance", tier), "")
		if err != nil {
			return snapshot{}, err
		}
		a.Pending = tx
	}

	if err := l.store.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, ErrAccountExists) {
			// Lost the creation race; the winner's account is authoritative.
			return l.load(ctx, accountID)
		}
		return snapshot{}, err
	}

	s := snapshot{Account: a}
	if err := l.flush(ctx, &s); err != nil {
		l.logger.Warn("transaction log append deferred",
			"account_id", accountID,
			"error", err,
		)
	}

	l.logger.Info("credit account opened",
		"account_id", accountID,
		"tier", tier,
		"allowance", allowance,
		"cycle_end", a.CycleEnd,
	)
	l.plugins.EmitAccountOpened(ctx, a.Clone())
	if a.Pending != nil {
		l.plugins.EmitCreditsAllocated(ctx, a.Clone(), a.Pending)
	}
	return s, nil
}

// reconcile rolls an expired cycle forward. The unused monthly remainder is
// forfeited, purchased credits carry over and one ALLOCATION is recorded for
// the new allowance. The write is conditional on the version read, so two
// racing reconcilers allocate once. override, when non-empty, replaces the
// subscription lookup.
func (l *Ledger) reconcile(ctx context.Context, cur snapshot, override plan.Tier) (snapshot, error) {
	now := l.now()
	if !cur.Expired(now) {
		return cur, nil
	}

	tier, planRef := cur.PlanTier, cur.PlanRef
	if override != "" {
		tier = override
	} else if t, ref, ok := l.tierFor(ctx, cur.ID); ok {
		tier, planRef = t, ref
	}
	tier, allowance := l.resolve(cur.ID, tier)

	forfeited := cur.MonthlyRemaining()
	n := l.next(cur)

	var err error
	if n.ForfeitedCredits, err = n.ForfeitedCredits.Add(forfeited); err != nil {
		return snapshot{}, fmt.Errorf("credits: reconcile %s: %w", cur.ID, err)
	}
	if n.CurrentBalance, err = allowance.Add(cur.PurchasedCredits); err != nil {
		return snapshot{}, fmt.Errorf("credits: reconcile %s: %w", cur.ID, err)
	}
	n.CreditsUsedThisCycle = 0
	n.CycleStart = now
	setCycleEnd(n)
	n.PlanTier = tier
	n.PlanRef = planRef
	n.PlanAllowance = allowance

	if allowance > 0 {
		// Forfeiture is implicit: the allocation starts from the carried-over
		// purchased credits.
		n.Pending, err = l.record(n, transaction.KindAllocation, allowance,
			cur.PurchasedCredits, n.CurrentBalance,
			fmt.Sprintf("%s allowance for cycle starting %s", tier, now.Format("2006-01-02")), "")
		if err != nil {
			return snapshot{}, err
		}
	}

	s, err := l.commit(ctx, cur, n)
	if err != nil {
		return snapshot{}, err
	}

	l.logger.Info("credit cycle reset",
		"account_id", n.ID,
		"tier", tier,
		"allowance", allowance,
		"forfeited", forfeited,
		"balance", n.CurrentBalance,
		"cycle_end", n.CycleEnd,
	)
	l.plugins.EmitCycleReset(ctx, n.Clone(), forfeited)
	if n.Pending != nil {
		l.plugins.EmitCreditsAllocated(ctx, n.Clone(), n.Pending)
	}
	return s, nil
}

// current loads an existing account and brings its cycle up to date.
func (l *Ledger) current(ctx context.Context, accountID string) (snapshot, error) {
	if err := validateAccountID(accountID); err != nil {
		return snapshot{}, err
	}
	s, err := l.load(ctx, accountID)
	if err != nil {
		return snapshot{}, err
	}
	return l.reconcile(ctx, s, "")
}
