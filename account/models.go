// Package account defines the per-account credit balance and its storage
// contract.
package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Account is the credit state of one identity-provider account.
//
// CurrentBalance is the fungible pool available to spend. PurchasedCredits
// is the part of it that was bought and survives cycle resets; the rest is
// the remainder of the monthly allowance.
type Account struct {
	types.Entity
	ID                      string        `json:"account_id"`
	PlanTier                plan.Tier     `json:"plan_tier"`
	PlanRef                 string        `json:"plan_ref,omitempty"`
	PlanAllowance           types.Credits `json:"plan_allowance"`
	CurrentBalance          types.Credits `json:"current_balance"`
	PurchasedCredits        types.Credits `json:"purchased_credits"`
	InitialPurchasedCredits types.Credits `json:"initial_purchased_credits"`
	CreditsUsedThisCycle    types.Credits `json:"credits_used_this_cycle"`
	// ForfeitedCredits totals the monthly remainder discarded at cycle
	// resets. Forfeiture does not produce a transaction.
	ForfeitedCredits types.Credits `json:"forfeited_credits"`
	CycleStart       time.Time     `json:"cycle_start"`
	CycleEnd         time.Time     `json:"cycle_end"`
	Version          int64         `json:"version"`
	// Pending is the transaction committed together with the latest balance
	// change and not yet confirmed in the transaction log.
	Pending *transaction.Transaction `json:"pending,omitempty"`
}

// MonthlyRemaining is the part of the balance that came from the current
// cycle's allowance.
func (a *Account) MonthlyRemaining() types.Credits {
	r := a.CurrentBalance - a.PurchasedCredits
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports whether the cycle has ended at now.
func (a *Account) Expired(now time.Time) bool {
	return !now.Before(a.CycleEnd)
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	cp := *a
	if a.Pending != nil {
		p := *a.Pending
		cp.Pending = &p
	}
	return &cp
}

var errInvalid = errors.New("invalid account")

// Validate checks the invariants every stored account obeys.
func (a *Account) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: missing account id", errInvalid)
	case a.CurrentBalance < 0:
		return fmt.Errorf("%w: negative balance %d", errInvalid, a.CurrentBalance)
	case a.PurchasedCredits < 0, a.InitialPurchasedCredits < 0,
		a.CreditsUsedThisCycle < 0, a.ForfeitedCredits < 0, a.PlanAllowance < 0:
		return fmt.Errorf("%w: negative counter", errInvalid)
	case a.CurrentBalance < a.PurchasedCredits:
		return fmt.Errorf("%w: balance %d below purchased credits %d",
			errInvalid, a.CurrentBalance, a.PurchasedCredits)
	case !a.CycleEnd.After(a.CycleStart):
		return fmt.Errorf("%w: cycle end not after cycle start", errInvalid)
	case a.Version < 1:
		return fmt.Errorf("%w: version %d", errInvalid, a.Version)
	}
	if a.Pending != nil {
		if a.Pending.AccountID != a.ID {
			return fmt.Errorf("%w: pending transaction belongs to %q", errInvalid, a.Pending.AccountID)
		}
		if err := a.Pending.Validate(); err != nil {
			return fmt.Errorf("%w: pending: %v", errInvalid, err)
		}
	}
	return nil
}

// IsInvalid reports whether err came from Validate.
func IsInvalid(err error) bool { return errors.Is(err, errInvalid) }
