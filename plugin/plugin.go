// Package plugin provides an extensible plugin system for the credit ledger.
// Plugins can hook into account lifecycle and balance events to extend
// functionality.
package plugin

import (
	"context"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountOpened is called after an account is created on first use.
type OnAccountOpened interface {
	Plugin
	OnAccountOpened(ctx context.Context, a *account.Account) error
}

// OnCycleReset is called after an expired cycle is reconciled. forfeited is
// the unused monthly remainder that was discarded.
type OnCycleReset interface {
	Plugin
	OnCycleReset(ctx context.Context, a *account.Account, forfeited types.Credits) error
}

// OnPlanChanged is called after a plan change was applied.
type OnPlanChanged interface {
	Plugin
	OnPlanChanged(ctx context.Context, a *account.Account, oldTier, newTier plan.Tier) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnCreditsAllocated is called for every ALLOCATION transaction.
type OnCreditsAllocated interface {
	Plugin
	OnCreditsAllocated(ctx context.Context, a *account.Account, tx *transaction.Transaction) error
}

// OnCreditsSpent is called after a successful debit.
type OnCreditsSpent interface {
	Plugin
	OnCreditsSpent(ctx context.Context, a *account.Account, tx *transaction.Transaction) error
}

// OnInsufficientCredits is called when a debit is rejected.
type OnInsufficientCredits interface {
	Plugin
	OnInsufficientCredits(ctx context.Context, accountID string, requested, available types.Credits) error
}

// OnCreditsPurchased is called after purchased credits are added.
type OnCreditsPurchased interface {
	Plugin
	OnCreditsPurchased(ctx context.Context, a *account.Account, tx *transaction.Transaction) error
}

// OnBalanceCorrected is called after an administrative correction.
type OnBalanceCorrected interface {
	Plugin
	OnBalanceCorrected(ctx context.Context, a *account.Account, tx *transaction.Transaction) error
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnAuditMismatch is called when an account's transaction log does not
// reconcile with its balance.
type OnAuditMismatch interface {
	Plugin
	OnAuditMismatch(ctx context.Context, accountID string, expected, actual types.Credits) error
}

// OnWriteConflict is called each time a conditional write loses a race.
type OnWriteConflict interface {
	Plugin
	OnWriteConflict(ctx context.Context, accountID, op string) error
}
