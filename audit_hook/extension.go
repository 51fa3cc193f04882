// Package audithook bridges credit ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnAccountOpened       = (*Extension)(nil)
	_ plugin.OnCycleReset          = (*Extension)(nil)
	_ plugin.OnPlanChanged         = (*Extension)(nil)
	_ plugin.OnCreditsAllocated    = (*Extension)(nil)
	_ plugin.OnCreditsSpent        = (*Extension)(nil)
	_ plugin.OnInsufficientCredits = (*Extension)(nil)
	_ plugin.OnCreditsPurchased    = (*Extension)(nil)
	_ plugin.OnBalanceCorrected    = (*Extension)(nil)
	_ plugin.OnAuditMismatch       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges credit ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (e *Extension) OnAccountOpened(ctx context.Context, a *account.Account) error {
	return e.record(ctx, ActionAccountOpened, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID, CategoryAccount, "",
		"tier", a.PlanTier.String(),
		"allowance", a.PlanAllowance.Int64(),
		"cycle_end", a.CycleEnd,
	)
}

// OnCycleReset implements plugin.OnCycleReset.
func (e *Extension) OnCycleReset(ctx context.Context, a *account.Account, forfeited types.Credits) error {
	return e.record(ctx, ActionCycleReset, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID, CategoryAccount, "",
		"tier", a.PlanTier.String(),
		"allowance", a.PlanAllowance.Int64(),
		"forfeited", forfeited.Int64(),
		"balance", a.CurrentBalance.Int64(),
	)
}

// OnPlanChanged implements plugin.OnPlanChanged.
func (e *Extension) OnPlanChanged(ctx context.Context, a *account.Account, oldTier, newTier plan.Tier) error {
	return e.record(ctx, ActionPlanChanged, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID, CategoryAccount, "",
		"old_tier", oldTier.String(),
		"new_tier", newTier.String(),
		"allowance", a.PlanAllowance.Int64(),
		"balance", a.CurrentBalance.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnCreditsAllocated implements plugin.OnCreditsAllocated.
func (e *Extension) OnCreditsAllocated(ctx context.Context, a *account.Account, tx *transaction.Transaction) error {
	return e.recordTx(ctx, ActionCreditsAllocated, CategoryAccount, a, tx)
}

// OnCreditsSpent implements plugin.OnCreditsSpent.
func (e *Extension) OnCreditsSpent(ctx context.Context, a *account.Account, tx *transaction.Transaction) error {
	return e.recordTx(ctx, ActionCreditsSpent, CategoryUsage, a, tx)
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (e *Extension) OnInsufficientCredits(ctx context.Context, accountID string, requested, available types.Credits) error {
	return e.record(ctx, ActionCreditsDenied, SeverityWarning, OutcomeFailure,
		ResourceAccount, accountID, CategoryUsage, "insufficient credits",
		"requested", requested.Int64(),
		"available", available.Int64(),
	)
}

// OnCreditsPurchased implements plugin.OnCreditsPurchased.
func (e *Extension) OnCreditsPurchased(ctx context.Context, a *account.Account, tx *transaction.Transaction) error {
	return e.recordTx(ctx, ActionCreditsPurchased, CategoryPayment, a, tx)
}

// OnBalanceCorrected implements plugin.OnBalanceCorrected.
func (e *Extension) OnBalanceCorrected(ctx context.Context, a *account.Account, tx *transaction.Transaction) error {
	return e.record(ctx, ActionBalanceCorrected, SeverityWarning, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryAdmin, tx.Description,
		"account_id", a.ID,
		"amount", tx.Amount.Int64(),
		"balance_after", tx.BalanceAfter.Int64(),
		"purchased", a.PurchasedCredits.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnAuditMismatch implements plugin.OnAuditMismatch.
func (e *Extension) OnAuditMismatch(ctx context.Context, accountID string, expected, actual types.Credits) error {
	return e.record(ctx, ActionAuditMismatch, SeverityCritical, OutcomeFailure,
		ResourceAccount, accountID, CategoryIntegrity, "transaction log does not reconcile with balance",
		"expected", expected.Int64(),
		"actual", actual.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) recordTx(ctx context.Context, action, category string, a *account.Account, tx *transaction.Transaction) error {
	kv := []any{
		"account_id", a.ID,
		"kind", string(tx.Kind),
		"amount", tx.Amount.Int64(),
		"balance_before", tx.BalanceBefore.Int64(),
		"balance_after", tx.BalanceAfter.Int64(),
		"sequence", tx.Sequence,
	}
	if tx.ExternalRef != "" {
		kv = append(kv, "external_ref", tx.ExternalRef)
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), category, "", kv...)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
