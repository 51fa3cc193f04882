// Package observability provides a metrics extension for the credit ledger
// that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"math"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnAccountOpened       = (*MetricsExtension)(nil)
	_ plugin.OnCycleReset          = (*MetricsExtension)(nil)
	_ plugin.OnPlanChanged         = (*MetricsExtension)(nil)
	_ plugin.OnCreditsAllocated    = (*MetricsExtension)(nil)
	_ plugin.OnCreditsSpent        = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientCredits = (*MetricsExtension)(nil)
	_ plugin.OnCreditsPurchased    = (*MetricsExtension)(nil)
	_ plugin.OnBalanceCorrected    = (*MetricsExtension)(nil)
	_ plugin.OnAuditMismatch       = (*MetricsExtension)(nil)
	_ plugin.OnWriteConflict       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as a ledger plugin to automatically track credit metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsOpened Counter
	CycleResets    Counter
	PlanChanges    Counter

	// Credit metrics
	CreditsAllocated  Counter
	CreditsSpent      Counter
	CreditsPurchased  Counter
	CreditsForfeited  Counter
	SpendAmount       Histogram
	SpendsDenied      Counter
	Purchases         Counter
	BalanceCorrection Counter

	// Integrity metrics
	AuditMismatches Counter
	WriteConflicts  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountsOpened: factory.Counter("credits.account.opened"),
		CycleResets:    factory.Counter("credits.cycle.resets"),
		PlanChanges:    factory.Counter("credits.plan.changes"),

		// Credit metrics
		CreditsAllocated:  factory.Counter("credits.allocated"),
		CreditsSpent:      factory.Counter("credits.spent"),
		CreditsPurchased:  factory.Counter("credits.purchased"),
		CreditsForfeited:  factory.Counter("credits.forfeited"),
		SpendAmount:       factory.Histogram("credits.spend.amount"),
		SpendsDenied:      factory.Counter("credits.spend.denied"),
		Purchases:         factory.Counter("credits.purchases"),
		BalanceCorrection: factory.Counter("credits.corrections"),

		// Integrity metrics
		AuditMismatches: factory.Counter("credits.audit.mismatches"),
		WriteConflicts:  factory.Counter("credits.write.conflicts"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (m *MetricsExtension) OnAccountOpened(_ context.Context, _ *account.Account) error {
	m.AccountsOpened.Inc()
	return nil
}

// OnCycleReset implements plugin.OnCycleReset.
func (m *MetricsExtension) OnCycleReset(_ context.Context, _ *account.Account, forfeited types.Credits) error {
	m.CycleResets.Inc()
	if forfeited > 0 {
		m.CreditsForfeited.Add(float64(forfeited))
	}
	return nil
}

// OnPlanChanged implements plugin.OnPlanChanged.
func (m *MetricsExtension) OnPlanChanged(_ context.Context, _ *account.Account, _, _ plan.Tier) error {
	m.PlanChanges.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnCreditsAllocated implements plugin.OnCreditsAllocated.
func (m *MetricsExtension) OnCreditsAllocated(_ context.Context, _ *account.Account, tx *transaction.Transaction) error {
	m.CreditsAllocated.Add(float64(tx.Amount))
	return nil
}

// OnCreditsSpent implements plugin.OnCreditsSpent.
func (m *MetricsExtension) OnCreditsSpent(_ context.Context, _ *account.Account, tx *transaction.Transaction) error {
	spent := math.Abs(float64(tx.Amount))
	m.CreditsSpent.Add(spent)
	m.SpendAmount.Observe(spent)
	return nil
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (m *MetricsExtension) OnInsufficientCredits(_ context.Context, _ string, _, _ types.Credits) error {
	m.SpendsDenied.Inc()
	return nil
}

// OnCreditsPurchased implements plugin.OnCreditsPurchased.
func (m *MetricsExtension) OnCreditsPurchased(_ context.Context, _ *account.Account, tx *transaction.Transaction) error {
	m.Purchases.Inc()
	m.CreditsPurchased.Add(float64(tx.Amount))
	return nil
}

// OnBalanceCorrected implements plugin.OnBalanceCorrected.
func (m *MetricsExtension) OnBalanceCorrected(_ context.Context, _ *account.Account, _ *transaction.Transaction) error {
	m.BalanceCorrection.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnAuditMismatch implements plugin.OnAuditMismatch.
func (m *MetricsExtension) OnAuditMismatch(_ context.Context, _ string, _, _ types.Credits) error {
	m.AuditMismatches.Inc()
	return nil
}

// OnWriteConflict implements plugin.OnWriteConflict.
func (m *MetricsExtension) OnWriteConflict(_ context.Context, _, _ string) error {
	m.WriteConflicts.Inc()
	return nil
}
