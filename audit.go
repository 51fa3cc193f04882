package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// auditPageSize is how many accounts AuditAll reads per page.
const auditPageSize = 100

// AuditReport compares an account's balance with its transaction log.
//
// The log must satisfy sum(amount) == Balance - InitialPurchased + Forfeited.
// Forfeited monthly credits leave the balance at a cycle reset without a
// transaction of their own.
type AuditReport struct {
	ID               id.AuditReportID `json:"id"`
	AccountID        string           `json:"account_id"`
	Balance          types.Credits    `json:"balance"`
	InitialPurchased types.Credits    `json:"initial_purchased"`
	Forfeited        types.Credits    `json:"forfeited"`
	Expected         types.Credits    `json:"expected"`
	Actual           types.Credits    `json:"actual"`
	Consistent       bool             `json:"consistent"`
	CheckedAt        time.Time        `json:"checked_at"`
}

// AuditSummary is the outcome of auditing every account.
type AuditSummary struct {
	Checked    int            `json:"checked"`
	Mismatches []*AuditReport `json:"mismatches,omitempty"`
}

// Audit checks one account. A mismatch is not an error: it is reported in
// the returned AuditReport, logged and emitted to plugins.
func (l *Ledger) Audit(ctx context.Context, accountID string) (*AuditReport, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	var report *AuditReport
	err := l.withRetry(ctx, accountID, "audit", func(ctx context.Context) error {
		cur, err := l.load(ctx, accountID)
		if err != nil {
			return err
		}
		sum, err := l.store.SumTransactions(ctx, accountID)
		if err != nil {
			return err
		}

		// A write that landed while summing makes the comparison
		// meaningless; read again.
		again, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if again.Version != cur.Version {
			return fmt.Errorf("%w: account %s changed during audit", ErrConcurrentModification, accountID)
		}

		report = l.report(cur.Account, sum)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		l.logger.Error("ledger audit mismatch",
			"account_id", accountID,
			"expected", report.Expected,
			"actual", report.Actual,
			"balance", report.Balance,
			"forfeited", report.Forfeited,
		)
		l.plugins.EmitAuditMismatch(ctx, accountID, report.Expected, report.Actual)
	}
	return report, nil
}

func (l *Ledger) report(a *account.Account, sum types.Credits) *AuditReport {
	expected := a.CurrentBalance - a.InitialPurchasedCredits + a.ForfeitedCredits
	return &AuditReport{
		ID:               id.NewAuditReportID(),
		AccountID:        a.ID,
		Balance:          a.CurrentBalance,
		InitialPurchased: a.InitialPurchasedCredits,
		Forfeited:        a.ForfeitedCredits,
		Expected:         expected,
		Actual:           sum,
		Consistent:       expected == sum,
		CheckedAt:        l.now(),
	}
}

// AuditAll audits every account. Accounts that could not be audited are
// collected into a MultiError; the summary covers the rest.
func (l *Ledger) AuditAll(ctx context.Context) (*AuditSummary, error) {
	summary := &AuditSummary{}
	var errs MultiError

	for offset := 0; ; offset += auditPageSize {
		accounts, err := l.store.ListAccounts(ctx, account.ListOpts{Limit: auditPageSize, Offset: offset})
		if err != nil {
			errs.Add(fmt.Errorf("credits: list accounts at offset %d: %w", offset, err))
			break
		}

		for _, a := range accounts {
			if err := ctx.Err(); err != nil {
				errs.Add(err)
				return summary, errs.Err()
			}
			report, err := l.Audit(ctx, a.ID)
			if err != nil {
				errs.Add(fmt.Errorf("credits: audit %s: %w", a.ID, err))
				continue
			}
			summary.Checked++
			if !report.Consistent {
				summary.Mismatches = append(summary.Mismatches, report)
			}
		}

		if len(accounts) < auditPageSize {
			break
		}
	}

	return summary, errs.Err()
}

// scheduledAudit is the cron entry started by Start.
func (l *Ledger) scheduledAudit() {
	ctx := context.Background()
	started := time.Now()

	summary, err := l.AuditAll(ctx)
	if err != nil {
		l.logger.Error("scheduled audit incomplete", "error", err)
	}
	if summary == nil {
		return
	}
	l.logger.Info("scheduled audit finished",
		"checked", summary.Checked,
		"mismatches", len(summary.Mismatches),
		"duration", time.Since(started),
	)
}
