package account_test

import (
	"testing"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/transaction"
)

var start = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func base() *account.Account {
	return &account.Account{
		ID:               "acct-1",
		PlanTier:         "monthly",
		PlanAllowance:    1000,
		CurrentBalance:   1500,
		PurchasedCredits: 500,
		CycleStart:       start,
		CycleEnd:         start.AddDate(0, 1, 0),
		Version:          1,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *account.Account)
		wantErr bool
	}{
		{"valid", func(*account.Account) {}, false},
		{"missing id", func(a *account.Account) { a.ID = "" }, true},
		{"negative balance", func(a *account.Account) { a.CurrentBalance = -1 }, true},
		{"below purchased floor", func(a *account.Account) { a.CurrentBalance = 400 }, true},
		{"negative used", func(a *account.Account) { a.CreditsUsedThisCycle = -1 }, true},
		{"negative forfeited", func(a *account.Account) { a.ForfeitedCredits = -1 }, true},
		{"inverted cycle", func(a *account.Account) { a.CycleEnd = a.CycleStart }, true},
		{"zero version", func(a *account.Account) { a.Version = 0 }, true},
		{"valid pending", func(a *account.Account) {
			a.Pending = &transaction.Transaction{
				ID: id.NewTransactionID(), AccountID: "acct-1", Kind: transaction.KindUsage,
				Amount: -10, BalanceBefore: 1510, BalanceAfter: 1500, Sequence: 1,
			}
		}, false},
		{"foreign pending", func(a *account.Account) {
			a.Pending = &transaction.Transaction{
				ID: id.NewTransactionID(), AccountID: "acct-2", Kind: transaction.KindUsage,
				Amount: -10, BalanceBefore: 1510, BalanceAfter: 1500, Sequence: 1,
			}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base()
			tt.mutate(a)
			err := a.Validate()
			if tt.wantErr && !account.IsInvalid(err) {
				t.Errorf("expected invalid error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	a := base()
	if a.Expired(start) {
		t.Error("account should be current at cycle start")
	}
	if a.Expired(a.CycleEnd.Add(-time.Nanosecond)) {
		t.Error("account should be current just before cycle end")
	}
	if !a.Expired(a.CycleEnd) {
		t.Error("account should be expired at cycle end")
	}
}

func TestMonthlyRemaining(t *testing.T) {
	a := base()
	if got := a.MonthlyRemaining(); got != 1000 {
		t.Errorf("got %d, want 1000", got)
	}
}

func TestClone(t *testing.T) {
	a := base()
	a.Pending = &transaction.Transaction{ID: id.NewTransactionID(), AccountID: "acct-1"}
	cp := a.Clone()
	cp.CurrentBalance = 0
	cp.Pending.Description = "changed"
	if a.CurrentBalance != 1500 || a.Pending.Description != "" {
		t.Error("Clone shares state with the original")
	}
}
