package mongo

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/transaction"
)

func sampleAccount() *account.Account {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &account.Account{
		ID:               "acct-1",
		PlanTier:         "annual",
		PlanRef:          "sub_42",
		PlanAllowance:    1250,
		CurrentBalance:   1300,
		PurchasedCredits: 100,
		ForfeitedCredits: 30,
		CycleStart:       start,
		CycleEnd:         start.AddDate(0, 1, 0),
		Version:          3,
		Pending: &transaction.Transaction{
			ID:            id.NewTransactionID(),
			AccountID:     "acct-1",
			Kind:          transaction.KindUsage,
			Amount:        -50,
			BalanceBefore: 1350,
			BalanceAfter:  1300,
			Sequence:      3,
			CreatedAt:     start,
		},
	}
}

func TestAccountModelRoundTrip(t *testing.T) {
	a := sampleAccount()
	m := mustAccountModel(t, a)

	got, err := fromAccountModel(m)
	if err != nil {
		t.Fatalf("fromAccountModel: %v", err)
	}
	if got.ID != a.ID || got.CurrentBalance != a.CurrentBalance || got.Version != a.Version ||
		got.PlanTier != a.PlanTier || got.ForfeitedCredits != a.ForfeitedCredits {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Pending == nil || got.Pending.ID.String() != a.Pending.ID.String() {
		t.Errorf("pending transaction lost: %+v", got.Pending)
	}

	a.Pending = nil
	got, err = fromAccountModel(mustAccountModel(t, a))
	if err != nil {
		t.Fatalf("fromAccountModel without pending: %v", err)
	}
	if got.Pending != nil {
		t.Error("expected nil pending")
	}
}

func TestAccountModelRejectsCorruptRows(t *testing.T) {
	a := sampleAccount()
	m := mustAccountModel(t, a)
	m.CurrentBalance = 50 // below purchased credits

	if _, err := fromAccountModel(m); !errors.Is(err, credits.ErrDataIntegrity) {
		t.Errorf("expected ErrDataIntegrity, got %v", err)
	}
}

func TestTransactionModelRejectsCorruptRows(t *testing.T) {
	tx := sampleAccount().Pending
	m := toTransactionModel(tx)
	if _, err := fromTransactionModel(m); err != nil {
		t.Fatalf("fromTransactionModel: %v", err)
	}

	m.BalanceAfter = 1299
	if _, err := fromTransactionModel(m); !errors.Is(err, credits.ErrDataIntegrity) {
		t.Errorf("expected ErrDataIntegrity for bad delta, got %v", err)
	}

	m = toTransactionModel(tx)
	m.ID = "not-an-id"
	if _, err := fromTransactionModel(m); !errors.Is(err, credits.ErrDataIntegrity) {
		t.Errorf("expected ErrDataIntegrity for bad id, got %v", err)
	}
}

func mustAccountModel(t *testing.T, a *account.Account) *accountModel {
	t.Helper()
	return toAccountModel(a)
}
