package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:credit_accounts"`

	AccountID               string            `grove:"account_id,pk"              bson:"_id"`
	PlanTier                string            `grove:"plan_tier"                  bson:"plan_tier"`
	PlanRef                 string            `grove:"plan_ref"                   bson:"plan_ref"`
	PlanAllowance           int64             `grove:"plan_allowance"             bson:"plan_allowance"`
	CurrentBalance          int64             `grove:"current_balance"            bson:"current_balance"`
	PurchasedCredits        int64             `grove:"purchased_credits"          bson:"purchased_credits"`
	InitialPurchasedCredits int64             `grove:"initial_purchased_credits"  bson:"initial_purchased_credits"`
	CreditsUsedThisCycle    int64             `grove:"credits_used_this_cycle"    bson:"credits_used_this_cycle"`
	ForfeitedCredits        int64             `grove:"forfeited_credits"          bson:"forfeited_credits"`
	CycleStart              time.Time         `grove:"cycle_start"                bson:"cycle_start"`
	CycleEnd                time.Time         `grove:"cycle_end"                  bson:"cycle_end"`
	Version                 int64             `grove:"version"                    bson:"version"`
	Pending                 *transactionModel `grove:"pending"                    bson:"pending,omitempty"`
	CreatedAt               time.Time         `grove:"created_at"                 bson:"created_at"`
	UpdatedAt               time.Time         `grove:"updated_at"                 bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	m := &accountModel{
		AccountID:               a.ID,
		PlanTier:                string(a.PlanTier),
		PlanRef:                 a.PlanRef,
		PlanAllowance:           a.PlanAllowance.Int64(),
		CurrentBalance:          a.CurrentBalance.Int64(),
		PurchasedCredits:        a.PurchasedCredits.Int64(),
		InitialPurchasedCredits: a.InitialPurchasedCredits.Int64(),
		CreditsUsedThisCycle:    a.CreditsUsedThisCycle.Int64(),
		ForfeitedCredits:        a.ForfeitedCredits.Int64(),
		CycleStart:              a.CycleStart.UTC(),
		CycleEnd:                a.CycleEnd.UTC(),
		Version:                 a.Version,
		CreatedAt:               a.CreatedAt.UTC(),
		UpdatedAt:               a.UpdatedAt.UTC(),
	}
	if a.Pending != nil {
		m.Pending = toTransactionModel(a.Pending)
	}
	return m
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	a := &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                      m.AccountID,
		PlanTier:                plan.Tier(m.PlanTier),
		PlanRef:                 m.PlanRef,
		PlanAllowance:           types.Credits(m.PlanAllowance),
		CurrentBalance:          types.Credits(m.CurrentBalance),
		PurchasedCredits:        types.Credits(m.PurchasedCredits),
		InitialPurchasedCredits: types.Credits(m.InitialPurchasedCredits),
		CreditsUsedThisCycle:    types.Credits(m.CreditsUsedThisCycle),
		ForfeitedCredits:        types.Credits(m.ForfeitedCredits),
		CycleStart:              m.CycleStart,
		CycleEnd:                m.CycleEnd,
		Version:                 m.Version,
	}
	if m.Pending != nil {
		p, err := fromTransactionModel(m.Pending)
		if err != nil {
			return nil, err
		}
		a.Pending = p
	}
	if err := a.Validate(); err != nil {
		return nil, credits.Integrity(err)
	}
	return a, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:credit_transactions"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	AccountID     string    `grove:"account_id"     bson:"account_id"`
	Kind          string    `grove:"kind"           bson:"kind"`
	Amount        int64     `grove:"amount"         bson:"amount"`
	BalanceBefore int64     `grove:"balance_before" bson:"balance_before"`
	BalanceAfter  int64     `grove:"balance_after"  bson:"balance_after"`
	Sequence      int64     `grove:"sequence"       bson:"sequence"`
	Description   string    `grove:"description"    bson:"description,omitempty"`
	ExternalRef   string    `grove:"external_ref"   bson:"external_ref,omitempty"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:            t.ID.String(),
		AccountID:     t.AccountID,
		Kind:          string(t.Kind),
		Amount:        t.Amount.Int64(),
		BalanceBefore: t.BalanceBefore.Int64(),
		BalanceAfter:  t.BalanceAfter.Int64(),
		Sequence:      t.Sequence,
		Description:   t.Description,
		ExternalRef:   t.ExternalRef,
		CreatedAt:     t.CreatedAt.UTC(),
	}
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, credits.Integrity(err)
	}

	t := &transaction.Transaction{
		ID:            txID,
		AccountID:     m.AccountID,
		Kind:          transaction.Kind(m.Kind),
		Amount:        types.Credits(m.Amount),
		BalanceBefore: types.Credits(m.BalanceBefore),
		BalanceAfter:  types.Credits(m.BalanceAfter),
		Sequence:      m.Sequence,
		Description:   m.Description,
		ExternalRef:   m.ExternalRef,
		CreatedAt:     m.CreatedAt,
	}
	if err := t.Validate(); err != nil {
		return nil, credits.Integrity(err)
	}
	return t, nil
}
