package credits_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

func TestAddPurchasedCredits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.AddPurchasedCredits(ctx, "ghost", 100, "")
	require.ErrorIs(t, err, credits.ErrAccountNotFound)

	_, err = h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)

	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 0, "")
	require.ErrorIs(t, err, credits.ErrInvalidAmount)

	a, err := h.ledger.AddPurchasedCredits(ctx, "u1", 500, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(1500), a.CurrentBalance)
	assert.Equal(t, types.Credits(500), a.PurchasedCredits)

	tx, err := h.store.FindByExternalRef(ctx, "u1", "pi_1")
	require.NoError(t, err)
	assert.Equal(t, transaction.KindPurchase, tx.Kind)
	assert.Equal(t, types.Credits(500), tx.Amount)
	h.requireInvariants(t, "u1")
}

func TestDuplicatePurchaseRef(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)
	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 500, "pi_1")
	require.NoError(t, err)

	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 500, " pi_1 ")
	require.ErrorIs(t, err, credits.ErrDuplicatePurchase)
	assert.Equal(t, types.Credits(1500), h.account(t, "u1").CurrentBalance)

	// Empty refs are never deduplicated.
	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 10, "")
	require.NoError(t, err)
	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(520), h.account(t, "u1").PurchasedCredits)

	// A ref is scoped to its account.
	_, err = h.ledger.Allocate(ctx, "u2", "")
	require.NoError(t, err)
	_, err = h.ledger.AddPurchasedCredits(ctx, "u2", 500, "pi_1")
	require.NoError(t, err)
}

func TestPurchasedCreditsSurviveResets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)
	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 400, "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		h.clock.NextCycle()
		balance, err := h.ledger.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, types.Credits(1400), balance)
	}
	assert.Equal(t, types.Credits(3000), h.account(t, "u1").ForfeitedCredits)
	h.requireInvariants(t, "u1")
}

func TestCorrectBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)
	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 200, "")
	require.NoError(t, err)

	a, err := h.ledger.CorrectBalance(ctx, "u1", credits.Correction{Delta: -300, Reason: "duplicate grant"})
	require.NoError(t, err)
	assert.Equal(t, types.Credits(900), a.CurrentBalance)
	assert.Equal(t, types.Credits(200), a.PurchasedCredits)

	txs := h.transactions(t, "u1")
	assert.Equal(t, transaction.KindAdminCorrection, txs[0].Kind)
	assert.Equal(t, "duplicate grant", txs[0].Description)

	_, err = h.ledger.CorrectBalance(ctx, "u1", credits.Correction{Delta: -800, Reason: "below floor"})
	require.ErrorIs(t, err, credits.ErrBalanceFloor)

	a, err = h.ledger.CorrectBalance(ctx, "u1", credits.Correction{Delta: -150, AdjustPurchased: true, Reason: "chargeback"})
	require.NoError(t, err)
	assert.Equal(t, types.Credits(750), a.CurrentBalance)
	assert.Equal(t, types.Credits(50), a.PurchasedCredits)

	_, err = h.ledger.CorrectBalance(ctx, "u1", credits.Correction{Delta: -100, AdjustPurchased: true, Reason: "too much"})
	require.ErrorIs(t, err, credits.ErrBalanceFloor)

	_, err = h.ledger.CorrectBalance(ctx, "u1", credits.Correction{Reason: "nothing"})
	require.ErrorIs(t, err, credits.ErrInvalidAmount)

	var ve credits.ValidationError
	_, err = h.ledger.CorrectBalance(ctx, "u1", credits.Correction{Delta: 5})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "reason", ve.Field)

	h.requireInvariants(t, "u1")
}
