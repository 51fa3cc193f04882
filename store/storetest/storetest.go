// Package storetest is a conformance suite every store.Store backend must
// pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Factory returns an empty, migrated store.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("ConditionalUpdate", func(t *testing.T) { testConditionalUpdate(t, newStore(t)) })
	t.Run("RacingUpdates", func(t *testing.T) { testRacingUpdates(t, newStore(t)) })
	t.Run("ListAccounts", func(t *testing.T) { testListAccounts(t, newStore(t)) })
	t.Run("AppendIdempotent", func(t *testing.T) { testAppendIdempotent(t, newStore(t)) })
	t.Run("ListTransactions", func(t *testing.T) { testListTransactions(t, newStore(t)) })
	t.Run("FindByExternalRef", func(t *testing.T) { testFindByExternalRef(t, newStore(t)) })
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// NewAccount builds a valid account with the given balance.
func NewAccount(accountID string, balance types.Credits) *account.Account {
	return &account.Account{
		Entity:         types.NewEntityAt(epoch),
		ID:             accountID,
		PlanTier:       "monthly",
		PlanAllowance:  balance,
		CurrentBalance: balance,
		CycleStart:     epoch,
		CycleEnd:       epoch.AddDate(0, 1, 0),
		Version:        1,
	}
}

// NewTransaction builds a valid transaction at seq.
func NewTransaction(accountID string, kind transaction.Kind, amount, before types.Credits, seq int64) *transaction.Transaction {
	return &transaction.Transaction{
		ID:            id.NewTransactionID(),
		AccountID:     accountID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  before + amount,
		Sequence:      seq,
		CreatedAt:     epoch.Add(time.Duration(seq) * time.Second),
	}
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetAccount(ctx, "missing")
	require.ErrorIs(t, err, credits.ErrAccountNotFound)

	a := NewAccount("acct-1", 1000)
	a.Pending = NewTransaction("acct-1", transaction.KindAllocation, 1000, 0, 1)
	require.NoError(t, s.CreateAccount(ctx, a))

	err = s.CreateAccount(ctx, NewAccount("acct-1", 5))
	require.ErrorIs(t, err, credits.ErrAccountExists)

	got, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(1000), got.CurrentBalance)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.Pending)
	assert.Equal(t, a.Pending.ID.String(), got.Pending.ID.String())
	assert.True(t, got.CycleEnd.Equal(a.CycleEnd))
}

func testConditionalUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, NewAccount("acct-1", 1000)))

	a, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)

	a.CurrentBalance = 900
	a.CreditsUsedThisCycle = 100
	a.Version = 2
	require.NoError(t, s.UpdateAccount(ctx, a, 1))

	// A writer still holding version 1 must lose.
	stale := a.Clone()
	stale.CurrentBalance = 500
	stale.Version = 2
	err = s.UpdateAccount(ctx, stale, 1)
	require.ErrorIs(t, err, credits.ErrConcurrentModification)

	got, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(900), got.CurrentBalance)
	assert.Nil(t, got.Pending)

	missing := NewAccount("ghost", 1)
	missing.Version = 2
	err = s.UpdateAccount(ctx, missing, 1)
	require.ErrorIs(t, err, credits.ErrAccountNotFound)
}

func testRacingUpdates(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, NewAccount("acct-1", 1000)))

	const writers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := NewAccount("acct-1", 999)
			a.Version = 2
			if err := s.UpdateAccount(ctx, a, 1); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one conditional write may succeed")
}

func testListAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, s.CreateAccount(ctx, NewAccount(name, 10)))
	}

	all, err := s.ListAccounts(ctx, account.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "c", all[2].ID)

	page, err := s.ListAccounts(ctx, account.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)
}

func testAppendIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := NewTransaction("acct-1", transaction.KindAllocation, 1000, 0, 1)

	require.NoError(t, s.AppendTransaction(ctx, tx))
	require.NoError(t, s.AppendTransaction(ctx, tx))

	list, err := s.ListTransactions(ctx, "acct-1", transaction.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	sum, err := s.SumTransactions(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(1000), sum)

	sum, err = s.SumTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(0), sum)
}

func testListTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	txs := []*transaction.Transaction{
		NewTransaction("acct-1", transaction.KindAllocation, 1000, 0, 1),
	}
	balance := types.Credits(1000)
	for i := int64(2); i <= 5; i++ {
		txs = append(txs, NewTransaction("acct-1", transaction.KindUsage, -10, balance, i))
		balance -= 10
	}
	// Append out of order; listing sorts by sequence.
	for _, i := range []int{3, 0, 4, 1, 2} {
		require.NoError(t, s.AppendTransaction(ctx, txs[i]))
	}
	require.NoError(t, s.AppendTransaction(ctx, NewTransaction("acct-2", transaction.KindAllocation, 5, 0, 1)))

	list, err := s.ListTransactions(ctx, "acct-1", transaction.ListOpts{Limit: 3})
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, want := range []int64{5, 4, 3} {
		assert.Equal(t, want, list[i].Sequence, fmt.Sprintf("position %d", i))
	}

	usage, err := s.ListTransactions(ctx, "acct-1", transaction.ListOpts{Kind: transaction.KindUsage})
	require.NoError(t, err)
	assert.Len(t, usage, 4)

	rest, err := s.ListTransactions(ctx, "acct-1", transaction.ListOpts{Offset: 4})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, transaction.KindAllocation, rest[0].Kind)

	sum, err := s.SumTransactions(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(960), sum)
}

func testFindByExternalRef(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := NewTransaction("acct-1", transaction.KindPurchase, 500, 0, 2)
	tx.ExternalRef = "pay_123"
	require.NoError(t, s.AppendTransaction(ctx, tx))

	got, err := s.FindByExternalRef(ctx, "acct-1", "pay_123")
	require.NoError(t, err)
	assert.Equal(t, tx.ID.String(), got.ID.String())

	_, err = s.FindByExternalRef(ctx, "acct-2", "pay_123")
	require.ErrorIs(t, err, credits.ErrTransactionNotFound)

	_, err = s.FindByExternalRef(ctx, "acct-1", "")
	require.ErrorIs(t, err, credits.ErrTransactionNotFound)
}
