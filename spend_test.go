package credits_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

func TestSpendValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Spend(ctx, "ghost", 10)
	require.ErrorIs(t, err, credits.ErrAccountNotFound)
	_, err = h.store.GetAccount(ctx, "ghost")
	require.ErrorIs(t, err, credits.ErrAccountNotFound, "spend never opens an account")

	_, err = h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)
	for _, amount := range []types.Credits{0, -5} {
		_, err = h.ledger.Spend(ctx, "u1", amount)
		require.ErrorIs(t, err, credits.ErrInvalidAmount)
	}
}

func TestSpendExactBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)

	res, err := h.ledger.Spend(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.Equal(t, types.Credits(0), res.BalanceAfter)
	assert.Equal(t, transaction.KindUsage, res.Transaction.Kind)
	assert.Equal(t, types.Credits(-1000), res.Transaction.Amount)
	assert.Equal(t, int64(2), res.Transaction.Sequence)

	_, err = h.ledger.Spend(ctx, "u1", 1)
	require.ErrorIs(t, err, credits.ErrInsufficientCredits)
}

func TestSpendDrawsMonthlyFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)
	_, err = h.ledger.AddPurchasedCredits(ctx, "u1", 200, "")
	require.NoError(t, err)

	_, err = h.ledger.Spend(ctx, "u1", 900)
	require.NoError(t, err)
	assert.Equal(t, types.Credits(200), h.account(t, "u1").PurchasedCredits)

	_, err = h.ledger.Spend(ctx, "u1", 250)
	require.NoError(t, err)
	a := h.account(t, "u1")
	assert.Equal(t, types.Credits(50), a.CurrentBalance)
	assert.Equal(t, types.Credits(50), a.PurchasedCredits)
	assert.Equal(t, types.Credits(1150), a.CreditsUsedThisCycle)
	h.requireInvariants(t, "u1")
}

func TestSpendReconcilesFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)
	_, err = h.ledger.Spend(ctx, "u1", 1000)
	require.NoError(t, err)

	h.clock.NextCycle()

	res, err := h.ledger.Spend(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, types.Credits(990), res.BalanceAfter)
	assert.Equal(t, types.Credits(10), h.account(t, "u1").CreditsUsedThisCycle)
	h.requireInvariants(t, "u1")
}

func TestConcurrentSpends(t *testing.T) {
	const (
		budget  = 50
		workers = 120
	)
	policy, err := plan.NewPolicy(map[plan.Tier]types.Credits{plan.TierMonthly: budget}, plan.TierMonthly)
	require.NoError(t, err)
	h := newHarness(t,
		credits.WithPolicy(policy),
		credits.WithRetry(10000, time.Microsecond, 200*time.Microsecond),
	)
	ctx := context.Background()

	_, err = h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)

	var ok, insufficient atomic.Int64
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Spend(ctx, "u1", 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, credits.ErrInsufficientCredits):
				insufficient.Add(1)
			default:
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(budget), ok.Load())
	assert.Equal(t, int64(workers-budget), insufficient.Load())
	assert.Equal(t, types.Credits(0), h.account(t, "u1").CurrentBalance)

	usage, err := h.store.ListTransactions(ctx, "u1", transaction.ListOpts{Kind: transaction.KindUsage})
	require.NoError(t, err)
	assert.Len(t, usage, budget)
	h.requireInvariants(t, "u1")
}

// conflictStore loses the first n conditional writes.
type conflictStore struct {
	*memory.Store
	remaining atomic.Int64
}

func (s *conflictStore) UpdateAccount(ctx context.Context, a *account.Account, expected int64) error {
	if s.remaining.Add(-1) >= 0 {
		return credits.ErrConcurrentModification
	}
	return s.Store.UpdateAccount(ctx, a, expected)
}

func TestConflictRetryBudget(t *testing.T) {
	ctx := context.Background()

	s := &conflictStore{Store: memory.New()}
	l := credits.New(s,
		credits.WithLogger(discardLogger()),
		credits.WithRetry(3, time.Microsecond, time.Microsecond),
	)
	_, err := l.Allocate(ctx, "u1", "")
	require.NoError(t, err)

	s.remaining.Store(2)
	_, err = l.Spend(ctx, "u1", 1)
	require.NoError(t, err, "two lost writes fit in three attempts")

	s.remaining.Store(3)
	_, err = l.Spend(ctx, "u1", 1)
	require.ErrorIs(t, err, credits.ErrConcurrentModification)
	assert.True(t, credits.IsRetryable(err))

	a, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(999), a.CurrentBalance)
}

// flakyLog fails usage appends while broken is set.
type flakyLog struct {
	*memory.Store
	broken atomic.Bool
}

func (s *flakyLog) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	if s.broken.Load() && t.Kind == transaction.KindUsage {
		return errors.New("log unavailable")
	}
	return s.Store.AppendTransaction(ctx, t)
}

func TestDeferredLogAppend(t *testing.T) {
	ctx := context.Background()

	s := &flakyLog{Store: memory.New()}
	l := credits.New(s,
		credits.WithLogger(discardLogger()),
		credits.WithRetry(3, time.Microsecond, time.Microsecond),
	)
	_, err := l.Allocate(ctx, "u1", "")
	require.NoError(t, err)

	s.broken.Store(true)
	res, err := l.Spend(ctx, "u1", 40)
	require.NoError(t, err, "the balance change is committed even when the log is down")
	assert.Equal(t, types.Credits(960), res.BalanceAfter)

	a, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, a.Pending)
	assert.Equal(t, res.Transaction.ID, a.Pending.ID)

	// The unlogged change blocks further mutation.
	_, err = l.Spend(ctx, "u1", 1)
	require.Error(t, err)
	a, err = s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(960), a.CurrentBalance)

	s.broken.Store(false)
	txs, err := l.ListRecentTransactions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, res.Transaction.ID, txs[0].ID)

	report, err := l.Audit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.Check(ctx, "ghost", 1)
	require.ErrorIs(t, err, credits.ErrAccountNotFound)

	_, err = h.ledger.Allocate(ctx, "u1", "")
	require.NoError(t, err)

	res, err := h.ledger.Check(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, types.Credits(0), res.Shortfall)

	res, err = h.ledger.Check(ctx, "u1", 1200)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, types.Credits(200), res.Shortfall)
	assert.Equal(t, types.Credits(1000), h.account(t, "u1").CurrentBalance)

	_, err = h.ledger.Check(ctx, "u1", 0)
	require.ErrorIs(t, err, credits.ErrInvalidAmount)
}

// TestRandomOperations runs a seeded mix of operations across cycles and
// checks the balance rules and the audit identity after each step.
func TestRandomOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	_, err := h.ledger.Allocate(ctx, "u1", plan.TierMonthly)
	require.NoError(t, err)

	for step := 0; step < 300; step++ {
		switch op := rng.IntN(10); {
		case op < 5:
			_, err = h.ledger.Spend(ctx, "u1", types.Credits(1+rng.IntN(400)))
			if errors.Is(err, credits.ErrInsufficientCredits) {
				err = nil
			}
		case op < 7:
			_, err = h.ledger.AddPurchasedCredits(ctx, "u1", types.Credits(1+rng.IntN(300)), "")
		case op < 8:
			tier := plan.TierMonthly
			if rng.IntN(2) == 0 {
				tier = plan.TierAnnual
			}
			_, err = h.ledger.ChangePlan(ctx, "u1", tier)
		case op < 9:
			_, err = h.ledger.CorrectBalance(ctx, "u1", credits.Correction{
				Delta:  types.Credits(rng.IntN(50) + 1),
				Reason: "goodwill",
			})
		default:
			h.clock.NextCycle()
			_, err = h.ledger.GetBalance(ctx, "u1")
		}
		require.NoError(t, err, "step %d", step)
		h.requireInvariants(t, "u1")
	}
}
