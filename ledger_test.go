package credits_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
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

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// NextCycle moves the clock one month ahead.
func (c *fakeClock) NextCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 1, 0)
}

type harness struct {
	ledger *credits.Ledger
	store  *memory.Store
	clock  *fakeClock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, opts ...credits.Option) *harness {
	t.Helper()
	h := &harness{store: memory.New(), clock: &fakeClock{t: epoch}}
	base := []credits.Option{
		credits.WithLogger(discardLogger()),
		credits.WithClock(h.clock.Now),
		credits.WithRetry(5, time.Microsecond, time.Millisecond),
	}
	h.ledger = credits.New(h.store, append(base, opts...)...)
	return h
}

func (h *harness) transactions(t *testing.T, accountID string) []*transaction.Transaction {
	t.Helper()
	txs, err := h.store.ListTransactions(context.Background(), accountID, transaction.ListOpts{})
	require.NoError(t, err)
	return txs
}

func (h *harness) account(t *testing.T, accountID string) *account.Account {
	t.Helper()
	a, err := h.store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return a
}

// requireInvariants checks the balance rules and the audit identity.
func (h *harness) requireInvariants(t *testing.T, accountID string) {
	t.Helper()
	a := h.account(t, accountID)
	require.GreaterOrEqual(t, int64(a.CurrentBalance), int64(0), "negative balance")
	require.GreaterOrEqual(t, int64(a.CurrentBalance), int64(a.PurchasedCredits), "balance below purchased floor")
	require.GreaterOrEqual(t, int64(a.PurchasedCredits), int64(0))

	report, err := h.ledger.Audit(context.Background(), accountID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "audit mismatch: expected %d, actual %d", report.Expected, report.Actual)
}

func TestGetBalanceOpensAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	balance, err := h.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(1000), balance)

	a := h.account(t, "u1")
	assert.Equal(t, plan.TierMonthly, a.PlanTier)
	assert.Equal(t, types.Credits(1000), a.PlanAllowance)
	assert.Equal(t, epoch, a.CycleStart)
	assert.Equal(t, epoch.AddDate(0, 1, 0), a.CycleEnd)
	assert.Equal(t, int64(1), a.Version)

	txs := h.transactions(t, "u1")
	require.Len(t, txs, 1)
	assert.Equal(t, transaction.KindAllocation, txs[0].Kind)
	assert.Equal(t, types.Credits(1000), txs[0].Amount)
	assert.Equal(t, types.Credits(0), txs[0].BalanceBefore)

	// A second read does not allocate again.
	balance, err = h.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(1000), balance)
	assert.Len(t, h.transactions(t, "u1"), 1)
}

func TestAllocateTier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.ledger.Allocate(ctx, "u1", plan.TierAnnual)
	require.NoError(t, err)
	assert.Equal(t, plan.TierAnnual, a.PlanTier)
	assert.Equal(t, types.Credits(1250), a.CurrentBalance)

	// An existing account keeps its tier.
	a, err = h.ledger.Allocate(ctx, "u1", plan.TierMonthly)
	require.NoError(t, err)
	assert.Equal(t, plan.TierAnnual, a.PlanTier)
	assert.Equal(t, types.Credits(1250), a.CurrentBalance)
}

func TestUnknownTierUsesDefault(t *testing.T) {
	h := newHarness(t)

	a, err := h.ledger.Allocate(context.Background(), "u1", "platinum")
	require.NoError(t, err)
	assert.Equal(t, plan.TierMonthly, a.PlanTier)
	assert.Equal(t, types.Credits(1000), a.CurrentBalance)
}

func TestCustomPolicy(t *testing.T) {
	policy, err := plan.NewPolicy(map[plan.Tier]types.Credits{"free": 0, "pro": 5000}, "free")
	require.NoError(t, err)
	h := newHarness(t, credits.WithPolicy(policy))
	ctx := context.Background()

	balance, err := h.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Credits(0), balance)
	assert.Empty(t, h.transactions(t, "u1"), "a zero allowance records no transaction")

	a, err := h.ledger.Allocate(ctx, "u2", "PRO")
	require.NoError(t, err)
	assert.Equal(t, plan.Tier("pro"), a.PlanTier)
	assert.Equal(t, types.Credits(5000), a.CurrentBalance)
}

func TestEmptyAccountID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var ve credits.ValidationError
	_, err := h.ledger.GetBalance(ctx, " ")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "account_id", ve.Field)

	_, err = h.ledger.Spend(ctx, "", 1)
	require.ErrorAs(t, err, &ve)
	_, err = h.ledger.ListRecentTransactions(ctx, "", 10)
	require.ErrorAs(t, err, &ve)
}

func TestAccountRequiresExisting(t *testing.T) {
	h := newHarness(t)

	_, err := h.ledger.Account(context.Background(), "ghost")
	require.ErrorIs(t, err, credits.ErrAccountNotFound)
	assert.True(t, credits.IsNotFound(err))
}

func TestConcurrentFirstUse(t *testing.T) {
	h := newHarness(t, credits.WithRetry(100, time.Microsecond, time.Millisecond))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ledger.GetBalance(ctx, "u1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, h.transactions(t, "u1"), 1)
	assert.Equal(t, types.Credits(1000), h.account(t, "u1").CurrentBalance)
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ledger.Start(ctx))
	require.NoError(t, h.ledger.Start(ctx), "second start is a no-op")

	_, err := h.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, h.ledger.Stop())

	_, err = h.ledger.GetBalance(ctx, "u1")
	assert.ErrorIs(t, err, credits.ErrStoreClosed)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	h := newHarness(t, credits.WithAuditSchedule("every tuesday"))
	assert.Error(t, h.ledger.Start(context.Background()))
}

type migrateCounter struct {
	*memory.Store
	calls int
}

func (m *migrateCounter) Migrate(ctx context.Context) error {
	m.calls++
	return m.Store.Migrate(ctx)
}

func TestAutoMigrate(t *testing.T) {
	ctx := context.Background()

	s := &migrateCounter{Store: memory.New()}
	require.NoError(t, credits.New(s, credits.WithLogger(discardLogger())).Start(ctx))
	assert.Equal(t, 1, s.calls)

	s = &migrateCounter{Store: memory.New()}
	require.NoError(t, credits.New(s, credits.WithLogger(discardLogger()), credits.WithAutoMigrate(false)).Start(ctx))
	assert.Equal(t, 0, s.calls)
}

type failingMigrate struct {
	*memory.Store
}

func (failingMigrate) Migrate(context.Context) error { return errors.New("no database") }

func TestStartMigrationFailure(t *testing.T) {
	l := credits.New(failingMigrate{memory.New()}, credits.WithLogger(discardLogger()))
	assert.Error(t, l.Start(context.Background()))
}
