package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}

func TestReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateAccount(ctx, storetest.NewAccount("acct-1", 100)))

	a, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	a.CurrentBalance = 0

	again, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.EqualValues(t, 100, again.CurrentBalance)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Ping(ctx), credits.ErrStoreClosed)
	_, err := s.GetAccount(ctx, "acct-1")
	require.ErrorIs(t, err, credits.ErrStoreClosed)
}
