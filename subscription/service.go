package subscription

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("subscription: not found")

// Service reports the current subscription of an account.
type Service interface {
	Lookup(ctx context.Context, accountID string) (*Subscription, error)
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, accountID string) (*Subscription, error)

func (f ServiceFunc) Lookup(ctx context.Context, accountID string) (*Subscription, error) {
	return f(ctx, accountID)
}

// Static is an in-process Service backed by a map. Useful for tests and
// single-node deployments where tiers are pushed in by the caller.
type Static struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

func NewStatic() *Static {
	return &Static{subs: make(map[string]Subscription)}
}

// Set records the subscription for s.AccountID, replacing any previous one.
func (st *Static) Set(s Subscription) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.subs[s.AccountID] = s
}

func (st *Static) Delete(accountID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.subs, accountID)
}

func (st *Static) Lookup(_ context.Context, accountID string) (*Subscription, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.subs[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}
