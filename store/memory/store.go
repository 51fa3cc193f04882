// Package memory is an in-process store. Every read returns a copy and every
// conditional write is linearized under a single mutex.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Account storage
	accounts map[string]*account.Account

	// Transaction log, per account in append order
	transactions map[string][]*transaction.Transaction
	txIDs        map[string]struct{}

	closed bool
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]*account.Account),
		transactions: make(map[string][]*transaction.Transaction),
		txIDs:        make(map[string]struct{}),
	}
}

// Account Store implementation

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.accounts[a.ID]; exists {
		return credits.ErrAccountExists
	}
	s.accounts[a.ID] = a.Clone()
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	if a, ok := s.accounts[accountID]; ok {
		return a.Clone(), nil
	}
	return nil, credits.ErrAccountNotFound
}

func (s *Store) UpdateAccount(_ context.Context, a *account.Account, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	current, ok := s.accounts[a.ID]
	if !ok {
		return credits.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return credits.ErrConcurrentModification
	}
	s.accounts[a.ID] = a.Clone()
	return nil
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start, end := window(len(ids), opts.Offset, opts.Limit)
	result := make([]*account.Account, 0, end-start)
	for _, id := range ids[start:end] {
		result = append(result, s.accounts[id].Clone())
	}
	return result, nil
}

// Transaction Store implementation

func (s *Store) AppendTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.txIDs[t.ID.String()]; exists {
		return nil
	}
	cp := *t
	s.txIDs[t.ID.String()] = struct{}{}
	s.transactions[t.AccountID] = append(s.transactions[t.AccountID], &cp)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, accountID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}

	result := make([]*transaction.Transaction, 0)
	for _, t := range s.transactions[accountID] {
		if opts.Kind != "" && t.Kind != opts.Kind {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	// Most recent first
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Sequence > result[j].Sequence
	})

	start, end := window(len(result), opts.Offset, opts.Limit)
	return result[start:end], nil
}

func (s *Store) SumTransactions(_ context.Context, accountID string) (types.Credits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, credits.ErrStoreClosed
	}

	amounts := make([]types.Credits, 0, len(s.transactions[accountID]))
	for _, t := range s.transactions[accountID] {
		amounts = append(amounts, t.Amount)
	}
	return types.Sum(amounts...)
}

func (s *Store) FindByExternalRef(_ context.Context, accountID, ref string) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	for _, t := range s.transactions[accountID] {
		if ref != "" && t.ExternalRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, credits.ErrTransactionNotFound
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return credits.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// window clamps offset/limit to n. A zero limit means no limit.
func window(n, offset, limit int) (start, end int) {
	start = offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end = start + limit
	if limit <= 0 || end > n {
		end = n
	}
	return start, end
}
