package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// snapshot is an account as read, or as last written, by one operation
// attempt.
type snapshot struct {
	*account.Account
	// logged is true once Pending is known to be in the transaction log.
	logged bool
}

// next returns a copy of s prepared for the following committed version.
func (l *Ledger) next(s snapshot) *account.Account {
	n := s.Clone()
	n.Version = s.Version + 1
	n.Pending = nil
	n.TouchAt(l.now())
	return n
}

// record builds the transaction documenting a balance change on a. The
// sequence is the version it commits at.
func (l *Ledger) record(a *account.Account, kind transaction.Kind, amount, before, after types.Credits, description, ref string) (*transaction.Transaction, error) {
	t := &transaction.Transaction{
		ID:            id.NewTransactionID(),
		AccountID:     a.ID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Sequence:      a.Version,
		Description:   description,
		ExternalRef:   ref,
		CreatedAt:     l.now(),
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("credits: record %s: %w", kind, err)
	}
	return t, nil
}

// load reads an account and makes sure the transaction committed with its
// latest version is in the log. An account whose pending transaction cannot
// be logged is not mutated further.
func (l *Ledger) load(ctx context.Context, accountID string) (snapshot, error) {
	a, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return snapshot{}, err
	}
	s := snapshot{Account: a}
	if err := l.flush(ctx, &s); err != nil {
		return snapshot{}, err
	}
	return s, nil
}

func (l *Ledger) flush(ctx context.Context, s *snapshot) error {
	if s.logged || s.Pending == nil {
		s.logged = true
		return nil
	}
	if err := l.appendLog(ctx, s.Pending); err != nil {
		return fmt.Errorf("credits: flush pending transaction for %s: %w", s.ID, err)
	}
	s.logged = true
	return nil
}

// appendLog pushes t to the log with a few quick retries. Appends are
// idempotent on the transaction id.
func (l *Ledger) appendLog(ctx context.Context, t *transaction.Transaction) error {
	return retry.Do(ctx, l.backoff(logAppendAttempts), func(ctx context.Context) error {
		if err := l.store.AppendTransaction(ctx, t); err != nil {
			if errors.Is(err, ErrStoreClosed) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}

// commit writes n conditionally on cur's version. n.Pending travels in the
// same row update as the balance change; it is then appended to the log.
// A failed append is logged and left for the next operation to flush.
func (l *Ledger) commit(ctx context.Context, cur snapshot, n *account.Account) (snapshot, error) {
	if err := l.flush(ctx, &cur); err != nil {
		return snapshot{}, err
	}
	if err := n.Validate(); err != nil {
		return snapshot{}, Integrity(err)
	}
	if err := l.store.UpdateAccount(ctx, n, cur.Version); err != nil {
		return snapshot{}, err
	}

	s := snapshot{Account: n}
	if n.Pending == nil {
		s.logged = true
		return s, nil
	}
	if err := l.appendLog(ctx, n.Pending); err != nil {
		l.logger.Warn("transaction log append deferred",
			"account_id", n.ID,
			"transaction_id", n.Pending.ID.String(),
			"kind", n.Pending.Kind,
			"error", err,
		)
		return s, nil
	}
	s.logged = true
	return s, nil
}
