package credits

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry defaults for lost conditional writes.
const (
	DefaultMaxAttempts = 3
	DefaultRetryBase   = 10 * time.Millisecond
	DefaultRetryCap    = 250 * time.Millisecond
)

// logAppendAttempts bounds how often a committed transaction is pushed to
// the log before it is left for the next operation to flush.
const logAppendAttempts = 3

func (l *Ledger) backoff(attempts uint64) retry.Backoff {
	b := retry.NewExponential(l.retryBase)
	b = retry.WithCappedDuration(l.retryCap, b)
	b = retry.WithJitterPercent(20, b)
	if attempts > 0 {
		attempts--
	}
	return retry.WithMaxRetries(attempts, b)
}

// withRetry runs one read-modify-write cycle per attempt. Only lost
// conditional writes are retried; exhaustion surfaces
// ErrConcurrentModification.
func (l *Ledger) withRetry(ctx context.Context, accountID, op string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, l.backoff(l.maxAttempts), func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ErrConcurrentModification) {
			l.plugins.EmitWriteConflict(ctx, accountID, op)
			l.logger.Debug("conditional write lost, retrying",
				"account_id", accountID,
				"op", op,
			)
			return retry.RetryableError(err)
		}
		return err
	})
}
