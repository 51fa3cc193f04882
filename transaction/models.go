// Package transaction defines the append-only credit transaction log.
package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

type Kind string

const (
	KindAllocation      Kind = "allocation"
	KindUsage           Kind = "usage"
	KindPurchase        Kind = "purchase"
	KindAdminCorrection Kind = "admin_correction"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAllocation, KindUsage, KindPurchase, KindAdminCorrection:
		return true
	}
	return false
}

// Transaction is an immutable record of one balance change.
type Transaction struct {
	ID            id.TransactionID `json:"id"`
	AccountID     string           `json:"account_id"`
	Kind          Kind             `json:"kind"`
	Amount        types.Credits    `json:"amount"`
	BalanceBefore types.Credits    `json:"balance_before"`
	BalanceAfter  types.Credits    `json:"balance_after"`
	// Sequence is the account version the change committed at.
	Sequence    int64     `json:"sequence"`
	Description string    `json:"description,omitempty"`
	ExternalRef string    `json:"external_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

var errInvalid = errors.New("invalid transaction")

// Validate checks the arithmetic and sign rules every stored transaction
// obeys.
func (t *Transaction) Validate() error {
	switch {
	case t.ID.IsNil():
		return fmt.Errorf("%w: missing id", errInvalid)
	case t.ID.Prefix() != id.PrefixTransaction:
		return fmt.Errorf("%w: id %q has wrong prefix", errInvalid, t.ID)
	case t.AccountID == "":
		return fmt.Errorf("%w: missing account id", errInvalid)
	case !t.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", errInvalid, t.Kind)
	case t.BalanceBefore < 0 || t.BalanceAfter < 0:
		return fmt.Errorf("%w: negative balance", errInvalid)
	case t.BalanceAfter-t.BalanceBefore != t.Amount:
		return fmt.Errorf("%w: balance delta %d does not match amount %d",
			errInvalid, t.BalanceAfter-t.BalanceBefore, t.Amount)
	}

	switch t.Kind {
	case KindUsage:
		if t.Amount >= 0 {
			return fmt.Errorf("%w: usage amount must be negative", errInvalid)
		}
	case KindAllocation, KindPurchase:
		if t.Amount <= 0 {
			return fmt.Errorf("%w: %s amount must be positive", errInvalid, t.Kind)
		}
	case KindAdminCorrection:
		if t.Amount == 0 {
			return fmt.Errorf("%w: correction amount must be non-zero", errInvalid)
		}
	}
	return nil
}

// IsInvalid reports whether err came from Validate.
func IsInvalid(err error) bool { return errors.Is(err, errInvalid) }
