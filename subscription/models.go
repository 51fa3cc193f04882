// Package subscription describes the external subscription service the
// ledger consults for an account's current plan tier.
package subscription

import (
	"time"

	"github.com/xraph/credits/plan"
)

type Subscription struct {
	AccountID string    `json:"account_id"`
	Tier      plan.Tier `json:"tier"`
	// PlanRef is the subscription service's own identifier for the plan
	// record. The ledger stores it but never dereferences it.
	PlanRef  string    `json:"plan_ref,omitempty"`
	RenewsAt time.Time `json:"renews_at,omitempty"`
}
