package credits

import (
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Re-export common types for convenience so users don't have to import the
// model packages.

// Credits is re-exported from types package.
type Credits = types.Credits

// Entity is re-exported from types package.
type Entity = types.Entity

// Tier is re-exported from plan package.
type Tier = plan.Tier

// Account is re-exported from account package.
type Account = account.Account

// Transaction is re-exported from transaction package.
type Transaction = transaction.Transaction

// Re-export plan tiers
const (
	TierMonthly = plan.TierMonthly
	TierAnnual  = plan.TierAnnual
)

// Re-export helpers
var (
	Sum       = types.Sum
	NewEntity = types.NewEntity
)
