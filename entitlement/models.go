// Package entitlement describes read-only affordability checks.
package entitlement

import "github.com/xraph/credits/types"

type Result struct {
	Allowed   bool          `json:"allowed"`
	AccountID string        `json:"account_id"`
	Requested types.Credits `json:"requested"`
	Available types.Credits `json:"available"`
	Shortfall types.Credits `json:"shortfall"`
	Reason    string        `json:"reason,omitempty"`
}
