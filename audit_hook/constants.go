package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountOpened = "account.opened"
	ActionCycleReset    = "account.cycle_reset"
	ActionPlanChanged   = "account.plan_changed"

	// Balance actions
	ActionCreditsAllocated = "credits.allocated"
	ActionCreditsSpent     = "credits.spent"
	ActionCreditsDenied    = "credits.denied"
	ActionCreditsPurchased = "credits.purchased"
	ActionBalanceCorrected = "credits.corrected"

	// Integrity actions
	ActionAuditMismatch = "audit.mismatch"
)

// Resource constants for audit events.
const (
	ResourceAccount     = "account"
	ResourceTransaction = "transaction"
)

// Category constants for audit events.
const (
	CategoryAccount   = "account"
	CategoryUsage     = "usage"
	CategoryPayment   = "payment"
	CategoryAdmin     = "admin"
	CategoryIntegrity = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
