package extension

import (
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/subscription"
)

// Option configures the credits Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a credits.Option through to the underlying engine.
func WithLedgerOption(opt credits.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, credits.WithPlugin(p))
	}
}

// WithSubscriptions sets the subscription service consulted at cycle resets.
func WithSubscriptions(s subscription.Service) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, credits.WithSubscriptions(s))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithAllowance sets the monthly allowance of a tier.
func WithAllowance(tier string, amount int64) Option {
	return func(e *Extension) {
		if e.config.Allowances == nil {
			e.config.Allowances = make(map[string]int64)
		}
		e.config.Allowances[tier] = amount
	}
}

// WithDefaultTier sets the tier used for unknown tiers.
func WithDefaultTier(tier string) Option {
	return func(e *Extension) { e.config.DefaultTier = tier }
}

// WithMaxAttempts sets the conditional write attempt budget.
func WithMaxAttempts(n int) Option {
	return func(e *Extension) { e.config.MaxAttempts = n }
}

// WithRetryDelays sets the backoff base delay and cap.
func WithRetryDelays(base, maxDelay time.Duration) Option {
	return func(e *Extension) {
		e.config.RetryBase = base
		e.config.RetryMaxDelay = maxDelay
	}
}

// WithAuditSchedule sets the cron expression of the background audit.
func WithAuditSchedule(spec string) Option {
	return func(e *Extension) { e.config.AuditSchedule = spec }
}
