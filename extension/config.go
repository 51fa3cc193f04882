package extension

import "time"

// Config holds the credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Allowances maps plan tiers to their monthly credit allowance
	// (default: monthly 1000, annual 1250).
	Allowances map[string]int64 `json:"allowances" mapstructure:"allowances" yaml:"allowances"`

	// DefaultTier is used for accounts whose tier is unknown (default: "monthly").
	DefaultTier string `json:"default_tier" mapstructure:"default_tier" yaml:"default_tier"`

	// MaxAttempts bounds how often a lost conditional write is attempted
	// before ErrConcurrentModification is returned (default: 3).
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts" yaml:"max_attempts"`

	// RetryBase is the first backoff delay between attempts (default: 10ms).
	RetryBase time.Duration `json:"retry_base" mapstructure:"retry_base" yaml:"retry_base"`

	// RetryMaxDelay caps the backoff delay (default: 250ms).
	RetryMaxDelay time.Duration `json:"retry_max_delay" mapstructure:"retry_max_delay" yaml:"retry_max_delay"`

	// AuditSchedule is a cron expression for the background reconciliation
	// audit. Empty disables it.
	AuditSchedule string `json:"audit_schedule" mapstructure:"audit_schedule" yaml:"audit_schedule"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Allowances: map[string]int64{
			"monthly": 1000,
			"annual":  1250,
		},
		DefaultTier:   "monthly",
		MaxAttempts:   3,
		RetryBase:     10 * time.Millisecond,
		RetryMaxDelay: 250 * time.Millisecond,
	}
}
