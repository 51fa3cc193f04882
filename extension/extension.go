// Package extension provides the Forge extension adapter for the credit
// ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.credits" or "credits" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/credits"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "credits"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Usage-credit ledger with monthly allowances and purchased credits"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the credit ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *credits.Ledger
	store      store.Store
	ledgerOpts []credits.Option
}

// New creates a new credits Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *credits.Ledger { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := BuildLedgerOptions(e.config)
	if err != nil {
		return err
	}
	opts = append(opts, e.ledgerOpts...)

	e.engine = credits.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*credits.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("credits: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("credits: store not initialized")
	}
	return e.store.Ping(ctx)
}

// BuildLedgerOptions converts a resolved Config into ledger options.
func BuildLedgerOptions(cfg Config) ([]credits.Option, error) {
	opts := make([]credits.Option, 0, 4)

	if len(cfg.Allowances) > 0 {
		allowances := make(map[plan.Tier]types.Credits, len(cfg.Allowances))
		for tier, amount := range cfg.Allowances {
			allowances[plan.Tier(tier)] = types.Credits(amount)
		}
		policy, err := plan.NewPolicy(allowances, plan.Tier(cfg.DefaultTier))
		if err != nil {
			return nil, fmt.Errorf("credits: invalid allowance configuration: %w", err)
		}
		opts = append(opts, credits.WithPolicy(policy))
	}

	opts = append(opts,
		credits.WithRetry(cfg.MaxAttempts, cfg.RetryBase, cfg.RetryMaxDelay),
		credits.WithAutoMigrate(!cfg.DisableMigrate),
	)

	if cfg.AuditSchedule != "" {
		opts = append(opts, credits.WithAuditSchedule(cfg.AuditSchedule))
	}

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("credits: configuration is required but not found in config files; " +
				"ensure 'extensions.credits' or 'credits' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = MergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = MergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("credits: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("tiers", len(e.config.Allowances)),
		forge.F("default_tier", e.config.DefaultTier),
		forge.F("max_attempts", e.config.MaxAttempts),
		forge.F("audit_schedule", e.config.AuditSchedule),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.credits" first (namespaced pattern).
	if cm.IsSet("extensions.credits") {
		if err := cm.Bind("extensions.credits", &cfg); err == nil {
			e.Logger().Debug("credits: loaded config from file",
				forge.F("key", "extensions.credits"),
			)
			return cfg, true
		}
		e.Logger().Warn("credits: failed to bind extensions.credits config",
			forge.F("error", "bind failed"),
		)
	}

	// Try short "credits" key.
	if cm.IsSet("credits") {
		if err := cm.Bind("credits", &cfg); err == nil {
			e.Logger().Debug("credits: loaded config from file",
				forge.F("key", "credits"),
			)
			return cfg, true
		}
		e.Logger().Warn("credits: failed to bind credits config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// MergeWithDefaults fills zero-valued fields with defaults.
func MergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if len(cfg.Allowances) == 0 {
		cfg.Allowances = defaults.Allowances
	}
	if cfg.DefaultTier == "" {
		cfg.DefaultTier = defaults.DefaultTier
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = defaults.RetryBase
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = defaults.RetryMaxDelay
	}
	return cfg
}

// MergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func MergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String and map fields: YAML takes precedence.
	if len(yamlConfig.Allowances) == 0 && len(programmaticConfig.Allowances) > 0 {
		yamlConfig.Allowances = programmaticConfig.Allowances
	}
	if yamlConfig.DefaultTier == "" && programmaticConfig.DefaultTier != "" {
		yamlConfig.DefaultTier = programmaticConfig.DefaultTier
	}
	if yamlConfig.AuditSchedule == "" && programmaticConfig.AuditSchedule != "" {
		yamlConfig.AuditSchedule = programmaticConfig.AuditSchedule
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.MaxAttempts == 0 && programmaticConfig.MaxAttempts != 0 {
		yamlConfig.MaxAttempts = programmaticConfig.MaxAttempts
	}
	if yamlConfig.RetryBase == 0 && programmaticConfig.RetryBase != 0 {
		yamlConfig.RetryBase = programmaticConfig.RetryBase
	}
	if yamlConfig.RetryMaxDelay == 0 && programmaticConfig.RetryMaxDelay != 0 {
		yamlConfig.RetryMaxDelay = programmaticConfig.RetryMaxDelay
	}

	// Fill remaining zeros with defaults.
	return MergeWithDefaults(yamlConfig)
}
