package credits

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/subscription"
)

// Ledger is the usage-credit engine.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	policy  *plan.Policy
	subs    subscription.Service
	clock   func() time.Time

	// Conflict retry budget
	maxAttempts uint64
	retryBase   time.Duration
	retryCap    time.Duration

	autoMigrate bool

	// Background audit
	auditSchedule string
	cron          *cron.Cron
	mu            sync.Mutex
	started       bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       s,
		plugins:     plugin.NewRegistry(),
		logger:      slog.Default(),
		policy:      plan.DefaultPolicy(),
		clock:       time.Now,
		maxAttempts: DefaultMaxAttempts,
		retryBase:   DefaultRetryBase,
		retryCap:    DefaultRetryCap,
		autoMigrate: true,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPolicy replaces the default monthly/annual allowance table.
func WithPolicy(p *plan.Policy) Option {
	return func(l *Ledger) {
		if p != nil {
			l.policy = p
		}
	}
}

// WithSubscriptions sets the service consulted for an account's current
// tier. Without one the ledger keeps using the tier stored on the account.
func WithSubscriptions(s subscription.Service) Option {
	return func(l *Ledger) {
		l.subs = s
	}
}

// WithRetry configures how lost conditional writes are retried. attempts
// counts the first try.
func WithRetry(attempts int, base, maxDelay time.Duration) Option {
	return func(l *Ledger) {
		if attempts > 0 {
			l.maxAttempts = uint64(attempts)
		}
		if base > 0 {
			l.retryBase = base
		}
		if maxDelay > 0 {
			l.retryCap = maxDelay
		}
	}
}

// WithClock overrides the time source. Cycle boundaries are evaluated
// against it.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithAuditSchedule runs AuditAll on a cron schedule while the ledger is
// started, e.g. "@every 1h" or "0 3 * * *".
func WithAuditSchedule(spec string) Option {
	return func(l *Ledger) {
		l.auditSchedule = spec
	}
}

// WithAutoMigrate controls whether Start migrates the store. It defaults to
// true.
func WithAutoMigrate(enabled bool) Option {
	return func(l *Ledger) {
		l.autoMigrate = enabled
	}
}

// Start migrates the store, initializes plugins and starts the audit
// scheduler.
func (l *Ledger) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}

	// Migrate database
	if l.autoMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Initialize plugins
	l.plugins.EmitInit(ctx, l)

	if l.auditSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(l.auditSchedule, l.scheduledAudit); err != nil {
			return fmt.Errorf("credits: invalid audit schedule %q: %w", l.auditSchedule, err)
		}
		c.Start()
		l.cron = c
	}

	l.started = true
	l.logger.Info("credit ledger started",
		"tiers", l.policy.Tiers(),
		"default_tier", l.policy.DefaultTier(),
		"max_attempts", l.maxAttempts,
		"audit_schedule", l.auditSchedule,
	)

	return nil
}

// Stop waits for a running audit, shuts plugins down and closes the store.
func (l *Ledger) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cron != nil {
		<-l.cron.Stop().Done()
		l.cron = nil
	}

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)
	l.started = false

	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Policy returns the allowance policy in effect.
func (l *Ledger) Policy() *plan.Policy { return l.policy }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

func (l *Ledger) now() time.Time {
	return l.clock().UTC()
}
