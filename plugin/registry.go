package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// DefaultTimeout bounds how long a single hook may run.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onAccountOpened       []OnAccountOpened
	onCycleReset          []OnCycleReset
	onPlanChanged         []OnPlanChanged
	onCreditsAllocated    []OnCreditsAllocated
	onCreditsSpent        []OnCreditsSpent
	onInsufficientCredits []OnInsufficientCredits
	onCreditsPurchased    []OnCreditsPurchased
	onBalanceCorrected    []OnBalanceCorrected
	onAuditMismatch       []OnAuditMismatch
	onWriteConflict       []OnWriteConflict
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountOpened); ok {
		r.onAccountOpened = append(r.onAccountOpened, v)
	}
	if v, ok := p.(OnCycleReset); ok {
		r.onCycleReset = append(r.onCycleReset, v)
	}
	if v, ok := p.(OnPlanChanged); ok {
		r.onPlanChanged = append(r.onPlanChanged, v)
	}
	if v, ok := p.(OnCreditsAllocated); ok {
		r.onCreditsAllocated = append(r.onCreditsAllocated, v)
	}
	if v, ok := p.(OnCreditsSpent); ok {
		r.onCreditsSpent = append(r.onCreditsSpent, v)
	}
	if v, ok := p.(OnInsufficientCredits); ok {
		r.onInsufficientCredits = append(r.onInsufficientCredits, v)
	}
	if v, ok := p.(OnCreditsPurchased); ok {
		r.onCreditsPurchased = append(r.onCreditsPurchased, v)
	}
	if v, ok := p.(OnBalanceCorrected); ok {
		r.onBalanceCorrected = append(r.onBalanceCorrected, v)
	}
	if v, ok := p.(OnAuditMismatch); ok {
		r.onAuditMismatch = append(r.onAuditMismatch, v)
	}
	if v, ok := p.(OnWriteConflict); ok {
		r.onWriteConflict = append(r.onWriteConflict, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", ImplementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnAccountOpened)(nil)).Elem(), "OnAccountOpened"},
	{reflect.TypeOf((*OnCycleReset)(nil)).Elem(), "OnCycleReset"},
	{reflect.TypeOf((*OnPlanChanged)(nil)).Elem(), "OnPlanChanged"},
	{reflect.TypeOf((*OnCreditsAllocated)(nil)).Elem(), "OnCreditsAllocated"},
	{reflect.TypeOf((*OnCreditsSpent)(nil)).Elem(), "OnCreditsSpent"},
	{reflect.TypeOf((*OnInsufficientCredits)(nil)).Elem(), "OnInsufficientCredits"},
	{reflect.TypeOf((*OnCreditsPurchased)(nil)).Elem(), "OnCreditsPurchased"},
	{reflect.TypeOf((*OnBalanceCorrected)(nil)).Elem(), "OnBalanceCorrected"},
	{reflect.TypeOf((*OnAuditMismatch)(nil)).Elem(), "OnAuditMismatch"},
	{reflect.TypeOf((*OnWriteConflict)(nil)).Elem(), "OnWriteConflict"},
}

// ImplementedInterfaces returns the names of the hooks p implements.
func ImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs fn for every plugin in list. Failures are logged and never
// propagate to the caller.
func emit[T Plugin](r *Registry, ctx context.Context, hook string, list []T, fn func(T) error) {
	for _, p := range list {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	emit(r, ctx, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, ledger)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	emit(r, ctx, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitAccountOpened emits an account opened event.
func (r *Registry) EmitAccountOpened(ctx context.Context, a *account.Account) {
	r.mu.RLock()
	plugins := r.onAccountOpened
	r.mu.RUnlock()

	emit(r, ctx, "OnAccountOpened", plugins, func(p OnAccountOpened) error {
		return p.OnAccountOpened(ctx, a)
	})
}

// EmitCycleReset emits a cycle reset event.
func (r *Registry) EmitCycleReset(ctx context.Context, a *account.Account, forfeited types.Credits) {
	r.mu.RLock()
	plugins := r.onCycleReset
	r.mu.RUnlock()

	emit(r, ctx, "OnCycleReset", plugins, func(p OnCycleReset) error {
		return p.OnCycleReset(ctx, a, forfeited)
	})
}

// EmitPlanChanged emits a plan changed event.
func (r *Registry) EmitPlanChanged(ctx context.Context, a *account.Account, oldTier, newTier plan.Tier) {
	r.mu.RLock()
	plugins := r.onPlanChanged
	r.mu.RUnlock()

	emit(r, ctx, "OnPlanChanged", plugins, func(p OnPlanChanged) error {
		return p.OnPlanChanged(ctx, a, oldTier, newTier)
	})
}

// EmitCreditsAllocated emits an allocation event.
func (r *Registry) EmitCreditsAllocated(ctx context.Context, a *account.Account, tx *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onCreditsAllocated
	r.mu.RUnlock()

	emit(r, ctx, "OnCreditsAllocated", plugins, func(p OnCreditsAllocated) error {
		return p.OnCreditsAllocated(ctx, a, tx)
	})
}

// EmitCreditsSpent emits a debit event.
func (r *Registry) EmitCreditsSpent(ctx context.Context, a *account.Account, tx *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onCreditsSpent
	r.mu.RUnlock()

	emit(r, ctx, "OnCreditsSpent", plugins, func(p OnCreditsSpent) error {
		return p.OnCreditsSpent(ctx, a, tx)
	})
}

// EmitInsufficientCredits emits a rejected debit event.
func (r *Registry) EmitInsufficientCredits(ctx context.Context, accountID string, requested, available types.Credits) {
	r.mu.RLock()
	plugins := r.onInsufficientCredits
	r.mu.RUnlock()

	emit(r, ctx, "OnInsufficientCredits", plugins, func(p OnInsufficientCredits) error {
		return p.OnInsufficientCredits(ctx, accountID, requested, available)
	})
}

// EmitCreditsPurchased emits a purchase event.
func (r *Registry) EmitCreditsPurchased(ctx context.Context, a *account.Account, tx *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onCreditsPurchased
	r.mu.RUnlock()

	emit(r, ctx, "OnCreditsPurchased", plugins, func(p OnCreditsPurchased) error {
		return p.OnCreditsPurchased(ctx, a, tx)
	})
}

// EmitBalanceCorrected emits an administrative correction event.
func (r *Registry) EmitBalanceCorrected(ctx context.Context, a *account.Account, tx *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onBalanceCorrected
	r.mu.RUnlock()

	emit(r, ctx, "OnBalanceCorrected", plugins, func(p OnBalanceCorrected) error {
		return p.OnBalanceCorrected(ctx, a, tx)
	})
}

// EmitAuditMismatch emits an audit mismatch event.
func (r *Registry) EmitAuditMismatch(ctx context.Context, accountID string, expected, actual types.Credits) {
	r.mu.RLock()
	plugins := r.onAuditMismatch
	r.mu.RUnlock()

	emit(r, ctx, "OnAuditMismatch", plugins, func(p OnAuditMismatch) error {
		return p.OnAuditMismatch(ctx, accountID, expected, actual)
	})
}

// EmitWriteConflict emits a lost conditional write event.
func (r *Registry) EmitWriteConflict(ctx context.Context, accountID, op string) {
	r.mu.RLock()
	plugins := r.onWriteConflict
	r.mu.RUnlock()

	emit(r, ctx, "OnWriteConflict", plugins, func(p OnWriteConflict) error {
		return p.OnWriteConflict(ctx, accountID, op)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the credit pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
