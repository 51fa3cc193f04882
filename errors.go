package credits

import (
	"errors"
	"fmt"

	"github.com/xraph/credits/types"
)

// Sentinel errors for common failure scenarios.
var (
	// Account errors
	ErrAccountNotFound = errors.New("credits: account not found")
	ErrAccountExists   = errors.New("credits: account already exists")

	// Spend errors
	ErrInsufficientCredits = errors.New("credits: insufficient credits")
	ErrInvalidAmount       = errors.New("credits: amount must be positive")

	// Plan errors
	ErrInvalidPlanTier = errors.New("credits: unrecognized plan tier")

	// Purchase and correction errors
	ErrDuplicatePurchase = errors.New("credits: purchase reference already applied")
	ErrBalanceFloor      = errors.New("credits: balance would fall below zero or the purchased floor")

	// Transaction errors
	ErrTransactionNotFound = errors.New("credits: transaction not found")

	// Concurrency errors
	ErrConcurrentModification = errors.New("credits: concurrent modification")

	// Store errors
	ErrDataIntegrity   = errors.New("credits: stored record violates ledger invariants")
	ErrStoreClosed     = errors.New("credits: store is closed")
	ErrMigrationFailed = errors.New("credits: migration failed")
)

// InsufficientCreditsError reports a rejected spend. It matches
// ErrInsufficientCredits with errors.Is.
type InsufficientCreditsError struct {
	AccountID string
	Requested types.Credits
	Available types.Credits
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("credits: insufficient credits for %s: requested %s, available %s",
		e.AccountID, e.Requested, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("credits: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "credits: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("credits: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Err returns nil when no errors were collected, otherwise the MultiError.
func (e MultiError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Integrity wraps a model validation failure read back from storage.
func Integrity(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDataIntegrity, err)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsInsufficientCredits returns true if a spend was rejected for lack of balance.
func IsInsufficientCredits(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
