/*
errors.go - Centralized error types for the marketplace core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the API layer maps each kind
  to a distinct HTTP status and user-facing message. No failure path is
  ever swallowed.

ERROR CATEGORIES:
  1. Business-rule errors - insufficient credits, out of stock
  2. Workflow errors      - terminal-state re-transitions
  3. Concurrency errors   - optimistic-lock retries exhausted
  4. Access errors        - missing identity or role mismatch

USAGE:
  if errors.Is(err, market.ErrInsufficientCredits) { ... }

  var oos *market.OutOfStockError
  if errors.As(err, &oos) { log.Printf("short by %d", oos.Requested-oos.Available) }
*/
package market

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientCredits is returned when a debit exceeds the balance.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrOutOfStock is returned when a decrement exceeds the quantity on hand.
	ErrOutOfStock = errors.New("out of stock")

	// ErrInvalidAmount is returned for zero or negative amounts/quantities.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAlreadyProcessed is returned when a request in a terminal state is
	// transitioned again.
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrConflict is returned when optimistic-concurrency retries are exhausted.
	ErrConflict = errors.New("concurrent modification, retries exhausted")

	// ErrNotFound is returned for unknown product/user/request ids.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when no valid identity is presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized is returned on role mismatch (e.g. a resident invoking
	// a staff-only action).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPreorderRequiresNoStock is returned when a pre-order is placed
	// against a product that still has stock; the caller should purchase.
	ErrPreorderRequiresNoStock = errors.New("product is in stock, purchase instead of pre-ordering")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientCreditsError provides details about a balance shortage.
type InsufficientCreditsError struct {
	UserID    string
	Available int64
	Requested int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// OutOfStockError provides details about a stock shortage.
type OutOfStockError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: product %s has %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// InvalidAmountError reports which field failed validation.
type InvalidAmountError struct {
	Field string
	Value int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid %s: %d (must be a positive integer)", e.Field, e.Value)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// AlreadyProcessedError reports the terminal status that blocked a transition.
type AlreadyProcessedError struct {
	RequestID string
	Status    string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("request %s already processed (status: %s)", e.RequestID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "user", "product", "purchase", "preorder", "voucher"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
// Only conflicts are retryable; business-rule failures never are.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input
// or a business rule, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrPreorderRequiresNoStock)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
