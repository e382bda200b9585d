package models

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Handlers map these to HTTP statuses; everything
// except ErrTransientStorage is a permanent rejection and must not be retried.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrAmountMismatch     = errors.New("amount does not match order total")
	ErrInvalidPaymentMode = errors.New("invalid payment mode")
	ErrEmptyCart          = errors.New("cart is empty")

	// ErrTransientStorage marks storage-layer failures that are safe to retry
	// as a whole unit; nothing commits until the transaction closes.
	ErrTransientStorage = errors.New("transient storage failure")
)

// Refinements of ErrInvalidInput; errors.Is matches both the refined error
// and ErrInvalidInput.
var (
	ErrInvalidAmount       = fmt.Errorf("amount must be greater than zero: %w", ErrInvalidInput)
	ErrOrderNotCancellable = fmt.Errorf("only orders awaiting payment can be cancelled: %w", ErrInvalidInput)
	ErrOrderNotPayable     = fmt.Errorf("order is not awaiting payment: %w", ErrInvalidInput)
)

// IsPermanent reports whether err is a domain validation rejection that must
// not be retried.
func IsPermanent(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrInvalidInput, ErrInsufficientStock,
		ErrInsufficientFunds, ErrAmountMismatch, ErrInvalidPaymentMode, ErrEmptyCart,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
