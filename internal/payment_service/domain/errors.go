package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	// ErrDuplicateTransaction is wrapped by *DuplicateTransactionError.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	// ErrConflict means a conditional update found the payment already out
	// of pending. Callers treat it as a no-op.
	ErrConflict    = errors.New("payment already processed")
	ErrNotFound    = errors.New("resource not found")
	ErrPersistence = errors.New("persistence failure")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateTransactionError carries the payment that already owns the
// (transaction_id, method) pair.
type DuplicateTransactionError struct {
	ExistingID    int64
	Method        Method
	TransactionID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %s (%s) already submitted as payment %d", e.TransactionID, e.Method, e.ExistingID)
}

func (e *DuplicateTransactionError) Unwrap() error { return ErrDuplicateTransaction }

// PersistenceError wraps a storage failure so that both ErrPersistence and
// the driver error stay inspectable.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
