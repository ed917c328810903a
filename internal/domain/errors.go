package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrTotalMismatch      = errors.New("total does not match server prices")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ErrEmptyCart is returned when a checkout carries no lines.
var ErrEmptyCart = &ValidationError{Message: "cart is empty"}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// TransactionError wraps an unexpected store failure inside a transaction.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsBusiness reports whether err belongs to the known failure taxonomy, as
// opposed to an unexpected infrastructure error.
func IsBusiness(err error) bool {
	var (
		validation *ValidationError
		notFound   *NotFoundError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &notFound):
		return true
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrTotalMismatch),
		errors.Is(err, ErrDuplicateAccount),
		errors.Is(err, ErrInvalidCredentials):
		return true
	}
	return false
}
