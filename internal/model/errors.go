package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by errors about a referenced employee, item,
// transaction or notification that does not exist.
var ErrNotFound = errors.New("not found")

// ErrBusinessRule is wrapped by every rejection of a well-formed request that
// the current state does not allow.
var ErrBusinessRule = errors.New("business rule violation")

// Business rule violations.
var (
	ErrInvalidOwner      = fmt.Errorf("%w: owner is not accountable for the item", ErrBusinessRule)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrBusinessRule)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrBusinessRule)
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
