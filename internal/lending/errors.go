package lending

import "github.com/erazemk/izposoja/internal/model"

// Errors returned by the service. They are the model errors, re-exported so
// callers of this package can match on them without importing model.
var (
	ErrNotFound          = model.ErrNotFound
	ErrBusinessRule      = model.ErrBusinessRule
	ErrInvalidOwner      = model.ErrInvalidOwner
	ErrInsufficientStock = model.ErrInsufficientStock
	ErrInvalidTransition = model.ErrInvalidTransition
)

// ValidationError reports a missing or malformed request field.
type ValidationError = model.ValidationError

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
