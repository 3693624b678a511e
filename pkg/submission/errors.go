// Package submission implements the disclosure lifecycle: creating a
// submission against a built form, loading its nested value tree, and
// producing new revisions with restatement bookkeeping.
package submission

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the submission and revision managers.
var (
	ErrNotFound        = errors.New("submission not found")
	ErrNotEmpty        = errors.New("submission already has values")
	ErrCheckedOut      = errors.New("submission is checked out")
	ErrNotDraft        = errors.New("submission is not a draft")
	ErrInactive        = errors.New("submission revision is not active")
	ErrUnexpectedField = errors.New("unexpected field name")
)

// ValidationError reports one rejected input field. It is returned for caller
// mistakes (unknown column, value outside the choice set, wrong shape) as
// opposed to data-integrity failures.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %q: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
