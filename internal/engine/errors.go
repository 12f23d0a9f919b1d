package engine

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("engine: invalid select request")

// ValidationError reports a request that cannot be turned into a statement.
// No text and no parameters are produced when it is returned.
type ValidationError struct {
	Field  string // offending field, owner-qualified
	Reason string
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "engine: " + e.Reason
	}
	return fmt.Sprintf("engine: field %q %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidationError returns true if err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}
