package render

import (
	"errors"
	"fmt"
)

// ErrEmptyResultSet signals that a query is statically known to produce no
// rows (for example a LIMIT 0 slice). Callers translate it into an empty
// iterator instead of issuing a round trip; it is never user-visible.
var ErrEmptyResultSet = errors.New("empty result set")

// UnsupportedFeatureError indicates a feature not supported by the dialect.
type UnsupportedFeatureError struct {
	Feature string
	Dialect string
	Hint    string
}

func (e UnsupportedFeatureError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s is not supported: %s", e.Dialect, e.Feature, e.Hint)
	}
	return fmt.Sprintf("%s: %s is not supported", e.Dialect, e.Feature)
}

// NewUnsupportedFeatureError creates a new unsupported feature error.
func NewUnsupportedFeatureError(dialect, feature string, hint ...string) error {
	err := UnsupportedFeatureError{Feature: feature, Dialect: dialect}
	if len(hint) > 0 {
		err.Hint = hint[0]
	}
	return err
}

// FieldError indicates an expression referenced a column or relation that
// does not resolve in the current table graph, or misused one that does.
type FieldError struct {
	Name string
	Hint string
}

func (e FieldError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("cannot resolve %q: %s", e.Name, e.Hint)
	}
	return fmt.Sprintf("cannot resolve %q", e.Name)
}

// ValueError indicates a malformed declaration or an expression used in a
// position where it is not permitted. Raised at construction or resolution
// time, never deferred to SQL generation.
type ValueError struct {
	Msg string
}

func (e ValueError) Error() string { return e.Msg }

// NewValueError creates a formatted ValueError.
func NewValueError(format string, args ...any) error {
	return ValueError{Msg: fmt.Sprintf(format, args...)}
}

// TransactionRequiredError indicates an operation that is only legal inside
// an open transaction was requested with autocommit on.
type TransactionRequiredError struct {
	Op string
}

func (e TransactionRequiredError) Error() string {
	return fmt.Sprintf("%s cannot be used outside of a transaction", e.Op)
}

// IntegrityError wraps a driver error caused by a constraint violation,
// carrying the constraint name when the driver reports one.
type IntegrityError struct {
	Constraint string
	Err        error
}

func (e IntegrityError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("constraint %q violated: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("constraint violated: %v", e.Err)
}

func (e IntegrityError) Unwrap() error { return e.Err }
