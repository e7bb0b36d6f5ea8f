package extract

import (
	"errors"
	"fmt"
)

// MalformedOutputError means no stage of the recovery chain produced a
// syntactically valid object. Re-asking with the same request is unlikely to
// help; callers should perturb the request first.
type MalformedOutputError struct {
	Shape   string
	Preview string // bounded excerpt of the original payload
	Length  int
	Cause   error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output for %s (%d bytes): %q", e.Shape, e.Length, e.Preview)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Cause
}

// SchemaViolationError means the payload parsed but does not satisfy the
// expected record shape.
type SchemaViolationError struct {
	Shape  string
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema violation in %s: %s", e.Shape, e.Reason)
	}
	return fmt.Sprintf("schema violation in %s: %s %s", e.Shape, e.Field, e.Reason)
}

// Violation is a shorthand for Shape.Check implementations.
func Violation(field, reason string) *SchemaViolationError {
	return &SchemaViolationError{Field: field, Reason: reason}
}

func IsMalformed(err error) bool {
	var target *MalformedOutputError
	return errors.As(err, &target)
}

func IsSchemaViolation(err error) bool {
	var target *SchemaViolationError
	return errors.As(err, &target)
}
