package phase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vampirenirmal/bookmarketer/internal/agent"
	"github.com/vampirenirmal/bookmarketer/internal/extract"
	"github.com/vampirenirmal/bookmarketer/internal/modules"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

// Class groups step failures by what the caller can do about them.
type Class string

const (
	ClassTransport     Class = "transport"
	ClassMalformed     Class = "malformed"
	ClassSchema        Class = "schema"
	ClassNotAccessible Class = "not_accessible"
	ClassInvalidInput  Class = "invalid_input"
	ClassCanceled      Class = "canceled"
	ClassInternal      Class = "internal"
)

// StepError is returned by every failed step invocation. It never implies a
// change to session state.
type StepError struct {
	Step     workflow.StepID
	Class    Class
	Attempts int
	Cause    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed (%s): %v", e.Step, e.Class, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

func stepError(step workflow.StepID, attempts int, err error) *StepError {
	return &StepError{Step: step, Class: Classify(err), Attempts: attempts, Cause: err}
}

func canceled(step workflow.StepID, attempts int, err error) *StepError {
	return &StepError{Step: step, Class: ClassCanceled, Attempts: attempts, Cause: err}
}

// Classify maps err onto a failure class. A nil error has no class.
func Classify(err error) Class {
	var se *StepError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Class
	case workflow.IsNotAccessible(err):
		return ClassNotAccessible
	case errors.Is(err, modules.ErrInvalidInput):
		return ClassInvalidInput
	case extract.IsMalformed(err):
		return ClassMalformed
	case extract.IsSchemaViolation(err):
		return ClassSchema
	}
	if _, ok := agent.KindOf(err); ok {
		return ClassTransport
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}
	return ClassInternal
}

// IsRetryable reports whether invoking the step again may succeed without
// any change by the caller. Malformed output qualifies because the retry
// request is perturbed.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ClassMalformed:
		return true
	case ClassTransport:
		return agent.IsRetryable(err)
	}
	return false
}
