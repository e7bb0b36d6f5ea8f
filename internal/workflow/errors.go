package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStep    = errors.New("unknown step")
	ErrCycle          = errors.New("prerequisite cycle")
	ErrInvalidCatalog = errors.New("invalid catalog")
	ErrInvalidRestore = errors.New("invalid snapshot")
)

// NotAccessibleError is returned when a step is invoked before its
// prerequisites are complete. Missing lists the unmet requirements.
type NotAccessibleError struct {
	Step    StepID
	Missing []string
}

func (e *NotAccessibleError) Error() string {
	return fmt.Sprintf("step %s is not accessible: waiting on %s", e.Step, strings.Join(e.Missing, ", "))
}

func IsNotAccessible(err error) bool {
	var target *NotAccessibleError
	return errors.As(err, &target)
}

// CatalogError describes one problem found while building a catalog.
type CatalogError struct {
	Step   StepID
	Reason string
	Err    error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("step %s: %s", e.Step, e.Reason)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}
