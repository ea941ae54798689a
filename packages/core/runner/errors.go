package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
)

// ErrorCode categorizes structural failures found while resolving conditions.
type ErrorCode string

const (
	// ErrCodeConditionFailed indicates a setup, teardown or suite dependency failed.
	ErrCodeConditionFailed ErrorCode = "CONDITION_FAILED"

	// ErrCodeUnknownCase indicates a directive names a test case the suite does not have.
	ErrCodeUnknownCase ErrorCode = "UNKNOWN_CASE"

	// ErrCodeCycleDetected indicates a test case depends on itself, directly or transitively.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
)

// ConditionError aborts a test case because one of its directives could not
// be satisfied.
type ConditionError struct {
	Code       ErrorCode
	TCID       string
	Dependency string
	Scope      parser.Scope
	Err        error
}

func (e *ConditionError) Error() string {
	msg := fmt.Sprintf("%s: %s %s of %s", e.Code, e.Scope, e.Dependency, e.TCID)
	switch e.Code {
	case ErrCodeUnknownCase:
		msg += ": no such test case"
	case ErrCodeConditionFailed:
		msg += " failed"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConditionError) Unwrap() error {
	return e.Err
}

// CycleError reports a dependency chain that returns to a case already on it.
// Path starts and ends with the same TCID.
type CycleError struct {
	Code ErrorCode
	Path []string
}

func NewCycleError(path []string) *CycleError {
	return &CycleError{Code: ErrCodeCycleDetected, Path: path}
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, strings.Join(e.Path, " -> "))
}

// IsCycleError returns true if err is or wraps a *CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// IsConditionError returns true if err is or wraps a *ConditionError.
func IsConditionError(err error) bool {
	var ce *ConditionError
	return errors.As(err, &ce)
}
