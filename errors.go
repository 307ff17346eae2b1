package deploy

import (
	"errors"
	"fmt"
)

// ErrorKind classifies deployment errors. The set is closed.
type ErrorKind string

const (
	// ErrorKindProcess indicates an external command exited non-zero.
	ErrorKindProcess ErrorKind = "process_failure"

	// ErrorKindExtraction indicates a pattern found no match in command output.
	// Callers usually log these as warnings rather than abort.
	ErrorKindExtraction ErrorKind = "extraction_miss"

	// ErrorKindPatch indicates a constant declaration was not found in the
	// expected shape. Only surfaced when strict patching is enabled.
	ErrorKindPatch ErrorKind = "patch_miss"

	// ErrorKindStateLoad indicates the persisted state could not be read or
	// decoded.
	ErrorKindStateLoad ErrorKind = "state_load_failure"
)

// Error represents a classified deployment error.
// It supports Go's error wrapping patterns with Unwrap() method
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Cause   string    `json:"cause"`
	Details any       `json:"details,omitempty"`
	Wrapped error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

// Unwrap implements the error unwrapping interface for Go's errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// NewError creates a new Error with the specified kind and cause.
func NewError(kind ErrorKind, cause string) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// WrapError classifies err with the given kind.
func WrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Cause: err.Error(), Wrapped: err}
}

// NewExtractionMiss reports that the named pattern matched nothing.
func NewExtractionMiss(pattern string) *Error {
	return &Error{
		Kind:    ErrorKindExtraction,
		Cause:   fmt.Sprintf("no match for pattern %q", pattern),
		Details: map[string]any{"pattern": pattern},
	}
}

// NewPatchMiss reports constants that could not be located in a file.
func NewPatchMiss(path string, names []string) *Error {
	return &Error{
		Kind:    ErrorKindPatch,
		Cause:   fmt.Sprintf("%s: constants not found: %v", path, names),
		Details: map[string]any{"path": path, "names": names},
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// StepError associates a failure with the step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
