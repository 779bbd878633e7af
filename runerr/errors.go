// Package runerr defines the coded error type shared across the run pipeline.
package runerr

import "fmt"

// Failure codes observed at the Gate/Executor boundary, plus two codes for
// unrecoverable driver faults that terminate a run outright.
const (
	CodeNotUnique       = "not_unique"
	CodeNotVisible      = "not_visible"
	CodeDisabled        = "disabled"
	CodeUnstable        = "unstable"
	CodeTimeout         = "timeout"
	CodeBrowserCrash    = "browser_crash"
	CodeContextCanceled = "context_canceled"
	CodeInvalidInput    = "invalid_input"
)

// Error is the coded, wrapped error type used throughout the core. It
// implements error and Unwrap so callers can use errors.Is/As against the
// wrapped driver or store error while still switching on Code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code, message, and optional wrapped cause.
func New(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Timeout wraps err as the catch-all timeout failure used for unexpected
// driver errors (see error handling design, propagation policy).
func Timeout(message string, err error) *Error {
	return New(CodeTimeout, message, err)
}

// Invalid wraps err as a caller input error: a malformed override, an
// unparsable selector, anything that is wrong regardless of page state.
func Invalid(message string, err error) *Error {
	return New(CodeInvalidInput, message, err)
}
