package formula

import "fmt"

// Error reports a formula that failed to parse or evaluate. Callers treat
// the value of a failed formula as 0.
type Error struct {
	Formula string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("formula %q: %v", e.Formula, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(formula string, err error) *Error {
	return &Error{Formula: formula, Err: err}
}
