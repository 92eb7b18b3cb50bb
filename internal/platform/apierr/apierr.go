// Package apierr carries an HTTP status and a stable machine-readable code
// alongside the underlying error, so handlers can answer 507 quota_exceeded
// or 422 non_manifold_input without re-deriving the mapping per route.
package apierr

import "fmt"

// Error is the transport-facing error. Code is what clients switch on;
// Status is what gin writes; Err keeps the pipeline's original cause for
// logging and errors.Is checks.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
