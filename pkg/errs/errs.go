// Package errs holds the error taxonomy shared by the forecast and scheduling paths.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrFeatureNotFound      = errors.New("no features found for this date and hour")
	ErrMalformedInput       = errors.New("malformed input")
	ErrDirectoryUnavailable = errors.New("staff directory unavailable")
	ErrNotifyFailed         = errors.New("notification send failed")
)

// RoleError records which role a scheduling failure belongs to.
type RoleError struct {
	Role string
	Err  error
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("role %s: %v", e.Role, e.Err)
}

func (e *RoleError) Unwrap() error {
	return e.Err
}

// Malformed wraps a validation message so callers can match it with errors.Is.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
