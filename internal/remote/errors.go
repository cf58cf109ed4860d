package remote

import "errors"

// Sentinel errors for the permanent remote error classes. Anything not
// matching one of these (timeouts, connection resets, 5xx responses) is
// transient: the record stays dirty and is retried on a later pass.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRejected     = errors.New("record rejected")
)

// Permanent reports whether err is a permanent remote failure. Permanent
// failures must not be retried; the engine clears the record's pending
// action and surfaces the error as a diagnostic instead.
func Permanent(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRejected)
}
