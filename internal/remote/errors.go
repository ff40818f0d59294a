package remote

import (
	"errors"
	"fmt"
)

// Error is a classified upstream failure. Transient errors (5xx,
// connection resets) are retried internally; everything else fails fast.
type Error struct {
	Endpoint   string
	StatusCode int // 0 for transport-level failures
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s remote error: %s: status %d", kind, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s remote error: %s: %v", kind, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable remote failure.
func IsTransient(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Transient
	}
	return false
}
