package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrUnexpectedStatus is wrapped by an Error for a non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Error reports a failed exchange with the location service.
type Error struct {
	Op         string // "build request", "post" or "read response"
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s %s (status %d): %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the exchange failed because a deadline passed.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
