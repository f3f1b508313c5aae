package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// bodySnippetLen bounds how much of an error response body is kept for
// diagnostics.
const bodySnippetLen = 500

// StatusError reports a non-2xx upstream response. The turn that hit it is
// rolled back; no retry is attempted.
type StatusError struct {
	Code int
	// Body holds at most bodySnippetLen bytes of the response.
	Body string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, msg)
}

// TransportError wraps a connection-level failure: dial, DNS, TLS, or a
// reset mid-stream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports an exchange that exceeded its deadline.
type TimeoutError struct {
	Limit time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("request timed out after %s", e.Limit)
	}
	return "request timed out"
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// Classify wraps a raw request or stream error into the taxonomy. Errors
// already classified pass through unchanged.
func Classify(err error, limit time.Duration) error {
	if err == nil {
		return nil
	}
	var (
		statusErr    *StatusError
		transportErr *TransportError
		timeoutErr   *TimeoutError
	)
	if errors.As(err, &statusErr) || errors.As(err, &transportErr) || errors.As(err, &timeoutErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Limit: limit, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Limit: limit, Err: err}
	}
	return &TransportError{Err: err}
}

// IsTimeout reports whether err is a timeout in the taxonomy.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// IsStatus returns the upstream status error, if err carries one.
func IsStatus(err error) (*StatusError, bool) {
	var e *StatusError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
