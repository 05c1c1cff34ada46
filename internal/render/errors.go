// Package render provides the capacity-bounded page rendering pool and its
// backends.
package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorKind buckets render failures for callers that branch on failure class.
type ErrorKind string

// Render failure kinds.
const (
	KindTimeout  ErrorKind = "timeout"
	KindNetwork  ErrorKind = "network"
	KindNotFound ErrorKind = "not_found"
	KindReset    ErrorKind = "reset"
)

// Error is the typed failure returned once the pool exhausts its attempts.
// A render Error is always page-scoped; it must never abort sibling pages.
type Error struct {
	Kind     ErrorKind
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("render %s after %d attempts (%s): %v", e.URL, e.Attempts, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError reports a non-success HTTP status from a backend.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// classify maps an arbitrary backend error to an ErrorKind.
func classify(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == 404 {
			return KindNotFound
		}
		return KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if isResetClass(err) {
		return KindReset
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// isPermanentStatus reports whether the error is a 4xx status other than
// rate limiting. Retrying cannot fix those, so the pool stops immediately.
func isPermanentStatus(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}

// isResetClass reports whether the error looks like a connection reset or
// abrupt close, the failure class that triggers the HTTP scheme fallback.
func isResetClass(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "net::err_connection_reset")
}
