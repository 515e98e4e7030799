package resilience

import (
	"context"
	"errors"
	"net"
	"slices"
	"strings"
	"syscall"
)

// TransientError marks an upstream failure that is safe to retry: a
// throttling or server-side HTTP status, or a network fault.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError marks err as retryable. statusCode is 0 when the failure
// did not come from an HTTP response.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// WithStatus marks err transient when statusCode is retryable and returns it
// unchanged otherwise.
func WithStatus(err error, statusCode int) error {
	if err == nil || !IsTransientHTTPStatus(statusCode) {
		return err
	}
	return NewTransientError(err, statusCode)
}

// transientStatuses are the retryable HTTP statuses; 529 is Anthropic's
// overloaded response.
var transientStatuses = []int{408, 429, 500, 502, 503, 504, 529}

// IsTransientHTTPStatus reports whether statusCode is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	return slices.Contains(transientStatuses, statusCode)
}

// transientMessages match wrapped network errors whose type was lost.
var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether err (or anything in its chain) is a
// TransientError, a deadline, a network timeout or a connection fault.
// Cancellation is not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return slices.ContainsFunc(transientMessages, func(p string) bool {
		return strings.Contains(msg, p)
	})
}

// ClassifyError labels err "transient" or "permanent" for logs.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
