// Package resilience provides retry logic and the transient-error taxonomy
// used for upstream model API calls.
package resilience

import (
	"errors"
	"fmt"
	"net"
)

// UpstreamError carries the HTTP status and (truncated) body of a failed
// upstream call. The last one observed is surfaced to the client when all
// attempts are exhausted.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream: status=%d body=%s", e.StatusCode, e.Body)
}

// NewUpstreamError wraps a failed upstream response.
func NewUpstreamError(statusCode int, body string) *UpstreamError {
	return &UpstreamError{StatusCode: statusCode, Body: body}
}

// IsTransient returns true if the error is safe to retry: an UpstreamError
// with a retryable status, or a network-level timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return IsTransientHTTPStatus(ue.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// IsTransientHTTPStatus reports whether the upstream status code indicates a
// transient failure worth another attempt.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
