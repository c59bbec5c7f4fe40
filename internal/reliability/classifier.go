package reliability

import (
	"context"
	"errors"
	"net"
)

// IsRetryableHTTPStatus classifies statuses a caller could reasonably try
// again later. Nothing in the call path retries on its own; the flag only
// travels with the error for logging and for callers that choose to.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsTimeout reports whether err came from an elapsed deadline, either the
// context's or the transport's.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
