package classify

import (
	"context"
	"errors"
	"strings"
)

// isTransient reports whether a provider error is worth retrying. The
// Anthropic SDK does not expose status codes uniformly across transports, so
// this falls back to inspecting the error text the same way HTTP clients
// across the codebase do.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())

	// Rate limits are retryable.
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	// Server-side errors are retryable.
	for _, s := range []string{"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	// Connection-level failures are retryable.
	for _, s := range []string{"connection refused", "connection reset", "timeout",
		"temporary failure", "no such host", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	// Remaining 4xx client errors will not succeed on retry.
	return false
}
