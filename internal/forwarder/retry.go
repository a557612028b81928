package forwarder

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// isRetryable classifies an error from a round trip attempt as worth
// retrying with a fresh attempt. Grounded on the teacher's
// attacker.isRetryableError: pattern-match common transient network
// failures, plus a direct check for context deadline expiry (the
// per-attempt timeout firing).
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if os.IsTimeout(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

var retryablePatterns = []string{
	"timeout",
	"connection reset",
	"connection refused",
	"no such host",
	"eof",
	"i/o timeout",
	"broken pipe",
}
