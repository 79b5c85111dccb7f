package crawler

import (
	"context"
	"net/http"
	"time"
)

// RetryPolicy configures how timed-out link checks are retried.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts including the first (2 = one retry)
	BaseDelay   time.Duration // Wait before attempt n+1 is BaseDelay*n
	MaxDelay    time.Duration // Cap for a single wait
}

// DefaultRetryPolicy returns a RetryPolicy with 2 attempts, a 1s base delay
// and a 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// delay returns the linear backoff after the given (1-based) attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// CheckLinkWithRetry wraps CheckLink with linear backoff. Only
// timeout-classified failures are retried; a received response or any other
// transport error ends the loop immediately.
func CheckLinkWithRetry(ctx context.Context, client *http.Client, rawURL string, timeout time.Duration, policy RetryPolicy) LinkCheck {
	maxAttempts := max(policy.MaxAttempts, 1)

	var last LinkCheck
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = CheckLink(ctx, client, rawURL, timeout)
		last.Attempts = attempt

		if last.Status != nil || last.Err == nil || !last.IsTimeout {
			return last
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(policy.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			last.Err = ctx.Err()
			last.IsTimeout = false
			return last
		case <-timer.C:
		}
	}
	return last
}
