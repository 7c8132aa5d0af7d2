package httpclient

import (
	"context"
	"time"
)

// backoffDelay returns the wait before retry number attempt (1-based), capped at MaxRetryDelay.
func (p *RetryPolicy) backoffDelay(attempt int) time.Duration {
	base := p.RetryDelay
	if base <= 0 || attempt < 1 {
		return 0
	}

	var d time.Duration
	switch p.Backoff {
	case BackoffConstant:
		d = base
	case BackoffExponential:
		// Cap shift to avoid overflow
		shift := min(attempt-1, 20)
		d = base * time.Duration(1<<shift)
	default:
		d = base * time.Duration(attempt)
	}

	if p.MaxRetryDelay > 0 && (d > p.MaxRetryDelay || d < 0) {
		d = p.MaxRetryDelay
	}
	return d
}

// scheduleRetry counts the retry and waits out the backoff. It returns the caller's
// context error if the wait is abandoned.
func (c *client) scheduleRetry(ctx context.Context, rc *call, f *failure) error {
	rc.retryCount++
	delay := c.config.Retry.backoffDelay(rc.retryCount)

	c.logger.Warn().
		Str("request_id", rc.requestID).
		Str("method", rc.method).
		Str("path", rc.path).
		Int("status", f.status()).
		Int("retry", rc.retryCount).
		Int("max_retries", c.config.Retry.MaxRetries).
		Dur("delay", delay).
		Msg("Retrying transient failure")
	c.metrics.retry(ctx, rc.method)

	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
