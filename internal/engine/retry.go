package engine

import (
	"context"
	"time"

	"docrag/internal/errs"
)

// maxRetryBackoff caps the exponential delay between attempts.
const maxRetryBackoff = 5 * time.Second

// retryTransient runs fn up to the configured number of attempts,
// sleeping with doubled backoff between tries. Only transient backend
// failures are retried; every other error returns immediately.
func (e *Engine) retryTransient(ctx context.Context, fn func() error) error {
	backoff := e.opts.RetryBase
	var err error
	for attempt := 1; attempt <= e.opts.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || !errs.IsUnavailable(err) {
			return err
		}
		if attempt == e.opts.RetryAttempts {
			break
		}
		delay := backoff
		// A Retry-After from the backend overrides the exponential
		// schedule, within the same cap.
		if hint, ok := errs.RetryAfterHint(err); ok && hint > delay {
			delay = hint
		}
		if delay > maxRetryBackoff {
			delay = maxRetryBackoff
		}
		e.log.Warn("embedding backend unavailable, retrying",
			"attempt", attempt, "backoff", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
	return err
}
