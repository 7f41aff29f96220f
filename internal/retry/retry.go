package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryableError indicates a transient failure worth retrying, typically a
// rate limit or upstream outage on a collaborator service.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Policy controls bounded retry with exponential backoff. The zero value is
// not usable; construct with DefaultPolicy or explicit fields.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy matches the collaborator-call policy used across the pipeline.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Do runs fn up to MaxAttempts times, backing off between attempts.
// Non-retryable errors and context cancellation stop immediately.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := range p.MaxAttempts {
		lastErr = fn(ctx)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// backoff returns a duration for attempt n (0-indexed) with jitter.
func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay * time.Duration(1<<uint(attempt))
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	// rand.Int64N panics on n <= 0; sub-2ns bases get no jitter.
	half := int64(base) / 2
	if half <= 0 {
		return base
	}
	return base + time.Duration(rand.Int64N(half))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
