package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultRetryAttempts = 5
	DefaultRetryDelay    = 200 * time.Millisecond
	maxRetryDelay        = 10 * time.Second
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds Retry. Zero values fall back to the defaults.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryDelay
	}
	return p
}

// Retry calls fn until it succeeds, the attempts run out or ctx is done. The
// delay doubles after every failure and is capped at maxRetryDelay.
func Retry(ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	policy = policy.normalized()

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == policy.Attempts {
			break
		}

		log.Warn("retrying after failure", "op", op, "attempt", attempt, "delay", delay, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrRetriesExhausted, policy.Attempts, lastErr)
}
