package services

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// jitterFraction spreads retries over ±20% of the computed delay.
const jitterFraction = 0.2

// retryPolicy retries provider calls that fail with domain.ErrRateLimited or
// domain.ErrTimeout. Every other error surfaces immediately.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration

	// sleep waits for d or until ctx ends. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(settings domain.RetrySettings, timeout time.Duration) retryPolicy {
	return retryPolicy{
		maxAttempts: settings.MaxAttempts,
		baseDelay:   settings.BaseDelay,
		maxDelay:    settings.MaxDelay,
		timeout:     timeout,
		sleep:       sleepContext,
	}
}

// do runs fn until it succeeds, fails permanently or attempts run out.
// Each attempt gets its own timeout derived from ctx.
func (p retryPolicy) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt-1, domain.RetryAfter(err))
			logger.Warn("%s failed (%v), retrying in %s (attempt %d/%d)", op, err, delay, attempt+1, attempts)
			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				return err
			}
		}

		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			return err
		}
	}
	return err
}

func (p retryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return fn(callCtx)
}

// delay returns the wait before retry n (0-based): base doubled n times, capped
// at maxDelay, with jitter. A provider-suggested RetryAfter wins when longer,
// still capped at maxDelay.
func (p retryPolicy) delay(n int, retryAfter time.Duration) time.Duration {
	d := p.baseDelay
	for i := 0; i < n && d < p.maxDelay; i++ {
		d *= 2
	}
	if p.maxDelay > 0 && d > p.maxDelay {
		d = p.maxDelay
	}

	jitter := 1 + jitterFraction*(2*rand.Float64()-1)
	d = time.Duration(float64(d) * jitter)

	if retryAfter > d {
		d = retryAfter
	}
	if p.maxDelay > 0 && d > p.maxDelay {
		d = p.maxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
