package plane

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds retries of rate-limited calls.
type RetryPolicy struct {
	// MaxAttempts counts the first call. Values below 1 mean 1.
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryPolicy is three attempts with a one second initial backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second}
}

// Executor runs single upstream calls, retrying only on ErrRateLimited.
type Executor struct {
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor with the given policy.
func NewExecutor(policy RetryPolicy) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Executor{policy: policy, sleep: sleepContext}
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Execute calls fn until it succeeds, fails with anything other than a rate limit, or
// runs out of attempts. A Retry-After hint on the error overrides the exponential delay.
func Execute[T any](ctx context.Context, e *Executor, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !errors.Is(err, ErrRateLimited) {
			return zero, err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.policy.InitialDelay << (attempt - 1)
		if hint, ok := RetryAfterHint(err); ok {
			delay = hint
		}

		log.Ctx(ctx).Warn().
			Str("op", op).
			Int("attempt", attempt).
			Int("maxAttempts", e.policy.MaxAttempts).
			Dur("delay", delay).
			Msg("Plane rate limited, backing off")

		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	log.Ctx(ctx).Error().Err(lastErr).Str("op", op).Int("attempts", e.policy.MaxAttempts).Msg("Retries exhausted")
	return zero, lastErr
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
