package plane

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the fan-out width used when none is configured.
const DefaultConcurrency = 4

// Limiter bounds how many groups of upstream calls run at once.
// Waiters are admitted in arrival order.
type Limiter struct {
	sem   *semaphore.Weighted
	width int
}

// NewLimiter creates a Limiter admitting width concurrent holders.
func NewLimiter(width int) *Limiter {
	if width < 1 {
		width = DefaultConcurrency
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(width)), width: width}
}

// Width returns the number of concurrent slots.
func (l *Limiter) Width() int {
	return l.width
}

// Do runs fn while holding one slot.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn(ctx)
}
