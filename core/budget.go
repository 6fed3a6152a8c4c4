package core

import (
	"context"
	"fmt"
	"math"
	"time"
)

// unbounded is the remaining time reported by a nil budget.
const unbounded = time.Duration(math.MaxInt64)

// Budget is a wall-clock allowance shared by a chain of dependent operations.
// It is consulted, never consumed: Allot sizes a single call without
// committing the parent budget, and the next stage simply re-queries
// Remaining against the same instance. Expiry is advisory; callers check it
// before starting new work and in-flight calls are not aborted.
//
// A Budget is immutable after construction and safe for concurrent use. A nil
// *Budget is unbounded: it never expires and Allot grants every request.
type Budget struct {
	created   time.Time
	expiresAt time.Time
	now       func() time.Time
}

// NewBudget creates a budget expiring d from now. A zero or negative
// duration yields a budget that is already expired, which expresses "do not
// wait at all".
func NewBudget(d time.Duration) *Budget {
	return newBudget(d, time.Now)
}

// NewBudgetWithClock is NewBudget with an injectable clock, used by tests
// that need to step time deterministically.
func NewBudgetWithClock(d time.Duration, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}
	return newBudget(d, now)
}

func newBudget(d time.Duration, now func() time.Time) *Budget {
	if d < 0 {
		d = 0
	}
	created := now()
	return &Budget{created: created, expiresAt: created.Add(d), now: now}
}

// Created returns the instant the budget was created, or the zero time for a
// nil budget.
func (b *Budget) Created() time.Time {
	if b == nil {
		return time.Time{}
	}
	return b.created
}

// ExpiresAt returns the absolute expiration instant, or the zero time for a
// nil budget.
func (b *Budget) ExpiresAt() time.Time {
	if b == nil {
		return time.Time{}
	}
	return b.expiresAt
}

// Elapsed returns the time spent since creation.
func (b *Budget) Elapsed() time.Duration {
	if b == nil {
		return 0
	}
	return b.now().Sub(b.created)
}

// Remaining returns the time left until expiration, floored at zero.
func (b *Budget) Remaining() time.Duration {
	if b == nil {
		return unbounded
	}
	r := b.expiresAt.Sub(b.now())
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports whether Remaining is zero.
func (b *Budget) Expired() bool { return b.Remaining() == 0 }

// Allot returns min(Remaining, requested) without mutating the budget.
func (b *Budget) Allot(requested time.Duration) time.Duration {
	if requested < 0 {
		return 0
	}
	if r := b.Remaining(); r < requested {
		return r
	}
	return requested
}

// Check returns ErrBudgetExhausted when the budget has expired. A nil
// budget is unbounded and never exhausted.
func (b *Budget) Check() error {
	if b == nil || !b.Expired() {
		return nil
	}
	return fmt.Errorf("%w after %s", ErrBudgetExhausted, b.Elapsed().Round(time.Millisecond))
}

// WaitOut suspends the caller for exactly Remaining. It returns early with
// the context error if ctx is cancelled first. A nil budget waits for ctx.
func (b *Budget) WaitOut(ctx context.Context) error {
	if b == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return sleep(ctx, b.Remaining())
}

// WaitUpTo suspends the caller for Allot(requested).
func (b *Budget) WaitUpTo(ctx context.Context, requested time.Duration) error {
	return sleep(ctx, b.Allot(requested))
}

// Context derives a context whose timeout is Allot(requested), sizing the
// deadline of a single network call. A non-positive request uses the whole
// remaining budget. The budget itself is not touched.
func (b *Budget) Context(parent context.Context, requested time.Duration) (context.Context, context.CancelFunc) {
	if b == nil {
		if requested <= 0 {
			return context.WithCancel(parent)
		}
		return context.WithTimeout(parent, requested)
	}
	if requested <= 0 {
		return context.WithTimeout(parent, b.Remaining())
	}
	return context.WithTimeout(parent, b.Allot(requested))
}

func sleep(ctx context.Context, d time.Duration) error {
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
