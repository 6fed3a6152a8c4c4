package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBudget_RemainingMonotonicAndFloored(t *testing.T) {
	clock := newFakeClock()
	b := NewBudgetWithClock(10*time.Second, clock.Now)

	prev := b.Remaining()
	assert.Equal(t, 10*time.Second, prev)

	for i := 0; i < 15; i++ {
		clock.Advance(time.Second)
		r := b.Remaining()
		assert.LessOrEqual(t, r, prev)
		assert.GreaterOrEqual(t, r, time.Duration(0))
		prev = r
	}

	assert.True(t, b.Expired())
	assert.Equal(t, time.Duration(0), b.Remaining())
	assert.Equal(t, 15*time.Second, b.Elapsed())
}

func TestBudget_AllotNeverExceedsRemaining(t *testing.T) {
	clock := newFakeClock()
	b := NewBudgetWithClock(5*time.Second, clock.Now)

	assert.Equal(t, 2*time.Second, b.Allot(2*time.Second))
	assert.Equal(t, 5*time.Second, b.Allot(time.Minute))
	assert.Equal(t, time.Duration(0), b.Allot(-time.Second))

	clock.Advance(4 * time.Second)
	assert.Equal(t, time.Second, b.Allot(2*time.Second))

	// Allot does not commit the parent budget.
	assert.Equal(t, time.Second, b.Remaining())
}

func TestBudget_ZeroIsImmediatelyExpired(t *testing.T) {
	b := NewBudget(0)
	assert.True(t, b.Expired())
	assert.Equal(t, time.Duration(0), b.Allot(time.Second))

	err := b.Check()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))

	start := time.Now()
	require.NoError(t, b.WaitOut(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestBudget_NegativeDurationTreatedAsZero(t *testing.T) {
	b := NewBudget(-time.Second)
	assert.True(t, b.Expired())
	assert.Equal(t, b.Created(), b.ExpiresAt())
}

func TestBudget_CheckNilIsUnbounded(t *testing.T) {
	var b *Budget
	assert.NoError(t, b.Check())
}

func TestBudget_NilIsUnbounded(t *testing.T) {
	var b *Budget

	assert.False(t, b.Expired())
	assert.Greater(t, b.Remaining(), 24*time.Hour)
	assert.Equal(t, time.Duration(0), b.Elapsed())
	assert.True(t, b.Created().IsZero())
	assert.True(t, b.ExpiresAt().IsZero())
	assert.Equal(t, 3*time.Second, b.Allot(3*time.Second))
	assert.Equal(t, time.Duration(0), b.Allot(-time.Second))

	start := time.Now()
	require.NoError(t, b.WaitUpTo(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.WaitOut(ctx), context.Canceled)
}

func TestBudget_WaitUpTo(t *testing.T) {
	b := NewBudget(time.Minute)

	start := time.Now()
	require.NoError(t, b.WaitUpTo(context.Background(), 20*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestBudget_WaitOutHonoursCancellation(t *testing.T) {
	b := NewBudget(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.WaitOut(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBudget_ContextSizedByAllot(t *testing.T) {
	b := NewBudget(50 * time.Millisecond)

	ctx, cancel := b.Context(context.Background(), time.Hour)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.LessOrEqual(t, time.Until(deadline), 50*time.Millisecond)

	var nilBudget *Budget
	uctx, ucancel := nilBudget.Context(context.Background(), 0)
	defer ucancel()
	_, ok = uctx.Deadline()
	assert.False(t, ok)
}

func TestBudget_SharedAcrossStages(t *testing.T) {
	clock := newFakeClock()
	b := NewBudgetWithClock(10*time.Second, clock.Now)

	// Stage one sizes its call and spends three seconds.
	first := b.Allot(4 * time.Second)
	assert.Equal(t, 4*time.Second, first)
	clock.Advance(3 * time.Second)

	// Stage two re-queries the same instance.
	assert.Equal(t, 7*time.Second, b.Remaining())
	assert.Equal(t, 7*time.Second, b.Allot(8*time.Second))
}
