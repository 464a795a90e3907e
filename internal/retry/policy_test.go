package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbmeta/internal/errs"
)

func TestShouldRetry_NeverForPermanentCategories(t *testing.T) {
	p := DefaultPolicy()
	for n := 0; n < 100; n++ {
		assert.False(t, p.ShouldRetry(errs.Permission, n), "permission attempt %d", n)
		assert.False(t, p.ShouldRetry(errs.NotFound, n), "not found attempt %d", n)
	}
}

func TestShouldRetry_TransientBoundedByMaxAttempts(t *testing.T) {
	p := DefaultPolicy()
	for _, c := range []errs.Category{errs.Timeout, errs.Connection, errs.Other} {
		for n := 0; n < p.MaxAttempts; n++ {
			assert.True(t, p.ShouldRetry(c, n), "%s attempt %d", c, n)
		}
		for n := p.MaxAttempts; n < p.MaxAttempts+10; n++ {
			assert.False(t, p.ShouldRetry(c, n), "%s attempt %d", c, n)
		}
	}
}

func TestBackoff_Bounds(t *testing.T) {
	p := DefaultPolicy()

	for i := 0; i < 50; i++ {
		d := p.Backoff(0)
		assert.GreaterOrEqual(t, d, 600*time.Millisecond)
		assert.LessOrEqual(t, d, 800*time.Millisecond)

		d = p.Backoff(2)
		assert.GreaterOrEqual(t, d, 2100*time.Millisecond)
		assert.LessOrEqual(t, d, 2300*time.Millisecond)
	}

	for _, n := range []int{3, 4, 10, 31, 62, 63, 64, 1000, 1 << 30} {
		assert.LessOrEqual(t, p.Backoff(n), p.MaxBackoff, "attempt %d", n)
	}
	assert.Equal(t, p.MaxBackoff, p.Backoff(1000))
}

func TestBackoff_JitterVaries(t *testing.T) {
	p := DefaultPolicy()
	seen := map[time.Duration]bool{}
	for i := 0; i < 200; i++ {
		seen[p.Backoff(0)] = true
	}
	assert.Greater(t, len(seen), 1, "jitter must be drawn per call")
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, Base: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestRun_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	v, res := Run(context.Background(), fastPolicy(), nil, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errs.New(errs.Timeout, "lock wait")
		}
		return "ok", nil
	})

	require.True(t, res.OK())
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint(2), res.Retries)
	require.NotNil(t, res.FinalBackoff)
}

func TestRun_ExhaustsBudget(t *testing.T) {
	calls := 0
	var hooked []int
	hook := func(attempt int, _ errs.Category, _ time.Duration, _ error) {
		hooked = append(hooked, attempt)
	}
	_, res := Run(context.Background(), fastPolicy(), hook, func(context.Context) (int, error) {
		calls++
		return 0, errs.New(errs.Connection, "reset by peer")
	})

	assert.False(t, res.OK())
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint(2), res.Retries)
	assert.Equal(t, errs.Connection, res.Category)
	assert.Equal(t, []int{1, 2}, hooked)
	assert.NotNil(t, res.FinalBackoffMS())
}

func TestRun_PermissionIsNotRetried(t *testing.T) {
	calls := 0
	_, res := Run(context.Background(), fastPolicy(), nil, func(context.Context) (int, error) {
		calls++
		return 0, errs.New(errs.Permission, "permission denied for table secrets")
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint(0), res.Retries)
	assert.Nil(t, res.FinalBackoffMS())
	assert.Equal(t, errs.Permission, res.Category)
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, Base: time.Hour, MaxBackoff: time.Hour}

	calls := 0
	done := make(chan Result, 1)
	go func() {
		_, res := Run(ctx, p, nil, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("transient")
		})
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		assert.False(t, res.OK())
		assert.Equal(t, 1, calls)
		assert.Equal(t, uint(0), res.Retries, "a retry interrupted while waiting never ran")
		assert.Nil(t, res.FinalBackoff)
		assert.Equal(t, errs.Other, res.Category)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestAttempts_StopsWhenBudgetSpent(t *testing.T) {
	b := &attempts{p: fastPolicy()}
	b.Reset()

	b.failed = 1
	assert.Equal(t, time.Millisecond, b.NextBackOff())
	b.failed = 2
	assert.Equal(t, 2*time.Millisecond, b.NextBackOff())
	b.failed = 3
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 0, b.failed)
}

func TestRun_InvalidDataIsPermanent(t *testing.T) {
	calls := 0
	hooked := 0
	_, res := Run(context.Background(), fastPolicy(), func(int, errs.Category, time.Duration, error) { hooked++ },
		func(context.Context) (int, error) {
			calls++
			return 0, errs.New(errs.InvalidData, "invalid byte sequence")
		})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hooked)
	assert.Equal(t, errs.InvalidData, res.Category)
	assert.Contains(t, res.Err.Error(), "invalid byte sequence")
}

func TestRun_HookSeesPolicyBackoff(t *testing.T) {
	p := fastPolicy()
	var waits []time.Duration
	_, res := Run(context.Background(), p, func(_ int, _ errs.Category, wait time.Duration, _ error) {
		waits = append(waits, wait)
	}, func(context.Context) (int, error) {
		return 0, errs.New(errs.Timeout, "statement timeout")
	})

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
	require.NotNil(t, res.FinalBackoff)
	assert.Equal(t, 2*time.Millisecond, *res.FinalBackoff)
}
