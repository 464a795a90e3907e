package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/koustreak/dbmeta/internal/errs"
)

// Result is the audit trail of one retried operation.
type Result struct {
	Err          error
	Category     errs.Category
	Retries      uint
	FinalBackoff *time.Duration
}

// OK reports whether the operation eventually succeeded.
func (r Result) OK() bool { return r.Err == nil }

// FinalBackoffMS returns the last backoff waited, in milliseconds, or nil
// when the operation never waited.
func (r Result) FinalBackoffMS() *uint64 {
	if r.FinalBackoff == nil {
		return nil
	}
	ms := uint64(r.FinalBackoff.Milliseconds())
	return &ms
}

// Hook is called before each backoff wait. It exists so callers can log
// retries without the policy knowing about loggers.
type Hook func(attempt int, category errs.Category, wait time.Duration, err error)

// attempts adapts a Policy to backoff.BackOff for one operation. failed is
// the number of attempts that have failed so far.
type attempts struct {
	p      Policy
	failed int
}

func (a *attempts) NextBackOff() time.Duration {
	if a.failed >= a.p.MaxAttempts {
		return backoff.Stop
	}
	return a.p.Backoff(a.failed - 1)
}

func (a *attempts) Reset() { a.failed = 0 }

// Run executes op under policy p. On failure it classifies the error and
// consults the policy: categories the policy refuses are permanent, the
// rest wait Policy.Backoff and run again until the attempt budget is spent
// or ctx is done. The final error is classified once more before returning.
func Run[T any](ctx context.Context, p Policy, hook Hook, op func(context.Context) (T, error)) (T, Result) {
	var (
		res     Result
		v       T
		lastErr error
		cat     errs.Category
		pending *time.Duration
	)
	b := &attempts{p: p}

	operation := func() error {
		// A retry counts once it runs, not when it is scheduled.
		if pending != nil {
			res.Retries++
			res.FinalBackoff = pending
			pending = nil
		}
		out, err := op(ctx)
		if err == nil {
			v = out
			return nil
		}
		lastErr = err
		b.failed++
		cat = errs.Classify(err)
		if !p.ShouldRetry(cat, b.failed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if hook != nil {
			hook(b.failed, cat, wait, err)
		}
		pending = &wait
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	if err == nil {
		return v, res
	}
	if lastErr == nil {
		lastErr = err
	}
	var zero T
	res.Err = lastErr
	res.Category = errs.Classify(lastErr)
	return zero, res
}
