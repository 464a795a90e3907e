// Package retry decides whether a failed catalog operation should be
// attempted again and how long to wait before doing so.
//
// A Policy is a value with no mutable state; one instance is shared by
// every concurrent database collection.
package retry

import (
	"math/rand/v2"
	"time"

	"github.com/koustreak/dbmeta/internal/errs"
)

const (
	DefaultMaxAttempts = 3
	DefaultBase        = 500 * time.Millisecond
	DefaultMaxBackoff  = 5000 * time.Millisecond
	DefaultJitterMin   = 100 * time.Millisecond
	DefaultJitterMax   = 300 * time.Millisecond
)

// Policy governs retries for one operation.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	MaxBackoff  time.Duration
	JitterMin   time.Duration
	JitterMax   time.Duration
}

// DefaultPolicy returns the production policy: 3 attempts, 500ms doubling
// base, 100-300ms jitter, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Base:        DefaultBase,
		MaxBackoff:  DefaultMaxBackoff,
		JitterMin:   DefaultJitterMin,
		JitterMax:   DefaultJitterMax,
	}
}

// ShouldRetry reports whether an operation that has failed attempt times
// with the given category may run again. Permission and NotFound never
// retry; InvalidData is deterministic and never retries either.
func (p Policy) ShouldRetry(c errs.Category, attempt int) bool {
	switch c {
	case errs.Permission, errs.NotFound, errs.InvalidData:
		return false
	case errs.Timeout, errs.Connection, errs.Other:
		return attempt < p.MaxAttempts
	default:
		return false
	}
}

// Backoff returns min(base*2^attempt + jitter, max). Jitter is drawn fresh
// on every call so concurrent collections do not retry in lockstep.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.MaxBackoff
	// Past 2^30 the product is above any sane cap and would overflow.
	if attempt < 31 {
		exp := p.Base * time.Duration(1<<uint(attempt))
		if exp/time.Duration(1<<uint(attempt)) == p.Base {
			d = exp + p.jitter()
		}
	}
	if d > p.MaxBackoff || d < 0 {
		return p.MaxBackoff
	}
	return d
}

func (p Policy) jitter() time.Duration {
	if p.JitterMax <= p.JitterMin {
		return p.JitterMin
	}
	return p.JitterMin + rand.N(p.JitterMax-p.JitterMin+1)
}
