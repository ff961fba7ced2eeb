// Package retry provides the bounded, fixed-delay retry schedule used by the
// busy guards of the configuration manager and the change guard.
//
// A busy guard never blocks the caller. Instead it asks the Policy to run the
// same attempt again after Delay, up to MaxAttempts times, until the context is
// cancelled or the owner stops the schedule.
package retry

import (
	"context"
	"errors"
	"time"
)

// Default schedule values.
const (
	DefaultDelay       = 250 * time.Millisecond
	DefaultMaxAttempts = 40
)

// ErrExhausted is reported when a schedule reached its MaxAttempts bound.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures a fixed-delay retry schedule.
type Policy struct {
	// Delay is the wait before each retry. Zero or negative means DefaultDelay.
	Delay time.Duration

	// MaxAttempts bounds the number of retries after the first attempt.
	// Zero means DefaultMaxAttempts, negative means unbounded.
	MaxAttempts int
}

// DefaultPolicy returns the default schedule.
func DefaultPolicy() Policy {
	return Policy{
		Delay:       DefaultDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// delay returns the effective delay.
func (p Policy) delay() time.Duration {
	if p.Delay <= 0 {
		return DefaultDelay
	}
	return p.Delay
}

// Allows reports whether a retry numbered attempt (1-based) is within bounds.
func (p Policy) Allows(attempt int) bool {
	switch {
	case p.MaxAttempts < 0:
		return true
	case p.MaxAttempts == 0:
		return attempt <= DefaultMaxAttempts
	default:
		return attempt <= p.MaxAttempts
	}
}

// Schedule arranges for fn to run with attempt after the policy delay.
// It returns ErrExhausted when attempt is out of bounds and the context error
// when ctx is already done. A schedule whose context is cancelled before the
// delay elapses never calls fn.
func (p Policy) Schedule(ctx context.Context, attempt int, fn func(attempt int)) error {
	if !p.Allows(attempt) {
		return ErrExhausted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	time.AfterFunc(p.delay(), func() {
		if ctx.Err() != nil {
			return
		}
		fn(attempt)
	})
	return nil
}
