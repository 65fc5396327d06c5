// Package retry re-runs operations against backing services that may not be
// reachable yet, with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// BaseDelay is the wait after the first failure; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the wait between two attempts.
	MaxDelay time.Duration
	// Jitter spreads each wait by up to this fraction (0..1) in either direction.
	Jitter float64
	// OnRetry is called before sleeping. attempt is 1-based.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Startup is the policy used while connecting to PostgreSQL, Redis and object
// storage at boot. Containers in the same deployment tend to come up in any
// order, so it waits up to roughly half a minute in total.
func Startup(onRetry func(attempt int, err error, wait time.Duration)) Policy {
	return Policy{
		Attempts:  6,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Jitter:    0.2,
		OnRetry:   onRetry,
	}
}

// stopError marks a failure that retrying cannot fix.
type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop wraps err so that Do returns it immediately. Do unwraps it again, so
// callers see the original error.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// Wait returns the delay before the attempt following attempt (1-based).
func (p Policy) Wait(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := p.BaseDelay
	for i := 1; i < attempt && wait < p.MaxDelay; i++ {
		wait *= 2
	}
	if p.MaxDelay > 0 && wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	if p.Jitter > 0 && wait > 0 {
		spread := float64(wait) * p.Jitter
		wait += time.Duration(spread * (2*rand.Float64() - 1))
	}
	return wait
}

// Do calls op until it succeeds, returns a Stop error, the attempts are
// used up or ctx is done. The last operation error is returned.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		if attempt >= attempts {
			return err
		}

		wait := p.Wait(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// Value is Do for operations that produce a result, such as opening a pool.
func Value[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
