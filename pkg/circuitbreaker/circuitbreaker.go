// Package circuitbreaker stops calling a failing dependency for a cool-down
// period and then lets a single probe call through to test it again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the position of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the operation while the circuit is open
// or while the half-open probe is in flight.
var ErrOpen = errors.New("circuitbreaker: circuit is open")

// Settings configures a Breaker.
type Settings struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// CoolDown is how long the circuit stays open before a probe is allowed.
	CoolDown time.Duration
	// IsFailure decides which errors count. Errors it rejects are treated as successes.
	IsFailure func(error) bool
	// OnStateChange is called after every transition, outside the breaker's lock.
	OnStateChange func(name string, from, to State)
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a closed breaker.
func New(s Settings) *Breaker {
	if s.FailureThreshold < 1 {
		s.FailureThreshold = 5
	}
	if s.CoolDown <= 0 {
		s.CoolDown = time.Minute
	}
	if s.IsFailure == nil {
		s.IsFailure = func(error) bool { return true }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &Breaker{settings: s}
}

// ObjectStorage is the breaker in front of the certificate bucket. Three
// failures in a row stop uploads and downloads for thirty seconds.
func ObjectStorage(isFailure func(error) bool, onStateChange func(name string, from, to State)) *Breaker {
	return New(Settings{
		Name:             "object-storage",
		FailureThreshold: 3,
		CoolDown:         30 * time.Second,
		IsFailure:        isFailure,
		OnStateChange:    onStateChange,
	})
}

func (b *Breaker) Name() string { return b.settings.Name }

// State reports the current state. An open circuit whose cool-down has passed
// still reads as open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op unless the circuit rejects the call. The error of op is
// returned unchanged.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	notify, err := b.admit()
	notify()
	if err != nil {
		return err
	}

	opErr := op(ctx)
	b.record(opErr)()
	return opErr
}

func (b *Breaker) admit() (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.settings.Now().Sub(b.openedAt) < b.settings.CoolDown {
			return noop, ErrOpen
		}
		b.probing = true
		return b.moveTo(StateHalfOpen), nil
	case StateHalfOpen:
		if b.probing {
			return noop, ErrOpen
		}
		b.probing = true
	}
	return noop, nil
}

func (b *Breaker) record(err error) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil && b.settings.IsFailure(err)

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return noop
		}
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			return b.moveTo(StateOpen)
		}
	case StateHalfOpen:
		b.probing = false
		if failed {
			return b.moveTo(StateOpen)
		}
		return b.moveTo(StateClosed)
	}
	return noop
}

// moveTo changes state under b.mu and returns the notification to run after
// the lock is released.
func (b *Breaker) moveTo(to State) func() {
	from := b.state
	b.state = to
	b.failures = 0
	if to == StateOpen {
		b.openedAt = b.settings.Now()
	}

	cb := b.settings.OnStateChange
	if cb == nil || from == to {
		return noop
	}
	name := b.settings.Name
	return func() { cb(name, from, to) }
}

func noop() {}
