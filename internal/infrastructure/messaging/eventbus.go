// Package messaging delivers domain events to handlers in the same process.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
	errNilHandler     = errors.New("handler cannot be nil")
)

// Recorder receives bus metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordPublish(eventType shared.EventType)
	RecordHandler(eventType shared.EventType, elapsed time.Duration, success bool)
}

// anyEvent is the subscription key of handlers registered with SubscribeAll.
const anyEvent shared.EventType = ""

// InMemoryEventBusConfig configures an InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers off the publisher's goroutine, at most
	// WorkerPoolSize at a time. Synchronous mode is used by tests.
	AsyncMode      bool
	WorkerPoolSize int

	Logger   *logger.Logger
	Recorder Recorder
}

// DefaultInMemoryEventBusConfig is async with ten workers.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 10}
}

// InMemoryEventBus implements shared.EventBus. Handler errors and panics are
// logged and never reach the publisher: a failing cache invalidation must not
// fail the quiz submission that triggered it.
type InMemoryEventBus struct {
	async    bool
	slots    chan struct{}
	log      *logger.Logger
	recorder Recorder

	mu     sync.RWMutex
	subs   map[shared.EventType][]shared.EventHandler
	closed bool

	done     chan struct{}
	inflight sync.WaitGroup
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

// NewInMemoryEventBus creates an open bus.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}

	return &InMemoryEventBus{
		async:    cfg.AsyncMode,
		slots:    make(chan struct{}, cfg.WorkerPoolSize),
		log:      cfg.Logger.With(logger.Component("eventbus")),
		recorder: cfg.Recorder,
		subs:     make(map[shared.EventType][]shared.EventHandler),
		done:     make(chan struct{}),
	}
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.subscribe(eventType, handler)
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.subscribe(anyEvent, handler)
}

func (b *InMemoryEventBus) subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.subs[eventType] = append(b.subs[eventType], handler)
	return nil
}

// Publish hands event to its type's handlers, then to the catch-all ones.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	eventType := event.EventType()

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := append(append([]shared.EventHandler(nil), b.subs[eventType]...), b.subs[anyEvent]...)
	if b.async {
		// Added under the read lock so that Close cannot miss them.
		b.inflight.Add(len(targets))
	}
	b.mu.RUnlock()

	if b.recorder != nil {
		b.recorder.RecordPublish(eventType)
	}

	for _, h := range targets {
		if b.async {
			go b.dispatchAsync(event, h)
		} else {
			b.dispatch(event, h)
		}
	}
	return nil
}

func (b *InMemoryEventBus) dispatchAsync(event shared.Event, h shared.EventHandler) {
	defer b.inflight.Done()

	select {
	case b.slots <- struct{}{}:
		defer func() { <-b.slots }()
	case <-b.done:
		return
	}
	b.dispatch(event, h)
}

func (b *InMemoryEventBus) dispatch(event shared.Event, h shared.EventHandler) {
	if err := b.run(event, h); err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err),
		)
	}
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if b.recorder != nil {
			b.recorder.RecordHandler(event.EventType(), time.Since(start), err == nil)
		}
	}()
	return h(event)
}

// Close rejects new events and waits for running handlers. Handlers still
// waiting for a worker slot are dropped.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	b.inflight.Wait()

	b.log.Info("event bus closed")
	return nil
}
