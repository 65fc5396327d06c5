// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

// Handler reacts to one or more event types.
type Handler interface {
	EventTypes() []shared.EventType
	Handle(event shared.Event) error
}

// FeatureGate reports whether a feature is enabled for a learner.
// *config.FeatureFlags satisfies it.
type FeatureGate interface {
	IsEnabledFor(feature, learnerID string) bool
}

// Subscribe registers every handler on the subscriber for its event types.
func Subscribe(sub shared.EventSubscriber, handlers ...Handler) error {
	for _, h := range handlers {
		for _, t := range h.EventTypes() {
			if err := sub.Subscribe(t, h.Handle); err != nil {
				return err
			}
		}
	}
	return nil
}
