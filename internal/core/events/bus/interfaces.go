package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Key characteristics:
// - Type-based fan-out: handlers subscribe by Event.Type() string.
// - Topics scope subscriptions; the default topic is "" (empty string).
// - Synchronous delivery: Publish runs handler callbacks on the caller
//   goroutine, so an effect published by a mutation is observable before the
//   mutating call returns.
// - Error aggregation: multiple handler errors are joined and returned.
//
// Handlers should be quick or offload heavy work to avoid blocking
// publishers. All methods are safe for concurrent use.
type EventBus interface {
	// Publish delivers the event synchronously to all active subscribers of
	// event.Type() in the default topic.
	Publish(event Event) error
	// PublishToTopic publishes to a specific topic.
	PublishToTopic(topic string, event Event) error

	// Subscribe registers a handler for an event type in the default topic.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// SubscribeTopic registers a handler for eventType within a topic.
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Safe to call with nil.
	Unsubscribe(Subscription) error

	// Close cancels every subscription and rejects further publishes.
	Close() error
}

// Event is an immutable message transported by the EventBus. Type is the
// routing key; Source identifies the publisher; Data is the opaque payload.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is a user callback invoked per delivered event. A returned
// error is aggregated into the Publish result.
type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
// Use Cancel or EventBus.Unsubscribe to stop receiving events.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// EventType returns the event type this subscription listens to.
	EventType() string
	// IsActive reports whether this subscription is still registered.
	IsActive() bool
	// Cancel de-registers the handler from the bus. Multiple calls are safe.
	Cancel() error
}
