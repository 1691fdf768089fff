package shared

import "context"

// EventHandler reacts to published domain events, such as the realtime
// forwarder or the receipt archiver
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types to deliver; empty means every event
	EventTypes() []string
}

// EventPublisher is what the application layer depends on. Publish must
// preserve the order of events within one call.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers handlers
type EventSubscriber interface {
	// Subscribe falls back to handler.EventTypes when no types are given
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus is a publisher and subscriber with a lifecycle
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
