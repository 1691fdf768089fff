package realtime

import (
	"context"
	"fmt"

	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// EventForwarder subscribes to the event bus and turns group-order events
// into channel messages. group-created is sent as group-state since nobody
// can be subscribed to a group before it exists.
type EventForwarder struct {
	broadcaster grouporder.Broadcaster
	logger      *zap.Logger
}

// NewEventForwarder creates an EventForwarder
func NewEventForwarder(broadcaster grouporder.Broadcaster, logger *zap.Logger) *EventForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventForwarder{
		broadcaster: broadcaster,
		logger:      logger.Named("realtime_forwarder"),
	}
}

// EventTypes returns the group-order events that reach subscribers
func (f *EventForwarder) EventTypes() []string {
	return []string{
		grouporder.EventTypeGroupCreated,
		grouporder.EventTypeGroupUpdated,
		grouporder.EventTypeGroupLocked,
		grouporder.EventTypeGroupDeleted,
		grouporder.EventTypeMemberJoined,
		grouporder.EventTypeMemberLeft,
		grouporder.EventTypeMemberAddressUpdated,
		grouporder.EventTypeItemAdded,
		grouporder.EventTypeItemUpdated,
		grouporder.EventTypeItemRemoved,
		grouporder.EventTypeDiscountUpdated,
	}
}

// Handle publishes the message for one event. Events of other aggregates are ignored.
func (f *EventForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	msg, ok, err := ToMessage(event)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return f.broadcaster.Publish(ctx, msg)
}

// ToMessage maps a domain event to its channel message
func ToMessage(event shared.DomainEvent) (grouporder.RealtimeMessage, bool, error) {
	ge, ok := event.(grouporder.GroupEvent)
	if !ok {
		return grouporder.RealtimeMessage{}, false, nil
	}

	name := event.EventType()
	var payload any = event
	if created, ok := event.(*grouporder.GroupCreatedEvent); ok {
		name = grouporder.EventTypeGroupState
		payload = created.Snapshot
	}

	msg, err := grouporder.NewRealtimeMessage(ge.GroupID(), name, payload, event.OccurredAt())
	if err != nil {
		return grouporder.RealtimeMessage{}, false, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return msg, true, nil
}

var _ shared.EventHandler = (*EventForwarder)(nil)
