package grouporder

import (
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/shared"
)

const (
	// AggregateTypeGroupOrder is the aggregate type for group orders
	AggregateTypeGroupOrder = "GroupOrder"

	// Event types double as realtime event names
	EventTypeGroupState           = "group-state"
	EventTypeGroupCreated         = "group-created"
	EventTypeGroupUpdated         = "group-updated"
	EventTypeGroupLocked          = "group-locked"
	EventTypeGroupDeleted         = "group-deleted"
	EventTypeMemberJoined         = "member-joined"
	EventTypeMemberLeft           = "member-left"
	EventTypeMemberAddressUpdated = "member-address-updated"
	EventTypeItemAdded            = "item-added"
	EventTypeItemUpdated          = "item-updated"
	EventTypeItemRemoved          = "item-removed"
	EventTypeDiscountUpdated      = "discount-updated"
)

// Reasons a group-updated event was raised
const (
	ChangeRenamed             = "renamed"
	ChangeDeadlineChanged     = "deadline_changed"
	ChangeDeliveryModeChanged = "delivery_mode_changed"
	ChangeUnlocked            = "unlocked"
	ChangeExpired             = "expired"
	ChangeCheckedOut          = "checked_out"
	ChangeCheckoutAborted     = "checkout_aborted"
)

// GroupEvent is implemented by every group-order event. GroupID routes the
// event to the group's realtime channel.
type GroupEvent interface {
	shared.DomainEvent
	GroupID() uuid.UUID
}

type groupEventBase struct {
	shared.BaseDomainEvent
}

func newGroupEventBase(eventType string, groupID uuid.UUID) groupEventBase {
	return groupEventBase{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeGroupOrder, groupID),
	}
}

// GroupID returns the id of the group the event belongs to
func (e *groupEventBase) GroupID() uuid.UUID {
	return e.AggID
}

// GroupCreatedEvent is raised when a host creates a group
type GroupCreatedEvent struct {
	groupEventBase
	Snapshot GroupSnapshot `json:"snapshot"`
}

// NewGroupCreatedEvent creates a new GroupCreatedEvent
func NewGroupCreatedEvent(g *Group) *GroupCreatedEvent {
	return &GroupCreatedEvent{
		groupEventBase: newGroupEventBase(EventTypeGroupCreated, g.ID),
		Snapshot:       g.Snapshot(),
	}
}

// GroupUpdatedEvent carries the new snapshot after a host-level change,
// an automatic expiry or a completed checkout
type GroupUpdatedEvent struct {
	groupEventBase
	Change   string        `json:"change"`
	OrderIDs []uuid.UUID   `json:"order_ids,omitempty"`
	Snapshot GroupSnapshot `json:"snapshot"`
}

// NewGroupUpdatedEvent creates a new GroupUpdatedEvent
func NewGroupUpdatedEvent(g *Group, change string) *GroupUpdatedEvent {
	return &GroupUpdatedEvent{
		groupEventBase: newGroupEventBase(EventTypeGroupUpdated, g.ID),
		Change:         change,
		Snapshot:       g.Snapshot(),
	}
}

// GroupLockedEvent is raised when the host freezes the cart
type GroupLockedEvent struct {
	groupEventBase
	Status   GroupStatus `json:"status"`
	LockedBy uuid.UUID   `json:"locked_by"`
	LockedAt time.Time   `json:"locked_at"`
}

// NewGroupLockedEvent creates a new GroupLockedEvent
func NewGroupLockedEvent(g *Group, by uuid.UUID) *GroupLockedEvent {
	return &GroupLockedEvent{
		groupEventBase: newGroupEventBase(EventTypeGroupLocked, g.ID),
		Status:         g.Status,
		LockedBy:       by,
		LockedAt:       g.UpdatedAt,
	}
}

// GroupDeletedEvent is the last event of a group's channel
type GroupDeletedEvent struct {
	groupEventBase
	DeletedBy uuid.UUID `json:"deleted_by"`
}

// NewGroupDeletedEvent creates a new GroupDeletedEvent
func NewGroupDeletedEvent(g *Group, by uuid.UUID) *GroupDeletedEvent {
	return &GroupDeletedEvent{
		groupEventBase: newGroupEventBase(EventTypeGroupDeleted, g.ID),
		DeletedBy:      by,
	}
}

// MemberJoinedEvent is raised when a user joins or is added by the host
type MemberJoinedEvent struct {
	groupEventBase
	Member        MemberView `json:"member"`
	AddedBy       *uuid.UUID `json:"added_by,omitempty"`
	ActiveMembers int        `json:"active_members"`
}

// NewMemberJoinedEvent creates a new MemberJoinedEvent
func NewMemberJoinedEvent(g *Group, m *Member, addedBy *uuid.UUID) *MemberJoinedEvent {
	return &MemberJoinedEvent{
		groupEventBase: newGroupEventBase(EventTypeMemberJoined, g.ID),
		Member:         toMemberView(m),
		AddedBy:        addedBy,
		ActiveMembers:  g.ActiveMemberCount(),
	}
}

// MemberLeftEvent is raised when a member leaves or is removed.
// RemovedItemIDs lists the member's items dropped from the cart.
type MemberLeftEvent struct {
	groupEventBase
	MemberID       uuid.UUID   `json:"member_id"`
	UserID         uuid.UUID   `json:"user_id"`
	RemovedBy      *uuid.UUID  `json:"removed_by,omitempty"`
	RemovedItemIDs []uuid.UUID `json:"removed_item_ids"`
	ActiveMembers  int         `json:"active_members"`
}

// NewMemberLeftEvent creates a new MemberLeftEvent
func NewMemberLeftEvent(g *Group, m *Member, removedBy *uuid.UUID, removedItems []uuid.UUID) *MemberLeftEvent {
	if removedItems == nil {
		removedItems = []uuid.UUID{}
	}
	return &MemberLeftEvent{
		groupEventBase: newGroupEventBase(EventTypeMemberLeft, g.ID),
		MemberID:       m.ID,
		UserID:         m.UserID,
		RemovedBy:      removedBy,
		RemovedItemIDs: removedItems,
		ActiveMembers:  g.ActiveMemberCount(),
	}
}

// MemberAddressUpdatedEvent is raised when a member picks a delivery address
type MemberAddressUpdatedEvent struct {
	groupEventBase
	MemberID  uuid.UUID  `json:"member_id"`
	UserID    uuid.UUID  `json:"user_id"`
	AddressID *uuid.UUID `json:"address_id"`
}

// NewMemberAddressUpdatedEvent creates a new MemberAddressUpdatedEvent
func NewMemberAddressUpdatedEvent(g *Group, m *Member) *MemberAddressUpdatedEvent {
	return &MemberAddressUpdatedEvent{
		groupEventBase: newGroupEventBase(EventTypeMemberAddressUpdated, g.ID),
		MemberID:       m.ID,
		UserID:         m.UserID,
		AddressID:      m.AddressID,
	}
}

// ItemAddedEvent is raised when an item is added to the cart
type ItemAddedEvent struct {
	groupEventBase
	Item   ItemView `json:"item"`
	Totals Totals   `json:"totals"`
}

// NewItemAddedEvent creates a new ItemAddedEvent
func NewItemAddedEvent(g *Group, it *Item) *ItemAddedEvent {
	return &ItemAddedEvent{
		groupEventBase: newGroupEventBase(EventTypeItemAdded, g.ID),
		Item:           g.ItemView(it),
		Totals:         ComputeTotals(g.Items, g.DiscountPercent),
	}
}

// ItemUpdatedEvent is raised when quantity or note of an item changes
type ItemUpdatedEvent struct {
	groupEventBase
	Item      ItemView  `json:"item"`
	UpdatedBy uuid.UUID `json:"updated_by"`
	Totals    Totals    `json:"totals"`
}

// NewItemUpdatedEvent creates a new ItemUpdatedEvent
func NewItemUpdatedEvent(g *Group, it *Item, by uuid.UUID) *ItemUpdatedEvent {
	return &ItemUpdatedEvent{
		groupEventBase: newGroupEventBase(EventTypeItemUpdated, g.ID),
		Item:           g.ItemView(it),
		UpdatedBy:      by,
		Totals:         ComputeTotals(g.Items, g.DiscountPercent),
	}
}

// ItemRemovedEvent is raised when an item is removed from the cart
type ItemRemovedEvent struct {
	groupEventBase
	ItemID    uuid.UUID `json:"item_id"`
	MemberID  uuid.UUID `json:"member_id"`
	RemovedBy uuid.UUID `json:"removed_by"`
	Totals    Totals    `json:"totals"`
}

// NewItemRemovedEvent creates a new ItemRemovedEvent
func NewItemRemovedEvent(g *Group, it *Item, by uuid.UUID) *ItemRemovedEvent {
	return &ItemRemovedEvent{
		groupEventBase: newGroupEventBase(EventTypeItemRemoved, g.ID),
		ItemID:         it.ID,
		MemberID:       it.MemberID,
		RemovedBy:      by,
		Totals:         ComputeTotals(g.Items, g.DiscountPercent),
	}
}

// DiscountUpdatedEvent is raised when the active member count crosses a tier.
// Every item is repriced, so Items carries the new prices.
type DiscountUpdatedEvent struct {
	groupEventBase
	PreviousPercent int32      `json:"previous_percent"`
	DiscountPercent int32      `json:"discount_percent"`
	ActiveMembers   int        `json:"active_members"`
	Items           []ItemView `json:"items"`
	Totals          Totals     `json:"totals"`
}

// NewDiscountUpdatedEvent creates a new DiscountUpdatedEvent
func NewDiscountUpdatedEvent(g *Group, previous int32) *DiscountUpdatedEvent {
	return &DiscountUpdatedEvent{
		groupEventBase:  newGroupEventBase(EventTypeDiscountUpdated, g.ID),
		PreviousPercent: previous,
		DiscountPercent: g.DiscountPercent,
		ActiveMembers:   g.ActiveMemberCount(),
		Items:           g.ItemViews(),
		Totals:          ComputeTotals(g.Items, g.DiscountPercent),
	}
}
