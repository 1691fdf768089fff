package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"github.com/groupbuy/backend/internal/infrastructure/event"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroup(t *testing.T) (*grouporder.Group, uuid.UUID) {
	t.Helper()
	host := uuid.New()
	g, err := grouporder.NewGroup(grouporder.NewGroupInput{
		StoreID:         uuid.New(),
		HostUserID:      host,
		HostDisplayName: "Host",
		Name:            "Office lunch",
		DeliveryMode:    grouporder.DeliveryModeHostAddress,
	})
	require.NoError(t, err)
	return g, host
}

func TestToMessage_GroupCreatedBecomesState(t *testing.T) {
	g, _ := newGroup(t)
	events := g.GetDomainEvents()
	require.NotEmpty(t, events)

	msg, ok, err := ToMessage(events[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, grouporder.EventTypeGroupState, msg.Event)
	assert.Equal(t, g.ID, msg.GroupID)

	var snap grouporder.GroupSnapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	assert.Equal(t, g.ID, snap.ID)
}

func TestToMessage_IgnoresOtherAggregates(t *testing.T) {
	base := shared.NewBaseDomainEvent("SomethingElse", "Other", uuid.New())
	_, ok, err := ToMessage(&base)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventForwarder_PublishesThroughBus(t *testing.T) {
	hub := NewHub()
	bus := event.NewInMemoryEventBus(nil)
	bus.Subscribe(NewEventForwarder(hub, nil))

	g, host := newGroup(t)
	g.ClearDomainEvents()

	state, err := grouporder.StateMessage(g)
	require.NoError(t, err)
	ch, err := hub.Subscribe(g.ID, "viewer", state)
	require.NoError(t, err)

	_, err = g.AddItem(host, grouporder.NewItemInput{
		ProductID: uuid.New(),
		Quantity:  2,
		ListPrice: decimal.NewFromInt(1500),
	})
	require.NoError(t, err)
	require.NoError(t, g.Lock(host))

	require.NoError(t, bus.Publish(context.Background(), g.GetDomainEvents()...))

	got := drain(ch)
	require.Len(t, got, 3)
	assert.Equal(t, grouporder.EventTypeGroupState, got[0].Event)
	assert.Equal(t, grouporder.EventTypeItemAdded, got[1].Event)
	assert.Equal(t, grouporder.EventTypeGroupLocked, got[2].Event)

	var added struct {
		Item struct {
			Quantity int `json:"quantity"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(got[1].Payload, &added))
	assert.Equal(t, 2, added.Item.Quantity)
}
