package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func message(groupID uuid.UUID, event string, seq int) grouporder.RealtimeMessage {
	return grouporder.RealtimeMessage{
		GroupID:    groupID,
		Event:      event,
		Payload:    json.RawMessage(fmt.Sprintf(`{"seq":%d}`, seq)),
		OccurredAt: time.Now(),
	}
}

func seqOf(t *testing.T, msg grouporder.RealtimeMessage) int {
	t.Helper()
	var body struct {
		Seq int `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	return body.Seq
}

func drain(ch <-chan grouporder.RealtimeMessage) []grouporder.RealtimeMessage {
	var out []grouporder.RealtimeMessage
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

type recordingRelay struct {
	mu       sync.Mutex
	messages []grouporder.RealtimeMessage
}

func (r *recordingRelay) Forward(_ context.Context, msg grouporder.RealtimeMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func TestHub_InitialMessageComesFirst(t *testing.T) {
	hub := NewHub()
	groupID := uuid.New()

	ch, err := hub.Subscribe(groupID, "a", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), message(groupID, grouporder.EventTypeItemAdded, 1)))

	got := drain(ch)
	require.Len(t, got, 2)
	assert.Equal(t, grouporder.EventTypeGroupState, got[0].Event)
	assert.Equal(t, grouporder.EventTypeItemAdded, got[1].Event)
}

func TestHub_PerGroupOrdering(t *testing.T) {
	hub := NewHub(WithBufferSize(512))
	groupID := uuid.New()
	other := uuid.New()

	a, err := hub.Subscribe(groupID, "a", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)
	b, err := hub.Subscribe(groupID, "b", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)
	o, err := hub.Subscribe(other, "o", message(other, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)

	for i := 1; i <= 100; i++ {
		require.NoError(t, hub.Publish(context.Background(), message(groupID, grouporder.EventTypeItemUpdated, i)))
	}

	for _, ch := range []<-chan grouporder.RealtimeMessage{a, b} {
		got := drain(ch)
		require.Len(t, got, 101)
		for i, msg := range got {
			assert.Equal(t, i, seqOf(t, msg))
		}
	}
	assert.Len(t, drain(o), 1, "other groups receive nothing")
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hub := NewHub(WithBufferSize(2), WithLogger(zap.New(core)))
	groupID := uuid.New()

	slow, err := hub.Subscribe(groupID, "slow", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), message(groupID, grouporder.EventTypeItemAdded, 1)))
	require.NoError(t, hub.Publish(context.Background(), message(groupID, grouporder.EventTypeItemAdded, 2)))

	assert.Equal(t, 0, hub.SubscriberCount(groupID))
	assert.Equal(t, int64(1), hub.Stats().Dropped)
	assert.Equal(t, 1, logs.FilterMessage("subscriber queue full, dropping subscriber").Len())

	got := drain(slow)
	require.Len(t, got, 2, "queued messages stay readable before the close")
	_, open := <-slow
	assert.False(t, open)
}

func TestHub_GroupDeletedClosesStreams(t *testing.T) {
	hub := NewHub()
	groupID := uuid.New()

	a, err := hub.Subscribe(groupID, "a", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)
	b, err := hub.Subscribe(groupID, "b", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), message(groupID, grouporder.EventTypeGroupDeleted, 1)))

	for _, ch := range []<-chan grouporder.RealtimeMessage{a, b} {
		got := drain(ch)
		require.Len(t, got, 2)
		assert.Equal(t, grouporder.EventTypeGroupDeleted, got[1].Event)
		_, open := <-ch
		assert.False(t, open)
	}
	assert.Equal(t, 0, hub.SubscriberCount(groupID))
	assert.Equal(t, 0, hub.Stats().Groups)
}

func TestHub_UnsubscribeAndReplace(t *testing.T) {
	hub := NewHub()
	groupID := uuid.New()

	first, err := hub.Subscribe(groupID, "a", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)
	second, err := hub.Subscribe(groupID, "a", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, hub.SubscriberCount(groupID))

	drain(first)
	_, open := <-first
	assert.False(t, open, "replaced stream is closed")

	hub.Unsubscribe(groupID, "a")
	drain(second)
	_, open = <-second
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount(groupID))
	assert.Equal(t, 0, hub.Stats().Subscribers)

	hub.Unsubscribe(groupID, "missing")
}

func TestHub_MaxSubscribers(t *testing.T) {
	hub := NewHub(WithMaxSubscribers(1))
	groupID := uuid.New()

	_, err := hub.Subscribe(groupID, "a", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)
	_, err = hub.Subscribe(groupID, "b", message(groupID, grouporder.EventTypeGroupState, 0))
	assert.ErrorIs(t, err, ErrTooManySubscribers)
}

func TestHub_MaxSubscribersUnderConcurrentSubscribe(t *testing.T) {
	const limit = 5
	hub := NewHub(WithMaxSubscribers(limit))
	groupID := uuid.New()

	var accepted, rejected atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := hub.Subscribe(groupID, fmt.Sprintf("sub-%d", i), message(groupID, grouporder.EventTypeGroupState, 0))
			if err != nil {
				assert.ErrorIs(t, err, ErrTooManySubscribers)
				rejected.Add(1)
				return
			}
			accepted.Add(1)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(limit), accepted.Load())
	assert.Equal(t, int32(50-limit), rejected.Load())
	assert.Equal(t, limit, hub.Stats().Subscribers)
	assert.Equal(t, limit, hub.SubscriberCount(groupID))
}

func TestHub_RelaysOnlyLocalMessages(t *testing.T) {
	relay := &recordingRelay{}
	hub := NewHub(WithRelay(relay))
	groupID := uuid.New()

	ch, err := hub.Subscribe(groupID, "a", message(groupID, grouporder.EventTypeGroupState, 0))
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), message(groupID, grouporder.EventTypeItemAdded, 1)))
	remote := message(groupID, grouporder.EventTypeItemAdded, 2)
	remote.Origin = "node-b"
	require.NoError(t, hub.Publish(context.Background(), remote))

	assert.Len(t, drain(ch), 3)
	require.Len(t, relay.messages, 1)
	assert.Equal(t, 1, seqOf(t, relay.messages[0]))
}

func TestHub_ConcurrentSubscribeAndPublish(t *testing.T) {
	hub := NewHub(WithBufferSize(1024))
	groupID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sub-%d", i)
			ch, err := hub.Subscribe(groupID, id, message(groupID, grouporder.EventTypeGroupState, 0))
			if err != nil {
				return
			}
			drain(ch)
			hub.Unsubscribe(groupID, id)
		}(i)
	}
	for i := 1; i <= 50; i++ {
		_ = hub.Publish(context.Background(), message(groupID, grouporder.EventTypeItemAdded, i))
	}
	wg.Wait()

	assert.Equal(t, 0, hub.SubscriberCount(groupID))
	assert.Equal(t, 0, hub.Stats().Subscribers)
}
