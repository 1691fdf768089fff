package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"go.uber.org/zap"
)

const (
	defaultBufferSize     = 64
	defaultMaxSubscribers = 10000
)

// ErrTooManySubscribers is returned when the node already serves its maximum of streams
var ErrTooManySubscribers = errors.New("realtime: maximum number of subscribers reached")

// Relay forwards locally originated messages to other instances
type Relay interface {
	Forward(ctx context.Context, msg grouporder.RealtimeMessage) error
}

// channel is the subscriber set of one group. Its mutex orders delivery:
// every subscriber sees messages in the order Publish was called.
type channel struct {
	mu          sync.Mutex
	subscribers map[string]chan grouporder.RealtimeMessage
	// retired is set once the channel left the hub's map
	retired bool
}

// Hub is an in-process grouporder.SubscriptionHub with one channel per group
type Hub struct {
	mu             sync.RWMutex
	groups         map[uuid.UUID]*channel
	total          atomic.Int64
	dropped        atomic.Int64
	bufferSize     int
	maxSubscribers int
	relay          Relay
	logger         *zap.Logger
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber queue length
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithMaxSubscribers caps the streams one node serves. Zero disables the cap.
func WithMaxSubscribers(n int) HubOption {
	return func(h *Hub) {
		h.maxSubscribers = n
	}
}

// WithRelay forwards local publishes to other instances
func WithRelay(r Relay) HubOption {
	return func(h *Hub) {
		h.relay = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a Hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		groups:         make(map[uuid.UUID]*channel),
		bufferSize:     defaultBufferSize,
		maxSubscribers: defaultMaxSubscribers,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetRelay attaches the relay after construction. The relay and the hub
// reference each other, so one of them has to be wired late.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Subscribe registers subscriberID on the group's channel and queues initial
// as its first message. A second Subscribe with the same id replaces the first
// stream and closes it.
func (h *Hub) Subscribe(groupID uuid.UUID, subscriberID string, initial grouporder.RealtimeMessage) (<-chan grouporder.RealtimeMessage, error) {
	if !h.reserveSlot() {
		return nil, ErrTooManySubscribers
	}

	out := make(chan grouporder.RealtimeMessage, h.bufferSize)
	out <- initial

	ch := h.channelFor(groupID)
	ch.mu.Lock()
	for ch.retired {
		ch.mu.Unlock()
		ch = h.channelFor(groupID)
		ch.mu.Lock()
	}
	if old, ok := ch.subscribers[subscriberID]; ok {
		close(old)
		h.total.Add(-1)
	}
	ch.subscribers[subscriberID] = out
	ch.mu.Unlock()

	h.logger.Debug("subscriber attached",
		zap.String("group_id", groupID.String()),
		zap.String("subscriber_id", subscriberID))
	return out, nil
}

// reserveSlot counts a new subscriber unless the cap is reached
func (h *Hub) reserveSlot() bool {
	for {
		n := h.total.Load()
		if h.maxSubscribers > 0 && n >= int64(h.maxSubscribers) {
			return false
		}
		if h.total.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Unsubscribe removes the subscriber and closes its stream
func (h *Hub) Unsubscribe(groupID uuid.UUID, subscriberID string) {
	h.mu.RLock()
	ch, ok := h.groups[groupID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	if out, ok := ch.subscribers[subscriberID]; ok {
		close(out)
		delete(ch.subscribers, subscriberID)
		h.total.Add(-1)
	}
	empty := len(ch.subscribers) == 0
	ch.mu.Unlock()

	if empty {
		h.removeIfEmpty(groupID, ch)
	}
}

// SubscriberCount returns the number of local subscribers of the group
func (h *Hub) SubscriberCount(groupID uuid.UUID) int {
	h.mu.RLock()
	ch, ok := h.groups[groupID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.subscribers)
}

// Publish delivers msg to local subscribers and, for locally originated
// messages, to the relay.
func (h *Hub) Publish(ctx context.Context, msg grouporder.RealtimeMessage) error {
	h.Deliver(msg)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil || msg.Origin != "" {
		return nil
	}
	return relay.Forward(ctx, msg)
}

// Deliver fans msg out to local subscribers only. A subscriber whose queue
// is full is dropped; it reconnects and resyncs from a fresh snapshot.
// group-deleted closes every stream of the group after delivery.
func (h *Hub) Deliver(msg grouporder.RealtimeMessage) {
	h.mu.RLock()
	ch, ok := h.groups[msg.GroupID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	for id, out := range ch.subscribers {
		select {
		case out <- msg:
		default:
			close(out)
			delete(ch.subscribers, id)
			h.total.Add(-1)
			h.dropped.Add(1)
			h.logger.Warn("subscriber queue full, dropping subscriber",
				zap.String("group_id", msg.GroupID.String()),
				zap.String("subscriber_id", id),
				zap.String("event", msg.Event))
		}
	}
	if msg.Event == grouporder.EventTypeGroupDeleted {
		for id, out := range ch.subscribers {
			close(out)
			delete(ch.subscribers, id)
			h.total.Add(-1)
		}
	}
	empty := len(ch.subscribers) == 0
	ch.mu.Unlock()

	if empty {
		h.removeIfEmpty(msg.GroupID, ch)
	}
}

// Stats reports hub-wide counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	groups := len(h.groups)
	h.mu.RUnlock()
	return HubStats{
		Groups:      groups,
		Subscribers: int(h.total.Load()),
		Dropped:     h.dropped.Load(),
	}
}

// HubStats is a point-in-time view of the hub
type HubStats struct {
	Groups      int   `json:"groups"`
	Subscribers int   `json:"subscribers"`
	Dropped     int64 `json:"dropped"`
}

// Close ends every stream
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.groups {
		ch.mu.Lock()
		for sid, out := range ch.subscribers {
			close(out)
			delete(ch.subscribers, sid)
			h.total.Add(-1)
		}
		ch.retired = true
		ch.mu.Unlock()
		delete(h.groups, id)
	}
}

func (h *Hub) channelFor(groupID uuid.UUID) *channel {
	h.mu.RLock()
	ch, ok := h.groups[groupID]
	h.mu.RUnlock()
	if ok {
		return ch
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.groups[groupID]; ok {
		return ch
	}
	ch = &channel{subscribers: make(map[string]chan grouporder.RealtimeMessage)}
	h.groups[groupID] = ch
	return ch
}

// removeIfEmpty drops the group's channel if nobody subscribed in the meantime
func (h *Hub) removeIfEmpty(groupID uuid.UUID, ch *channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[groupID] != ch {
		return
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.subscribers) == 0 {
		ch.retired = true
		delete(h.groups, groupID)
	}
}

var _ grouporder.SubscriptionHub = (*Hub)(nil)
