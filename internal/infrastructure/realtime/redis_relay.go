package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannelPrefix prefixes the Redis channel of every group
const DefaultChannelPrefix = "groupbuy:group:"

// Deliverer receives relayed messages for local fan-out
type Deliverer interface {
	Deliver(msg grouporder.RealtimeMessage)
}

// RedisRelay shares group channels between instances over Redis Pub/Sub.
// Each instance forwards what it publishes and delivers what others publish.
// Ordering across instances is the order Redis receives the messages.
type RedisRelay struct {
	client     redis.UniversalClient
	prefix     string
	instanceID string
	local      Deliverer
	logger     *zap.Logger

	mu       sync.Mutex
	cancelFn context.CancelFunc
	running  bool
	doneCh   chan struct{}
}

// RedisRelayOption configures a RedisRelay
type RedisRelayOption func(*RedisRelay)

// WithChannelPrefix sets the channel prefix
func WithChannelPrefix(prefix string) RedisRelayOption {
	return func(r *RedisRelay) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithInstanceID sets the origin stamped on forwarded messages
func WithInstanceID(id string) RedisRelayOption {
	return func(r *RedisRelay) {
		if id != "" {
			r.instanceID = id
		}
	}
}

// WithRelayLogger sets the logger
func WithRelayLogger(logger *zap.Logger) RedisRelayOption {
	return func(r *RedisRelay) {
		r.logger = logger
	}
}

// NewRedisRelay creates a relay delivering inbound messages to local.
// The caller owns client.
func NewRedisRelay(client redis.UniversalClient, local Deliverer, opts ...RedisRelayOption) *RedisRelay {
	r := &RedisRelay{
		client:     client,
		prefix:     DefaultChannelPrefix,
		instanceID: uuid.NewString(),
		local:      local,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InstanceID returns the origin this relay stamps on its messages
func (r *RedisRelay) InstanceID() string {
	return r.instanceID
}

// Channel returns the Redis channel of a group
func (r *RedisRelay) Channel(groupID uuid.UUID) string {
	return r.prefix + groupID.String()
}

// Forward publishes msg to the group's Redis channel
func (r *RedisRelay) Forward(ctx context.Context, msg grouporder.RealtimeMessage) error {
	msg.Origin = r.instanceID
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime message: %w", err)
	}
	if err := r.client.Publish(ctx, r.Channel(msg.GroupID), data).Err(); err != nil {
		r.logger.Error("Failed to relay realtime message",
			zap.String("group_id", msg.GroupID.String()),
			zap.String("event", msg.Event),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Run subscribes to every group channel and blocks until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay already running")
	}
	subCtx, cancel := context.WithCancel(ctx)
	r.cancelFn = cancel
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		close(r.doneCh)
	}()

	pubsub := r.client.PSubscribe(subCtx, r.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to relay channels: %w", err)
	}
	r.logger.Info("Realtime relay subscribed",
		zap.String("pattern", r.prefix+"*"),
		zap.String("instance_id", r.instanceID))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			r.logger.Info("Realtime relay stopped")
			return subCtx.Err()
		case m, ok := <-ch:
			if !ok {
				r.logger.Warn("Realtime relay channel closed")
				return nil
			}
			r.handle(m.Channel, m.Payload)
		}
	}
}

// Stop cancels Run and waits for it to return
func (r *RedisRelay) Stop() {
	r.mu.Lock()
	cancel := r.cancelFn
	running := r.running
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if running {
		<-r.doneCh
	}
}

func (r *RedisRelay) handle(channel, payload string) {
	var msg grouporder.RealtimeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Error("Failed to unmarshal relayed message",
			zap.String("channel", channel),
			zap.Error(err))
		return
	}
	if msg.Origin == r.instanceID {
		return
	}
	if msg.GroupID == uuid.Nil {
		id, err := uuid.Parse(strings.TrimPrefix(channel, r.prefix))
		if err != nil {
			r.logger.Warn("Relayed message without group", zap.String("channel", channel))
			return
		}
		msg.GroupID = id
	}
	if msg.Origin == "" {
		// keeps the hub from relaying it back out
		msg.Origin = "unknown"
	}
	r.local.Deliver(msg)
}
