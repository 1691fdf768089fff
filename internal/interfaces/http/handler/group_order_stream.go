package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	groupapp "github.com/groupbuy/backend/internal/application/grouporder"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/logger"
	"github.com/groupbuy/backend/internal/infrastructure/realtime"
	"github.com/groupbuy/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const defaultStreamHeartbeat = 25 * time.Second

// GroupOrderStreamHandler serves a group's realtime channel as Server-Sent Events.
// The first event on every stream is group-state with the full snapshot.
type GroupOrderStreamHandler struct {
	BaseHandler
	service   *groupapp.GroupOrderService
	heartbeat time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
}

// StreamOption configures a GroupOrderStreamHandler
type StreamOption func(*GroupOrderStreamHandler)

// WithStreamHeartbeat sets the keep-alive interval
func WithStreamHeartbeat(interval time.Duration) StreamOption {
	return func(h *GroupOrderStreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewGroupOrderStreamHandler creates a stream handler
func NewGroupOrderStreamHandler(service *groupapp.GroupOrderService, opts ...StreamOption) *GroupOrderStreamHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &GroupOrderStreamHandler{
		service:   service,
		heartbeat: defaultStreamHeartbeat,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Close ends every open stream. Called on shutdown before the server drains.
func (h *GroupOrderStreamHandler) Close() {
	h.cancel()
}

// Stream godoc
// @ID           streamGroupOrder
// @Summary      Subscribe to a group's live updates
// @Description  Server-Sent Events. The first event is group-state with the full snapshot, followed by deltas.
// @Description  Browsers may pass the token as the access_token query parameter.
// @Tags         group-orders
// @Produce      text/event-stream
// @Param        id path string true "Group ID" format(uuid)
// @Success      200 {string} string "SSE stream"
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/stream [get]
func (h *GroupOrderStreamHandler) Stream(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	log := logger.GetGinLogger(c)

	subscriberID := uuid.NewString()
	ch, err := h.service.Subscribe(c.Request.Context(), groupID, subscriberID)
	if err != nil {
		if errors.Is(err, realtime.ErrTooManySubscribers) {
			h.ErrorWithCode(c, dto.ErrCodeTooManyStreams, "Maximum number of live streams reached")
			return
		}
		h.HandleError(c, err)
		return
	}
	defer h.service.Unsubscribe(groupID, subscriberID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	// streams outlive the server write timeout
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
	c.Status(http.StatusOK)
	c.Writer.Flush()

	log.Debug("Stream opened", zap.String("subscriber_id", subscriberID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	var seq uint64
	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Debug("Stream closed by client", zap.String("subscriber_id", subscriberID))
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case msg, ok := <-ch:
			if !ok {
				// group deleted, or this subscriber fell too far behind
				log.Debug("Stream ended by hub", zap.String("subscriber_id", subscriberID))
				return
			}
			seq++
			writeEvent(c.Writer, msg, seq)
			c.Writer.Flush()
			if msg.Event == grouporder.EventTypeGroupDeleted {
				return
			}
		}
	}
}

// writeEvent writes one SSE frame. The payload is compact JSON, so a single data line suffices.
func writeEvent(w io.Writer, msg grouporder.RealtimeMessage, seq uint64) {
	fmt.Fprintf(w, "event: %s\n", msg.Event)
	fmt.Fprintf(w, "id: %s\n", strconv.FormatUint(seq, 10))
	fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
}
