package grouporder

import (
	"context"
	"time"

	"github.com/groupbuy/backend/internal/domain/grouporder"
)

// Metrics receives business measurements from the service.
// The telemetry package provides the OpenTelemetry implementation.
type Metrics interface {
	RecordGroupCreated(ctx context.Context, mode grouporder.DeliveryMode)
	RecordMemberJoined(ctx context.Context)
	RecordMemberLeft(ctx context.Context, removedByHost bool)
	RecordItemAdded(ctx context.Context)
	RecordGroupExpired(ctx context.Context)
	RecordCheckout(ctx context.Context, mode grouporder.DeliveryMode, orders int, outcome string, elapsed time.Duration)
}

// Checkout outcomes used as metric labels
const (
	CheckoutOutcomeSuccess   = "success"
	CheckoutOutcomeBlocked   = "blocked"
	CheckoutOutcomeFailed    = "failed"
	CheckoutOutcomeDuplicate = "duplicate"
)

type noopMetrics struct{}

func (noopMetrics) RecordGroupCreated(context.Context, grouporder.DeliveryMode) {}
func (noopMetrics) RecordMemberJoined(context.Context)                          {}
func (noopMetrics) RecordMemberLeft(context.Context, bool)                      {}
func (noopMetrics) RecordItemAdded(context.Context)                             {}
func (noopMetrics) RecordGroupExpired(context.Context)                          {}
func (noopMetrics) RecordCheckout(context.Context, grouporder.DeliveryMode, int, string, time.Duration) {
}
