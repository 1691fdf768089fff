package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/groupbuy/backend/internal/domain/grouporder"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "groupbuy-backend/grouporder"

// GroupOrderMetrics records group order business measurements as OTel instruments.
type GroupOrderMetrics struct {
	groupsCreated     *Counter
	membersJoined     *Counter
	membersLeft       *Counter
	itemsAdded        *Counter
	groupsExpired     *Counter
	checkouts         *Counter
	checkoutDuration  *Histogram
	ordersPerCheckout *Histogram
}

// NewGroupOrderMetrics creates the group order instruments on meter.
func NewGroupOrderMetrics(meter metric.Meter) (*GroupOrderMetrics, error) {
	m := &GroupOrderMetrics{}
	counters := []struct {
		dst         **Counter
		name, descr string
	}{
		{&m.groupsCreated, "group_orders_created_total", "Group orders opened"},
		{&m.membersJoined, "group_order_members_joined_total", "Members that joined a group order"},
		{&m.membersLeft, "group_order_members_left_total", "Members that left or were removed from a group order"},
		{&m.itemsAdded, "group_order_items_added_total", "Items added to group order carts"},
		{&m.groupsExpired, "group_orders_expired_total", "Group orders that passed their deadline"},
		{&m.checkouts, "group_order_checkouts_total", "Checkout attempts by outcome"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.descr, "{count}")
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.checkoutDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "group_order_checkout_duration_seconds",
		Description: "Checkout latency including shipping and payment calls",
		Unit:        "s",
		Boundaries:  CheckoutDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	m.ordersPerCheckout, err = NewHistogram(meter, HistogramOpts{
		Name:        "group_order_checkout_orders",
		Description: "Orders produced by a successful checkout",
		Unit:        "{order}",
		Boundaries:  OrdersPerCheckoutBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewGroupOrderMetricsFromProvider uses the provider's meter.
func NewGroupOrderMetricsFromProvider(mp *MeterProvider) (*GroupOrderMetrics, error) {
	m, err := NewGroupOrderMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, fmt.Errorf("failed to create group order metrics: %w", err)
	}
	return m, nil
}

func (m *GroupOrderMetrics) RecordGroupCreated(ctx context.Context, mode grouporder.DeliveryMode) {
	m.groupsCreated.Inc(ctx, AttrDeliveryMode.String(string(mode)))
}

func (m *GroupOrderMetrics) RecordMemberJoined(ctx context.Context) {
	m.membersJoined.Inc(ctx)
}

func (m *GroupOrderMetrics) RecordMemberLeft(ctx context.Context, removedByHost bool) {
	by := "self"
	if removedByHost {
		by = "host"
	}
	m.membersLeft.Inc(ctx, AttrRemovedBy.String(by))
}

func (m *GroupOrderMetrics) RecordItemAdded(ctx context.Context) {
	m.itemsAdded.Inc(ctx)
}

func (m *GroupOrderMetrics) RecordGroupExpired(ctx context.Context) {
	m.groupsExpired.Inc(ctx)
}

// RecordCheckout counts the attempt and, on success, the orders it produced.
func (m *GroupOrderMetrics) RecordCheckout(ctx context.Context, mode grouporder.DeliveryMode, orders int, outcome string, elapsed time.Duration) {
	attrs := AttrOutcome.String(outcome)
	if mode == "" {
		m.checkouts.Inc(ctx, attrs)
	} else {
		m.checkouts.Inc(ctx, attrs, AttrDeliveryMode.String(string(mode)))
	}
	m.checkoutDuration.RecordDuration(ctx, elapsed, attrs)
	if orders > 0 {
		m.ordersPerCheckout.Record(ctx, float64(orders), AttrDeliveryMode.String(string(mode)))
	}
}
