package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func newMetrics(t *testing.T) (*telemetry.GroupOrderMetrics, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewGroupOrderMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func TestGroupOrderMetrics_Counters(t *testing.T) {
	m, reader := newMetrics(t)
	ctx := context.Background()

	m.RecordGroupCreated(ctx, grouporder.DeliveryModeHostAddress)
	m.RecordGroupCreated(ctx, grouporder.DeliveryModeMemberAddress)
	m.RecordMemberJoined(ctx)
	m.RecordMemberJoined(ctx)
	m.RecordMemberLeft(ctx, false)
	m.RecordMemberLeft(ctx, true)
	m.RecordItemAdded(ctx)
	m.RecordGroupExpired(ctx)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, got["group_orders_created_total"]))
	assert.Equal(t, int64(1), sumFor(t, got["group_orders_created_total"],
		telemetry.AttrDeliveryMode.String(string(grouporder.DeliveryModeHostAddress))))
	assert.Equal(t, int64(2), sumFor(t, got["group_order_members_joined_total"]))
	assert.Equal(t, int64(1), sumFor(t, got["group_order_members_left_total"], telemetry.AttrRemovedBy.String("host")))
	assert.Equal(t, int64(1), sumFor(t, got["group_order_members_left_total"], telemetry.AttrRemovedBy.String("self")))
	assert.Equal(t, int64(1), sumFor(t, got["group_order_items_added_total"]))
	assert.Equal(t, int64(1), sumFor(t, got["group_orders_expired_total"]))
}

func TestGroupOrderMetrics_Checkout(t *testing.T) {
	m, reader := newMetrics(t)
	ctx := context.Background()

	m.RecordCheckout(ctx, grouporder.DeliveryModeMemberAddress, 3, "success", 120*time.Millisecond)
	m.RecordCheckout(ctx, grouporder.DeliveryModeHostAddress, 0, "blocked", time.Millisecond)
	m.RecordCheckout(ctx, "", 0, "duplicate", time.Millisecond)

	got := collect(t, reader)
	checkouts := got["group_order_checkouts_total"]
	assert.Equal(t, int64(3), sumFor(t, checkouts))
	assert.Equal(t, int64(1), sumFor(t, checkouts, telemetry.AttrOutcome.String("duplicate")))

	duration, ok := got["group_order_checkout_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range duration.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	orders, ok := got["group_order_checkout_orders"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, orders.DataPoints, 1)
	assert.Equal(t, uint64(1), orders.DataPoints[0].Count)
	assert.Equal(t, 3.0, orders.DataPoints[0].Sum)
}
