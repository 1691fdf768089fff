package grouporder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	*serviceFixture
	shipping    *MockShippingCalculator
	payments    *MockPaymentGateway
	orders      *MockOrderWriter
	idempotency *MockIdempotencyStore
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	cf := &checkoutFixture{
		shipping:    new(MockShippingCalculator),
		payments:    new(MockPaymentGateway),
		orders:      new(MockOrderWriter),
		idempotency: new(MockIdempotencyStore),
	}
	cf.orders.On("AttachPaymentIntent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	repo := newMemoryGroupRepository()
	orchestrator := NewCheckoutOrchestrator(repo, nil, cf.shipping, cf.payments, cf.orders, nil)
	cf.serviceFixture = &serviceFixture{
		repo:      repo,
		publisher: &recordingPublisher{},
		hub:       newFakeHub(),
	}
	cf.svc = NewGroupOrderService(Dependencies{
		Repository:     repo,
		EventPublisher: cf.publisher,
		Hub:            cf.hub,
		Idempotency:    cf.idempotency,
		Checkout:       orchestrator,
	}, ServiceConfig{})
	return cf
}

// memberAddressGroup builds a member_address group with two members who own
// items and have addresses. The host owns nothing.
func (cf *checkoutFixture) memberAddressGroup(t *testing.T) (groupID, hostID, alice, bob uuid.UUID) {
	t.Helper()
	groupID, hostID = cf.createGroup(t, CreateGroupRequest{DeliveryMode: grouporder.DeliveryModeMemberAddress})
	alice = cf.join(t, groupID)
	bob = cf.join(t, groupID)
	for _, u := range []uuid.UUID{alice, bob} {
		_, err := cf.svc.SetMemberAddress(context.Background(), groupID, u, SetAddressRequest{AddressID: uuid.New()})
		require.NoError(t, err)
	}
	cf.addItem(t, groupID, alice, 40000, 1)
	cf.addItem(t, groupID, bob, 25000, 2)
	cf.publisher.reset()
	return groupID, hostID, alice, bob
}

func buyer(userID uuid.UUID) interface{} {
	return mock.MatchedBy(func(p grouporder.OrderParams) bool { return p.BuyerUserID == userID })
}

func intentFor(orderID uuid.UUID) interface{} {
	return mock.MatchedBy(func(r grouporder.PaymentIntentRequest) bool { return r.OrderID == orderID })
}

func TestCheckout_ScenarioC_OneOrderPerMember(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, hostID, alice, bob := cf.memberAddressGroup(t)

	aliceOrder := grouporder.OrderRef{ID: uuid.New(), Number: "GO-0001"}
	bobOrder := grouporder.OrderRef{ID: uuid.New(), Number: "GO-0002"}

	cf.payments.On("ValidateMethod", mock.Anything, hostID, "pm_card").Return(nil)
	cf.shipping.On("CalculateFee", mock.Anything, mock.Anything).Return(decimal.NewFromInt(15000), nil)
	cf.orders.On("CreateOrder", mock.Anything, buyer(alice)).Return(aliceOrder, nil).Once()
	cf.orders.On("CreateOrder", mock.Anything, buyer(bob)).Return(bobOrder, nil).Once()
	cf.payments.On("CreatePaymentIntent", mock.Anything, intentFor(aliceOrder.ID)).
		Return(&grouporder.PaymentIntent{ID: "pi_1", Status: grouporder.PaymentIntentRequiresAction, RedirectURL: "https://pay.example/1"}, nil)
	cf.payments.On("CreatePaymentIntent", mock.Anything, intentFor(bobOrder.ID)).
		Return(&grouporder.PaymentIntent{ID: "pi_2", Status: grouporder.PaymentIntentRequiresAction, RedirectURL: "https://pay.example/2"}, nil)

	resp, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{PaymentMethodRef: "pm_card"})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.OrderCount)
	assert.Equal(t, []uuid.UUID{aliceOrder.ID, bobOrder.ID}, resp.OrderIDs)
	assert.Equal(t, []string{"GO-0001", "GO-0002"}, resp.OrderNumbers)
	assert.Equal(t, "https://pay.example/1", resp.RedirectURL)
	assert.Len(t, resp.RedirectURLs, 2)

	stored := cf.repo.stored(groupID)
	assert.Equal(t, grouporder.GroupStatusClosed, stored.Status)
	assert.Equal(t, grouporder.MemberStatusOrdered, stored.MemberByUser(alice).Status)
	assert.Equal(t, grouporder.MemberStatusOrdered, stored.MemberByUser(bob).Status)

	require.Equal(t, []string{grouporder.EventTypeGroupUpdated}, cf.publisher.types())
	updated, ok := cf.publisher.events[0].(*grouporder.GroupUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, grouporder.ChangeCheckedOut, updated.Change)

	// bob's order carries shipping on top of the discounted items
	cf.payments.AssertCalled(t, "CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(r grouporder.PaymentIntentRequest) bool {
		return r.OrderID == bobOrder.ID && r.PayerUserID == hostID && r.Amount.Equal(decimal.NewFromInt(45000+15000))
	}))
	cf.orders.AssertCalled(t, "AttachPaymentIntent", mock.Anything, aliceOrder, "pi_1")
	cf.orders.AssertCalled(t, "AttachPaymentIntent", mock.Anything, bobOrder, "pi_2")
	cf.orders.AssertNotCalled(t, "DiscardOrder", mock.Anything, mock.Anything)
}

func TestCheckout_HostAddressSingleOrder(t *testing.T) {
	cf := newCheckoutFixture(t)
	addressID := uuid.New()
	groupID, hostID := cf.createGroup(t, CreateGroupRequest{HostAddressID: &addressID})
	memberID := cf.join(t, groupID)
	cf.addItem(t, groupID, hostID, 1000, 1)
	cf.addItem(t, groupID, memberID, 2000, 1)

	ref := grouporder.OrderRef{ID: uuid.New(), Number: "GO-0100"}
	cf.payments.On("ValidateMethod", mock.Anything, hostID, "pm_card").Return(nil)
	cf.shipping.On("CalculateFee", mock.Anything, mock.MatchedBy(func(r grouporder.ShippingQuoteRequest) bool {
		return r.AddressID == addressID && r.WeightGrams == 400
	})).Return(decimal.Zero, nil)
	cf.orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(p grouporder.OrderParams) bool {
		return p.BuyerUserID == hostID && len(p.Items) == 2
	})).Return(ref, nil)
	cf.payments.On("CreatePaymentIntent", mock.Anything, intentFor(ref.ID)).
		Return(&grouporder.PaymentIntent{ID: "pi_9", Status: grouporder.PaymentIntentSucceeded}, nil)

	resp, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{PaymentMethodRef: "pm_card"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.OrderCount)
	assert.Empty(t, resp.RedirectURL)
	cf.orders.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestCheckout_AddressMissingCreatesNothing(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, hostID := cf.createGroup(t, CreateGroupRequest{DeliveryMode: grouporder.DeliveryModeMemberAddress})
	memberID := cf.join(t, groupID)
	cf.addItem(t, groupID, memberID, 1000, 1)

	_, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{PaymentMethodRef: "pm_card"})
	de := requireCode(t, err, "CHECKOUT_BLOCKED")
	assert.Equal(t, grouporder.ReasonAddressMissing, de.Reason)

	cf.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	cf.payments.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	assert.Equal(t, grouporder.GroupStatusOpen, cf.repo.stored(groupID).Status)
}

func TestCheckout_Blocked(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, hostID := cf.createGroup(t, CreateGroupRequest{})
	memberID := cf.join(t, groupID)

	_, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{PaymentMethodRef: "pm_card"})
	de := requireCode(t, err, "CHECKOUT_BLOCKED")
	assert.Equal(t, grouporder.ReasonEmptyCart, de.Reason)

	cf.addItem(t, groupID, memberID, 1000, 1)
	_, err = cf.svc.Checkout(context.Background(), groupID, memberID, CheckoutRequest{PaymentMethodRef: "pm_card"})
	de = requireCode(t, err, "CHECKOUT_BLOCKED")
	assert.Equal(t, grouporder.ReasonNotHost, de.Reason)
}

func TestCheckout_InvalidPaymentMethod(t *testing.T) {
	cf := newCheckoutFixture(t)
	addressID := uuid.New()
	groupID, hostID := cf.createGroup(t, CreateGroupRequest{HostAddressID: &addressID})
	cf.addItem(t, groupID, hostID, 1000, 1)

	cf.payments.On("ValidateMethod", mock.Anything, hostID, "pm_expired").Return(errors.New("card expired"))

	_, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{PaymentMethodRef: "pm_expired"})
	de := requireCode(t, err, "CHECKOUT_BLOCKED")
	assert.Equal(t, grouporder.ReasonPaymentMethodInvalid, de.Reason)
	assert.Equal(t, grouporder.GroupStatusOpen, cf.repo.stored(groupID).Status)
}

func TestCheckout_PaymentFailureCompensates(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, hostID, alice, bob := cf.memberAddressGroup(t)

	aliceOrder := grouporder.OrderRef{ID: uuid.New(), Number: "GO-0001"}
	bobOrder := grouporder.OrderRef{ID: uuid.New(), Number: "GO-0002"}
	key := "checkout:" + groupID.String() + ":req-1"

	cf.idempotency.On("MarkProcessed", mock.Anything, key, mock.Anything).Return(true, nil)
	cf.idempotency.On("Release", mock.Anything, key).Return(nil)
	cf.payments.On("ValidateMethod", mock.Anything, hostID, "pm_card").Return(nil)
	cf.shipping.On("CalculateFee", mock.Anything, mock.Anything).Return(decimal.NewFromInt(5000), nil)
	cf.orders.On("CreateOrder", mock.Anything, buyer(alice)).Return(aliceOrder, nil)
	cf.orders.On("CreateOrder", mock.Anything, buyer(bob)).Return(bobOrder, nil)
	cf.payments.On("CreatePaymentIntent", mock.Anything, intentFor(aliceOrder.ID)).
		Return(&grouporder.PaymentIntent{ID: "pi_1", Status: grouporder.PaymentIntentPending}, nil)
	cf.payments.On("CreatePaymentIntent", mock.Anything, intentFor(bobOrder.ID)).
		Return(nil, errors.New("gateway timeout"))

	var discarded []uuid.UUID
	cf.payments.On("CancelPaymentIntent", mock.Anything, "pi_1").Return(nil)
	cf.orders.On("DiscardOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			discarded = append(discarded, args.Get(1).(grouporder.OrderRef).ID)
		}).Return(nil)

	_, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{
		PaymentMethodRef: "pm_card",
		IdempotencyKey:   "req-1",
	})
	de := requireCode(t, err, "EXTERNAL_FAILURE")
	assert.Equal(t, "payment", de.Details["collaborator"])

	cf.payments.AssertCalled(t, "CancelPaymentIntent", mock.Anything, "pi_1")
	assert.Equal(t, []uuid.UUID{bobOrder.ID, aliceOrder.ID}, discarded)
	cf.idempotency.AssertCalled(t, "Release", mock.Anything, key)

	stored := cf.repo.stored(groupID)
	assert.Equal(t, grouporder.GroupStatusOpen, stored.Status)
	assert.Nil(t, stored.CheckoutStartedAt)
	assert.Equal(t, grouporder.MemberStatusJoined, stored.MemberByUser(alice).Status)
	assert.Len(t, stored.Items, 2)
	assert.Empty(t, cf.publisher.types())
}

// failedAttempt runs a member_address checkout whose second payment intent
// fails and whose first order cannot be discarded
func (cf *checkoutFixture) failedAttempt(t *testing.T) (groupID, hostID uuid.UUID, aliceOrder grouporder.OrderRef) {
	t.Helper()
	groupID, hostID, alice, bob := cf.memberAddressGroup(t)
	aliceOrder = grouporder.OrderRef{ID: uuid.New(), Number: "GO-0001"}
	bobOrder := grouporder.OrderRef{ID: uuid.New(), Number: "GO-0002"}

	cf.payments.On("ValidateMethod", mock.Anything, hostID, "pm_card").Return(nil)
	cf.shipping.On("CalculateFee", mock.Anything, mock.Anything).Return(decimal.Zero, nil)
	cf.orders.On("CreateOrder", mock.Anything, buyer(alice)).Return(aliceOrder, nil)
	cf.orders.On("CreateOrder", mock.Anything, buyer(bob)).Return(bobOrder, nil)
	cf.payments.On("CreatePaymentIntent", mock.Anything, intentFor(aliceOrder.ID)).
		Return(&grouporder.PaymentIntent{ID: "pi_1", Status: grouporder.PaymentIntentPending}, nil)
	cf.payments.On("CreatePaymentIntent", mock.Anything, intentFor(bobOrder.ID)).
		Return(nil, errors.New("gateway timeout"))
	cf.payments.On("CancelPaymentIntent", mock.Anything, "pi_1").Return(nil)
	cf.orders.On("DiscardOrder", mock.Anything, bobOrder).Return(nil)
	cf.orders.On("DiscardOrder", mock.Anything, aliceOrder).Return(errors.New("connection reset"))

	_, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{PaymentMethodRef: "pm_card"})
	requireCode(t, err, "EXTERNAL_FAILURE")
	return groupID, hostID, aliceOrder
}

func TestCheckout_DiscardFailureKeepsGroupForRecovery(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, _, _ := cf.failedAttempt(t)

	stored := cf.repo.stored(groupID)
	assert.Equal(t, grouporder.GroupStatusCheckingOut, stored.Status)
	assert.NotNil(t, stored.CheckoutStartedAt)
	assert.Empty(t, cf.publisher.types())
}

func TestExpireGroup_RecoversAbandonedCheckout(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, hostID, aliceOrder := cf.failedAttempt(t)
	ctx := context.Background()

	changed, err := cf.svc.ExpireGroup(ctx, groupID)
	require.NoError(t, err)
	assert.False(t, changed, "a recent attempt is left alone")
	cf.orders.AssertNotCalled(t, "DiscardGroupOrders", mock.Anything, mock.Anything)

	cf.orders.On("DiscardGroupOrders", mock.Anything, groupID).
		Return([]grouporder.DiscardedOrder{{Ref: aliceOrder, PaymentIntentID: "pi_1"}}, nil).Once()
	cf.svc.SetClock(func() time.Time { return time.Now().Add(DefaultCheckoutTimeout + time.Second) })

	changed, err = cf.svc.ExpireGroup(ctx, groupID)
	require.NoError(t, err)
	assert.True(t, changed)
	cf.payments.AssertNumberOfCalls(t, "CancelPaymentIntent", 2)

	stored := cf.repo.stored(groupID)
	assert.Equal(t, grouporder.GroupStatusOpen, stored.Status)
	assert.Nil(t, stored.CheckoutStartedAt)
	require.Equal(t, []string{grouporder.EventTypeGroupUpdated}, cf.publisher.types())
	updated := cf.publisher.events[0].(*grouporder.GroupUpdatedEvent)
	assert.Equal(t, grouporder.ChangeCheckoutAborted, updated.Change)

	// the cart is usable again
	cf.addItem(t, groupID, hostID, 1000, 1)
}

func TestExpireGroup_RecoveryRetriesWhenDiscardFails(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, _, _ := cf.failedAttempt(t)

	cf.orders.On("DiscardGroupOrders", mock.Anything, groupID).Return(nil, errors.New("database is down")).Once()
	cf.svc.SetClock(func() time.Time { return time.Now().Add(time.Hour) })

	_, err := cf.svc.ExpireGroup(context.Background(), groupID)
	requireCode(t, err, "EXTERNAL_FAILURE")
	assert.Equal(t, grouporder.GroupStatusCheckingOut, cf.repo.stored(groupID).Status)
}

func TestCheckout_DuplicateRequest(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, hostID := cf.createGroup(t, CreateGroupRequest{})
	key := "checkout:" + groupID.String() + ":req-1"

	cf.idempotency.On("MarkProcessed", mock.Anything, key, mock.Anything).Return(false, nil)

	_, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{
		PaymentMethodRef: "pm_card",
		IdempotencyKey:   "req-1",
	})
	requireCode(t, err, "DUPLICATE_REQUEST")
	cf.payments.AssertNotCalled(t, "ValidateMethod", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_IdempotencyStoreDown(t *testing.T) {
	cf := newCheckoutFixture(t)
	groupID, hostID := cf.createGroup(t, CreateGroupRequest{})

	cf.idempotency.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

	_, err := cf.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{
		PaymentMethodRef: "pm_card",
		IdempotencyKey:   "req-1",
	})
	requireCode(t, err, "EXTERNAL_FAILURE")
}

func TestCheckout_NotConfigured(t *testing.T) {
	f := newServiceFixture(t, Dependencies{})
	groupID, hostID := f.createGroup(t, CreateGroupRequest{})

	_, err := f.svc.Checkout(context.Background(), groupID, hostID, CheckoutRequest{PaymentMethodRef: "pm_card"})
	requireCode(t, err, "EXTERNAL_FAILURE")
}
