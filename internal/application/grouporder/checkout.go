package grouporder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"github.com/groupbuy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CheckoutOrchestrator turns a frozen cart into orders.
// Either every order and payment intent is created or the created intents
// are cancelled, the created orders discarded and the group goes back to open.
type CheckoutOrchestrator struct {
	repo      grouporder.GroupRepository
	addresses grouporder.AddressBook
	shipping  grouporder.ShippingCalculator
	payments  grouporder.PaymentGateway
	orders    grouporder.OrderWriter
	logger    *zap.Logger
}

// NewCheckoutOrchestrator creates a new CheckoutOrchestrator
func NewCheckoutOrchestrator(
	repo grouporder.GroupRepository,
	addresses grouporder.AddressBook,
	shipping grouporder.ShippingCalculator,
	payments grouporder.PaymentGateway,
	orders grouporder.OrderWriter,
	logger *zap.Logger,
) *CheckoutOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutOrchestrator{
		repo:      repo,
		addresses: addresses,
		shipping:  shipping,
		payments:  payments,
		orders:    orders,
		logger:    logger.Named("checkout"),
	}
}

type createdOrder struct {
	ref    grouporder.OrderRef
	intent *grouporder.PaymentIntent
}

// Run checks out g. The caller holds the group lock and publishes the events
// left on g when Run succeeds.
func (o *CheckoutOrchestrator) Run(ctx context.Context, g *grouporder.Group, userID uuid.UUID, req CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "group_order", "checkout",
		telemetry.WithAttribute("group_id", g.ID.String()),
		telemetry.WithAttribute("delivery_mode", g.DeliveryMode.String()),
	)
	defer span.End()

	plan, err := g.PrepareCheckout(userID, req.HostAddressID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := o.checkHostAddress(ctx, g, req.HostAddressID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := o.validateMethod(ctx, userID, req.PaymentMethodRef); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := g.BeginCheckout(); err != nil {
		return nil, err
	}
	if err := o.repo.Save(ctx, g); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	created := make([]createdOrder, 0, len(plan.Drafts))
	for _, draft := range plan.Drafts {
		co, err := o.materialize(ctx, plan, draft, req.PaymentMethodRef)
		if co != nil {
			created = append(created, *co)
		}
		if err != nil {
			telemetry.RecordError(span, err)
			o.rollback(ctx, g, created, err)
			return nil, err
		}
	}

	result := &CheckoutResponse{
		OrderIDs:     make([]uuid.UUID, 0, len(created)),
		OrderNumbers: make([]string, 0, len(created)),
		OrderCount:   len(created),
	}
	for _, co := range created {
		result.OrderIDs = append(result.OrderIDs, co.ref.ID)
		result.OrderNumbers = append(result.OrderNumbers, co.ref.Number)
		if co.intent != nil && co.intent.RedirectURL != "" {
			result.RedirectURLs = append(result.RedirectURLs, co.intent.RedirectURL)
		}
	}
	if len(result.RedirectURLs) > 0 {
		result.RedirectURL = result.RedirectURLs[0]
	}

	if err := g.CompleteCheckout(plan, result.OrderIDs); err != nil {
		o.rollback(ctx, g, created, err)
		return nil, err
	}
	if err := o.repo.Save(ctx, g); err != nil {
		telemetry.RecordError(span, err)
		if o.rollback(ctx, nil, created, err) {
			o.reopen(ctx, g.ID)
		}
		return nil, err
	}

	telemetry.SetAttributes(span, "orders", result.OrderCount, "redirects", len(result.RedirectURLs))
	telemetry.SetOK(span)
	return result, nil
}

// materialize creates one order and its payment intent. When the order was
// created but the intent failed, the order is still returned so it can be
// compensated.
func (o *CheckoutOrchestrator) materialize(ctx context.Context, plan *grouporder.CheckoutPlan, draft grouporder.OrderDraft, methodRef string) (*createdOrder, error) {
	fee, err := o.shipping.CalculateFee(ctx, grouporder.ShippingQuoteRequest{
		StoreID:     plan.StoreID,
		AddressID:   draft.AddressID,
		WeightGrams: draft.WeightGrams,
		Items:       draft.Items,
		Subtotal:    draft.Totals.TotalAfter,
	})
	if err != nil {
		return nil, grouporder.NewExternalFailure("shipping", err)
	}

	params := grouporder.OrderParams{
		GroupID:          plan.GroupID,
		StoreID:          plan.StoreID,
		BuyerUserID:      draft.BuyerUserID,
		MemberID:         draft.MemberID,
		AddressID:        draft.AddressID,
		DeliveryMode:     plan.DeliveryMode,
		DiscountPercent:  plan.DiscountPercent,
		Items:            draft.Items,
		Totals:           draft.Totals,
		ShippingFee:      fee,
		PaymentMethodRef: methodRef,
	}
	ref, err := o.orders.CreateOrder(ctx, params)
	if err != nil {
		return nil, grouporder.NewExternalFailure("order_writer", err)
	}
	co := &createdOrder{ref: ref}

	intent, err := o.payments.CreatePaymentIntent(ctx, grouporder.PaymentIntentRequest{
		OrderID:     ref.ID,
		OrderNumber: ref.Number,
		PayerUserID: plan.HostUserID,
		MethodRef:   methodRef,
		Amount:      params.GrandTotal(),
		Description: fmt.Sprintf("Group order %s", ref.Number),
	})
	if err != nil {
		return co, grouporder.NewExternalFailure("payment", err)
	}
	co.intent = intent
	if intent != nil && intent.ID != "" {
		if err := o.orders.AttachPaymentIntent(ctx, ref, intent.ID); err != nil {
			return co, grouporder.NewExternalFailure("order_writer", err)
		}
	}
	return co, nil
}

// rollback cancels payment intents and discards orders, newest first, then
// returns g to open when given. An order that could not be discarded keeps g
// in checking_out; the expiry sweep finishes the cleanup through Recover.
// It reports whether every order was discarded.
func (o *CheckoutOrchestrator) rollback(ctx context.Context, g *grouporder.Group, created []createdOrder, cause error) bool {
	ctx = context.WithoutCancel(ctx)
	o.logger.Warn("checkout failed, compensating",
		zap.Int("orders", len(created)),
		zap.Error(cause),
	)

	for i := len(created) - 1; i >= 0; i-- {
		if created[i].intent != nil && created[i].intent.ID != "" {
			o.cancelIntent(ctx, created[i].intent.ID)
		}
	}
	discarded := true
	for i := len(created) - 1; i >= 0; i-- {
		if err := o.orders.DiscardOrder(ctx, created[i].ref); err != nil {
			discarded = false
			o.logger.Error("failed to discard order, group stays checking_out until recovered",
				zap.String("order_id", created[i].ref.ID.String()),
				zap.Error(err),
			)
		}
	}

	if g == nil || !discarded {
		return discarded
	}
	g.AbortCheckout()
	if err := o.repo.Save(ctx, g); err != nil {
		o.logger.Error("failed to reopen group after checkout failure",
			zap.String("group_id", g.ID.String()),
			zap.Error(err),
		)
	}
	return true
}

// Recover cleans up after a checkout that never finished: every order
// written for g is discarded, their payment intents cancelled and g reopened.
// The caller holds the group lock and commits g.
func (o *CheckoutOrchestrator) Recover(ctx context.Context, g *grouporder.Group) error {
	discarded, err := o.orders.DiscardGroupOrders(ctx, g.ID)
	if err != nil {
		return grouporder.NewExternalFailure("order_writer", err)
	}
	for i := len(discarded) - 1; i >= 0; i-- {
		if discarded[i].PaymentIntentID != "" {
			o.cancelIntent(ctx, discarded[i].PaymentIntentID)
		}
	}
	g.RecoverCheckout()
	o.logger.Warn("abandoned checkout recovered",
		zap.String("group_id", g.ID.String()),
		zap.Int("orders_discarded", len(discarded)),
	)
	return nil
}

func (o *CheckoutOrchestrator) cancelIntent(ctx context.Context, intentID string) {
	if err := o.payments.CancelPaymentIntent(ctx, intentID); err != nil {
		o.logger.Error("failed to cancel payment intent",
			zap.String("intent_id", intentID),
			zap.Error(err),
		)
	}
}

// reopen reloads the group and moves it out of checking_out
func (o *CheckoutOrchestrator) reopen(ctx context.Context, groupID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	g, err := o.repo.FindByID(ctx, groupID)
	if err != nil {
		o.logger.Error("failed to reload group after checkout failure", zap.String("group_id", groupID.String()), zap.Error(err))
		return
	}
	g.AbortCheckout()
	if err := o.repo.Save(ctx, g); err != nil {
		o.logger.Error("failed to reopen group after checkout failure", zap.String("group_id", groupID.String()), zap.Error(err))
	}
}

func (o *CheckoutOrchestrator) checkHostAddress(ctx context.Context, g *grouporder.Group, hostAddressID *uuid.UUID) error {
	if g.DeliveryMode != grouporder.DeliveryModeHostAddress || hostAddressID == nil || o.addresses == nil {
		return nil
	}
	if _, err := o.addresses.GetAddress(ctx, *hostAddressID, g.HostUserID); err != nil {
		if errors.Is(err, grouporder.ErrAddressNotFound) {
			host := g.HostMember()
			return grouporder.NewAddressMissingError(host).WithDetail("address_id", hostAddressID.String())
		}
		return grouporder.NewExternalFailure("address_book", err)
	}
	return nil
}

func (o *CheckoutOrchestrator) validateMethod(ctx context.Context, userID uuid.UUID, methodRef string) error {
	if methodRef == "" {
		return grouporder.NewCheckoutBlockedError(grouporder.ReasonPaymentMethodInvalid, "a payment method is required")
	}
	if err := o.payments.ValidateMethod(ctx, userID, methodRef); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) && de.Kind == shared.KindExternalFailure {
			return err
		}
		return grouporder.NewCheckoutBlockedError(grouporder.ReasonPaymentMethodInvalid,
			fmt.Sprintf("payment method %q cannot be used: %v", methodRef, err)).
			WithDetail("payment_method_ref", methodRef)
	}
	return nil
}
