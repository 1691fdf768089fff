// Package payment adapts payment providers to the checkout payment port.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/groupbuy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Provider names
const (
	ProviderAlipay    = "alipay"
	ProviderBraintree = "braintree"
	ProviderNone      = "none"
)

var (
	ErrUnsupportedMethod    = errors.New("payment: unsupported payment method")
	ErrUnknownMethod        = errors.New("payment: unknown payment method")
	ErrMethodNotOwned       = errors.New("payment: payment method belongs to another user")
	ErrPaymentDeclined      = errors.New("payment: declined")
	ErrGatewayUnavailable   = errors.New("payment: gateway unavailable")
	ErrGatewayRequestFailed = errors.New("payment: gateway request failed")
)

// NewGateway builds the configured provider, wrapped with tracing and logging
func NewGateway(cfg config.PaymentConfig, logger *zap.Logger) (grouporder.PaymentGateway, error) {
	var (
		gw  grouporder.PaymentGateway
		err error
	)
	switch cfg.Provider {
	case ProviderAlipay:
		var ac *AlipayConfig
		if ac, err = AlipayConfigFromSettings(cfg.Alipay); err == nil {
			gw, err = NewAlipayGateway(ac)
		}
	case ProviderBraintree:
		gw, err = NewBraintreeGateway(cfg.Braintree)
	case ProviderNone, "":
		gw = NewNoneGateway()
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewTracedGateway(cfg.Provider, gw, logger), nil
}

// NoneGateway accepts any method and marks every intent paid.
// Used in development and tests where no provider is reachable.
type NoneGateway struct{}

// NewNoneGateway creates a NoneGateway
func NewNoneGateway() *NoneGateway {
	return &NoneGateway{}
}

func (NoneGateway) ValidateMethod(_ context.Context, _ uuid.UUID, methodRef string) error {
	if methodRef == "" {
		return ErrUnknownMethod
	}
	return nil
}

func (NoneGateway) CreatePaymentIntent(_ context.Context, req grouporder.PaymentIntentRequest) (*grouporder.PaymentIntent, error) {
	return &grouporder.PaymentIntent{
		ID:     "none_" + req.OrderNumber,
		Status: grouporder.PaymentIntentSucceeded,
	}, nil
}

func (NoneGateway) CancelPaymentIntent(context.Context, string) error {
	return nil
}

// TracedGateway adds spans and logs around a provider
type TracedGateway struct {
	provider string
	next     grouporder.PaymentGateway
	logger   *zap.Logger
}

// NewTracedGateway wraps next
func NewTracedGateway(provider string, next grouporder.PaymentGateway, logger *zap.Logger) *TracedGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TracedGateway{provider: provider, next: next, logger: logger.Named("payment")}
}

func (t *TracedGateway) ValidateMethod(ctx context.Context, userID uuid.UUID, methodRef string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "validate_method",
		telemetry.WithAttribute(telemetry.SpanAttrGateway, t.provider))
	defer span.End()

	err := t.next.ValidateMethod(ctx, userID, methodRef)
	telemetry.RecordError(span, err)
	return err
}

func (t *TracedGateway) CreatePaymentIntent(ctx context.Context, req grouporder.PaymentIntentRequest) (*grouporder.PaymentIntent, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create_intent",
		telemetry.WithAttribute(telemetry.SpanAttrGateway, t.provider),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, req.Amount.String()),
	)
	defer span.End()

	intent, err := t.next.CreatePaymentIntent(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		t.logger.Warn("Payment intent failed",
			zap.String("provider", t.provider),
			zap.String("order_number", req.OrderNumber),
			zap.Error(err),
		)
		return nil, err
	}
	t.logger.Info("Payment intent created",
		zap.String("provider", t.provider),
		zap.String("order_number", req.OrderNumber),
		zap.String("intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
	)
	return intent, nil
}

func (t *TracedGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "cancel_intent",
		telemetry.WithAttribute(telemetry.SpanAttrGateway, t.provider))
	defer span.End()

	err := t.next.CancelPaymentIntent(ctx, intentID)
	telemetry.RecordError(span, err)
	return err
}

var (
	_ grouporder.PaymentGateway = (*NoneGateway)(nil)
	_ grouporder.PaymentGateway = (*TracedGateway)(nil)
)
