package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/braintree-go/braintree-go"
	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

// braintreeAPI is the subset of the Braintree SDK the gateway uses
type braintreeAPI interface {
	FindPaymentMethod(ctx context.Context, token string) (customerID string, err error)
	Sale(ctx context.Context, token, orderID string, amount *braintree.Decimal) (*braintree.Transaction, error)
	Void(ctx context.Context, transactionID string) error
}

type braintreeSDK struct {
	bt *braintree.Braintree
}

func (s *braintreeSDK) FindPaymentMethod(ctx context.Context, token string) (string, error) {
	pm, err := s.bt.PaymentMethod().Find(ctx, token)
	if err != nil {
		return "", err
	}
	return pm.GetCustomerId(), nil
}

func (s *braintreeSDK) Sale(ctx context.Context, token, orderID string, amount *braintree.Decimal) (*braintree.Transaction, error) {
	return s.bt.Transaction().Create(ctx, &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             amount,
		PaymentMethodToken: token,
		OrderId:            orderID,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	})
}

func (s *braintreeSDK) Void(ctx context.Context, transactionID string) error {
	_, err := s.bt.Transaction().Void(ctx, transactionID)
	return err
}

// BraintreeGateway charges a vaulted payment method token. Vault customers
// are keyed by user id, so a token is usable only by the user who vaulted it.
type BraintreeGateway struct {
	api braintreeAPI
}

// NewBraintreeGateway initializes the Braintree SDK gateway
func NewBraintreeGateway(s config.BraintreeSettings) (*BraintreeGateway, error) {
	if s.MerchantID == "" || s.PublicKey == "" || s.PrivateKey == "" {
		return nil, errors.New("braintree: merchant id, public key and private key are required")
	}
	env := braintree.Sandbox
	if s.Environment == "production" {
		env = braintree.Production
	}
	return &BraintreeGateway{
		api: &braintreeSDK{bt: braintree.New(env, s.MerchantID, s.PublicKey, s.PrivateKey)},
	}, nil
}

type statusCoder interface {
	StatusCode() int
}

// ValidateMethod checks that the token exists and belongs to userID
func (g *BraintreeGateway) ValidateMethod(ctx context.Context, userID uuid.UUID, methodRef string) error {
	customerID, err := g.api.FindPaymentMethod(ctx, methodRef)
	if err != nil {
		var sc statusCoder
		if errors.As(err, &sc) && sc.StatusCode() == http.StatusNotFound {
			return fmt.Errorf("%w: %q", ErrUnknownMethod, methodRef)
		}
		return grouporder.NewExternalFailure("payment", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
	}
	if customerID != userID.String() {
		return ErrMethodNotOwned
	}
	return nil
}

// CreatePaymentIntent runs a sale submitted for settlement
func (g *BraintreeGateway) CreatePaymentIntent(ctx context.Context, req grouporder.PaymentIntentRequest) (*grouporder.PaymentIntent, error) {
	tx, err := g.api.Sale(ctx, req.MethodRef, req.OrderNumber, toBraintreeDecimal(req.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	switch tx.Status {
	case braintree.TransactionStatusProcessorDeclined, braintree.TransactionStatusGatewayRejected:
		return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, tx.ProcessorResponseText)
	}
	return &grouporder.PaymentIntent{
		ID:     tx.Id,
		Status: grouporder.PaymentIntentSucceeded,
	}, nil
}

// CancelPaymentIntent voids the sale before it settles
func (g *BraintreeGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if err := g.api.Void(ctx, intentID); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	return nil
}

// toBraintreeDecimal converts to Braintree's unscaled/scale form with two places
func toBraintreeDecimal(amount decimal.Decimal) *braintree.Decimal {
	return braintree.NewDecimal(amount.Shift(2).Round(0).IntPart(), 2)
}

var _ grouporder.PaymentGateway = (*BraintreeGateway)(nil)
