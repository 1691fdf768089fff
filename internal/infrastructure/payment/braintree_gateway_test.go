package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/braintree-go/braintree-go"
	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpStatusError int

func (e httpStatusError) Error() string   { return http.StatusText(int(e)) }
func (e httpStatusError) StatusCode() int { return int(e) }

type fakeBraintree struct {
	owners  map[string]string
	findErr error
	saleTx  *braintree.Transaction
	saleErr error
	voided  []string

	lastAmount *braintree.Decimal
	lastOrder  string
}

func (f *fakeBraintree) FindPaymentMethod(_ context.Context, token string) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	owner, ok := f.owners[token]
	if !ok {
		return "", httpStatusError(http.StatusNotFound)
	}
	return owner, nil
}

func (f *fakeBraintree) Sale(_ context.Context, _, orderID string, amount *braintree.Decimal) (*braintree.Transaction, error) {
	f.lastAmount = amount
	f.lastOrder = orderID
	return f.saleTx, f.saleErr
}

func (f *fakeBraintree) Void(_ context.Context, id string) error {
	f.voided = append(f.voided, id)
	return nil
}

func TestNewBraintreeGateway_RequiresCredentials(t *testing.T) {
	_, err := NewBraintreeGateway(config.BraintreeSettings{Environment: "sandbox"})
	assert.Error(t, err)

	gw, err := NewBraintreeGateway(config.BraintreeSettings{
		Environment: "sandbox", MerchantID: "m", PublicKey: "pub", PrivateKey: "priv",
	})
	require.NoError(t, err)
	assert.NotNil(t, gw.api)
}

func TestBraintreeGateway_ValidateMethod(t *testing.T) {
	owner := uuid.New()
	fake := &fakeBraintree{owners: map[string]string{"tok_owner": owner.String()}}
	gw := &BraintreeGateway{api: fake}
	ctx := context.Background()

	assert.NoError(t, gw.ValidateMethod(ctx, owner, "tok_owner"))
	assert.ErrorIs(t, gw.ValidateMethod(ctx, uuid.New(), "tok_owner"), ErrMethodNotOwned)
	assert.ErrorIs(t, gw.ValidateMethod(ctx, owner, "tok_missing"), ErrUnknownMethod)

	fake.findErr = errors.New("connection reset")
	err := gw.ValidateMethod(ctx, owner, "tok_owner")
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, shared.KindExternalFailure, de.Kind)
}

func TestBraintreeGateway_CreatePaymentIntent(t *testing.T) {
	fake := &fakeBraintree{saleTx: &braintree.Transaction{Id: "tx_1", Status: braintree.TransactionStatusSubmittedForSettlement}}
	gw := &BraintreeGateway{api: fake}

	intent, err := gw.CreatePaymentIntent(context.Background(), grouporder.PaymentIntentRequest{
		OrderNumber: "GO-1",
		MethodRef:   "tok",
		Amount:      decimal.NewFromInt(123456),
	})
	require.NoError(t, err)
	assert.Equal(t, "tx_1", intent.ID)
	assert.Equal(t, grouporder.PaymentIntentSucceeded, intent.Status)
	assert.Empty(t, intent.RedirectURL)
	assert.Equal(t, "GO-1", fake.lastOrder)
	assert.Equal(t, int64(12345600), fake.lastAmount.Unscaled)
	assert.Equal(t, 2, fake.lastAmount.Scale)
}

func TestBraintreeGateway_CreatePaymentIntent_Declined(t *testing.T) {
	fake := &fakeBraintree{saleTx: &braintree.Transaction{
		Id:                    "tx_2",
		Status:                braintree.TransactionStatusProcessorDeclined,
		ProcessorResponseText: "Insufficient Funds",
	}}
	gw := &BraintreeGateway{api: fake}

	_, err := gw.CreatePaymentIntent(context.Background(), grouporder.PaymentIntentRequest{OrderNumber: "GO-2", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	fake.saleTx, fake.saleErr = nil, errors.New("timeout")
	_, err = gw.CreatePaymentIntent(context.Background(), grouporder.PaymentIntentRequest{OrderNumber: "GO-3", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrGatewayRequestFailed)
}

func TestBraintreeGateway_CancelPaymentIntent(t *testing.T) {
	fake := &fakeBraintree{}
	gw := &BraintreeGateway{api: fake}

	require.NoError(t, gw.CancelPaymentIntent(context.Background(), "tx_9"))
	assert.Equal(t, []string{"tx_9"}, fake.voided)
}
