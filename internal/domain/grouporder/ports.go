package grouporder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserInfo is the identity view used for display names
type UserInfo struct {
	ID          uuid.UUID
	DisplayName string
}

// UserDirectory resolves user display names. Callers treat errors as non-fatal.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*UserInfo, error)
}

// Address is a delivery address owned by a user
type Address struct {
	ID            uuid.UUID
	OwnerUserID   uuid.UUID
	RecipientName string
	Phone         string
	Line1         string
	Line2         string
	City          string
	Region        string
	PostalCode    string
	Country       string
}

// AddressBook looks up addresses. GetAddress returns ErrAddressNotFound when
// the address does not exist or belongs to someone else.
type AddressBook interface {
	GetAddress(ctx context.Context, addressID, ownerUserID uuid.UUID) (*Address, error)
}

// PriceQuote is the current catalog price of a product or variant
type PriceQuote struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	StoreID     uuid.UUID
	Price       decimal.Decimal
	WeightGrams int
}

// Catalog is consulted once when an item is added and never afterwards
type Catalog interface {
	GetCurrentPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*PriceQuote, error)
}

// ShippingQuoteRequest describes one order to be shipped
type ShippingQuoteRequest struct {
	StoreID     uuid.UUID
	AddressID   uuid.UUID
	WeightGrams int
	Items       []Item
	Subtotal    decimal.Decimal
}

// ShippingCalculator computes the shipping fee of one order
type ShippingCalculator interface {
	CalculateFee(ctx context.Context, req ShippingQuoteRequest) (decimal.Decimal, error)
}

// PaymentIntentStatus is the provider state of a payment intent
type PaymentIntentStatus string

const (
	PaymentIntentPending        PaymentIntentStatus = "pending"
	PaymentIntentRequiresAction PaymentIntentStatus = "requires_action"
	PaymentIntentSucceeded      PaymentIntentStatus = "succeeded"
)

// PaymentIntentRequest asks the payment provider to charge one order
type PaymentIntentRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	PayerUserID uuid.UUID
	MethodRef   string
	Amount      decimal.Decimal
	Description string
}

// PaymentIntent is the provider's answer. RedirectURL is set when the payer
// must finish the payment on the provider's page.
type PaymentIntent struct {
	ID          string
	Status      PaymentIntentStatus
	RedirectURL string
}

// PaymentGateway creates and cancels payment intents
type PaymentGateway interface {
	ValidateMethod(ctx context.Context, userID uuid.UUID, methodRef string) error
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
}

// OrderParams is everything the order domain needs to persist one order
type OrderParams struct {
	GroupID          uuid.UUID
	StoreID          uuid.UUID
	BuyerUserID      uuid.UUID
	MemberID         uuid.UUID
	AddressID        uuid.UUID
	DeliveryMode     DeliveryMode
	DiscountPercent  int32
	Items            []Item
	Totals           Totals
	ShippingFee      decimal.Decimal
	PaymentMethodRef string
}

// GrandTotal returns the amount to charge: items after discount plus shipping
func (p OrderParams) GrandTotal() decimal.Decimal {
	return p.Totals.TotalAfter.Add(p.ShippingFee)
}

// OrderRef identifies a created order
type OrderRef struct {
	ID     uuid.UUID
	Number string
}

// OrderWriter is the only write path into the order domain.
// Orders written during a checkout only count once the group is closed; a
// failed or abandoned attempt discards them, lines included, so no trace of
// it stays behind. Discarding an order that is already gone is not an error.
type OrderWriter interface {
	CreateOrder(ctx context.Context, params OrderParams) (OrderRef, error)
	AttachPaymentIntent(ctx context.Context, ref OrderRef, intentID string) error
	DiscardOrder(ctx context.Context, ref OrderRef) error
	// DiscardGroupOrders removes every order written for the group and
	// returns them with their payment intents so those can be cancelled
	DiscardGroupOrders(ctx context.Context, groupID uuid.UUID) ([]DiscardedOrder, error)
}

// DiscardedOrder is an order removed by DiscardGroupOrders
type DiscardedOrder struct {
	Ref             OrderRef
	PaymentIntentID string
}

// RealtimeMessage is one event on a group's channel.
// Payload is the JSON encoded snapshot or delta.
type RealtimeMessage struct {
	GroupID    uuid.UUID       `json:"group_id"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
	Origin     string          `json:"origin,omitempty"`
}

// Broadcaster fans a message out to every subscriber of the group's channel
type Broadcaster interface {
	Publish(ctx context.Context, msg RealtimeMessage) error
}

// SubscriptionHub is a Broadcaster that also manages subscriptions.
// Subscribe enqueues initial before any later message of the group.
type SubscriptionHub interface {
	Broadcaster
	Subscribe(groupID uuid.UUID, subscriberID string, initial RealtimeMessage) (<-chan RealtimeMessage, error)
	Unsubscribe(groupID uuid.UUID, subscriberID string)
	SubscriberCount(groupID uuid.UUID) int
}

// NewRealtimeMessage encodes payload as the body of a channel message
func NewRealtimeMessage(groupID uuid.UUID, event string, payload any, at time.Time) (RealtimeMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return RealtimeMessage{}, err
	}
	return RealtimeMessage{
		GroupID:    groupID,
		Event:      event,
		Payload:    body,
		OccurredAt: at,
	}, nil
}

// StateMessage builds the group-state message carrying the full snapshot
func StateMessage(g *Group) (RealtimeMessage, error) {
	return NewRealtimeMessage(g.ID, EventTypeGroupState, g.Snapshot(), time.Now())
}
