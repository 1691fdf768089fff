package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/shopspring/decimal"
)

// OrderStatusPendingPayment is the status of every order a checkout writes
const OrderStatusPendingPayment = "pending_payment"

// OrderModel is an order produced by a group checkout
type OrderModel struct {
	BaseModel
	OrderNumber      string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	GroupID          uuid.UUID               `gorm:"type:uuid;not null;index"`
	StoreID          uuid.UUID               `gorm:"type:uuid;not null"`
	BuyerUserID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	MemberID         uuid.UUID               `gorm:"type:uuid;not null"`
	AddressID        uuid.UUID               `gorm:"type:uuid;not null"`
	DeliveryMode     grouporder.DeliveryMode `gorm:"type:varchar(20);not null"`
	DiscountPercent  int32                   `gorm:"not null;default:0"`
	SubtotalBefore   decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	DiscountAmount   decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	ItemsTotal       decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	ShippingFee      decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	GrandTotal       decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	PaymentMethodRef string                  `gorm:"type:varchar(200)"`
	PaymentIntentID  string                  `gorm:"type:varchar(200)"`
	Status           string                  `gorm:"type:varchar(20);not null"`
	Items            []OrderItemModel        `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderModelFromParams builds an order and its lines from checkout parameters
func OrderModelFromParams(id uuid.UUID, number string, p grouporder.OrderParams, now time.Time) *OrderModel {
	m := &OrderModel{
		BaseModel:        BaseModel{ID: id, CreatedAt: now, UpdatedAt: now},
		OrderNumber:      number,
		GroupID:          p.GroupID,
		StoreID:          p.StoreID,
		BuyerUserID:      p.BuyerUserID,
		MemberID:         p.MemberID,
		AddressID:        p.AddressID,
		DeliveryMode:     p.DeliveryMode,
		DiscountPercent:  p.DiscountPercent,
		SubtotalBefore:   p.Totals.SubtotalBefore,
		DiscountAmount:   p.Totals.DiscountAmount,
		ItemsTotal:       p.Totals.TotalAfter,
		ShippingFee:      p.ShippingFee,
		GrandTotal:       p.GrandTotal(),
		PaymentMethodRef: p.PaymentMethodRef,
		Status:           OrderStatusPendingPayment,
		Items:            make([]OrderItemModel, len(p.Items)),
	}
	for i, it := range p.Items {
		m.Items[i] = OrderItemModel{
			ID:          uuid.New(),
			OrderID:     id,
			GroupItemID: it.ID,
			MemberID:    it.MemberID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal(),
			Note:        it.Note,
			CreatedAt:   now,
		}
	}
	return m
}

// OrderItemModel is one line of an order, copied from a group item
type OrderItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	GroupItemID uuid.UUID       `gorm:"type:uuid;not null"`
	MemberID    uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	VariantID   *uuid.UUID      `gorm:"type:uuid"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Note        string          `gorm:"type:varchar(500)"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}
