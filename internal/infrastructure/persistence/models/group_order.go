package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/shopspring/decimal"
)

// GroupOrderModel is the persistence model for the Group aggregate root.
// Rows are never removed; deleted groups keep status deleted.
type GroupOrderModel struct {
	AggregateModel
	StoreID           uuid.UUID                 `gorm:"type:uuid;not null;index"`
	HostUserID        uuid.UUID                 `gorm:"type:uuid;not null;index"`
	HostMemberID      uuid.UUID                 `gorm:"type:uuid;not null"`
	Name              string                    `gorm:"type:varchar(200);not null"`
	Status            grouporder.GroupStatus    `gorm:"type:varchar(20);not null;default:'open';index:idx_group_orders_status_expires,priority:1"`
	DeliveryMode      grouporder.DeliveryMode   `gorm:"type:varchar(20);not null"`
	DiscountPercent   int32                     `gorm:"not null;default:0"`
	DiscountPolicy    grouporder.DiscountPolicy `gorm:"type:text;not null;serializer:json"`
	ExpiresAt         *time.Time                `gorm:"index:idx_group_orders_status_expires,priority:2"`
	MaxMembers        int                       `gorm:"not null;default:0"`
	CheckoutStartedAt *time.Time
	Members           []GroupOrderMemberModel `gorm:"foreignKey:GroupID;references:ID"`
	Items             []GroupOrderItemModel   `gorm:"foreignKey:GroupID;references:ID"`
}

// TableName returns the table name for GORM
func (GroupOrderModel) TableName() string {
	return "group_orders"
}

// ToDomain converts the persistence model to a domain Group
func (m *GroupOrderModel) ToDomain() *grouporder.Group {
	g := &grouporder.Group{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		StoreID:           m.StoreID,
		HostUserID:        m.HostUserID,
		HostMemberID:      m.HostMemberID,
		Name:              m.Name,
		Status:            m.Status,
		DeliveryMode:      m.DeliveryMode,
		DiscountPercent:   m.DiscountPercent,
		DiscountPolicy:    m.DiscountPolicy,
		ExpiresAt:         m.ExpiresAt,
		MaxMembers:        m.MaxMembers,
		CheckoutStartedAt: m.CheckoutStartedAt,
		Members:           make([]grouporder.Member, len(m.Members)),
		Items:             make([]grouporder.Item, len(m.Items)),
	}
	for i := range m.Members {
		g.Members[i] = m.Members[i].ToDomain()
	}
	for i := range m.Items {
		g.Items[i] = m.Items[i].ToDomain()
	}
	return g
}

// FromDomain populates the group columns. Children are mapped separately
// so repositories can upsert them on their own.
func (m *GroupOrderModel) FromDomain(g *grouporder.Group) {
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	m.StoreID = g.StoreID
	m.HostUserID = g.HostUserID
	m.HostMemberID = g.HostMemberID
	m.Name = g.Name
	m.Status = g.Status
	m.DeliveryMode = g.DeliveryMode
	m.DiscountPercent = g.DiscountPercent
	m.DiscountPolicy = g.DiscountPolicy
	m.ExpiresAt = g.ExpiresAt
	m.MaxMembers = g.MaxMembers
	m.CheckoutStartedAt = g.CheckoutStartedAt
}

// GroupOrderModelFromDomain creates a persistence model without children
func GroupOrderModelFromDomain(g *grouporder.Group) *GroupOrderModel {
	m := &GroupOrderModel{}
	m.FromDomain(g)
	return m
}

// GroupOrderMemberModel is the persistence model for a group membership.
// A user who leaves and joins again gets a new row.
type GroupOrderMemberModel struct {
	ID          uuid.UUID               `gorm:"type:uuid;primary_key"`
	GroupID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	DisplayName string                  `gorm:"type:varchar(200);not null"`
	IsHost      bool                    `gorm:"not null;default:false"`
	Status      grouporder.MemberStatus `gorm:"type:varchar(20);not null"`
	AddressID   *uuid.UUID              `gorm:"type:uuid"`
	JoinedAt    time.Time               `gorm:"not null"`
	LeftAt      *time.Time
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (GroupOrderMemberModel) TableName() string {
	return "group_order_members"
}

// ToDomain converts the persistence model to a domain Member
func (m *GroupOrderMemberModel) ToDomain() grouporder.Member {
	return grouporder.Member{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		IsHost:      m.IsHost,
		Status:      m.Status,
		AddressID:   m.AddressID,
		JoinedAt:    m.JoinedAt,
		LeftAt:      m.LeftAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// GroupOrderMemberModelFromDomain maps a domain Member
func GroupOrderMemberModelFromDomain(mem grouporder.Member) GroupOrderMemberModel {
	return GroupOrderMemberModel{
		ID:          mem.ID,
		GroupID:     mem.GroupID,
		UserID:      mem.UserID,
		DisplayName: mem.DisplayName,
		IsHost:      mem.IsHost,
		Status:      mem.Status,
		AddressID:   mem.AddressID,
		JoinedAt:    mem.JoinedAt,
		LeftAt:      mem.LeftAt,
		UpdatedAt:   mem.UpdatedAt,
	}
}

// GroupOrderItemModel is the persistence model for a line in the shared cart
type GroupOrderItemModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	GroupID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	MemberID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null"`
	VariantID  *uuid.UUID      `gorm:"type:uuid"`
	Quantity   int             `gorm:"not null"`
	ListPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitWeight int             `gorm:"not null;default:0"`
	Note       string          `gorm:"type:varchar(500)"`
	Position   int             `gorm:"not null;default:0"`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (GroupOrderItemModel) TableName() string {
	return "group_order_items"
}

// ToDomain converts the persistence model to a domain Item
func (m *GroupOrderItemModel) ToDomain() grouporder.Item {
	return grouporder.Item{
		ID:         m.ID,
		GroupID:    m.GroupID,
		MemberID:   m.MemberID,
		ProductID:  m.ProductID,
		VariantID:  m.VariantID,
		Quantity:   m.Quantity,
		ListPrice:  m.ListPrice,
		UnitPrice:  m.UnitPrice,
		UnitWeight: m.UnitWeight,
		Note:       m.Note,
		Position:   m.Position,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// GroupOrderItemModelFromDomain maps a domain Item
func GroupOrderItemModelFromDomain(it grouporder.Item) GroupOrderItemModel {
	return GroupOrderItemModel{
		ID:         it.ID,
		GroupID:    it.GroupID,
		MemberID:   it.MemberID,
		ProductID:  it.ProductID,
		VariantID:  it.VariantID,
		Quantity:   it.Quantity,
		ListPrice:  it.ListPrice,
		UnitPrice:  it.UnitPrice,
		UnitWeight: it.UnitWeight,
		Note:       it.Note,
		Position:   it.Position,
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}
