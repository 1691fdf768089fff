package models

import (
	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/shopspring/decimal"
)

// UserModel is the read model of the identity service's users
type UserModel struct {
	BaseModel
	DisplayName string `gorm:"type:varchar(200);not null"`
	Email       string `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a grouporder UserInfo
func (m *UserModel) ToDomain() *grouporder.UserInfo {
	return &grouporder.UserInfo{ID: m.ID, DisplayName: m.DisplayName}
}

// AddressModel is a delivery address owned by a user
type AddressModel struct {
	BaseModel
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	RecipientName string    `gorm:"type:varchar(200);not null"`
	Phone         string    `gorm:"type:varchar(50)"`
	Line1         string    `gorm:"type:varchar(300);not null"`
	Line2         string    `gorm:"type:varchar(300)"`
	City          string    `gorm:"type:varchar(100);not null"`
	Region        string    `gorm:"type:varchar(100)"`
	PostalCode    string    `gorm:"type:varchar(20)"`
	Country       string    `gorm:"type:varchar(2);not null"`
}

// TableName returns the table name for GORM
func (AddressModel) TableName() string {
	return "addresses"
}

// ToDomain converts the persistence model to a grouporder Address
func (m *AddressModel) ToDomain() *grouporder.Address {
	return &grouporder.Address{
		ID:            m.ID,
		OwnerUserID:   m.UserID,
		RecipientName: m.RecipientName,
		Phone:         m.Phone,
		Line1:         m.Line1,
		Line2:         m.Line2,
		City:          m.City,
		Region:        m.Region,
		PostalCode:    m.PostalCode,
		Country:       m.Country,
	}
}

// ProductModel is the read model of a catalog product
type ProductModel struct {
	BaseModel
	StoreID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WeightGrams int             `gorm:"not null;default:0"`
	Active      bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ProductVariantModel overrides price and weight for one variant of a product
type ProductVariantModel struct {
	BaseModel
	ProductID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	Name        string           `gorm:"type:varchar(200);not null"`
	Price       *decimal.Decimal `gorm:"type:decimal(18,4)"`
	WeightGrams *int
	Active      bool `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}
