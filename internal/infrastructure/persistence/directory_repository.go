package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned by the user directory for unknown users
var ErrUserNotFound = errors.New("user not found")

// GormUserDirectory implements grouporder.UserDirectory over the users table
type GormUserDirectory struct {
	db *gorm.DB
}

// NewGormUserDirectory creates a new GormUserDirectory
func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

// GetUser returns the display identity of a user
func (r *GormUserDirectory) GetUser(ctx context.Context, id uuid.UUID) (*grouporder.UserInfo, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormAddressBook implements grouporder.AddressBook over the addresses table
type GormAddressBook struct {
	db *gorm.DB
}

// NewGormAddressBook creates a new GormAddressBook
func NewGormAddressBook(db *gorm.DB) *GormAddressBook {
	return &GormAddressBook{db: db}
}

// GetAddress returns the address when it belongs to ownerUserID
func (r *GormAddressBook) GetAddress(ctx context.Context, addressID, ownerUserID uuid.UUID) (*grouporder.Address, error) {
	var model models.AddressModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, ownerUserID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouporder.ErrAddressNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormCatalog implements grouporder.Catalog over the products tables
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog creates a new GormCatalog
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// GetCurrentPrice returns the live price of a product, or of its variant when given
func (c *GormCatalog) GetCurrentPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*grouporder.PriceQuote, error) {
	var product models.ProductModel
	if err := c.db.WithContext(ctx).
		Where("id = ? AND active = ?", productID, true).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouporder.ErrProductNotFound
		}
		return nil, err
	}

	quote := &grouporder.PriceQuote{
		ProductID:   product.ID,
		StoreID:     product.StoreID,
		Price:       product.Price,
		WeightGrams: product.WeightGrams,
	}
	if variantID == nil {
		return quote, nil
	}

	var variant models.ProductVariantModel
	if err := c.db.WithContext(ctx).
		Where("id = ? AND product_id = ? AND active = ?", *variantID, productID, true).
		First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouporder.ErrProductNotFound.WithDetail("variant_id", variantID.String())
		}
		return nil, err
	}
	quote.VariantID = &variant.ID
	if variant.Price != nil {
		quote.Price = *variant.Price
	}
	if variant.WeightGrams != nil {
		quote.WeightGrams = *variant.WeightGrams
	}
	return quote, nil
}
