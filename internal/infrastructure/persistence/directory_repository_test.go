package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func baseModel() models.BaseModel {
	now := time.Now()
	return models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

func seedAddress(t *testing.T, db *gorm.DB, owner uuid.UUID) models.AddressModel {
	t.Helper()
	addr := models.AddressModel{
		BaseModel:     baseModel(),
		UserID:        owner,
		RecipientName: gofakeit.Name(),
		Phone:         gofakeit.Phone(),
		Line1:         gofakeit.Street(),
		City:          gofakeit.City(),
		PostalCode:    gofakeit.Zip(),
		Country:       "US",
	}
	require.NoError(t, db.Create(&addr).Error)
	return addr
}

func TestUserDirectory_GetUser(t *testing.T) {
	db := newTestDB(t)
	dir := NewGormUserDirectory(db)
	ctx := context.Background()

	user := models.UserModel{BaseModel: baseModel(), DisplayName: gofakeit.Name(), Email: gofakeit.Email()}
	require.NoError(t, db.Create(&user).Error)

	info, err := dir.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.DisplayName, info.DisplayName)

	_, err = dir.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAddressBook_GetAddress(t *testing.T) {
	db := newTestDB(t)
	book := NewGormAddressBook(db)
	ctx := context.Background()

	owner := uuid.New()
	addr := seedAddress(t, db, owner)

	got, err := book.GetAddress(ctx, addr.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, owner, got.OwnerUserID)
	assert.Equal(t, addr.City, got.City)

	_, err = book.GetAddress(ctx, addr.ID, uuid.New())
	assert.ErrorIs(t, err, grouporder.ErrAddressNotFound)

	_, err = book.GetAddress(ctx, uuid.New(), owner)
	assert.ErrorIs(t, err, grouporder.ErrAddressNotFound)
}

func TestCatalog_GetCurrentPrice(t *testing.T) {
	db := newTestDB(t)
	catalog := NewGormCatalog(db)
	ctx := context.Background()

	product := models.ProductModel{
		BaseModel:   baseModel(),
		StoreID:     uuid.New(),
		Name:        gofakeit.ProductName(),
		Price:       decimal.NewFromInt(100000),
		WeightGrams: 250,
		Active:      true,
	}
	require.NoError(t, db.Create(&product).Error)

	large := decimal.NewFromInt(120000)
	variant := models.ProductVariantModel{BaseModel: baseModel(), ProductID: product.ID, Name: "Large", Price: &large, Active: true}
	require.NoError(t, db.Create(&variant).Error)

	q, err := catalog.GetCurrentPrice(ctx, product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, product.StoreID, q.StoreID)
	assert.True(t, decimal.NewFromInt(100000).Equal(q.Price))
	assert.Equal(t, 250, q.WeightGrams)
	assert.Nil(t, q.VariantID)

	q, err = catalog.GetCurrentPrice(ctx, product.ID, &variant.ID)
	require.NoError(t, err)
	assert.True(t, large.Equal(q.Price))
	assert.Equal(t, 250, q.WeightGrams)
	require.NotNil(t, q.VariantID)
	assert.Equal(t, variant.ID, *q.VariantID)

	_, err = catalog.GetCurrentPrice(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, grouporder.ErrProductNotFound)

	missing := uuid.New()
	_, err = catalog.GetCurrentPrice(ctx, product.ID, &missing)
	assert.ErrorIs(t, err, grouporder.ErrProductNotFound)
}
