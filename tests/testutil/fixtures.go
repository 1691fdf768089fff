package testutil

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixtures seeds users, addresses and products with generated data.
// The same seed yields the same names, so failures are reproducible.
type Fixtures struct {
	t     *testing.T
	db    *gorm.DB
	faker *gofakeit.Faker
}

// NewFixtures creates a fixture builder over db. A zero seed is random.
func NewFixtures(t *testing.T, db *gorm.DB, seed uint64) *Fixtures {
	t.Helper()
	return &Fixtures{t: t, db: db, faker: gofakeit.New(seed)}
}

// Faker exposes the underlying generator for ad-hoc values.
func (f *Fixtures) Faker() *gofakeit.Faker {
	return f.faker
}

// User inserts a user and returns its id.
func (f *Fixtures) User() uuid.UUID {
	f.t.Helper()
	m := &models.UserModel{
		BaseModel:   models.BaseModel{ID: uuid.New()},
		DisplayName: f.faker.Name(),
		Email:       f.faker.Email(),
	}
	require.NoError(f.t, f.db.Create(m).Error, "Failed to seed user")
	return m.ID
}

// Users inserts n users.
func (f *Fixtures) Users(n int) []uuid.UUID {
	f.t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.User()
	}
	return ids
}

// Address inserts a shipping address owned by userID.
func (f *Fixtures) Address(userID uuid.UUID) uuid.UUID {
	f.t.Helper()
	addr := f.faker.Address()
	m := &models.AddressModel{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		UserID:        userID,
		RecipientName: f.faker.Name(),
		Phone:         f.faker.Phone(),
		Line1:         addr.Street,
		City:          addr.City,
		Region:        addr.State,
		PostalCode:    addr.Zip,
		Country:       "US",
	}
	require.NoError(f.t, f.db.Create(m).Error, "Failed to seed address")
	return m.ID
}

// Product inserts an active product in storeID at the given price.
func (f *Fixtures) Product(storeID uuid.UUID, price decimal.Decimal) uuid.UUID {
	f.t.Helper()
	m := &models.ProductModel{
		BaseModel:   models.BaseModel{ID: uuid.New()},
		StoreID:     storeID,
		Name:        f.faker.ProductName(),
		Price:       price,
		WeightGrams: f.faker.Number(100, 2000),
		Active:      true,
	}
	require.NoError(f.t, f.db.Create(m).Error, "Failed to seed product")
	return m.ID
}

// Variant inserts a variant of productID with its own price.
func (f *Fixtures) Variant(productID uuid.UUID, price decimal.Decimal) uuid.UUID {
	f.t.Helper()
	m := &models.ProductVariantModel{
		BaseModel: models.BaseModel{ID: uuid.New()},
		ProductID: productID,
		Name:      f.faker.Color(),
		Price:     &price,
		Active:    true,
	}
	require.NoError(f.t, f.db.Create(m).Error, "Failed to seed variant")
	return m.ID
}
