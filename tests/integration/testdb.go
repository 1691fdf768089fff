// Package integration runs the group order API end to end against real
// databases: in-memory sqlite always, and PostgreSQL in a container unless
// the tests run with -short.
package integration

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/groupbuy/backend/internal/infrastructure/migration"
	"github.com/groupbuy/backend/tests/testutil"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// One container serves the whole package; each test truncates on cleanup
	sharedContainer    *tcpostgres.PostgresContainer
	sharedContainerDSN string
	sharedContainerMu  sync.Mutex
)

// Backend is one database the suite runs against
type Backend struct {
	Name string
	Open func(t *testing.T) *gorm.DB
}

// Backends returns sqlite and, outside -short, PostgreSQL.
func Backends(t *testing.T) []Backend {
	t.Helper()
	backends := []Backend{{Name: "sqlite", Open: testutil.NewSQLiteDB}}
	if !testing.Short() {
		backends = append(backends, Backend{Name: "postgres", Open: NewPostgresDB})
	}
	return backends
}

// ForEachBackend runs fn as a subtest per backend.
func ForEachBackend(t *testing.T, fn func(t *testing.T, db *gorm.DB)) {
	for _, b := range Backends(t) {
		t.Run(b.Name, func(t *testing.T) {
			fn(t, b.Open(t))
		})
	}
}

// NewPostgresDB connects to the shared PostgreSQL container, migrated with
// the embedded SQL migrations. Tables are truncated when the test ends.
func NewPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	dsn := sharedDSN(t)

	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)

	t.Cleanup(func() {
		truncateAll(t, db)
		_ = sqlDB.Close()
	})
	return db
}

func sharedDSN(t *testing.T) string {
	t.Helper()

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()
	if sharedContainer != nil {
		return sharedContainerDSN
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("groupbuy_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	// Migrate once on a dedicated connection; closing the migrator closes it
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, nil)
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
	_ = m.Close()

	sharedContainer = container
	sharedContainerDSN = dsn
	return dsn
}

func truncateAll(t *testing.T, db *gorm.DB) {
	err := db.Exec(`TRUNCATE TABLE order_items, orders, group_order_items, group_order_members,
		group_orders, product_variants, products, addresses, users CASCADE`).Error
	if err != nil {
		t.Logf("Warning: failed to truncate tables: %v", err)
	}
}

func cleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()
	if sharedContainer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = sharedContainer.Terminate(ctx)
	sharedContainer = nil
	sharedContainerDSN = ""
}
