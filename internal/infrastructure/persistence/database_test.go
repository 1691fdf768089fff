package persistence

import (
	"path/filepath"
	"testing"

	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "groupbuy.db"),
	}

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, config.DriverSQLite, db.Driver)
	require.NoError(t, db.AutoMigrate())
	require.NoError(t, db.Ping())

	for _, table := range []string{"group_orders", "group_order_members", "group_order_items", "orders", "addresses"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDatabase_Transaction(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "tx.db"),
	}
	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.AutoMigrate())

	sentinel := assert.AnError
	err = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, tx.Exec("INSERT INTO users (id, display_name, created_at, updated_at) VALUES ('u1', 'Ann', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)").Error)
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.DB.Table("users").Count(&count).Error)
	assert.Zero(t, count)
}
