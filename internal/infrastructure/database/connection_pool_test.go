package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/infrastructure/config"
)

func newSQLitePool(t *testing.T) *ConnectionPool {
	t.Helper()
	cfg := &config.Config{
		DBDriver:   "sqlite",
		DBName:     filepath.Join(t.TempDir(), "gate.db"),
		DBLogLevel: "silent",
	}
	pool, err := NewConnectionPool(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestNewConnectionPoolSQLite(t *testing.T) {
	pool := newSQLitePool(t)

	require.NoError(t, pool.HealthCheck(context.Background()))
	stats, err := pool.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["max_open_connections"])
}

func TestDialectorUnknownDriver(t *testing.T) {
	_, err := Dialector("oracle", "dsn")
	assert.Error(t, err)
}

func TestMigrateAndDrop(t *testing.T) {
	pool := newSQLitePool(t)
	db := pool.GetDB()

	require.NoError(t, Migrate(db, "auto"))
	require.NoError(t, db.Create(&models.Apartment{Name: "Sunrise"}).Error)

	require.NoError(t, Migrate(db, "drop"))
	var count int64
	require.NoError(t, db.Model(&models.Apartment{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.True(t, db.Migrator().HasTable("visit_request_flats"))
}

func TestWithTransactionRollsBack(t *testing.T) {
	pool := newSQLitePool(t)
	require.NoError(t, AutoMigrate(pool.GetDB()))

	boom := errors.New("boom")
	err := pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Apartment{Name: "Sunrise"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, pool.GetDB().Model(&models.Apartment{}).Count(&count).Error)
	assert.Zero(t, count)
}
