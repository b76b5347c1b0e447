package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newSQLiteDB opens a migrated in-memory sqlite database.
// One pooled connection keeps the in-memory database alive for the test.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := NewDatabase(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.AutoMigrate())
	return database.DB
}

func int64Ptr(v int64) *int64 { return &v }

// seedCatalog inserts three products:
// 1 "Blue Shirt" 19.99 (Apparel, Acme), 2 "Alpha Hat" 5.50, 3 "Zebra Socks" 3.25 (Apparel)
func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.CategoryModel{ID: 1, Title: "Apparel"}).Error)
	require.NoError(t, db.Create(&models.BrandModel{ID: 1, Title: "Acme"}).Error)
	products := []models.ProductModel{
		{ID: 1, Title: "Blue Shirt", Price: decimal.RequireFromString("19.99"), Image: "shirt.png", CategoryID: int64Ptr(1), BrandID: int64Ptr(1)},
		{ID: 2, Title: "Alpha Hat", Price: decimal.RequireFromString("5.50"), Image: "hat.png"},
		{ID: 3, Title: "Zebra Socks", Price: decimal.RequireFromString("3.25"), Image: "socks.png", CategoryID: int64Ptr(1)},
	}
	require.NoError(t, db.Create(&products).Error)
}

// insertLine writes a raw cart row, bypassing repository checks
func insertLine(t *testing.T, db *gorm.DB, productID int64, quantity int, owner cart.Owner, updatedAt time.Time) *models.CartLineModel {
	t.Helper()
	m := models.NewCartLineModel(productID, quantity, owner)
	m.CreatedAt, m.UpdatedAt = updatedAt, updatedAt
	require.NoError(t, db.Create(m).Error)
	return m
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

// blockUpdates makes every UPDATE of a cart row for productID fail
func blockUpdates(t *testing.T, db *gorm.DB, productID int64) {
	t.Helper()
	// sqlite does not accept bound parameters in trigger bodies
	require.NoError(t, db.Exec(fmt.Sprintf(`CREATE TRIGGER block_cart_update BEFORE UPDATE ON cart_details
		WHEN NEW.product_id = %d
		BEGIN SELECT RAISE(ABORT, 'cart update blocked'); END`, productID)).Error)
}

// blockOrderLines makes inserting an order line for productID fail
func blockOrderLines(t *testing.T, db *gorm.DB, productID int64) {
	t.Helper()
	require.NoError(t, db.Exec(fmt.Sprintf(`CREATE TRIGGER block_order_line BEFORE INSERT ON order_lines
		WHEN NEW.product_id = %d
		BEGIN SELECT RAISE(ABORT, 'order line rejected'); END`, productID)).Error)
}
