// Package dbtest opens isolated sqlite databases with the full schema for tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/angelmondragon/uporders-backend/pkg/db"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a fresh database file under t.TempDir. A single pooled
// connection makes concurrent transactions queue behind each other, which is
// how sqlite serializes writers anyway. The file outlives that connection, so
// a transaction aborted by a deadline does not take the schema with it.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "uporders.db"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in a db.Client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.FromConn(conn, 0), conn
}

// Fixture is a merchant with one store, plus one consumer.
type Fixture struct {
	Merchant models.Customer
	Customer models.Customer
	Store    models.Store
}

// Seed creates a merchant, its store and a consumer.
func Seed(t testing.TB, conn *gorm.DB) Fixture {
	t.Helper()
	f := Fixture{
		Merchant: models.Customer{Name: "Mara Merchant", Role: enums.CustomerRoleMerchant},
		Customer: models.Customer{Name: "Cody Consumer", Role: enums.CustomerRoleConsumer},
	}
	mustCreate(t, conn, &f.Merchant)
	mustCreate(t, conn, &f.Customer)
	f.Store = models.Store{Name: "Corner Bistro", Address: "1 Main St", MerchantID: f.Merchant.ID}
	mustCreate(t, conn, &f.Store)
	return f
}

// Item creates a catalog item owned by the fixture's merchant.
func (f Fixture) Item(t testing.TB, conn *gorm.DB, name, price string) models.Item {
	t.Helper()
	item := models.Item{
		Name:       name,
		Category:   enums.ItemCategoryMainCourse,
		Price:      decimal.RequireFromString(price),
		MerchantID: f.Merchant.ID,
	}
	mustCreate(t, conn, &item)
	return item
}

// StockItem sets the available count of item at the fixture's store.
func (f Fixture) StockItem(t testing.TB, conn *gorm.DB, itemID uuid.UUID, count int) {
	t.Helper()
	mustCreate(t, conn, &models.StoreItem{StoreID: f.Store.ID, ItemID: itemID, AvailableCount: count})
}

// Available reads the current count, failing the test when the entry is missing.
func Available(t testing.TB, conn *gorm.DB, storeID, itemID uuid.UUID) int {
	t.Helper()
	var entry models.StoreItem
	if err := conn.Where("store_id = ? AND item_id = ?", storeID, itemID).Take(&entry).Error; err != nil {
		t.Fatalf("load stock entry: %v", err)
	}
	return entry.AvailableCount
}

// Count returns the number of rows of model.
func Count(t testing.TB, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
