// Package dbtest opens throwaway sqlite databases carrying the storefront schema.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/db/models"
)

// Open returns an isolated in-memory database migrated with every model.
// The pool is pinned to one connection so transactions never see a locked table.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=off"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.Game{},
		&models.Edition{},
		&models.DLC{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Purchase{},
		&models.Refund{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// SeedGame inserts an approved game priced in cents.
func SeedGame(t *testing.T, conn *gorm.DB, title string, priceCents int64) models.Game {
	t.Helper()
	game := models.Game{
		Title:      title,
		Slug:       uuid.NewString(),
		Developer:  "Lagged Studio",
		PriceCents: priceCents,
		Currency:   "USD",
		Approved:   true,
	}
	if err := conn.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}
	return game
}
