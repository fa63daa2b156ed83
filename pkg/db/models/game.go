package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Game is a catalog title. Editions and DLCs hang off it.
type Game struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title          string    `gorm:"column:title;not null"`
	Slug           string    `gorm:"column:slug;not null;uniqueIndex"`
	Developer      string    `gorm:"column:developer;not null"`
	PriceCents     int64     `gorm:"column:price_cents;not null"`
	SalePriceCents *int64    `gorm:"column:sale_price_cents"`
	Currency       string    `gorm:"column:currency;not null;default:'USD'"`
	Approved       bool      `gorm:"column:approved;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Editions []Edition `gorm:"foreignKey:GameID"`
	DLCs     []DLC     `gorm:"foreignKey:GameID"`
}

func (g *Game) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

// CurrentPriceCents is the sale price when one is active, else list price.
func (g Game) CurrentPriceCents() int64 {
	return currentPrice(g.PriceCents, g.SalePriceCents)
}

// Edition is a priced variant of a game (standard, deluxe, ...).
type Edition struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	GameID         uuid.UUID `gorm:"column:game_id;type:uuid;not null;index"`
	Name           string    `gorm:"column:name;not null"`
	PriceCents     int64     `gorm:"column:price_cents;not null"`
	SalePriceCents *int64    `gorm:"column:sale_price_cents"`
	Approved       bool      `gorm:"column:approved;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (e *Edition) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

func (e Edition) CurrentPriceCents() int64 {
	return currentPrice(e.PriceCents, e.SalePriceCents)
}

// DLC is downloadable content sold on top of a game.
type DLC struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	GameID         uuid.UUID `gorm:"column:game_id;type:uuid;not null;index"`
	Title          string    `gorm:"column:title;not null"`
	PriceCents     int64     `gorm:"column:price_cents;not null"`
	SalePriceCents *int64    `gorm:"column:sale_price_cents"`
	Approved       bool      `gorm:"column:approved;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DLC) TableName() string { return "dlcs" }

func (d *DLC) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

func (d DLC) CurrentPriceCents() int64 {
	return currentPrice(d.PriceCents, d.SalePriceCents)
}

func currentPrice(list int64, sale *int64) int64 {
	if sale != nil && *sale >= 0 && *sale < list {
		return *sale
	}
	return list
}
