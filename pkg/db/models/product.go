package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// StockPolicy carries the restock and fixed-stock flags shared by products and variants.
type StockPolicy struct {
	IsAutoRestock       bool        `gorm:"column:is_auto_restock;not null;default:false"`
	Restocks            []int       `gorm:"column:restocks;type:jsonb;serializer:json"`
	IsFixedStock        bool        `gorm:"column:is_fixed_stock;not null;default:false"`
	FixedStock          int         `gorm:"column:fixed_stock;not null;default:0"`
	FixedStockStartDate *types.Date `gorm:"column:fixed_stock_start_date;type:date"`
}

// RestockFor returns the weekly seed quantity for the weekday (Sunday = 0).
func (p StockPolicy) RestockFor(weekday time.Weekday) int {
	if !p.IsAutoRestock {
		return 0
	}
	idx := int(weekday)
	if idx < 0 || idx >= len(p.Restocks) {
		return 0
	}
	return p.Restocks[idx]
}

// Product is a sellable catalog item.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	Slug        string           `gorm:"column:slug;not null;uniqueIndex"`
	Category    string           `gorm:"column:category;not null;default:''"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Active      bool             `gorm:"column:active;not null"`
	IsSpecial   bool             `gorm:"column:is_special;not null;default:false"`
	StockPolicy                  `gorm:"embedded"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Variant returns the variant with the given id.
func (p *Product) Variant(id uuid.UUID) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// AllFixedStock reports whether every tracked line of the product keeps its stock
// on a fixed counter instead of the per-date ledger.
func (p *Product) AllFixedStock() bool {
	if len(p.Variants) == 0 {
		return p.IsFixedStock
	}
	for _, v := range p.Variants {
		if !v.IsFixedStock {
			return false
		}
	}
	return true
}

// ProductVariant is a size or flavour of a product with its own price and stock policy.
type ProductVariant struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name        string          `gorm:"column:name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Active      bool            `gorm:"column:active;not null"`
	StockPolicy                 `gorm:"embedded"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}
