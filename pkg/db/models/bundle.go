package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BundleItem is one product (optionally a variant) packed inside a bundle.
type BundleItem struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Qty       int        `json:"qty"`
}

// Bundle is a fixed set of products sold at one price.
type Bundle struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Active    bool            `gorm:"column:active;not null"`
	Items     []BundleItem    `gorm:"column:items;type:jsonb;serializer:json"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Bundle) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// SliceBoxOption is a box size customers fill with slices of their choice.
type SliceBoxOption struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Slots     int             `gorm:"column:slots;not null"`
	Active    bool            `gorm:"column:active;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *SliceBoxOption) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
