package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// StockRecord is the available quantity of a product line on one delivery date.
// VariantID is uuid.Nil for the product-level line.
type StockRecord struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_records_line"`
	VariantID uuid.UUID  `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:ux_stock_records_line"`
	Date      types.Date `gorm:"column:date;type:date;not null;uniqueIndex:ux_stock_records_line"`
	Qty       int        `gorm:"column:qty;not null;default:0"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *StockRecord) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// StockMovement is an append-only audit row for every ledger or counter change.
type StockMovement struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID uuid.UUID                 `gorm:"column:variant_id;type:uuid;not null"`
	Date      *types.Date               `gorm:"column:date;type:date"`
	Delta     int                       `gorm:"column:delta;not null"`
	Balance   int                       `gorm:"column:balance;not null"`
	Reason    enums.StockMovementReason `gorm:"column:reason;type:text;not null"`
	OrderID   *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
