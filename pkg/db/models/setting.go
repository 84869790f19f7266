package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NoBlackoutWeekday disables the weekly closed day.
const NoBlackoutWeekday = -1

// Setting is the singleton row holding delivery and pricing rules.
type Setting struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MinAmount             decimal.Decimal `gorm:"column:min_amount;type:numeric(12,2);not null;default:0"`
	NotifyLowStock        int             `gorm:"column:notify_low_stock;not null;default:0"`
	PreparationDays       int             `gorm:"column:preparation_days;not null"`
	DeliveryDays          int             `gorm:"column:delivery_days;not null"`
	DeliveryNextDayTime   string          `gorm:"column:delivery_next_day_time"`
	BlackoutWeekday       int             `gorm:"column:blackout_weekday;not null"`
	BlackoutDates         []string        `gorm:"column:blackout_dates;type:jsonb;serializer:json"`
	PeakDaySurchargePrice decimal.Decimal `gorm:"column:peak_day_surcharge_price;type:numeric(12,2);not null;default:0"`
	PeakDates             []string        `gorm:"column:peak_dates;type:jsonb;serializer:json"`
	MinForDeliveryActive  bool            `gorm:"column:min_for_delivery_active;not null;default:false"`
	MinForDeliveryAmount  decimal.Decimal `gorm:"column:min_for_delivery_amount;type:numeric(12,2);not null;default:0"`
	DeliveryDiscount      decimal.Decimal `gorm:"column:delivery_discount;type:numeric(12,2);not null;default:0"`
	FreeDelivery          bool            `gorm:"column:free_delivery;not null;default:false"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Setting) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
