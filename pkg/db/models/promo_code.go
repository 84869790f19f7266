package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// PromoCode is either one shared code or a campaign backed by a pool of single-use codes.
type PromoCode struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string              `gorm:"column:name;not null;default:''"`
	Code                 string              `gorm:"column:code;not null;default:'';index"`
	Type                 enums.PromoCodeType `gorm:"column:type;type:text;not null"`
	Amount               decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	MinSpending          decimal.Decimal     `gorm:"column:min_spending;type:numeric(12,2);not null;default:0"`
	StartDate            types.Date          `gorm:"column:start_date;type:date;not null"`
	StartTime            string              `gorm:"column:start_time;not null;default:''"`
	EndDate              *types.Date         `gorm:"column:end_date;type:date"`
	EndTime              string              `gorm:"column:end_time;not null;default:''"`
	Total                int                 `gorm:"column:total;not null;default:0"`
	Used                 int                 `gorm:"column:used;not null;default:0"`
	IsUnlimited          bool                `gorm:"column:is_unlimited;not null;default:false"`
	IsOnePerCustomer     bool                `gorm:"column:is_one_per_customer;not null;default:false"`
	IsMultiCode          bool                `gorm:"column:is_multi_code;not null;default:false"`
	IsIncludeDeliveryFee bool                `gorm:"column:is_include_delivery_fee;not null;default:false"`
	IsAdminOnly          bool                `gorm:"column:is_admin_only;not null;default:false"`
	Active               bool                `gorm:"column:active;not null"`
	Tags                 []string            `gorm:"column:tags;type:jsonb;serializer:json"`
	PoolCodes            []PromoPoolCode     `gorm:"foreignKey:PromoCodeID"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PromoCode) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// CapReached reports whether a capped promo has no uses left.
func (p *PromoCode) CapReached() bool {
	return !p.IsUnlimited && p.Used >= p.Total
}

// PromoPoolCode is a single-use code belonging to a multi-code promo.
type PromoPoolCode struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PromoCodeID uuid.UUID  `gorm:"column:promo_code_id;type:uuid;not null;index"`
	Code        string     `gorm:"column:code;not null;uniqueIndex"`
	Used        bool       `gorm:"column:used;not null;default:false"`
	CustomerID  *uuid.UUID `gorm:"column:customer_id;type:uuid"`
	UsedAt      *time.Time `gorm:"column:used_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (c *PromoPoolCode) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
