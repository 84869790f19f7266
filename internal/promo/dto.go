package promo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Terms are the editable pricing and window fields of a promo.
type Terms struct {
	Name                 string              `json:"name" validate:"max=120"`
	Type                 enums.PromoCodeType `json:"type" validate:"required,oneof=PERCENTAGE ABSOLUTE"`
	Amount               decimal.Decimal     `json:"amount"`
	MinSpending          decimal.Decimal     `json:"minSpending"`
	StartDate            types.Date          `json:"startDate"`
	StartTime            string              `json:"startTime,omitempty"`
	EndDate              *types.Date         `json:"endDate,omitempty"`
	EndTime              string              `json:"endTime,omitempty"`
	Total                int                 `json:"total" validate:"gte=0"`
	IsUnlimited          bool                `json:"isUnlimited"`
	IsOnePerCustomer     bool                `json:"isOnePerCustomer"`
	IsIncludeDeliveryFee bool                `json:"isIncludeDeliveryFee"`
	IsAdminOnly          bool                `json:"isAdminOnly"`
	Tags                 []string            `json:"tags,omitempty"`
}

// CreateInput creates a shared code, or a pool of Total codes when IsMultiCode is set.
type CreateInput struct {
	Terms
	Code        string `json:"code,omitempty" validate:"max=64"`
	IsMultiCode bool   `json:"isMultiCode"`
}

// UpdateInput edits a promo. Money and cap fields only apply while unused.
type UpdateInput struct {
	Terms
}

// ListQuery filters the admin listing.
type ListQuery struct {
	Keyword string
	Tags    []string
	Limit   int
	Cursor  string
}

// PromoDTO is the admin view of a promo.
type PromoDTO struct {
	ID                   uuid.UUID           `json:"id"`
	Name                 string              `json:"name"`
	Code                 string              `json:"code,omitempty"`
	Type                 enums.PromoCodeType `json:"type"`
	Amount               decimal.Decimal     `json:"amount"`
	MinSpending          decimal.Decimal     `json:"minSpending"`
	StartDate            types.Date          `json:"startDate"`
	StartTime            string              `json:"startTime,omitempty"`
	EndDate              *types.Date         `json:"endDate,omitempty"`
	EndTime              string              `json:"endTime,omitempty"`
	Total                int                 `json:"total"`
	Used                 int                 `json:"used"`
	IsUnlimited          bool                `json:"isUnlimited"`
	IsOnePerCustomer     bool                `json:"isOnePerCustomer"`
	IsMultiCode          bool                `json:"isMultiCode"`
	IsIncludeDeliveryFee bool                `json:"isIncludeDeliveryFee"`
	IsAdminOnly          bool                `json:"isAdminOnly"`
	Active               bool                `json:"active"`
	Tags                 []string            `json:"tags"`
	CreatedAt            time.Time           `json:"createdAt"`
}

func ToDTO(p *models.PromoCode) PromoDTO {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PromoDTO{
		ID:                   p.ID,
		Name:                 p.Name,
		Code:                 p.Code,
		Type:                 p.Type,
		Amount:               p.Amount,
		MinSpending:          p.MinSpending,
		StartDate:            p.StartDate,
		StartTime:            p.StartTime,
		EndDate:              p.EndDate,
		EndTime:              p.EndTime,
		Total:                p.Total,
		Used:                 p.Used,
		IsUnlimited:          p.IsUnlimited,
		IsOnePerCustomer:     p.IsOnePerCustomer,
		IsMultiCode:          p.IsMultiCode,
		IsIncludeDeliveryFee: p.IsIncludeDeliveryFee,
		IsAdminOnly:          p.IsAdminOnly,
		Active:               p.Active,
		Tags:                 tags,
		CreatedAt:            p.CreatedAt,
	}
}
