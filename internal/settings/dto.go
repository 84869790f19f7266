package settings

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
)

// DeliverySettingsDTO is the admin and storefront view of the settings singleton.
type DeliverySettingsDTO struct {
	MinAmount             decimal.Decimal `json:"minAmount"`
	NotifyLowStock        int             `json:"notifyLowStock"`
	PreparationDays       int             `json:"preparationDays"`
	DeliveryDays          int             `json:"deliveryDays"`
	DeliveryNextDayTime   string          `json:"deliveryNextDayTime,omitempty"`
	BlackoutWeekday       *int            `json:"blackOutDay,omitempty"`
	BlackoutDates         []string        `json:"blackoutDates"`
	PeakDaySurchargePrice decimal.Decimal `json:"peakDaySurchargePrice"`
	PeakDates             []string        `json:"peakDates"`
	MinForDelivery        MinForDelivery  `json:"minForDelivery"`
}

type MinForDelivery struct {
	Active           bool            `json:"active"`
	MinAmount        decimal.Decimal `json:"minAmount"`
	DeliveryDiscount decimal.Decimal `json:"deliveryDiscount"`
	FreeDelivery     bool            `json:"freeDelivery"`
}

func ToDTO(s *models.Setting) DeliverySettingsDTO {
	dto := DeliverySettingsDTO{
		MinAmount:             s.MinAmount,
		NotifyLowStock:        s.NotifyLowStock,
		PreparationDays:       s.PreparationDays,
		DeliveryDays:          s.DeliveryDays,
		DeliveryNextDayTime:   s.DeliveryNextDayTime,
		BlackoutDates:         nonNil(s.BlackoutDates),
		PeakDaySurchargePrice: s.PeakDaySurchargePrice,
		PeakDates:             nonNil(s.PeakDates),
		MinForDelivery: MinForDelivery{
			Active:           s.MinForDeliveryActive,
			MinAmount:        s.MinForDeliveryAmount,
			DeliveryDiscount: s.DeliveryDiscount,
			FreeDelivery:     s.FreeDelivery,
		},
	}
	if s.BlackoutWeekday != models.NoBlackoutWeekday {
		day := s.BlackoutWeekday
		dto.BlackoutWeekday = &day
	}
	return dto
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// UpdateDeliveryInput replaces the calendar knobs.
type UpdateDeliveryInput struct {
	PreparationDays     int      `json:"preparationDays" validate:"gte=1,lte=60"`
	DeliveryDays        int      `json:"deliveryDays" validate:"gte=1,lte=366"`
	DeliveryNextDayTime string   `json:"deliveryNextDayTime"`
	BlackoutWeekday     *int     `json:"blackOutDay" validate:"omitempty,gte=0,lte=6"`
	BlackoutDates       []string `json:"blackoutDates" validate:"dive,datetime=2006-01-02"`
}

// UpdatePeakDayInput replaces the peak-day surcharge calendar.
type UpdatePeakDayInput struct {
	Price decimal.Decimal `json:"price"`
	Dates []string        `json:"dates" validate:"dive,datetime=2006-01-02"`
}

// UpdateMinForDeliveryInput replaces the free-delivery threshold rule.
type UpdateMinForDeliveryInput struct {
	Active           bool            `json:"active"`
	MinAmount        decimal.Decimal `json:"minAmount"`
	DeliveryDiscount decimal.Decimal `json:"deliveryDiscount"`
	FreeDelivery     bool            `json:"freeDelivery"`
}
