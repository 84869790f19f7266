package settings

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Service reads and edits the delivery settings singleton.
type Service interface {
	Get(ctx context.Context) (*models.Setting, error)
	UpdateDelivery(ctx context.Context, input UpdateDeliveryInput) (*models.Setting, error)
	UpdatePeakDaySurcharge(ctx context.Context, input UpdatePeakDayInput) (*models.Setting, error)
	UpdateMinForDelivery(ctx context.Context, input UpdateMinForDeliveryInput) (*models.Setting, error)
	UpdateCartMinimum(ctx context.Context, amount decimal.Decimal) (*models.Setting, error)
	UpdateLowStockThreshold(ctx context.Context, threshold int) (*models.Setting, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("settings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context) (*models.Setting, error) {
	setting, err := s.repo.Get(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	return setting, nil
}

func (s *service) UpdateDelivery(ctx context.Context, input UpdateDeliveryInput) (*models.Setting, error) {
	if input.PreparationDays < 1 || input.DeliveryDays < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preparation and delivery days must be positive")
	}
	if input.PreparationDays > input.DeliveryDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preparation days cannot exceed delivery days")
	}
	cutoff := strings.TrimSpace(input.DeliveryNextDayTime)
	if cutoff != "" {
		if _, err := calendar.ParseCutoff(cutoff); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid next-day cutoff time")
		}
	}
	blackoutDates, err := normalizeDates(input.BlackoutDates)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, func(setting *models.Setting) {
		setting.PreparationDays = input.PreparationDays
		setting.DeliveryDays = input.DeliveryDays
		setting.DeliveryNextDayTime = cutoff
		setting.BlackoutDates = blackoutDates
		setting.BlackoutWeekday = models.NoBlackoutWeekday
		if input.BlackoutWeekday != nil {
			setting.BlackoutWeekday = *input.BlackoutWeekday
		}
	})
}

func (s *service) UpdatePeakDaySurcharge(ctx context.Context, input UpdatePeakDayInput) (*models.Setting, error) {
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "surcharge cannot be negative")
	}
	dates, err := normalizeDates(input.Dates)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, func(setting *models.Setting) {
		setting.PeakDaySurchargePrice = money.Round2(input.Price)
		setting.PeakDates = dates
	})
}

func (s *service) UpdateMinForDelivery(ctx context.Context, input UpdateMinForDeliveryInput) (*models.Setting, error) {
	if input.MinAmount.IsNegative() || input.DeliveryDiscount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amounts cannot be negative")
	}
	return s.mutate(ctx, func(setting *models.Setting) {
		setting.MinForDeliveryActive = input.Active
		setting.MinForDeliveryAmount = money.Round2(input.MinAmount)
		setting.DeliveryDiscount = money.Round2(input.DeliveryDiscount)
		setting.FreeDelivery = input.FreeDelivery
	})
}

func (s *service) UpdateCartMinimum(ctx context.Context, amount decimal.Decimal) (*models.Setting, error) {
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum amount cannot be negative")
	}
	return s.mutate(ctx, func(setting *models.Setting) {
		setting.MinAmount = money.Round2(amount)
	})
}

func (s *service) UpdateLowStockThreshold(ctx context.Context, threshold int) (*models.Setting, error) {
	if threshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold cannot be negative")
	}
	return s.mutate(ctx, func(setting *models.Setting) {
		setting.NotifyLowStock = threshold
	})
}

func (s *service) mutate(ctx context.Context, apply func(*models.Setting)) (*models.Setting, error) {
	setting, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	apply(setting)
	if err := s.repo.Save(ctx, setting); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save settings")
	}
	return setting, nil
}

// normalizeDates parses, dedupes and sorts YYYY-MM-DD values.
func normalizeDates(values []string) ([]string, error) {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		d, err := types.ParseDate(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date").
				WithDetails(map[string]any{"value": raw})
		}
		key := d.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}
