package settings

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
)

// Repository persists the settings singleton.
type Repository interface {
	Get(ctx context.Context) (*models.Setting, error)
	Save(ctx context.Context, setting *models.Setting) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Defaults is the row created the first time settings are read.
func Defaults() models.Setting {
	return models.Setting{
		MinAmount:             decimal.Zero,
		PreparationDays:       1,
		DeliveryDays:          30,
		BlackoutWeekday:       models.NoBlackoutWeekday,
		BlackoutDates:         []string{},
		PeakDates:             []string{},
		PeakDaySurchargePrice: decimal.Zero,
		MinForDeliveryAmount:  decimal.Zero,
		DeliveryDiscount:      decimal.Zero,
	}
}

func (r *repository) Get(ctx context.Context) (*models.Setting, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Order("created_at ASC").First(&setting).Error
	if err == nil {
		return &setting, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	setting = Defaults()
	if err := r.db.WithContext(ctx).Create(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *repository) Save(ctx context.Context, setting *models.Setting) error {
	return r.db.WithContext(ctx).Save(setting).Error
}
