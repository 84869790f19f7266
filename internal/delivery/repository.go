package delivery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/repo"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func activeSlots(db *gorm.DB) *gorm.DB {
	return db.Where("active = ?", true).Order("created_at ASC")
}

// FindMethod loads a method with its active time slots. Missing methods return nil.
func (r *Repository) FindMethod(ctx context.Context, id uuid.UUID) (*models.DeliveryMethod, error) {
	var method models.DeliveryMethod
	err := r.DB(ctx).Preload("TimeSlots", activeSlots).First(&method, "id = ?", id).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *Repository) ListMethods(ctx context.Context, activeOnly bool) ([]models.DeliveryMethod, error) {
	var methods []models.DeliveryMethod
	q := r.DB(ctx).Preload("TimeSlots", activeSlots).Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&methods).Error
	return methods, err
}

func (r *Repository) ActiveOutskirts(ctx context.Context) ([]models.Outskirt, error) {
	var outskirts []models.Outskirt
	err := r.DB(ctx).Where("active = ?", true).Order("created_at ASC").Find(&outskirts).Error
	return outskirts, err
}

func (r *Repository) Zones(ctx context.Context) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	err := r.DB(ctx).Order("name ASC").Find(&zones).Error
	return zones, err
}

func (r *Repository) SaveMethod(ctx context.Context, method *models.DeliveryMethod) error {
	return r.DB(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(method).Error
}

func (r *Repository) SaveOutskirt(ctx context.Context, outskirt *models.Outskirt) error {
	return r.DB(ctx).Save(outskirt).Error
}

func (r *Repository) SaveZone(ctx context.Context, zone *models.DeliveryZone) error {
	return r.DB(ctx).Save(zone).Error
}
