package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/repo"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
)

// Repository reads and writes catalog rows.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func orderVariants(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// FindProduct loads a product with its variants, or nil.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).Preload("Variants", orderVariants).First(&product, "id = ?", id).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductBySlug loads a product by slug, or nil.
func (r *Repository) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).Preload("Variants", orderVariants).First(&product, "slug = ?", slug).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns products ordered by name.
func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	var products []models.Product
	q := r.DB(ctx).Preload("Variants", orderVariants).Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&products).Error
	return products, err
}

func (r *Repository) FindBundle(ctx context.Context, id uuid.UUID) (*models.Bundle, error) {
	var bundle models.Bundle
	err := r.DB(ctx).First(&bundle, "id = ?", id).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (r *Repository) FindSliceBox(ctx context.Context, id uuid.UUID) (*models.SliceBoxOption, error) {
	var option models.SliceBoxOption
	err := r.DB(ctx).First(&option, "id = ?", id).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &option, nil
}

// SaveProduct inserts or updates a product and its variants.
func (r *Repository) SaveProduct(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(product).Error
}

func (r *Repository) SaveBundle(ctx context.Context, bundle *models.Bundle) error {
	return r.DB(ctx).Save(bundle).Error
}

func (r *Repository) SaveSliceBox(ctx context.Context, option *models.SliceBoxOption) error {
	return r.DB(ctx).Save(option).Error
}
