package promo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/repo"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/pagination"
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

// FindActiveByCode matches a shared code, or a pool promo holding code as an
// unused sub-code when unusedOnly is set.
func (r *Repository) FindActiveByCode(ctx context.Context, code string, unusedOnly bool) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.DB(ctx).Where("active = ? AND code = ? AND is_multi_code = ?", true, code, false).First(&promo).Error
	if err == nil {
		return &promo, nil
	}
	if !repo.IsNotFound(err) {
		return nil, err
	}

	pool := r.DB(ctx).Model(&models.PromoPoolCode{}).Select("promo_code_id").Where("code = ?", code)
	if unusedOnly {
		pool = pool.Where("used = ?", false)
	}
	err = r.DB(ctx).Where("active = ? AND is_multi_code = ? AND id IN (?)", true, true, pool).First(&promo).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// ActiveCodeExists reports whether an active shared promo already uses code.
func (r *Repository) ActiveCodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.PromoCode{}).
		Where("active = ? AND code = ? AND id <> ?", true, code, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID, withPool bool) (*models.PromoCode, error) {
	var promo models.PromoCode
	q := r.DB(ctx)
	if withPool {
		q = q.Preload("PoolCodes", func(db *gorm.DB) *gorm.DB { return db.Order("used ASC, code ASC") })
	}
	err := q.First(&promo, "id = ?", id).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *Repository) Create(ctx context.Context, promo *models.PromoCode) error {
	return r.DB(ctx).Create(promo).Error
}

func (r *Repository) Save(ctx context.Context, promo *models.PromoCode) error {
	return r.DB(ctx).Omit("PoolCodes").Save(promo).Error
}

// IncrementUsed writes used+1 back from the value the caller read.
func (r *Repository) IncrementUsed(ctx context.Context, promo *models.PromoCode) error {
	return r.DB(ctx).Model(&models.PromoCode{}).Where("id = ?", promo.ID).Update("used", promo.Used+1).Error
}

func (r *Repository) FindPoolCode(ctx context.Context, promoID uuid.UUID, code string) (*models.PromoPoolCode, error) {
	var pc models.PromoPoolCode
	err := r.DB(ctx).Where("promo_code_id = ? AND code = ?", promoID, code).First(&pc).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *Repository) MarkPoolCodeUsed(ctx context.Context, id uuid.UUID, customerID *uuid.UUID, at time.Time) error {
	return r.DB(ctx).Model(&models.PromoPoolCode{}).Where("id = ?", id).Updates(map[string]any{
		"used":        true,
		"customer_id": customerID,
		"used_at":     at,
	}).Error
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Keyword string
	Tags    []string
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.PromoCode, error) {
	scope, err := pagination.Scope("", params)
	if err != nil {
		return nil, err
	}
	q := r.DB(ctx).Model(&models.PromoCode{})
	if kw := strings.ToLower(strings.TrimSpace(filter.Keyword)); kw != "" {
		like := "%" + kw + "%"
		q = q.Where("(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)", like, like)
	}
	if len(filter.Tags) > 0 {
		tagQ := r.DB(ctx)
		for _, tag := range filter.Tags {
			tagQ = tagQ.Or("CAST(tags AS TEXT) LIKE ?", `%"`+tag+`"%`)
		}
		q = q.Where(tagQ)
	}
	var promos []models.PromoCode
	err = q.Scopes(scope).Find(&promos).Error
	return promos, err
}

// TagLists returns the tag arrays of every promo carrying tags.
func (r *Repository) TagLists(ctx context.Context) ([][]string, error) {
	var promos []models.PromoCode
	if err := r.DB(ctx).Select("id", "tags").Find(&promos).Error; err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(promos))
	for _, p := range promos {
		if len(p.Tags) > 0 {
			out = append(out, p.Tags)
		}
	}
	return out, nil
}
