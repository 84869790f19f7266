package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/repo"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Repository reads and writes ledger rows, the movement log and the fixed
// stock counters kept on products and variants.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// FindProduct loads a product with its variants. Missing products return nil.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&product, "id = ?", id).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActiveProducts returns every active product with its variants.
func (r *Repository) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.DB(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Where("active = ?", true).Order("name ASC").Find(&products).Error
	return products, err
}

// RecordsForProduct returns the product's ledger rows on the given dates.
func (r *Repository) RecordsForProduct(ctx context.Context, productID uuid.UUID, dates []types.Date) ([]models.StockRecord, error) {
	var records []models.StockRecord
	if len(dates) == 0 {
		return records, nil
	}
	err := r.DB(ctx).
		Where("product_id = ? AND date IN ?", productID, dates).
		Order("date ASC").
		Find(&records).Error
	return records, err
}

// FindRecord returns the ledger row for a line on date, or nil.
func (r *Repository) FindRecord(ctx context.Context, productID, variantID uuid.UUID, date types.Date) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.DB(ctx).
		Where("product_id = ? AND variant_id = ? AND date = ?", productID, variantID, date).
		First(&record).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateRecords inserts new ledger rows together with their movement rows.
func (r *Repository) CreateRecords(ctx context.Context, records []models.StockRecord, movements []models.StockMovement) error {
	if len(records) == 0 {
		return nil
	}
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&records).Error; err != nil {
			return err
		}
		if len(movements) == 0 {
			return nil
		}
		return tx.Create(&movements).Error
	})
}

// SaveRecordQty overwrites the quantity of a ledger row.
func (r *Repository) SaveRecordQty(ctx context.Context, id uuid.UUID, qty int) error {
	return r.DB(ctx).Model(&models.StockRecord{}).Where("id = ?", id).Update("qty", qty).Error
}

// InsertMovement appends to the movement log.
func (r *Repository) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.DB(ctx).Create(movement).Error
}

// Movements lists the log of one line, oldest first.
func (r *Repository) Movements(ctx context.Context, productID, variantID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.DB(ctx).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}

// SaveFixedStock overwrites the fixed counter (and optional start date) of a
// product, or of a variant when variantID is set.
func (r *Repository) SaveFixedStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int, start *types.Date) error {
	updates := map[string]any{"fixed_stock": qty, "fixed_stock_start_date": start}
	if variantID == nil {
		return r.DB(ctx).Model(&models.Product{}).Where("id = ?", productID).Updates(updates).Error
	}
	return r.DB(ctx).Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ?", *variantID, productID).
		Updates(updates).Error
}

// LowRecords returns ledger rows on dates whose quantity is at or under threshold.
func (r *Repository) LowRecords(ctx context.Context, dates []types.Date, threshold int) ([]models.StockRecord, error) {
	var records []models.StockRecord
	if len(dates) == 0 {
		return records, nil
	}
	err := r.DB(ctx).
		Where("date IN ? AND qty <= ?", dates, threshold).
		Order("qty ASC, date ASC").
		Find(&records).Error
	return records, err
}

// AdjustRecord adds delta to a ledger row and returns the new quantity. The
// write carries no lower bound.
func (r *Repository) AdjustRecord(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	db := r.DB(ctx)
	if err := db.Model(&models.StockRecord{}).Where("id = ?", id).
		Update("qty", gorm.Expr("qty + ?", delta)).Error; err != nil {
		return 0, err
	}
	var record models.StockRecord
	if err := db.Select("qty").First(&record, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return record.Qty, nil
}

// AdjustFixedStock adds delta to the fixed counter of a product or variant and
// returns the new counter.
func (r *Repository) AdjustFixedStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, delta int) (int, error) {
	db := r.DB(ctx)
	expr := gorm.Expr("fixed_stock + ?", delta)
	if variantID == nil {
		if err := db.Model(&models.Product{}).Where("id = ?", productID).Update("fixed_stock", expr).Error; err != nil {
			return 0, err
		}
		var product models.Product
		if err := db.Select("fixed_stock").First(&product, "id = ?", productID).Error; err != nil {
			return 0, err
		}
		return product.FixedStock, nil
	}
	if err := db.Model(&models.ProductVariant{}).Where("id = ? AND product_id = ?", *variantID, productID).
		Update("fixed_stock", expr).Error; err != nil {
		return 0, err
	}
	var variant models.ProductVariant
	if err := db.Select("fixed_stock").First(&variant, "id = ?", *variantID).Error; err != nil {
		return 0, err
	}
	return variant.FixedStock, nil
}

// CreateRecord inserts a single ledger row.
func (r *Repository) CreateRecord(ctx context.Context, record *models.StockRecord) error {
	return r.DB(ctx).Create(record).Error
}
