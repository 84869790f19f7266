package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/repo"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/pagination"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// FirstOrderNumber is assigned when no order exists yet.
const FirstOrderNumber = "210000"

// confirmedStatuses are the states of an order that counted a promo redemption.
var confirmedStatuses = []enums.OrderStatus{
	enums.OrderStatusConfirm,
	enums.OrderStatusDelivering,
	enums.OrderStatusReadyForCollection,
	enums.OrderStatusCompleted,
}

// ListFilter narrows the admin order listing.
type ListFilter struct {
	Statuses     []enums.OrderStatus
	Type         enums.OrderType
	DeliveryDate *types.Date
	CustomerID   *uuid.UUID
	Keyword      string
}

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := withDetails(r.DB(ctx)).Where(query, args...).First(&order).Error
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.first(ctx, "order_number = ?", number)
}

// FindByPaymentRef finds the order that logged a gateway reference, either as
// the entry itself or as the payment a refund points at.
func (r *repository) FindByPaymentRef(ctx context.Context, gateway enums.PaymentType, externalID string) (*models.Order, error) {
	var payment models.OrderPayment
	err := r.DB(ctx).
		Where("gateway = ? AND (external_id = ? OR parent_ref = ?)", gateway, externalID, externalID).
		Order("created_at ASC").
		First(&payment).Error
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindByID(ctx, payment.OrderID)
}

// LatestNumber returns the highest order number, ordering numerically for
// same-length numbers.
func (r *repository) LatestNumber(ctx context.Context) (string, error) {
	var numbers []string
	err := r.DB(ctx).Model(&models.Order{}).
		Order("LENGTH(order_number) DESC").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil {
		return "", err
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

// Save writes the order row only; lines and payments have their own writers.
func (r *repository) Save(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Omit("Lines", "Payments").Save(order).Error
}

func (r *repository) ReplaceLines(ctx context.Context, orderID uuid.UUID, lines []models.OrderLine) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderLine{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		for i := range lines {
			lines[i].ID = uuid.Nil
			lines[i].OrderID = orderID
			lines[i].Position = i
		}
		return tx.Create(&lines).Error
	})
}

func (r *repository) InsertPayment(ctx context.Context, payment *models.OrderPayment) error {
	return r.DB(ctx).Create(payment).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error) {
	scope, err := pagination.Scope("orders", params)
	if err != nil {
		return nil, err
	}
	q := r.DB(ctx).Model(&models.Order{}).Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	if len(filter.Statuses) > 0 {
		q = q.Where("orders.status IN ?", filter.Statuses)
	}
	if filter.Type != "" {
		q = q.Where("orders.type = ?", filter.Type)
	}
	if filter.DeliveryDate != nil {
		q = q.Where("orders.delivery_date = ?", *filter.DeliveryDate)
	}
	if filter.CustomerID != nil {
		q = q.Where("orders.customer_id = ?", *filter.CustomerID)
	}
	if kw := strings.ToLower(strings.TrimSpace(filter.Keyword)); kw != "" {
		like := "%" + kw + "%"
		q = q.Where("(orders.order_number LIKE ? OR LOWER(orders.sender_email) LIKE ? OR LOWER(orders.recipient_first_name) LIKE ?)", like, like, like)
	}
	var rows []models.Order
	if err := q.Scopes(scope).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) listWhere(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	var rows []models.Order
	err := withDetails(r.DB(ctx)).Where(query, args...).Order("delivery_date ASC").Order("order_number ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByStatusOnOrBefore(ctx context.Context, statuses []enums.OrderStatus, date types.Date) ([]models.Order, error) {
	return r.listWhere(ctx, "status IN ? AND delivery_date <= ?", statuses, date)
}

func (r *repository) ListByStatusBefore(ctx context.Context, statuses []enums.OrderStatus, date types.Date) ([]models.Order, error) {
	return r.listWhere(ctx, "status IN ? AND delivery_date < ?", statuses, date)
}

func (r *repository) ListForDate(ctx context.Context, date types.Date, statuses []enums.OrderStatus) ([]models.Order, error) {
	return r.listWhere(ctx, "delivery_date = ? AND status IN ?", date, statuses)
}

func (r *repository) CountConfirmedWithPromo(ctx context.Context, promoID, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Order{}).
		Where("promo_code_id = ? AND customer_id = ? AND status IN ?", promoID, customerID, confirmedStatuses).
		Count(&count).Error
	return count, err
}
