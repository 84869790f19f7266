package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/internal/catalog"
	"github.com/angelmondragon/bakehouse-backend/internal/delivery"
	"github.com/angelmondragon/bakehouse-backend/internal/promo"
	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/hitpay"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/pagination"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Repository defines persistence operations for orders, lines and the payment log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, gateway enums.PaymentType, externalID string) (*models.Order, error)
	LatestNumber(ctx context.Context) (string, error)
	Save(ctx context.Context, order *models.Order) error
	ReplaceLines(ctx context.Context, orderID uuid.UUID, lines []models.OrderLine) error
	InsertPayment(ctx context.Context, payment *models.OrderPayment) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error)
	ListByStatusOnOrBefore(ctx context.Context, statuses []enums.OrderStatus, date types.Date) ([]models.Order, error)
	ListByStatusBefore(ctx context.Context, statuses []enums.OrderStatus, date types.Date) ([]models.Order, error)
	ListForDate(ctx context.Context, date types.Date, statuses []enums.OrderStatus) ([]models.Order, error)
	CountConfirmedWithPromo(ctx context.Context, promoID, customerID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockLedger is the slice of the stock service the workflow reserves against.
// Reservations are independent writes per usage; a failure part way leaves
// earlier usages applied.
type StockLedger interface {
	IsFeasible(ctx context.Context, date types.Date, usages []stock.Usage) (bool, error)
	Feasible(usages []stock.Usage) calendar.FeasibleFunc
	Reserve(ctx context.Context, date types.Date, usages []stock.Usage, orderID *uuid.UUID) error
	Release(ctx context.Context, date types.Date, usages []stock.Usage, orderID *uuid.UUID) error
}

// PromoEngine validates and redeems codes.
type PromoEngine interface {
	Validate(ctx context.Context, input promo.ValidateInput) (*promo.Applied, error)
	MarkUsed(ctx context.Context, applied *promo.Applied, customerID *uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
}

// CalendarService answers date questions in the shop's timezone.
type CalendarService interface {
	DeliverableDates(ctx context.Context, feasible calendar.FeasibleFunc) ([]calendar.Deliverable, error)
	IsDeliverable(ctx context.Context, date types.Date, feasible calendar.FeasibleFunc) (bool, error)
	IsPeakDay(ctx context.Context, date types.Date) (bool, error)
	Clock() calendar.Clock
}

// CatalogLookup prices cart lines.
type CatalogLookup interface {
	Resolve(ctx context.Context, lines []catalog.CartLine, opts catalog.ResolveOptions) (*catalog.Resolved, error)
}

// DeliveryPricer quotes a delivery selection.
type DeliveryPricer interface {
	Price(ctx context.Context, input delivery.FeeInput) (*delivery.Quote, error)
}

// CustomerResolver finds or creates the buying customer by email.
type CustomerResolver interface {
	FindOrCreate(ctx context.Context, contact models.Contact) (*models.Customer, error)
}

// SettingsReader reads the delivery settings singleton.
type SettingsReader interface {
	Get(ctx context.Context) (*models.Setting, error)
}

// BackupStore keeps the snapshot taken when an order is confirmed.
type BackupStore interface {
	Save(ctx context.Context, order models.Order) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// StripeGateway is gateway A.
type StripeGateway interface {
	CreatePaymentIntent(ctx context.Context, orderID uuid.UUID, orderNumber string, amount decimal.Decimal) (*stripe.PaymentIntent, error)
	Refund(ctx context.Context, intentID string, amount decimal.Decimal) (*stripe.Refund, error)
}

// HitPayGateway is gateway B.
type HitPayGateway interface {
	CreatePaymentRequest(ctx context.Context, req hitpay.CreateRequest) (*hitpay.PaymentRequest, error)
	RefundPayment(ctx context.Context, paymentID string, amount decimal.Decimal) (*hitpay.Refund, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Metrics counts workflow events.
type Metrics interface {
	IncCreated(orderType, status string)
	IncPayment(gateway, kind string)
	IncNumberRetry()
	IncTransition(status string)
}

type sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
