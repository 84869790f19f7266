package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/internal/catalog"
	"github.com/angelmondragon/bakehouse-backend/internal/delivery"
	"github.com/angelmondragon/bakehouse-backend/internal/promo"
	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
	"github.com/angelmondragon/bakehouse-backend/pkg/pagination"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Service is the order workflow: quoting, checkout, edits, the status machine
// and payment reconciliation.
type Service interface {
	Quote(ctx context.Context, req QuoteRequest) (*Summary, error)
	DeliverableDates(ctx context.Context, req QuoteRequest) ([]calendar.Deliverable, error)
	Create(ctx context.Context, actor Actor, req CreateOrderRequest) (*models.Order, error)
	CreateAdhoc(ctx context.Context, actor Actor, req AdhocOrderRequest) (*models.Order, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, query ListQuery) (pagination.Page[OrderSummaryDTO], error)
	ListForDate(ctx context.Context, date types.Date) ([]models.Order, error)
	UpdateByCustomer(ctx context.Context, actor Actor, id uuid.UUID, req CustomerUpdateRequest) (*models.Order, error)
	UpdateByAdmin(ctx context.Context, actor Actor, id uuid.UUID, req AdminUpdateRequest) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor Actor, req StatusUpdateRequest) (*StatusUpdateResult, error)
	Cancel(ctx context.Context, actor Actor, id uuid.UUID, req CancelRequest) (*models.Order, error)
	Refund(ctx context.Context, actor Actor, id uuid.UUID, req RefundRequest) (*models.Order, error)
	PaymentSuccess(ctx context.Context, event PaymentEvent) (*PaymentResult, error)
	StripeSession(ctx context.Context, actor Actor, id uuid.UUID) (*StripeSession, error)
	HitPaySession(ctx context.Context, actor Actor, id uuid.UUID) (*HitPaySession, error)
	ExpirePending(ctx context.Context) (int, error)
	CompleteProcessed(ctx context.Context) (int, error)
	RollbackPendingPayment(ctx context.Context) (int, error)
}

// ServiceParams wires the workflow's collaborators. Gateways may be nil when
// the deployment does not offer them.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Settings  SettingsReader
	Calendar  CalendarService
	Catalog   CatalogLookup
	Stock     StockLedger
	Promo     PromoEngine
	Delivery  DeliveryPricer
	Customers CustomerResolver
	Backups   BackupStore
	Stripe    StripeGateway
	HitPay    HitPayGateway
	Metrics   Metrics
	Logger    *logger.Logger
	Config    config.BakeryConfig
}

type service struct {
	repo              Repository
	tx                txRunner
	outbox            outboxPublisher
	settings          SettingsReader
	calendar          CalendarService
	catalog           CatalogLookup
	stock             StockLedger
	promo             PromoEngine
	delivery          DeliveryPricer
	customers         CustomerResolver
	backups           BackupStore
	stripe            StripeGateway
	hitpay            HitPayGateway
	metrics           Metrics
	logg              *logger.Logger
	clock             calendar.Clock
	numberAttempts    int
	numberBackoff     time.Duration
	confirmationDelay time.Duration
	pendingWindowDays int
	sleep             sleeper
}

type noopMetrics struct{}

func (noopMetrics) IncCreated(string, string) {}
func (noopMetrics) IncPayment(string, string) {}
func (noopMetrics) IncNumberRetry()           {}
func (noopMetrics) IncTransition(string)      {}

// NewService builds the order workflow with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, errors.New("orders repository required")
	case p.Tx == nil:
		return nil, errors.New("transaction runner required")
	case p.Outbox == nil:
		return nil, errors.New("outbox publisher required")
	case p.Settings == nil:
		return nil, errors.New("settings reader required")
	case p.Calendar == nil:
		return nil, errors.New("calendar required")
	case p.Catalog == nil:
		return nil, errors.New("catalog lookup required")
	case p.Stock == nil:
		return nil, errors.New("stock ledger required")
	case p.Promo == nil:
		return nil, errors.New("promo engine required")
	case p.Delivery == nil:
		return nil, errors.New("delivery pricer required")
	case p.Customers == nil:
		return nil, errors.New("customer resolver required")
	case p.Backups == nil:
		return nil, errors.New("backup store required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &service{
		repo:              p.Repo,
		tx:                p.Tx,
		outbox:            p.Outbox,
		settings:          p.Settings,
		calendar:          p.Calendar,
		catalog:           p.Catalog,
		stock:             p.Stock,
		promo:             p.Promo,
		delivery:          p.Delivery,
		customers:         p.Customers,
		backups:           p.Backups,
		stripe:            p.Stripe,
		hitpay:            p.HitPay,
		metrics:           metrics,
		logg:              p.Logger,
		clock:             p.Calendar.Clock(),
		numberAttempts:    p.Config.OrderNumberAttempts,
		numberBackoff:     p.Config.OrderNumberBackoff,
		confirmationDelay: p.Config.ConfirmationEmailDelay,
		pendingWindowDays: p.Config.PendingPaymentWindowDays,
		sleep:             sleepContext,
	}, nil
}

func (s *service) loadSettings(ctx context.Context) (*models.Setting, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery settings")
	}
	return setting, nil
}

func (s *service) Quote(ctx context.Context, req QuoteRequest) (*Summary, error) {
	setting, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	resolved, err := s.catalog.Resolve(ctx, req.Lines, catalog.ResolveOptions{})
	if err != nil {
		return nil, err
	}
	summary := summarize(setting, resolved.ProductsAmount)
	return &summary, nil
}

func (s *service) DeliverableDates(ctx context.Context, req QuoteRequest) ([]calendar.Deliverable, error) {
	resolved, err := s.catalog.Resolve(ctx, req.Lines, catalog.ResolveOptions{})
	if err != nil {
		return nil, err
	}
	return s.calendar.DeliverableDates(ctx, s.stock.Feasible(resolved.Usages))
}

func (s *service) Create(ctx context.Context, actor Actor, req CreateOrderRequest) (*models.Order, error) {
	return s.create(ctx, actor, draft{
		request:        req,
		orderType:      enums.OrderTypeNormal,
		enforceMinimum: true,
	})
}

func (s *service) CreateAdhoc(ctx context.Context, actor Actor, req AdhocOrderRequest) (*models.Order, error) {
	if req.Paid.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paid amount cannot be negative")
	}
	return s.create(ctx, actor, draft{
		request:     req.CreateOrderRequest,
		orderType:   enums.OrderTypeAdhoc,
		paid:        money.Round2(req.Paid),
		note:        req.Note,
		tags:        req.Tags,
		allowCustom: true,
	})
}

type draft struct {
	request        CreateOrderRequest
	orderType      enums.OrderType
	paid           decimal.Decimal
	note           string
	tags           []string
	allowCustom    bool
	enforceMinimum bool
}

// checkDate rejects dates outside the deliverable set for the given usages.
func (s *service) checkDate(ctx context.Context, date types.Date, usages []stock.Usage) error {
	if date.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery date is required")
	}
	ok, err := s.calendar.IsDeliverable(ctx, date, s.stock.Feasible(usages))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check delivery date")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "selected delivery date is not available").
			WithDetails(map[string]any{"deliveryDate": date.String()})
	}
	return nil
}

// quoteDelivery prices the selection and reports whether the date is a peak day.
func (s *service) quoteDelivery(ctx context.Context, in DeliveryInput, date types.Date) (*delivery.Quote, bool, error) {
	quote, err := s.delivery.Price(ctx, delivery.FeeInput{
		MethodID:   in.MethodID,
		TimeSlotID: in.TimeSlotID,
		PostalCode: in.PostalCode,
	})
	if err != nil {
		return nil, false, err
	}
	peak, err := s.calendar.IsPeakDay(ctx, date)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check peak day")
	}
	return quote, peak, nil
}

func deliverySnapshot(in DeliveryInput, quote *delivery.Quote) models.OrderDelivery {
	out := models.OrderDelivery{
		MethodID:   in.MethodID,
		TimeSlotID: in.TimeSlotID,
		Address:    strings.TrimSpace(in.Address),
		Unit:       strings.TrimSpace(in.Unit),
		PostalCode: strings.ReplaceAll(in.PostalCode, " ", ""),
		Fee:        quote.Fee,
	}
	if quote.Method != nil {
		out.MethodName = quote.Method.Name
		out.Type = quote.Method.Type
	}
	if quote.TimeSlot != nil {
		out.TimeSlotLabel = quote.TimeSlot.Label
	}
	return out
}

func (s *service) resolveCustomer(ctx context.Context, actor Actor, d draft) (uuid.UUID, error) {
	if d.orderType == enums.OrderTypeNormal && actor.CustomerID != nil {
		return *actor.CustomerID, nil
	}
	sender := d.request.Sender.model()
	if strings.TrimSpace(sender.Email) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "sender email is required").
			WithDetails(map[string]any{"field": "sender.email"})
	}
	customer, err := s.customers.FindOrCreate(ctx, sender)
	if err != nil {
		return uuid.Nil, err
	}
	return customer.ID, nil
}

func (s *service) create(ctx context.Context, actor Actor, d draft) (*models.Order, error) {
	req := d.request
	setting, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	resolved, err := s.catalog.Resolve(ctx, req.Lines, catalog.ResolveOptions{AllowCustom: d.allowCustom})
	if err != nil {
		return nil, err
	}
	if d.enforceMinimum && resolved.ProductsAmount.LessThan(setting.MinAmount) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "minimum amount to checkout is %s", money.Format(setting.MinAmount))
	}
	if err := s.checkDate(ctx, req.DeliveryDate, resolved.Usages); err != nil {
		return nil, err
	}
	quote, peak, err := s.quoteDelivery(ctx, req.Delivery, req.DeliveryDate)
	if err != nil {
		return nil, err
	}
	customerID, err := s.resolveCustomer(ctx, actor, d)
	if err != nil {
		return nil, err
	}

	var applied *promo.Applied
	if code := strings.TrimSpace(req.PromoCode); code != "" {
		applied, err = s.promo.Validate(ctx, promo.ValidateInput{
			Code:       code,
			Subtotal:   resolved.ProductsAmount,
			CustomerID: &customerID,
			Role:       actor.Role,
		})
		if err != nil {
			return nil, err
		}
	}

	pricing := price(pricingInput{
		Setting:        setting,
		ProductsAmount: resolved.ProductsAmount,
		Delivery:       quote,
		IsPeakDay:      peak,
		Promo:          applied,
	})

	order := &models.Order{
		CustomerID:     customerID,
		AccountID:      actor.AccountID,
		DeliveryDate:   req.DeliveryDate,
		Type:           d.orderType,
		Delivery:       deliverySnapshot(req.Delivery, quote),
		Sender:         req.Sender.model(),
		Recipient:      req.Recipient.model(),
		GiftMessage:    req.GiftMessage,
		Remark:         req.Remark,
		Note:           d.note,
		Tags:           d.tags,
		DeliveryZoneID: quote.ZoneID,
		Paid:           d.paid,
		Lines:          resolved.Lines,
	}
	if d.orderType == enums.OrderTypeAdhoc {
		// staff-keyed orders belong to the customer, not the admin account
		order.AccountID = nil
	}
	for i := range order.Lines {
		order.Lines[i].Position = i
	}
	if applied != nil {
		order.PromoCodeID = &applied.PromoID
		order.UsedCode = applied.UsedCode
	}
	applyPricing(order, pricing)

	confirm := false
	switch d.orderType {
	case enums.OrderTypeAdhoc:
		order.Status = enums.OrderStatusPendingPayment
		payable := order.Payable()
		confirm = !payable.IsPositive() || money.Equal(order.Paid, payable)
	default:
		order.Status = enums.OrderStatusPending
		// a code covering the whole payable confirms without a payment
		confirm = !order.Payable().IsPositive()
	}
	if confirm {
		order.Status = enums.OrderStatusConfirm
		order.StockHeld = true
		now := s.clock.LocalNow()
		order.PaidAt = &now
	}

	number, err := s.withOrderNumber(ctx, func(ctx context.Context, number string) error {
		order.OrderNumber = number
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			if confirm {
				return s.emitConfirmed(ctx, tx, order, actor)
			}
			return nil
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	order.OrderNumber = number
	s.metrics.IncCreated(string(order.Type), string(order.Status))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"type":         order.Type,
	})
	s.logg.Info(logCtx, "order created")

	if confirm {
		s.afterConfirm(logCtx, order, true)
	}
	return order, nil
}

// afterConfirm applies the side effects of reaching CONFIRM once the state
// change is committed. Stock and the promo redemption are taken on the first
// confirmation only. Failures are logged and the order stays confirmed.
func (s *service) afterConfirm(ctx context.Context, order *models.Order, first bool) {
	if first {
		if err := s.stock.Reserve(ctx, order.DeliveryDate, stock.UsagesOf(order.Lines), &order.ID); err != nil {
			s.logg.Error(ctx, "stock reservation incomplete", err)
		}
		if order.PromoCodeID != nil {
			applied := &promo.Applied{PromoID: *order.PromoCodeID, UsedCode: order.UsedCode}
			customerID := order.CustomerID
			if err := s.promo.MarkUsed(ctx, applied, &customerID); err != nil {
				s.logg.Error(ctx, "mark promo code used", err)
			}
		}
	}
	if err := s.backups.Save(ctx, *order); err != nil {
		s.logg.Error(ctx, "save order backup", err)
	}
	s.metrics.IncTransition(string(enums.OrderStatusConfirm))
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// canView lets anyone holding the id read a guest order; account orders are
// private to their account and admins.
func canView(actor Actor, order *models.Order) bool {
	if actor.isAdmin() || order.AccountID == nil {
		return true
	}
	return actor.AccountID != nil && *actor.AccountID == *order.AccountID
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (pagination.Page[OrderSummaryDTO], error) {
	if _, err := pagination.ParseCursor(query.Cursor); err != nil {
		return pagination.Page[OrderSummaryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		Statuses:     query.Statuses,
		Type:         query.Type,
		DeliveryDate: query.DeliveryDate,
		Keyword:      query.Keyword,
	}, pagination.Params{Limit: query.Limit, Cursor: query.Cursor})
	if err != nil {
		return pagination.Page[OrderSummaryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	dtos := make([]OrderSummaryDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, ToSummaryDTO(&rows[i]))
	}
	return pagination.Build(dtos, query.Limit, func(o OrderSummaryDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

// fulfilmentStatuses are the orders that go out on their delivery date.
var fulfilmentStatuses = []enums.OrderStatus{
	enums.OrderStatusConfirm,
	enums.OrderStatusDelivering,
	enums.OrderStatusReadyForCollection,
	enums.OrderStatusCompleted,
}

func (s *service) ListForDate(ctx context.Context, date types.Date) ([]models.Order, error) {
	rows, err := s.repo.ListForDate(ctx, date, fulfilmentStatuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders for date")
	}
	return rows, nil
}

// save persists the order row and runs emit in the same transaction.
func (s *service) save(ctx context.Context, order *models.Order, emit func(tx *gorm.DB) error) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return err
		}
		if emit == nil {
			return nil
		}
		return emit(tx)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	return nil
}
