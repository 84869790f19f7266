package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/internal/catalog"
	"github.com/angelmondragon/bakehouse-backend/internal/customers"
	"github.com/angelmondragon/bakehouse-backend/internal/delivery"
	"github.com/angelmondragon/bakehouse-backend/internal/promo"
	"github.com/angelmondragon/bakehouse-backend/internal/settings"
	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

var singapore = time.FixedZone("SGT", 8*60*60)

type memoryBackups struct {
	mu     sync.Mutex
	orders map[uuid.UUID]models.Order
}

func newMemoryBackups() *memoryBackups {
	return &memoryBackups{orders: map[uuid.UUID]models.Order{}}
}

func (m *memoryBackups) Save(_ context.Context, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.Lines = append([]models.OrderLine(nil), order.Lines...)
	order.Payments = nil
	m.orders[order.ID] = order
	return nil
}

func (m *memoryBackups) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	order.Lines = append([]models.OrderLine(nil), order.Lines...)
	return &order, nil
}

type stripeRefundCall struct {
	intentID string
	amount   decimal.Decimal
}

type stubStripe struct {
	intents int
	refunds []stripeRefundCall
	err     error
}

func (s *stubStripe) CreatePaymentIntent(_ context.Context, _ uuid.UUID, _ string, amount decimal.Decimal) (*stripe.PaymentIntent, error) {
	s.intents++
	return &stripe.PaymentIntent{
		ID:           fmt.Sprintf("pi_test_%d", s.intents),
		ClientSecret: "secret",
		Amount:       money.ToMinor(amount),
	}, nil
}

func (s *stubStripe) Refund(_ context.Context, intentID string, amount decimal.Decimal) (*stripe.Refund, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.refunds = append(s.refunds, stripeRefundCall{intentID: intentID, amount: amount})
	return &stripe.Refund{ID: fmt.Sprintf("re_test_%d", len(s.refunds))}, nil
}

type fixture struct {
	db       *gorm.DB
	svc      Service
	now      time.Time
	stock    stock.Service
	promo    promo.Service
	settings settings.Service
	backups  *memoryBackups
	stripe   *stubStripe
	product  *models.Product
	standard *models.DeliveryMethod
	date     types.Date
}

// newFixture wires the workflow against real collaborators on an in-memory
// database. The clock starts on 2024-05-10 10:00 in Singapore and the product
// restocks five a day.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	db := client.DB()
	f := &fixture{
		db:      db,
		now:     time.Date(2024, 5, 10, 10, 0, 0, 0, singapore),
		backups: newMemoryBackups(),
		stripe:  &stubStripe{},
		date:    types.MustParseDate("2024-05-13"),
	}
	clock := calendar.Clock{Now: func() time.Time { return f.now }, Location: singapore}

	settingsSvc, err := settings.NewService(settings.NewRepository(db))
	require.NoError(t, err)
	cal, err := calendar.NewService(settingsSvc, clock)
	require.NoError(t, err)
	stockSvc, err := stock.NewService(stock.NewRepository(db), cal, settingsSvc, logger.Nop())
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(db))
	require.NoError(t, err)
	repo := NewRepository(db)
	promoSvc, err := promo.NewService(promo.NewRepository(db), repo, clock)
	require.NoError(t, err)
	deliveryRepo := delivery.NewRepository(db)
	deliverySvc, err := delivery.NewService(deliveryRepo)
	require.NoError(t, err)
	customerSvc, err := customers.NewService(customers.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Tx:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(db), logger.Nop()),
		Settings:  settingsSvc,
		Calendar:  cal,
		Catalog:   catalogSvc,
		Stock:     stockSvc,
		Promo:     promoSvc,
		Delivery:  deliverySvc,
		Customers: customerSvc,
		Backups:   f.backups,
		Stripe:    f.stripe,
		Logger:    logger.Nop(),
		Config: config.BakeryConfig{
			OrderNumberAttempts:      3,
			ConfirmationEmailDelay:   5 * time.Minute,
			PendingPaymentWindowDays: 1,
		},
	})
	require.NoError(t, err)
	f.svc = svc
	f.stock = stockSvc
	f.promo = promoSvc
	f.settings = settingsSvc

	ctx := context.Background()
	product := &models.Product{
		Name:        "Chocolate Cake",
		Slug:        "chocolate-cake",
		Price:       decimal.NewFromInt(20),
		Active:      true,
		StockPolicy: models.StockPolicy{IsAutoRestock: true, Restocks: []int{5, 5, 5, 5, 5, 5, 5}},
	}
	require.NoError(t, db.Create(product).Error)
	_, err = stockSvc.EnsureRecordsForProduct(ctx, product)
	require.NoError(t, err)
	f.product = product

	standard := &models.DeliveryMethod{
		Name:           "Standard",
		Type:           enums.DeliveryMethodNormal,
		Price:          decimal.NewFromInt(5),
		NeedPostalCode: true,
		Active:         true,
	}
	require.NoError(t, deliveryRepo.SaveMethod(ctx, standard))
	f.standard = standard
	return f
}

func (f *fixture) lines(qty int) []catalog.CartLine {
	id := f.product.ID
	return []catalog.CartLine{{Kind: enums.OrderLineProduct, ProductID: &id, Quantity: qty}}
}

func (f *fixture) checkout(qty int, code string) CreateOrderRequest {
	return CreateOrderRequest{
		Lines:        f.lines(qty),
		Delivery:     DeliveryInput{MethodID: f.standard.ID, Address: "1 Orchard Road", PostalCode: "238801"},
		DeliveryDate: f.date,
		Sender:       ContactInput{FirstName: "Mei", LastName: "Tan", Email: "mei@example.com", Phone: "91234567"},
		Recipient:    ContactInput{FirstName: "Wei", LastName: "Lim", Phone: "98765432"},
		PromoCode:    code,
	}
}

func (f *fixture) adminUpdate(qty int, date types.Date) AdminUpdateRequest {
	req := f.checkout(qty, "")
	return AdminUpdateRequest{
		Lines:        req.Lines,
		Delivery:     req.Delivery,
		DeliveryDate: date,
		Sender:       req.Sender,
		Recipient:    req.Recipient,
	}
}

func (f *fixture) promoCode(t *testing.T, code string, typ enums.PromoCodeType, amount int64) *models.PromoCode {
	t.Helper()
	p, err := f.promo.Create(context.Background(), promo.CreateInput{
		Terms: promo.Terms{
			Name:      code,
			Type:      typ,
			Amount:    decimal.NewFromInt(amount),
			StartDate: types.MustParseDate("2024-05-01"),
			Total:     10,
		},
		Code: code,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stockOn(t *testing.T, date types.Date) int {
	t.Helper()
	var rec models.StockRecord
	require.NoError(t, f.db.
		Where("product_id = ? AND variant_id = ? AND date = ?", f.product.ID, uuid.Nil, date).
		First(&rec).Error)
	return rec.Qty
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := NewRepository(f.db).FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func (f *fixture) pay(t *testing.T, order *models.Order, ref string, amount string) *PaymentResult {
	t.Helper()
	res, err := f.svc.PaymentSuccess(context.Background(), PaymentEvent{
		OrderID:    order.ID,
		Gateway:    enums.PaymentTypeStripe,
		Kind:       enums.PaymentEntryPayment,
		ExternalID: ref,
		Amount:     dec(amount),
	})
	require.NoError(t, err)
	return res
}

func assertBalanced(t *testing.T, o *models.Order) {
	t.Helper()
	assert.True(t, o.TotalAmount.Sub(o.Discount).Equal(o.Paid.Add(o.Unpaid)),
		"total %s - discount %s != paid %s + unpaid %s", o.TotalAmount, o.Discount, o.Paid, o.Unpaid)
}
