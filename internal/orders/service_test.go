package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

func TestCreatePendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, Actor{}, f.checkout(1, ""))
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, FirstOrderNumber, order.OrderNumber)
	assert.True(t, order.ProductsAmount.Equal(dec("20")))
	assert.True(t, order.Delivery.Fee.Equal(dec("5")))
	assert.True(t, order.TotalAmount.Equal(dec("25")))
	assert.True(t, order.Discount.IsZero())
	assert.True(t, order.Unpaid.Equal(dec("25")))
	assert.False(t, order.StockHeld)
	assert.Nil(t, order.AccountID)
	assertBalanced(t, order)

	stored := f.reload(t, order.ID)
	assert.Len(t, stored.Lines, 1)
	assert.Equal(t, "Standard", stored.Delivery.MethodName)
	assert.Equal(t, 5, f.stockOn(t, f.date), "pending orders hold no stock")
	assert.Zero(t, f.events(t, enums.EventOrderConfirmed))

	second, err := f.svc.Create(ctx, Actor{}, f.checkout(1, ""))
	require.NoError(t, err)
	assert.Equal(t, "210001", second.OrderNumber)
}

func TestCreateWithPercentageCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.promoCode(t, "SAVE10", enums.PromoCodePercentage, 10)

	order, err := f.svc.Create(ctx, Actor{}, f.checkout(1, "save10"))
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(dec("25")))
	assert.True(t, order.Discount.Equal(dec("2")))
	assert.True(t, order.Unpaid.Equal(dec("23")))
	assert.True(t, order.Payable().Equal(dec("23")))
	require.NotNil(t, order.PromoCodeID)
	assert.Equal(t, code.ID, *order.PromoCodeID)
	assertBalanced(t, order)

	stored, err := f.promo.Get(ctx, code.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Used, "codes are redeemed on confirmation")
}

func TestCreateWithCodeCoveringTotalConfirms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.promoCode(t, "ABS30", enums.PromoCodeAbsolute, 30)

	order, err := f.svc.Create(ctx, Actor{}, f.checkout(1, "ABS30"))
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirm, order.Status)
	assert.True(t, order.TotalAmount.Equal(dec("25")))
	assert.True(t, order.Discount.Equal(dec("30")))
	assert.True(t, order.Unpaid.Equal(dec("-5")))
	assert.True(t, order.StockHeld)
	assertBalanced(t, order)
	assertBalanced(t, f.reload(t, order.ID))

	assert.Equal(t, 4, f.stockOn(t, f.date))
	stored, err := f.promo.Get(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Used)
	backup, err := f.backups.Get(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, backup)
	assert.Equal(t, enums.OrderStatusConfirm, backup.Status)
	assert.EqualValues(t, 1, f.events(t, enums.EventOrderConfirmed))
}

func TestCreateRejectsCartBelowMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.settings.UpdateCartMinimum(ctx, decimal.NewFromInt(30))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, Actor{}, f.checkout(1, ""))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "minimum amount to checkout")

	order, err := f.svc.Create(ctx, Actor{}, f.checkout(2, ""))
	require.NoError(t, err)
	assert.True(t, order.ProductsAmount.Equal(dec("40")))
}

func TestCreateRejectsUndeliverableDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today := f.checkout(1, "")
	today.DeliveryDate = types.MustParseDate("2024-05-10")
	_, err := f.svc.Create(ctx, Actor{}, today)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Create(ctx, Actor{}, f.checkout(6, ""))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "more than the day's stock")

	missing := f.checkout(1, "")
	missing.DeliveryDate = types.Date{}
	_, err = f.svc.Create(ctx, Actor{}, missing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateRequiresPostalCodeForAddressDelivery(t *testing.T) {
	f := newFixture(t)
	req := f.checkout(1, "")
	req.Delivery.PostalCode = ""

	_, err := f.svc.Create(context.Background(), Actor{}, req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateAdhoc(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminID := uuid.New()
	admin := Actor{AccountID: &adminID, Role: enums.AccountRoleAdmin}

	partial, err := f.svc.CreateAdhoc(ctx, admin, AdhocOrderRequest{
		CreateOrderRequest: f.checkout(1, ""),
		Paid:               dec("10"),
		Note:               "phone order",
		Tags:               []string{"corporate"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderTypeAdhoc, partial.Type)
	assert.Equal(t, enums.OrderStatusPendingPayment, partial.Status)
	assert.True(t, partial.Unpaid.Equal(dec("15")))
	assert.Nil(t, partial.AccountID)
	assert.Equal(t, 5, f.stockOn(t, f.date))
	assertBalanced(t, partial)

	full, err := f.svc.CreateAdhoc(ctx, admin, AdhocOrderRequest{
		CreateOrderRequest: f.checkout(1, ""),
		Paid:               dec("25"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirm, full.Status)
	assert.True(t, full.Unpaid.IsZero())
	assert.Equal(t, 4, f.stockOn(t, f.date))

	_, err = f.svc.CreateAdhoc(ctx, admin, AdhocOrderRequest{
		CreateOrderRequest: f.checkout(1, ""),
		Paid:               dec("-1"),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQuoteAndDeliverableDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.svc.Quote(ctx, QuoteRequest{Lines: f.lines(2)})
	require.NoError(t, err)
	assert.True(t, summary.ProductsAmount.Equal(dec("40")))
	assert.True(t, summary.MeetsMinimum)

	dates, err := f.svc.DeliverableDates(ctx, QuoteRequest{Lines: f.lines(5)})
	require.NoError(t, err)
	require.NotEmpty(t, dates)
	assert.Equal(t, "2024-05-11", dates[0].Date.String())
	assert.True(t, dates[0].Valid)

	dates, err = f.svc.DeliverableDates(ctx, QuoteRequest{Lines: f.lines(6)})
	require.NoError(t, err)
	for _, d := range dates {
		assert.False(t, d.Valid, d.Date.String())
	}
}

func TestGetHidesAccountOrdersFromOtherAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	customer := Actor{AccountID: &owner, Role: enums.AccountRoleCustomer}

	order, err := f.svc.Create(ctx, customer, f.checkout(1, ""))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, customer, order.ID)
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = f.svc.Get(ctx, Actor{AccountID: &stranger, Role: enums.AccountRoleCustomer}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, Actor{Role: enums.AccountRoleAdmin}, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, customer, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListAndListForDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending, err := f.svc.Create(ctx, Actor{}, f.checkout(1, ""))
	require.NoError(t, err)
	confirmed, err := f.svc.Create(ctx, Actor{}, f.checkout(1, ""))
	require.NoError(t, err)
	f.pay(t, confirmed, "pi_list", "25")

	page, err := f.svc.List(ctx, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = f.svc.List(ctx, ListQuery{Statuses: []enums.OrderStatus{enums.OrderStatusPending}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, pending.ID, page.Items[0].ID)

	page, err = f.svc.List(ctx, ListQuery{Keyword: confirmed.OrderNumber, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, confirmed.ID, page.Items[0].ID)

	rows, err := f.svc.ListForDate(ctx, f.date)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, confirmed.ID, rows[0].ID)
}

func TestUpdateByCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, Actor{}, f.checkout(1, ""))
	require.NoError(t, err)

	next := types.MustParseDate("2024-05-14")
	updated, err := f.svc.UpdateByCustomer(ctx, Actor{}, order.ID, CustomerUpdateRequest{
		Delivery:     DeliveryInput{MethodID: f.standard.ID, Address: "2 Orchard Road", PostalCode: "238802"},
		DeliveryDate: next,
		Sender:       ContactInput{FirstName: "Mei", Email: "mei@example.com"},
		Recipient:    ContactInput{FirstName: "Jun"},
		GiftMessage:  "Happy birthday",
	})
	require.NoError(t, err)
	assert.Equal(t, next, updated.DeliveryDate)
	assert.Equal(t, "Jun", updated.Recipient.FirstName)
	assertBalanced(t, f.reload(t, order.ID))

	f.pay(t, updated, "pi_customer", "25")
	_, err = f.svc.UpdateByCustomer(ctx, Actor{}, order.ID, CustomerUpdateRequest{
		Delivery:     DeliveryInput{MethodID: f.standard.ID, PostalCode: "238802"},
		DeliveryDate: next,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestOrderNumberCollisionsExhaustRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing, err := f.svc.Create(ctx, Actor{}, f.checkout(1, ""))
	require.NoError(t, err)

	s := f.svc.(*service)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	attempts := 0
	_, err = s.withOrderNumber(ctx, func(ctx context.Context, number string) error {
		attempts++
		// always collide with the existing row
		dup := *existing
		dup.ID = uuid.Nil
		dup.Lines = nil
		dup.Payments = nil
		return f.db.Create(&dup).Error
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeResourceExhausted))
	assert.Equal(t, 3, attempts)
}
