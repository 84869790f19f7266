package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

type stubCalendar struct {
	days []calendar.Day
	err  error
}

func (c stubCalendar) Days(context.Context) ([]calendar.Day, error) {
	return c.days, c.err
}

type stubSettings struct {
	setting models.Setting
}

func (s stubSettings) Get(context.Context) (*models.Setting, error) {
	setting := s.setting
	return &setting, nil
}

var (
	monday    = types.MustParseDate("2024-05-06")
	tuesday   = types.MustParseDate("2024-05-07")
	wednesday = types.MustParseDate("2024-05-08")
)

func threeDays() []calendar.Day {
	return []calendar.Day{
		{Date: monday},
		{Date: tuesday},
		{Date: wednesday, IsClosed: true},
	}
}

type fixture struct {
	db   *gorm.DB
	repo *Repository
	svc  Service
}

func newFixture(t *testing.T, threshold int) fixture {
	t.Helper()
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, stubCalendar{days: threeDays()}, stubSettings{setting: models.Setting{NotifyLowStock: threshold}}, logger.Nop())
	require.NoError(t, err)
	return fixture{db: db, repo: repo, svc: svc}
}

func (f fixture) product(t *testing.T, p models.Product) *models.Product {
	t.Helper()
	if p.Name == "" {
		p.Name = "Carrot Cake"
	}
	p.Slug = uuid.NewString()
	p.Price = decimal.NewFromInt(20)
	require.NoError(t, f.db.Create(&p).Error)
	loaded, err := f.repo.FindProduct(context.Background(), p.ID)
	require.NoError(t, err)
	return loaded
}

func restocking() models.StockPolicy {
	return models.StockPolicy{IsAutoRestock: true, Restocks: []int{0, 5, 6, 7, 8, 9, 10}}
}

func TestEnsureRecordsSeedsFromWeekdayRestocks(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	product := f.product(t, models.Product{Active: true, StockPolicy: restocking()})

	created, err := f.svc.EnsureRecordsForProduct(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	records, err := f.repo.RecordsForProduct(ctx, product.ID, []types.Date{monday, tuesday, wednesday})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 5, records[0].Qty)
	assert.Equal(t, 6, records[1].Qty)
	assert.Equal(t, 7, records[2].Qty)

	again, err := f.svc.EnsureRecordsForProduct(ctx, product)
	require.NoError(t, err)
	assert.Zero(t, again)

	movements, err := f.repo.Movements(ctx, product.ID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, enums.StockMovementRestock, movements[0].Reason)
}

func TestEnsureRecordsExtendsNewVariants(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	product := f.product(t, models.Product{
		Active: true,
		Variants: []models.ProductVariant{
			{Name: "6 inch", Price: decimal.NewFromInt(30), Active: true, StockPolicy: restocking()},
		},
	})
	created, err := f.svc.EnsureRecordsForProduct(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	added := models.ProductVariant{ProductID: product.ID, Name: "8 inch", Price: decimal.NewFromInt(40), Active: true}
	require.NoError(t, f.db.Create(&added).Error)
	fixedOnly := models.ProductVariant{ProductID: product.ID, Name: "Slice", Price: decimal.NewFromInt(6), Active: true,
		StockPolicy: models.StockPolicy{IsFixedStock: true, FixedStock: 4}}
	require.NoError(t, f.db.Create(&fixedOnly).Error)

	product, err = f.repo.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	created, err = f.svc.EnsureRecordsForProduct(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	movements, err := f.repo.Movements(ctx, product.ID, added.ID)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, enums.StockMovementRestockVariant, movements[0].Reason)
	assert.Zero(t, movements[0].Balance)
}

func TestEnsureRecordsSkipsFixedStockProducts(t *testing.T) {
	f := newFixture(t, 0)
	product := f.product(t, models.Product{Active: true, StockPolicy: models.StockPolicy{IsFixedStock: true, FixedStock: 10}})

	created, err := f.svc.EnsureRecordsForProduct(context.Background(), product)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestAvailableQuantitiesLedger(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	product := f.product(t, models.Product{Active: true, StockPolicy: models.StockPolicy{IsAutoRestock: true, Restocks: []int{0, 5, 0, 7, 0, 0, 0}}})
	_, err := f.svc.EnsureRecordsForProduct(ctx, product)
	require.NoError(t, err)

	got, err := f.svc.AvailableQuantities(ctx, product.ID, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, monday, got[0].Date)
	assert.Equal(t, 5, got[0].Qty)
}

func TestAvailableQuantitiesFixedStockProjection(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	start := tuesday
	product := f.product(t, models.Product{Active: true, StockPolicy: models.StockPolicy{IsFixedStock: true, FixedStock: 4, FixedStockStartDate: &start}})

	got, err := f.svc.AvailableQuantities(ctx, product.ID, nil)
	require.NoError(t, err)
	require.Len(t, got, 1, "monday precedes the start date and wednesday is closed")
	assert.Equal(t, tuesday, got[0].Date)
	assert.Equal(t, 4, got[0].Qty)

	_, err = f.svc.AvailableQuantities(ctx, uuid.New(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestIsFeasible(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cake := f.product(t, models.Product{Active: true, StockPolicy: restocking()})
	_, err := f.svc.EnsureRecordsForProduct(ctx, cake)
	require.NoError(t, err)
	start := tuesday
	cookies := f.product(t, models.Product{Name: "Cookies", Active: true, StockPolicy: models.StockPolicy{IsFixedStock: true, FixedStock: 3, FixedStockStartDate: &start}})
	retired := f.product(t, models.Product{Name: "Retired", StockPolicy: restocking()})
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", retired.ID).Update("active", false).Error)

	cases := []struct {
		name   string
		date   types.Date
		usages []Usage
		want   bool
	}{
		{"enough ledger stock", monday, []Usage{{ProductID: cake.ID, Qty: 5}}, true},
		{"merged lines exceed stock", monday, []Usage{{ProductID: cake.ID, Qty: 3}, {ProductID: cake.ID, Qty: 3}}, false},
		{"fixed stock before start date", monday, []Usage{{ProductID: cookies.ID, Qty: 1}}, false},
		{"fixed stock on start date", tuesday, []Usage{{ProductID: cookies.ID, Qty: 3}}, true},
		{"fixed stock shortfall", tuesday, []Usage{{ProductID: cookies.ID, Qty: 4}}, false},
		{"inactive product", monday, []Usage{{ProductID: retired.ID, Qty: 1}}, false},
		{"unknown product", monday, []Usage{{ProductID: uuid.New(), Qty: 1}}, false},
		{"no ledger row", types.MustParseDate("2024-06-01"), []Usage{{ProductID: cake.ID, Qty: 1}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := f.svc.IsFeasible(ctx, tc.date, tc.usages)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestReserveAndReleaseLedgerAndFixed(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cake := f.product(t, models.Product{Active: true, StockPolicy: restocking()})
	_, err := f.svc.EnsureRecordsForProduct(ctx, cake)
	require.NoError(t, err)
	cookies := f.product(t, models.Product{Name: "Cookies", Active: true, StockPolicy: models.StockPolicy{IsFixedStock: true, FixedStock: 10}})
	orderID := uuid.New()

	usages := []Usage{{ProductID: cake.ID, Qty: 2}, {ProductID: cookies.ID, Qty: 3}}
	require.NoError(t, f.svc.Reserve(ctx, monday, usages, &orderID))

	record, err := f.repo.FindRecord(ctx, cake.ID, uuid.Nil, monday)
	require.NoError(t, err)
	assert.Equal(t, 3, record.Qty)
	reloaded, err := f.repo.FindProduct(ctx, cookies.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.FixedStock)

	require.NoError(t, f.svc.Release(ctx, monday, usages, &orderID))
	record, err = f.repo.FindRecord(ctx, cake.ID, uuid.Nil, monday)
	require.NoError(t, err)
	assert.Equal(t, 5, record.Qty)

	movements, err := f.repo.Movements(ctx, cake.ID, uuid.Nil)
	require.NoError(t, err)
	last := movements[len(movements)-2:]
	assert.Equal(t, enums.StockMovementSold, last[0].Reason)
	assert.Equal(t, -2, last[0].Delta)
	assert.Equal(t, enums.StockMovementRefill, last[1].Reason)
	assert.Equal(t, orderID, *last[1].OrderID)

	fixedMoves, err := f.repo.Movements(ctx, cookies.ID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, fixedMoves, 2)
	assert.Equal(t, enums.StockMovementFixedSold, fixedMoves[0].Reason)
	assert.Nil(t, fixedMoves[0].Date)
}

func TestReserveAppliesLinesIndependently(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cake := f.product(t, models.Product{Active: true, StockPolicy: restocking()})
	_, err := f.svc.EnsureRecordsForProduct(ctx, cake)
	require.NoError(t, err)

	err = f.svc.Reserve(ctx, monday, []Usage{{ProductID: cake.ID, Qty: 1}, {ProductID: uuid.New(), Qty: 1}}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	record, err := f.repo.FindRecord(ctx, cake.ID, uuid.Nil, monday)
	require.NoError(t, err)
	assert.Equal(t, 4, record.Qty, "the first line stays reserved")
}

func TestReservationsNeverExceedSeedSequentially(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cake := f.product(t, models.Product{Active: true, StockPolicy: restocking()})
	_, err := f.svc.EnsureRecordsForProduct(ctx, cake)
	require.NoError(t, err)

	reserved := 0
	for i := 0; i < 8; i++ {
		usages := []Usage{{ProductID: cake.ID, Qty: 1}}
		ok, err := f.svc.IsFeasible(ctx, monday, usages)
		require.NoError(t, err)
		if !ok {
			continue
		}
		require.NoError(t, f.svc.Reserve(ctx, monday, usages, nil))
		reserved++
	}
	assert.Equal(t, 5, reserved)
}

func TestSetLedgerQtyAndFixedStock(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cake := f.product(t, models.Product{Active: true, StockPolicy: restocking()})
	cookies := f.product(t, models.Product{Name: "Cookies", Active: true, StockPolicy: models.StockPolicy{IsFixedStock: true, FixedStock: 10}})

	require.NoError(t, f.svc.SetLedgerQty(ctx, SetLedgerQtyInput{ProductID: cake.ID, Date: monday, Qty: 12}))
	require.NoError(t, f.svc.SetLedgerQty(ctx, SetLedgerQtyInput{ProductID: cake.ID, Date: monday, Qty: 9}))
	record, err := f.repo.FindRecord(ctx, cake.ID, uuid.Nil, monday)
	require.NoError(t, err)
	assert.Equal(t, 9, record.Qty)

	movements, err := f.repo.Movements(ctx, cake.ID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, -3, movements[1].Delta)
	assert.Equal(t, enums.StockMovementAdminSet, movements[1].Reason)

	err = f.svc.SetLedgerQty(ctx, SetLedgerQtyInput{ProductID: cookies.ID, Date: monday, Qty: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	err = f.svc.SetFixedStock(ctx, SetFixedStockInput{ProductID: cake.ID, Qty: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	start := tuesday
	require.NoError(t, f.svc.SetFixedStock(ctx, SetFixedStockInput{ProductID: cookies.ID, Qty: 2, StartDate: &start}))
	reloaded, err := f.repo.FindProduct(ctx, cookies.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.FixedStock)
	require.NotNil(t, reloaded.FixedStockStartDate)
	assert.Equal(t, tuesday, *reloaded.FixedStockStartDate)
}

func TestLowStockDigest(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	cake := f.product(t, models.Product{Active: true, StockPolicy: restocking()})
	_, err := f.svc.EnsureRecordsForProduct(ctx, cake)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetLedgerQty(ctx, SetLedgerQtyInput{ProductID: cake.ID, Date: tuesday, Qty: 2}))
	require.NoError(t, f.svc.SetLedgerQty(ctx, SetLedgerQtyInput{ProductID: cake.ID, Date: wednesday, Qty: 0}))
	f.product(t, models.Product{Name: "Cookies", Active: true, StockPolicy: models.StockPolicy{IsFixedStock: true, FixedStock: 1}})

	digest, err := f.svc.LowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, digest.Threshold)
	require.Len(t, digest.Items, 2, "wednesday is closed")
	assert.Equal(t, "Cookies", digest.Items[0].Name)
	assert.True(t, digest.Items[0].FixedStock)
	assert.Equal(t, 2, digest.Items[1].Qty)
	assert.Equal(t, tuesday, *digest.Items[1].Date)
}

func TestCalendarErrorsSurface(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db), stubCalendar{err: errors.New("settings down")}, stubSettings{}, logger.Nop())
	require.NoError(t, err)
	product := models.Product{Name: "Cake", Slug: "cake", Price: decimal.NewFromInt(1), Active: true, StockPolicy: restocking()}
	require.NoError(t, db.Create(&product).Error)

	_, err = svc.EnsureRecordsForProduct(context.Background(), &product)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
