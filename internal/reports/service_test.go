package reports

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

type stubOrders struct {
	orders []models.Order
	err    error
	asked  types.Date
}

func (s *stubOrders) ListForDate(_ context.Context, date types.Date) ([]models.Order, error) {
	s.asked = date
	return s.orders, s.err
}

type stubZones struct {
	zones []models.DeliveryZone
}

func (s stubZones) Zones(context.Context) ([]models.DeliveryZone, error) {
	return s.zones, nil
}

var eastZone = uuid.New()

func sampleOrders() []models.Order {
	cake := uuid.New()
	return []models.Order{
		{
			OrderNumber:    "210001",
			Status:         enums.OrderStatusConfirm,
			DeliveryDate:   types.NewDate(2024, time.May, 14),
			DeliveryZoneID: &eastZone,
			Delivery: models.OrderDelivery{
				MethodName:    "Standard",
				Type:          enums.DeliveryMethodNormal,
				TimeSlotLabel: "10am - 1pm",
				Address:       "1 Cake Street",
				Unit:          "#01-01",
				PostalCode:    "460123",
				Fee:           decimal.NewFromInt(5),
			},
			Sender:      models.Contact{FirstName: "Ana", LastName: "Lim", Phone: "9000 0001", Email: "ana@example.com"},
			Recipient:   models.Contact{FirstName: "Ben", LastName: "Tan", Phone: "9000 0002"},
			GiftMessage: "Happy birthday",
			Tags:        []string{"vip"},
			Lines: []models.OrderLine{
				{Kind: enums.OrderLineProduct, ProductID: &cake, Name: "Chocolate Cake", VariantName: "8 inch", Category: WholeCakeCategory, Quantity: 2, Candles: 3, Message: "Happy 30th"},
				{Kind: enums.OrderLineBundle, Name: "Tea Set", Quantity: 1, Components: []models.LineComponent{
					{ProductID: cake, Name: "Chocolate Cake", VariantName: "8 inch", Qty: 1},
					{ProductID: uuid.New(), Name: "Earl Grey", Qty: 2},
				}},
			},
		},
		{
			OrderNumber:  "210002",
			Status:       enums.OrderStatusCompleted,
			DeliveryDate: types.NewDate(2024, time.May, 14),
			Delivery:     models.OrderDelivery{MethodName: "Self collection", Type: enums.DeliveryMethodCollection},
			Sender:       models.Contact{FirstName: "Cat", LastName: "Ng"},
			Recipient:    models.Contact{FirstName: "Cat", LastName: "Ng"},
			Lines: []models.OrderLine{
				{Kind: enums.OrderLineProduct, Name: "Chocolate Cake", VariantName: "8 inch", Category: WholeCakeCategory, Quantity: 1},
				{Kind: enums.OrderLineCustom, Name: "Custom topper", Quantity: 1},
			},
		},
	}
}

func newTestService(t *testing.T, orders *stubOrders) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders: orders,
		Zones:  stubZones{zones: []models.DeliveryZone{{ID: eastZone, Name: "East"}}},
	})
	require.NoError(t, err)
	return svc
}

func openSheet(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestMasterWorkbookHasOneRowPerLine(t *testing.T) {
	orders := &stubOrders{orders: sampleOrders()}
	svc := newTestService(t, orders)
	date := types.NewDate(2024, time.May, 14)

	file, err := svc.Workbook(context.Background(), KindMaster, date)
	require.NoError(t, err)
	assert.Equal(t, "Master.xlsx", file.Name)
	assert.Equal(t, ContentTypeXLSX, file.ContentType)
	assert.True(t, orders.asked.Equal(date))

	rows := openSheet(t, file.Data, sheetName)
	require.Len(t, rows, 5)
	assert.Equal(t, "first 3 numbers of postal code", rows[0][0])
	assert.Equal(t, []string{"460", "East", "210001"}, rows[1][:3])
	assert.Equal(t, "Ana Lim", rows[1][3])
	assert.Equal(t, "1 Cake Street #01-01", rows[1][7])
	assert.Equal(t, "Chocolate Cake - 8 inch", rows[1][10])
	assert.Equal(t, "Standard (10am - 1pm)", rows[1][11])
	assert.Equal(t, "Tea Set\n1 x Chocolate Cake - 8 inch\n2 x Earl Grey", rows[2][10])
	assert.Equal(t, "Tea Set", rows[2][16])
}

func TestDeliveriesSkipSelfCollection(t *testing.T) {
	svc := newTestService(t, &stubOrders{orders: sampleOrders()})
	file, err := svc.Workbook(context.Background(), KindDeliveries, types.NewDate(2024, time.May, 14))
	require.NoError(t, err)

	rows := openSheet(t, file.Data, sheetName)
	require.Len(t, rows, 2)
	assert.Equal(t, "210001", rows[1][3])
}

func TestWholecakesKeepKitchenCakesOnly(t *testing.T) {
	svc := newTestService(t, &stubOrders{orders: sampleOrders()})
	file, err := svc.Workbook(context.Background(), KindWholecakes, types.NewDate(2024, time.May, 14))
	require.NoError(t, err)

	rows := openSheet(t, file.Data, sheetName)
	require.Len(t, rows, 2)
	assert.Equal(t, "210001", rows[1][2])
	assert.Equal(t, "Happy 30th", rows[1][7])
}

func TestProductSoldsExpandComponents(t *testing.T) {
	sold := productSolds(sampleOrders())
	assert.Equal(t, []productSold{
		{Name: "Chocolate Cake", VariantName: "8 inch", Qty: 4},
		{Name: "Custom topper", Qty: 1},
		{Name: "Earl Grey", Qty: 2},
	}, sold)

	svc := newTestService(t, &stubOrders{orders: sampleOrders()})
	file, err := svc.Workbook(context.Background(), KindProductSolds, types.NewDate(2024, time.May, 14))
	require.NoError(t, err)
	rows := openSheet(t, file.Data, "Products")
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Total", "", "7"}, rows[4])
}

func TestBundleRendersEveryFile(t *testing.T) {
	svc := newTestService(t, &stubOrders{orders: sampleOrders()})
	bundle, err := svc.Bundle(context.Background(), types.NewDate(2024, time.May, 14))
	require.NoError(t, err)

	assert.Equal(t, 2, bundle.Orders)
	names := make([]string, 0, len(bundle.Files))
	for _, f := range bundle.Files {
		names = append(names, f.Name)
		assert.NotEmpty(t, f.Data, f.Name)
	}
	assert.Equal(t, []string{"Master.xlsx", "Packing List.xlsx", "Deliveries.xlsx", "Wholecakes.xlsx", "Product Solds.xlsx", "Packing Slip.pdf"}, names)
	assert.True(t, bytes.HasPrefix(bundle.Files[5].Data, []byte("%PDF")))
}

func TestPackingSlipForEmptyDay(t *testing.T) {
	svc := newTestService(t, &stubOrders{})
	file, err := svc.PackingSlip(context.Background(), types.NewDate(2024, time.May, 14))
	require.NoError(t, err)
	assert.Equal(t, ContentTypePDF, file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestWorkbookErrors(t *testing.T) {
	svc := newTestService(t, &stubOrders{err: errors.New("db down")})
	_, err := svc.Workbook(context.Background(), KindMaster, types.NewDate(2024, time.May, 14))
	require.Error(t, err)

	_, err = svc.Workbook(context.Background(), Kind("nope"), types.NewDate(2024, time.May, 14))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseKind("wholecakes")
	assert.NoError(t, err)
	_, err = ParseKind("invoices")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNextExportDate(t *testing.T) {
	saturday := types.NewDate(2024, time.May, 11)
	sunday := types.NewDate(2024, time.May, 12)
	assert.True(t, NextExportDate(saturday).Equal(types.NewDate(2024, time.May, 12)))
	assert.True(t, NextExportDate(sunday).Equal(types.NewDate(2024, time.May, 14)))
}
