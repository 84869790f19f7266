package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// Kind names a production workbook.
type Kind string

const (
	KindMaster       Kind = "master"
	KindPackingList  Kind = "packing-list"
	KindDeliveries   Kind = "deliveries"
	KindWholecakes   Kind = "wholecakes"
	KindProductSolds Kind = "product-solds"
)

var kindFiles = map[Kind]string{
	KindMaster:       "Master.xlsx",
	KindPackingList:  "Packing List.xlsx",
	KindDeliveries:   "Deliveries.xlsx",
	KindWholecakes:   "Wholecakes.xlsx",
	KindProductSolds: "Product Solds.xlsx",
}

// bundleKinds is the attachment order of the daily export.
var bundleKinds = []Kind{KindMaster, KindPackingList, KindDeliveries, KindWholecakes}

const packingSlipFile = "Packing Slip.pdf"

func ParseKind(value string) (Kind, error) {
	kind := Kind(value)
	if _, ok := kindFiles[kind]; !ok {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "unknown report %q", value)
	}
	return kind, nil
}

// File is a rendered report.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Bundle is the set of files sent to the kitchen for one delivery date.
type Bundle struct {
	Date   types.Date
	Orders int
	Files  []File
}

type orderSource interface {
	ListForDate(ctx context.Context, date types.Date) ([]models.Order, error)
}

type zoneSource interface {
	Zones(ctx context.Context) ([]models.DeliveryZone, error)
}

type ServiceParams struct {
	Orders orderSource
	Zones  zoneSource
	Brand  string
}

type Service struct {
	orders orderSource
	zones  zoneSource
	brand  string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order source required")
	}
	if params.Zones == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "zone source required")
	}
	brand := params.Brand
	if brand == "" {
		brand = "Bakehouse"
	}
	return &Service{orders: params.Orders, zones: params.Zones, brand: brand}, nil
}

// NextExportDate is the delivery date the morning export covers. Nothing
// ships on Mondays from a Sunday run, so Sunday looks two days ahead.
func NextExportDate(today types.Date) types.Date {
	if today.Weekday() == time.Sunday {
		return today.AddDays(2)
	}
	return today.AddDays(1)
}

type dayData struct {
	orders []models.Order
	zones  map[string]string
}

func (s *Service) load(ctx context.Context, date types.Date) (*dayData, error) {
	orders, err := s.orders.ListForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	zones, err := s.zones.Zones(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(zones))
	for _, z := range zones {
		names[z.ID.String()] = z.Name
	}
	return &dayData{orders: orders, zones: names}, nil
}

func (s *Service) Workbook(ctx context.Context, kind Kind, date types.Date) (*File, error) {
	if _, ok := kindFiles[kind]; !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown report %q", kind)
	}
	day, err := s.load(ctx, date)
	if err != nil {
		return nil, err
	}
	return render(kind, day)
}

func (s *Service) PackingSlip(ctx context.Context, date types.Date) (*File, error) {
	day, err := s.load(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.renderSlip(day)
}

// Bundle renders every workbook and the packing slip for date concurrently.
func (s *Service) Bundle(ctx context.Context, date types.Date) (*Bundle, error) {
	day, err := s.load(ctx, date)
	if err != nil {
		return nil, err
	}

	kinds := append(append([]Kind{}, bundleKinds...), KindProductSolds)
	files := make([]File, len(kinds)+1)
	g, _ := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			f, err := render(kind, day)
			if err != nil {
				return err
			}
			files[i] = *f
			return nil
		})
	}
	g.Go(func() error {
		f, err := s.renderSlip(day)
		if err != nil {
			return err
		}
		files[len(kinds)] = *f
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Bundle{Date: date, Orders: len(day.orders), Files: files}, nil
}

func render(kind Kind, day *dayData) (*File, error) {
	var (
		data []byte
		err  error
	)
	switch kind {
	case KindMaster:
		data, err = writeWorkbook(sheetName, masterColumns, lineRows(day.orders, day.zones, nil))
	case KindPackingList:
		data, err = writeWorkbook(sheetName, packingColumns, lineRows(day.orders, day.zones, nil))
	case KindDeliveries:
		data, err = writeWorkbook(sheetName, deliveryColumns, orderRows(deliveries(day.orders), day.zones))
	case KindWholecakes:
		data, err = writeWorkbook(sheetName, wholecakeColumns, lineRows(inKitchen(day.orders), day.zones, isWholeCake))
	case KindProductSolds:
		data, err = writeProductSolds(productSolds(day.orders))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("render %s", kind))
	}
	return &File{Name: kindFiles[kind], ContentType: ContentTypeXLSX, Data: data}, nil
}

func (s *Service) renderSlip(day *dayData) (*File, error) {
	data, err := writePackingSlip(s.brand, day.orders, day.zones)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render packing slip")
	}
	return &File{Name: packingSlipFile, ContentType: ContentTypePDF, Data: data}, nil
}

func deliveries(orders []models.Order) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Delivery.Type != enums.DeliveryMethodCollection {
			out = append(out, o)
		}
	}
	return out
}

// inKitchen drops orders that already left the bakery.
func inKitchen(orders []models.Order) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status != enums.OrderStatusCompleted {
			out = append(out, o)
		}
	}
	return out
}
