package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Calendar is the slice of the delivery calendar the ledger needs.
type Calendar interface {
	Days(ctx context.Context) ([]calendar.Day, error)
}

// Service is the stock ledger.
type Service interface {
	EnsureRecordsForProduct(ctx context.Context, product *models.Product) (int, error)
	Restock(ctx context.Context) (int, error)
	AvailableQuantities(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) ([]Availability, error)
	IsFeasible(ctx context.Context, date types.Date, usages []Usage) (bool, error)
	Feasible(usages []Usage) calendar.FeasibleFunc
	Reserve(ctx context.Context, date types.Date, usages []Usage, orderID *uuid.UUID) error
	Release(ctx context.Context, date types.Date, usages []Usage, orderID *uuid.UUID) error
	SetLedgerQty(ctx context.Context, input SetLedgerQtyInput) error
	SetFixedStock(ctx context.Context, input SetFixedStockInput) error
	LowStock(ctx context.Context) (*payloads.LowStockDigestEvent, error)
}

type service struct {
	repo     *Repository
	calendar Calendar
	settings calendar.SettingsProvider
	logg     *logger.Logger
}

func NewService(repo *Repository, cal Calendar, settings calendar.SettingsProvider, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("stock repository required")
	}
	if cal == nil {
		return nil, errors.New("calendar required")
	}
	if settings == nil {
		return nil, errors.New("settings provider required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: repo, calendar: cal, settings: settings, logg: logg}, nil
}

// trackedLine is one ledger column of a product: the product itself when it
// has no variants, otherwise each variant.
type trackedLine struct {
	variantID uuid.UUID
	policy    models.StockPolicy
}

func ledgerLines(product *models.Product) []trackedLine {
	if len(product.Variants) == 0 {
		if product.IsFixedStock {
			return nil
		}
		return []trackedLine{{variantID: uuid.Nil, policy: product.StockPolicy}}
	}
	lines := make([]trackedLine, 0, len(product.Variants))
	for _, v := range product.Variants {
		if v.IsFixedStock {
			continue
		}
		lines = append(lines, trackedLine{variantID: v.ID, policy: v.StockPolicy})
	}
	return lines
}

func (s *service) EnsureRecordsForProduct(ctx context.Context, product *models.Product) (int, error) {
	if product == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product required")
	}
	lines := ledgerLines(product)
	if len(lines) == 0 {
		return 0, nil
	}
	days, err := s.calendar.Days(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery calendar")
	}
	dates := make([]types.Date, 0, len(days))
	for _, d := range days {
		dates = append(dates, d.Date)
	}
	existing, err := s.repo.RecordsForProduct(ctx, product.ID, dates)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock records")
	}
	have := make(map[string]map[uuid.UUID]struct{}, len(dates))
	for _, rec := range existing {
		key := rec.Date.String()
		if have[key] == nil {
			have[key] = map[uuid.UUID]struct{}{}
		}
		have[key][rec.VariantID] = struct{}{}
	}

	var records []models.StockRecord
	var movements []models.StockMovement
	for _, date := range dates {
		seen, dateSeeded := have[date.String()]
		for _, line := range lines {
			if _, ok := seen[line.variantID]; ok {
				continue
			}
			qty := line.policy.RestockFor(date.Weekday())
			reason := enums.StockMovementRestock
			if dateSeeded {
				reason = enums.StockMovementRestockVariant
			}
			d := date
			records = append(records, models.StockRecord{
				ProductID: product.ID,
				VariantID: line.variantID,
				Date:      date,
				Qty:       qty,
			})
			movements = append(movements, models.StockMovement{
				ProductID: product.ID,
				VariantID: line.variantID,
				Date:      &d,
				Delta:     qty,
				Balance:   qty,
				Reason:    reason,
			})
		}
	}
	if err := s.repo.CreateRecords(ctx, records, movements); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock records")
	}
	return len(records), nil
}

func (s *service) Restock(ctx context.Context) (int, error) {
	products, err := s.repo.ListActiveProducts(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active products")
	}
	var (
		created int
		errs    error
	)
	for i := range products {
		n, err := s.EnsureRecordsForProduct(ctx, &products[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", products[i].ID, err))
			continue
		}
		created += n
	}
	return created, errs
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"productId": id})
	}
	return product, nil
}

// fixedPolicy returns the fixed-stock policy governing the line, if any.
func fixedPolicy(product *models.Product, variantID *uuid.UUID) (*models.StockPolicy, error) {
	if variantID == nil {
		if product.IsFixedStock {
			return &product.StockPolicy, nil
		}
		return nil, nil
	}
	variant, ok := product.Variant(*variantID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
			WithDetails(map[string]any{"productId": product.ID, "variantId": *variantID})
	}
	if variant.IsFixedStock {
		return &variant.StockPolicy, nil
	}
	return nil, nil
}

func (s *service) AvailableQuantities(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) ([]Availability, error) {
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	policy, err := fixedPolicy(product, variantID)
	if err != nil {
		return nil, err
	}
	days, err := s.calendar.Days(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery calendar")
	}

	out := []Availability{}
	if policy != nil {
		if policy.FixedStock <= 0 {
			return out, nil
		}
		for _, day := range days {
			if day.IsClosed {
				continue
			}
			if policy.FixedStockStartDate != nil && day.Date.Before(*policy.FixedStockStartDate) {
				continue
			}
			out = append(out, Availability{Date: day.Date, Qty: policy.FixedStock})
		}
		return out, nil
	}

	open := make([]types.Date, 0, len(days))
	for _, day := range days {
		if !day.IsClosed {
			open = append(open, day.Date)
		}
	}
	records, err := s.repo.RecordsForProduct(ctx, productID, open)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock records")
	}
	want := Usage{ProductID: productID, VariantID: variantID}.VariantKey()
	for _, rec := range records {
		if rec.VariantID == want && rec.Qty > 0 {
			out = append(out, Availability{Date: rec.Date, Qty: rec.Qty})
		}
	}
	return out, nil
}

func (s *service) IsFeasible(ctx context.Context, date types.Date, usages []Usage) (bool, error) {
	products := map[uuid.UUID]*models.Product{}
	for _, u := range MergeUsages(usages) {
		if u.Qty <= 0 {
			continue
		}
		product, ok := products[u.ProductID]
		if !ok {
			var err error
			product, err = s.repo.FindProduct(ctx, u.ProductID)
			if err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			products[u.ProductID] = product
		}
		if product == nil || !product.Active {
			return false, nil
		}
		policy, err := fixedPolicy(product, u.VariantID)
		if err != nil {
			return false, nil
		}
		if policy != nil {
			if u.Qty > policy.FixedStock {
				return false, nil
			}
			if policy.FixedStockStartDate != nil && date.Before(*policy.FixedStockStartDate) {
				return false, nil
			}
			continue
		}
		record, err := s.repo.FindRecord(ctx, u.ProductID, u.VariantKey(), date)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
		}
		if record == nil || record.Qty < u.Qty {
			return false, nil
		}
	}
	return true, nil
}

func (s *service) Feasible(usages []Usage) calendar.FeasibleFunc {
	return func(ctx context.Context, date types.Date) (bool, error) {
		return s.IsFeasible(ctx, date, usages)
	}
}

func (s *service) Reserve(ctx context.Context, date types.Date, usages []Usage, orderID *uuid.UUID) error {
	return s.apply(ctx, date, usages, -1, orderID)
}

func (s *service) Release(ctx context.Context, date types.Date, usages []Usage, orderID *uuid.UUID) error {
	return s.apply(ctx, date, usages, 1, orderID)
}

// apply writes each usage on its own, with no transaction across lines and no
// lock between the feasibility check and the write. Two orders can both pass
// IsFeasible and drive a row negative, and a failure part way through leaves
// earlier lines applied. Failures are joined and returned.
func (s *service) apply(ctx context.Context, date types.Date, usages []Usage, sign int, orderID *uuid.UUID) error {
	var errs error
	for _, u := range MergeUsages(usages) {
		if err := s.applyOne(ctx, date, u, sign, orderID); err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id": u.ProductID.String(),
				"variant_id": u.VariantKey().String(),
				"date":       date.String(),
				"qty":        u.Qty * sign,
			})
			s.logg.Warn(logCtx, "stock adjustment failed")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *service) applyOne(ctx context.Context, date types.Date, u Usage, sign int, orderID *uuid.UUID) error {
	product, err := s.loadProduct(ctx, u.ProductID)
	if err != nil {
		return err
	}
	policy, err := fixedPolicy(product, u.VariantID)
	if err != nil {
		return err
	}
	delta := u.Qty * sign
	movement := models.StockMovement{
		ProductID: u.ProductID,
		VariantID: u.VariantKey(),
		Delta:     delta,
		OrderID:   orderID,
	}

	if policy != nil {
		balance, err := s.repo.AdjustFixedStock(ctx, u.ProductID, u.VariantID, delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust fixed stock")
		}
		movement.Balance = balance
		movement.Reason = enums.StockMovementFixedRefill
		if delta < 0 {
			movement.Reason = enums.StockMovementFixedSold
		}
		return s.logMovement(ctx, &movement)
	}

	record, err := s.repo.FindRecord(ctx, u.ProductID, u.VariantKey(), date)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	if record == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no stock record for date").
			WithDetails(map[string]any{"productId": u.ProductID, "date": date.String()})
	}
	balance, err := s.repo.AdjustRecord(ctx, record.ID, delta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock record")
	}
	d := date
	movement.Date = &d
	movement.Balance = balance
	movement.Reason = enums.StockMovementRefill
	if delta < 0 {
		movement.Reason = enums.StockMovementSold
	}
	return s.logMovement(ctx, &movement)
}

func (s *service) logMovement(ctx context.Context, movement *models.StockMovement) error {
	if err := s.repo.InsertMovement(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
	}
	return nil
}

func (s *service) SetLedgerQty(ctx context.Context, input SetLedgerQtyInput) error {
	if input.Qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return err
	}
	policy, err := fixedPolicy(product, input.VariantID)
	if err != nil {
		return err
	}
	if policy != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "line uses fixed stock")
	}
	variantKey := Usage{ProductID: input.ProductID, VariantID: input.VariantID}.VariantKey()
	record, err := s.repo.FindRecord(ctx, input.ProductID, variantKey, input.Date)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}

	previous := 0
	if record == nil {
		record = &models.StockRecord{ProductID: input.ProductID, VariantID: variantKey, Date: input.Date, Qty: input.Qty}
		err = s.repo.CreateRecord(ctx, record)
	} else {
		previous = record.Qty
		err = s.repo.SaveRecordQty(ctx, record.ID, input.Qty)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save stock record")
	}
	d := input.Date
	return s.logMovement(ctx, &models.StockMovement{
		ProductID: input.ProductID,
		VariantID: variantKey,
		Date:      &d,
		Delta:     input.Qty - previous,
		Balance:   input.Qty,
		Reason:    enums.StockMovementAdminSet,
	})
}

func (s *service) SetFixedStock(ctx context.Context, input SetFixedStockInput) error {
	if input.Qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return err
	}
	policy, err := fixedPolicy(product, input.VariantID)
	if err != nil {
		return err
	}
	if policy == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "line does not use fixed stock")
	}
	if err := s.repo.SaveFixedStock(ctx, input.ProductID, input.VariantID, input.Qty, input.StartDate); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save fixed stock")
	}
	return s.logMovement(ctx, &models.StockMovement{
		ProductID: input.ProductID,
		VariantID: Usage{ProductID: input.ProductID, VariantID: input.VariantID}.VariantKey(),
		Delta:     input.Qty - policy.FixedStock,
		Balance:   input.Qty,
		Reason:    enums.StockMovementAdminSet,
	})
}

func (s *service) LowStock(ctx context.Context) (*payloads.LowStockDigestEvent, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	threshold := setting.NotifyLowStock
	days, err := s.calendar.Days(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery calendar")
	}
	open := make([]types.Date, 0, len(days))
	for _, day := range days {
		if !day.IsClosed {
			open = append(open, day.Date)
		}
	}
	records, err := s.repo.LowRecords(ctx, open, threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load low stock records")
	}
	products, err := s.repo.ListActiveProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	items := []payloads.LowStockItem{}
	for _, rec := range records {
		product, ok := byID[rec.ProductID]
		if !ok {
			continue
		}
		item := payloads.LowStockItem{ProductID: product.ID, Name: product.Name, Qty: rec.Qty}
		policy := product.StockPolicy
		if rec.VariantID != uuid.Nil {
			variant, ok := product.Variant(rec.VariantID)
			if !ok {
				continue
			}
			item.VariantName = variant.Name
			policy = variant.StockPolicy
		}
		if policy.RestockFor(rec.Date.Weekday()) == 0 {
			continue
		}
		d := rec.Date
		item.Date = &d
		items = append(items, item)
	}
	for _, product := range products {
		if len(product.Variants) == 0 {
			if product.IsFixedStock && product.FixedStock <= threshold {
				items = append(items, payloads.LowStockItem{ProductID: product.ID, Name: product.Name, Qty: product.FixedStock, FixedStock: true})
			}
			continue
		}
		for _, v := range product.Variants {
			if v.IsFixedStock && v.FixedStock <= threshold {
				items = append(items, payloads.LowStockItem{ProductID: product.ID, Name: product.Name, VariantName: v.Name, Qty: v.FixedStock, FixedStock: true})
			}
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Qty < items[j].Qty })
	return &payloads.LowStockDigestEvent{Threshold: threshold, Items: items}, nil
}
