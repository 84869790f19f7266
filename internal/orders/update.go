package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/catalog"
	"github.com/angelmondragon/bakehouse-backend/internal/promo"
	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// storedPromo reloads the code an order redeemed so an edit can recompute the discount.
func (s *service) storedPromo(ctx context.Context, order *models.Order) (*promo.Applied, error) {
	if order.PromoCodeID == nil {
		return nil, nil
	}
	code, err := s.promo.Get(ctx, *order.PromoCodeID)
	if err != nil {
		return nil, err
	}
	return appliedFromOrder(order, code), nil
}

func (s *service) UpdateByCustomer(ctx context.Context, actor Actor, id uuid.UUID, req CustomerUpdateRequest) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be changed").
			WithDetails(map[string]any{"status": order.Status})
	}
	if !req.DeliveryDate.Equal(order.DeliveryDate) {
		if err := s.checkDate(ctx, req.DeliveryDate, stock.UsagesOf(order.Lines)); err != nil {
			return nil, err
		}
	}
	setting, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	quote, peak, err := s.quoteDelivery(ctx, req.Delivery, req.DeliveryDate)
	if err != nil {
		return nil, err
	}
	applied, err := s.storedPromo(ctx, order)
	if err != nil {
		return nil, err
	}

	order.DeliveryDate = req.DeliveryDate
	order.Delivery = deliverySnapshot(req.Delivery, quote)
	order.DeliveryZoneID = quote.ZoneID
	order.Sender = req.Sender.model()
	order.Recipient = req.Recipient.model()
	order.GiftMessage = req.GiftMessage
	applyPricing(order, price(pricingInput{
		Setting:        setting,
		ProductsAmount: order.ProductsAmount,
		Delivery:       quote,
		IsPeakDay:      peak,
		Promo:          applied,
	}))

	if err := s.save(ctx, order, nil); err != nil {
		return nil, err
	}
	return order, nil
}

func editableByAdmin(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusConfirm, enums.OrderStatusPending, enums.OrderStatusPendingPayment:
		return true
	}
	return false
}

// UpdateByAdmin re-resolves the lines and re-prices the order. Held stock
// follows the edit; the status follows the new balance.
func (s *service) UpdateByAdmin(ctx context.Context, actor Actor, id uuid.UUID, req AdminUpdateRequest) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !editableByAdmin(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has already been processed").
			WithDetails(map[string]any{"status": order.Status})
	}
	if req.DeliveryDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery date is required")
	}
	if req.Paid != nil && req.Paid.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paid amount cannot be negative")
	}
	setting, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	resolved, err := s.catalog.Resolve(ctx, req.Lines, catalog.ResolveOptions{AllowCustom: true})
	if err != nil {
		return nil, err
	}
	quote, peak, err := s.quoteDelivery(ctx, req.Delivery, req.DeliveryDate)
	if err != nil {
		return nil, err
	}
	applied, err := s.storedPromo(ctx, order)
	if err != nil {
		return nil, err
	}

	from := order.Status
	oldDate, oldUsages := order.DeliveryDate, stock.UsagesOf(order.Lines)
	wasHeld := order.StockHeld

	order.Lines = resolved.Lines
	order.DeliveryDate = req.DeliveryDate
	order.Delivery = deliverySnapshot(req.Delivery, quote)
	order.DeliveryZoneID = quote.ZoneID
	order.Sender = req.Sender.model()
	order.Recipient = req.Recipient.model()
	order.GiftMessage = req.GiftMessage
	order.Note = req.Note
	order.Tags = req.Tags
	if req.Paid != nil {
		order.Paid = money.Round2(*req.Paid)
	}
	applyPricing(order, price(pricingInput{
		Setting:        setting,
		ProductsAmount: resolved.ProductsAmount,
		Delivery:       quote,
		IsPeakDay:      peak,
		Promo:          applied,
	}))

	var refunds []models.OrderPayment
	var refundErr error
	switch {
	case order.Unpaid.IsPositive() && order.Status == enums.OrderStatusConfirm:
		order.Status = enums.OrderStatusPendingPayment
	case order.Unpaid.IsNegative() && req.MakeRefund && order.Paid.IsPositive():
		amount := decimal.Min(order.Unpaid.Neg(), order.Paid)
		refunds, refundErr = s.issueRefund(ctx, order, amount)
		applyEntries(order, refunds)
	case order.Unpaid.IsZero() && order.Status == enums.OrderStatusPendingPayment:
		order.Status = enums.OrderStatusConfirm
	}

	confirmed := from != enums.OrderStatusConfirm && order.Status == enums.OrderStatusConfirm
	firstConfirm := confirmed && !wasHeld
	if firstConfirm {
		order.StockHeld = true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ReplaceLines(ctx, order.ID, order.Lines); err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		if err := s.recordEntries(ctx, tx, order, refunds); err != nil {
			return err
		}
		if from != order.Status {
			if err := s.emitStatusChanged(ctx, tx, order, from, false, actor); err != nil {
				return err
			}
		}
		if confirmed {
			return s.emitConfirmed(ctx, tx, order, actor)
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	if wasHeld {
		s.moveStock(logCtx, order.ID, oldDate, oldUsages, order.DeliveryDate, stock.UsagesOf(order.Lines))
	}
	if confirmed {
		s.afterConfirm(logCtx, order, firstConfirm)
	}
	if refundErr != nil {
		return order, refundErr
	}
	return order, nil
}

// moveStock releases and reserves the difference between two holdings.
// Each usage is its own write; failures are joined and logged.
func (s *service) moveStock(ctx context.Context, orderID uuid.UUID, fromDate types.Date, from []stock.Usage, toDate types.Date, to []stock.Usage) {
	reserve, release := stock.Diff(fromDate, from, toDate, to)
	var errs error
	if len(release) > 0 {
		errs = multierr.Append(errs, s.stock.Release(ctx, fromDate, release, &orderID))
	}
	if len(reserve) > 0 {
		errs = multierr.Append(errs, s.stock.Reserve(ctx, toDate, reserve, &orderID))
	}
	if errs != nil {
		s.logg.Error(ctx, "stock rebalance incomplete", errs)
	}
}
