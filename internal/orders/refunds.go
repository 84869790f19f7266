package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
)

// refundable is a gateway payment with what is left to refund on it.
type refundable struct {
	payment models.OrderPayment
	net     decimal.Decimal
}

// refundables lists a gateway's payments in log order with their net
// refundable amount.
func refundables(order *models.Order, gateway enums.PaymentType) []refundable {
	refunded := make(map[string]decimal.Decimal)
	for _, p := range order.Payments {
		if p.Gateway == gateway && p.Kind == enums.PaymentEntryRefund {
			refunded[p.ParentRef] = refunded[p.ParentRef].Add(p.Amount.Neg())
		}
	}
	var out []refundable
	for _, p := range order.Payments {
		if p.Gateway != gateway || p.Kind != enums.PaymentEntryPayment {
			continue
		}
		net := p.Amount.Sub(refunded[p.ExternalID])
		if net.IsPositive() {
			out = append(out, refundable{payment: p, net: net})
		}
	}
	return out
}

// issueRefund returns amount through the gateway that collected the order and
// returns the log entries for what was actually refunded. On a gateway error
// the entries issued before it are still returned.
func (s *service) issueRefund(ctx context.Context, order *models.Order, amount decimal.Decimal) ([]models.OrderPayment, error) {
	amount = money.Round2(amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if amount.GreaterThan(order.Paid) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds the paid amount").
			WithDetails(map[string]any{"paid": order.Paid.StringFixed(2), "requested": amount.StringFixed(2)})
	}
	if order.PaymentType == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no gateway payment to refund")
	}
	gateway := *order.PaymentType
	sources := refundables(order, gateway)
	available := decimal.Zero
	for _, r := range sources {
		available = available.Add(r.net)
	}
	if amount.GreaterThan(available) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds what the gateway can return").
			WithDetails(map[string]any{"refundable": available.StringFixed(2), "requested": amount.StringFixed(2)})
	}

	var entries []models.OrderPayment
	remaining := amount
	for _, src := range sources {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, src.net)
		entry, err := s.refundOne(ctx, gateway, src.payment, take)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
		remaining = remaining.Sub(take)
	}
	return entries, nil
}

func (s *service) refundOne(ctx context.Context, gateway enums.PaymentType, src models.OrderPayment, amount decimal.Decimal) (models.OrderPayment, error) {
	entry := models.OrderPayment{
		Gateway:   gateway,
		Kind:      enums.PaymentEntryRefund,
		ParentRef: src.ExternalID,
		Amount:    amount.Neg(),
	}
	switch gateway {
	case enums.PaymentTypeStripe:
		if s.stripe == nil {
			return entry, pkgerrors.New(pkgerrors.CodeDependency, "card refunds are not available")
		}
		refund, err := s.stripe.Refund(ctx, src.ExternalID, amount)
		if err != nil {
			return entry, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund payment intent")
		}
		entry.ExternalID = refund.ID
	case enums.PaymentTypeHitPay:
		// ParentRef on a HitPay payment holds the charge id the refund API needs;
		// without it the refund is logged for manual settlement.
		if s.hitpay == nil || src.ParentRef == "" {
			entry.ExternalID = "manual-" + uuid.NewString()
			break
		}
		refund, err := s.hitpay.RefundPayment(ctx, src.ParentRef, amount)
		if err != nil {
			return entry, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund hitpay payment")
		}
		entry.ExternalID = refund.ID
	default:
		return entry, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment gateway %q", gateway)
	}
	return entry, nil
}

// Refund returns money and records it in the payment log right away. A later
// gateway notification for the same refund is a no-op.
func (s *service) Refund(ctx context.Context, actor Actor, id uuid.UUID, req RefundRequest) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, refundErr := s.issueRefund(ctx, order, req.Amount)
	if len(entries) == 0 {
		return nil, refundErr
	}
	applyEntries(order, entries)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.recordEntries(ctx, tx, order, entries); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Save(ctx, order)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
	}
	for _, e := range entries {
		s.metrics.IncPayment(string(e.Gateway), string(e.Kind))
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"amount":   req.Amount.StringFixed(2),
		"reason":   req.Reason,
	})
	s.logg.Info(logCtx, "order refunded")
	if refundErr != nil {
		return order, refundErr
	}
	return order, nil
}

// Cancel optionally refunds, moves the order to CANCELLED and returns held stock.
func (s *service) Cancel(ctx context.Context, actor Actor, id uuid.UUID, req CancelRequest) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}
	if req.RefundAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}

	var entries []models.OrderPayment
	var refundErr error
	if req.RefundAmount.IsPositive() {
		entries, refundErr = s.issueRefund(ctx, order, req.RefundAmount)
		if len(entries) == 0 && refundErr != nil {
			return nil, refundErr
		}
		applyEntries(order, entries)
	}

	from := order.Status
	wasHeld := order.StockHeld
	refunded := decimal.Zero
	for _, e := range entries {
		refunded = refunded.Add(e.Amount.Neg())
	}
	// a partially failed refund is recorded but leaves the order open
	cancel := refundErr == nil
	if cancel {
		order.Status = enums.OrderStatusCancelled
		order.StockHeld = false
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.recordEntries(ctx, tx, order, entries); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return err
		}
		if !cancel {
			return nil
		}
		if err := s.emitStatusChanged(ctx, tx, order, from, false, actor); err != nil {
			return err
		}
		return s.emitCancelled(ctx, tx, order, refunded, actor)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !cancel {
		return order, refundErr
	}
	s.metrics.IncTransition(string(enums.OrderStatusCancelled))

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	if wasHeld {
		if err := s.stock.Release(logCtx, order.DeliveryDate, stock.UsagesOf(order.Lines), &order.ID); err != nil {
			s.logg.Error(logCtx, "stock release incomplete", err)
		}
	}
	s.logg.Info(logCtx, "order cancelled")
	return order, nil
}
