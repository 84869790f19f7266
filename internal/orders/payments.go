package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/hitpay"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
)

// applyEntries moves payment log entries into the balance. Refunds are
// negative, so they lower paid and raise unpaid.
func applyEntries(order *models.Order, entries []models.OrderPayment) {
	for i := range entries {
		entries[i].OrderID = order.ID
		entries[i].Amount = money.Round2(entries[i].Amount)
		order.Paid = money.Round2(order.Paid.Add(entries[i].Amount))
		order.Fees = money.Round2(order.Fees.Add(entries[i].Fee))
	}
	rebalance(order)
}

// recordEntries appends entries to the log inside tx and queues one event each.
func (s *service) recordEntries(ctx context.Context, tx *gorm.DB, order *models.Order, entries []models.OrderPayment) error {
	repo := s.repo.WithTx(tx)
	for i := range entries {
		if err := repo.InsertPayment(ctx, &entries[i]); err != nil {
			return err
		}
		if err := s.emitPaymentApplied(ctx, tx, order, &entries[i]); err != nil {
			return err
		}
		order.Payments = append(order.Payments, entries[i])
	}
	return nil
}

func isPaymentReplay(err error) bool {
	return db.IsUniqueViolation(err, "ux_order_payments_ref") || db.IsUniqueViolation(err, "order_payments.")
}

func validatePaymentEvent(ev PaymentEvent) error {
	switch {
	case ev.OrderID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	case !ev.Gateway.IsValid():
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment gateway %q", ev.Gateway)
	case strings.TrimSpace(ev.ExternalID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway reference required")
	}
	switch ev.Kind {
	case enums.PaymentEntryPayment:
		if !ev.Amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
		}
	case enums.PaymentEntryRefund:
		if !ev.Amount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be negative")
		}
	default:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment entry kind %q", ev.Kind)
	}
	return nil
}

// PaymentSuccess applies a gateway notification to the order balance. An event
// whose reference is already in the payment log is a no-op. The order confirms
// only when a payment equals the unpaid balance exactly; partial payments and
// overpayments leave the status alone.
func (s *service) PaymentSuccess(ctx context.Context, ev PaymentEvent) (*PaymentResult, error) {
	if err := validatePaymentEvent(ev); err != nil {
		return nil, err
	}
	order, err := s.load(ctx, ev.OrderID)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"gateway":     ev.Gateway,
		"kind":        ev.Kind,
		"external_id": ev.ExternalID,
	})
	if order.HasPaymentRef(ev.Gateway, ev.ExternalID, ev.Kind) {
		s.logg.Info(logCtx, "payment already applied")
		return &PaymentResult{Order: order}, nil
	}

	from := order.Status
	amount := money.Round2(ev.Amount)
	confirm := ev.Kind == enums.PaymentEntryPayment &&
		from.AwaitingPayment() &&
		order.Unpaid.IsPositive() &&
		money.Equal(amount, order.Unpaid)

	entries := []models.OrderPayment{{
		Gateway:    ev.Gateway,
		Kind:       ev.Kind,
		ExternalID: ev.ExternalID,
		ParentRef:  ev.ParentRef,
		Amount:     amount,
		Fee:        money.Round2(ev.Fee),
		Raw:        ev.Raw,
	}}
	applyEntries(order, entries)
	if ev.Kind == enums.PaymentEntryPayment {
		gateway := ev.Gateway
		order.PaymentType = &gateway
		now := s.clock.LocalNow()
		order.PaidAt = &now
	}
	first := false
	if confirm {
		order.Status = enums.OrderStatusConfirm
		first = !order.StockHeld
		order.StockHeld = true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.recordEntries(ctx, tx, order, entries); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return err
		}
		if !confirm {
			return nil
		}
		if err := s.emitStatusChanged(ctx, tx, order, from, false, Actor{}); err != nil {
			return err
		}
		return s.emitConfirmed(ctx, tx, order, Actor{})
	})
	if err != nil {
		if isPaymentReplay(err) {
			s.logg.Info(logCtx, "payment applied concurrently")
			current, loadErr := s.load(ctx, ev.OrderID)
			if loadErr != nil {
				return nil, loadErr
			}
			return &PaymentResult{Order: current}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment")
	}
	s.metrics.IncPayment(string(ev.Gateway), string(ev.Kind))
	s.logg.Info(logCtx, "payment applied")

	if confirm {
		s.afterConfirm(logCtx, order, first)
	}
	return &PaymentResult{Order: order, Applied: true, Confirmed: confirm}, nil
}

// payableOrder loads an order a customer is about to pay for. PENDING orders
// re-check that their date can still be served.
func (s *service) payableOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.Status.AwaitingPayment() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	if !order.Unpaid.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has nothing left to pay")
	}
	if order.Status == enums.OrderStatusPending {
		if err := s.checkDate(ctx, order.DeliveryDate, stock.UsagesOf(order.Lines)); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *service) StripeSession(ctx context.Context, actor Actor, id uuid.UUID) (*StripeSession, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not available")
	}
	order, err := s.payableOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	intent, err := s.stripe.CreatePaymentIntent(ctx, order.ID, order.OrderNumber, order.Unpaid)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return &StripeSession{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          order.Unpaid,
	}, nil
}

func (s *service) HitPaySession(ctx context.Context, actor Actor, id uuid.UUID) (*HitPaySession, error) {
	if s.hitpay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hitpay payments are not available")
	}
	order, err := s.payableOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	req, err := s.hitpay.CreatePaymentRequest(ctx, hitpay.CreateRequest{
		Amount:    order.Unpaid,
		Email:     order.Sender.Email,
		Name:      fullName(order.Sender),
		Reference: order.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment request")
	}
	return &HitPaySession{
		PaymentRequestID: req.ID,
		URL:              req.URL,
		Amount:           order.Unpaid,
	}, nil
}
