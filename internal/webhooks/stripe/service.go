package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/bakehouse-backend/internal/orders"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
	stripeclient "github.com/angelmondragon/bakehouse-backend/pkg/stripe"
)

type paymentApplier interface {
	PaymentSuccess(ctx context.Context, event orders.PaymentEvent) (*orders.PaymentResult, error)
}

type orderLookup interface {
	FindByPaymentRef(ctx context.Context, gateway enums.PaymentType, externalID string) (*models.Order, error)
}

type feeLookup interface {
	PaymentIntentFee(ctx context.Context, intentID string) (decimal.Decimal, error)
}

type ServiceParams struct {
	Orders   orderLookup
	Payments paymentApplier
	Fees     feeLookup
	Logger   *logger.Logger
}

// Service turns Stripe events into order payment log entries.
type Service struct {
	orders   orderLookup
	payments paymentApplier
	fees     feeLookup
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lookup required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment applier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:   params.Orders,
		payments: params.Payments,
		fees:     params.Fees,
		logg:     params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		return s.paymentSucceeded(ctx, &intent, event.Data.Raw)
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		return s.chargeRefunded(ctx, &charge, event.Data.Raw)
	case stripe.EventTypePaymentIntentPaymentFailed:
		logCtx := s.logg.WithField(ctx, "payment_intent_id", event.GetObjectValue("id"))
		s.logg.Warn(logCtx, "stripe payment failed")
		return nil
	default:
		return nil
	}
}

func (s *Service) paymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent, raw json.RawMessage) error {
	logCtx := s.logg.WithField(ctx, "payment_intent_id", intent.ID)
	rawOrderID := intent.Metadata[stripeclient.MetadataOrderID]
	if rawOrderID == "" {
		s.logg.Info(logCtx, "payment intent without order, skipping")
		return nil
	}
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id in payment intent metadata")
	}

	received := intent.AmountReceived
	if received == 0 {
		received = intent.Amount
	}
	fee := decimal.Zero
	if s.fees != nil {
		if f, err := s.fees.PaymentIntentFee(ctx, intent.ID); err != nil {
			s.logg.Error(logCtx, "stripe fee lookup failed", err)
		} else {
			fee = f
		}
	}

	res, err := s.payments.PaymentSuccess(ctx, orders.PaymentEvent{
		OrderID:    orderID,
		Gateway:    enums.PaymentTypeStripe,
		Kind:       enums.PaymentEntryPayment,
		ExternalID: intent.ID,
		Amount:     money.FromMinor(received),
		Fee:        fee,
		Raw:        raw,
	})
	if err != nil {
		return err
	}
	if res.Confirmed {
		s.logg.Info(s.logg.WithOrderID(logCtx, orderID.String()), "order confirmed by card payment")
	}
	return nil
}

// chargeRefunded records every succeeded refund on the charge. Refunds the API
// issued are already in the log and dedupe on their id. When the charge
// carries no refund list, the unrecorded part of amount_refunded is logged
// under a reference derived from the charge.
func (s *Service) chargeRefunded(ctx context.Context, charge *stripe.Charge, raw json.RawMessage) error {
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge has no payment intent")
	}
	intentID := charge.PaymentIntent.ID
	logCtx := s.logg.WithField(ctx, "payment_intent_id", intentID)

	order, err := s.orders.FindByPaymentRef(ctx, enums.PaymentTypeStripe, intentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order for payment intent")
	}
	if order == nil {
		s.logg.Info(logCtx, "refund for unknown payment intent, skipping")
		return nil
	}

	events := refundEvents(order, charge, intentID, raw)
	for _, ev := range events {
		if _, err := s.payments.PaymentSuccess(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func refundEvents(order *models.Order, charge *stripe.Charge, intentID string, raw json.RawMessage) []orders.PaymentEvent {
	base := orders.PaymentEvent{
		OrderID:   order.ID,
		Gateway:   enums.PaymentTypeStripe,
		Kind:      enums.PaymentEntryRefund,
		ParentRef: intentID,
		Raw:       raw,
	}
	if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
		out := make([]orders.PaymentEvent, 0, len(charge.Refunds.Data))
		for _, r := range charge.Refunds.Data {
			if r == nil || r.Status != stripe.RefundStatusSucceeded {
				continue
			}
			ev := base
			ev.ExternalID = r.ID
			ev.Amount = money.FromMinor(r.Amount).Neg()
			out = append(out, ev)
		}
		return out
	}

	recorded := decimal.Zero
	for _, p := range order.Payments {
		if p.Gateway == enums.PaymentTypeStripe && p.Kind == enums.PaymentEntryRefund && p.ParentRef == intentID {
			recorded = recorded.Add(p.Amount.Neg())
		}
	}
	missing := money.FromMinor(charge.AmountRefunded).Sub(recorded)
	if !missing.IsPositive() {
		return nil
	}
	ev := base
	ev.ExternalID = fmt.Sprintf("%s-refunded-%d", charge.ID, charge.AmountRefunded)
	ev.Amount = missing.Neg()
	return []orders.PaymentEvent{ev}
}
