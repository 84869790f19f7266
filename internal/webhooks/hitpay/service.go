package hitpaywebhook

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/internal/orders"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/hitpay"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

const statusCompleted = "completed"

type paymentApplier interface {
	PaymentSuccess(ctx context.Context, event orders.PaymentEvent) (*orders.PaymentResult, error)
}

type ServiceParams struct {
	Payments paymentApplier
	Logger   *logger.Logger
}

// Service applies HitPay payment notifications. Signatures are checked by the
// handler before values reach it.
type Service struct {
	payments paymentApplier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment applier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

// EventID is the key used for replay protection.
func EventID(values url.Values) string {
	if id := values.Get("payment_id"); id != "" {
		return id
	}
	return values.Get("payment_request_id")
}

func (s *Service) HandleWebhook(ctx context.Context, values url.Values) error {
	requestID := values.Get("payment_request_id")
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_request_id": requestID,
		"payment_id":         values.Get("payment_id"),
	})

	status := strings.ToLower(strings.TrimSpace(values.Get("status")))
	if status != statusCompleted {
		s.logg.Info(s.logg.WithField(logCtx, "status", status), "hitpay notification ignored")
		return nil
	}
	if requestID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_request_id required")
	}

	orderID, err := uuid.Parse(values.Get("reference_number"))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference_number")
	}
	amount, err := hitpay.AmountDecimal(values.Get("amount"))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}

	raw, err := json.Marshal(flatten(values))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode hitpay payload")
	}

	res, err := s.payments.PaymentSuccess(ctx, orders.PaymentEvent{
		OrderID:    orderID,
		Gateway:    enums.PaymentTypeHitPay,
		Kind:       enums.PaymentEntryPayment,
		ExternalID: requestID,
		ParentRef:  values.Get("payment_id"),
		Amount:     amount,
		Raw:        raw,
	})
	if err != nil {
		return err
	}
	if res.Confirmed {
		s.logg.Info(s.logg.WithOrderID(logCtx, orderID.String()), "order confirmed by hitpay payment")
	}
	return nil
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for key := range values {
		if key == "hmac" {
			continue
		}
		out[key] = values.Get(key)
	}
	return out
}
