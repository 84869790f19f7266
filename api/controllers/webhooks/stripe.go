package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/bakehouse-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies the Stripe-Signature header and applies payment and
// refund events. The account's API version may differ from the SDK's, so the
// version check is skipped; the service only reads stable fields.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard ReplayGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		switch {
		case svc == nil:
			unavailable(ctx, w, logg, "stripe webhook service")
			return
		case client == nil:
			unavailable(ctx, w, logg, "stripe client")
			return
		case guard == nil:
			unavailable(ctx, w, logg, "replay guard")
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}
		event, err := webhook.ConstructEventWithOptions(payload, sig, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify stripe signature"))
			return
		}

		deliverOnce(ctx, w, logg, guard, delivery{gateway: "stripe", eventID: event.ID, eventType: string(event.Type)},
			func(ctx context.Context) error { return svc.HandleEvent(ctx, &event) })
	}
}
