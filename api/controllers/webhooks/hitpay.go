package webhooks

import (
	"context"
	"net/http"
	"net/url"

	"github.com/angelmondragon/bakehouse-backend/api/responses"
	hitpaywebhook "github.com/angelmondragon/bakehouse-backend/internal/webhooks/hitpay"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/hitpay"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

type HitPayWebhookService interface {
	HandleWebhook(ctx context.Context, values url.Values) error
}

// HitPayWebhook verifies the form-encoded notification against the account
// salt and applies it.
func HitPayWebhook(svc HitPayWebhookService, salt string, guard ReplayGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		switch {
		case svc == nil:
			unavailable(ctx, w, logg, "hitpay webhook service")
			return
		case guard == nil:
			unavailable(ctx, w, logg, "replay guard")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
		if err := r.ParseForm(); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse form"))
			return
		}
		values := r.PostForm
		if !hitpay.VerifySignature(salt, values) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "hitpay signature invalid"))
			return
		}
		eventID := hitpaywebhook.EventID(values)
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment reference missing"))
			return
		}

		deliverOnce(ctx, w, logg, guard, delivery{gateway: "hitpay", eventID: eventID, eventType: values.Get("status")},
			func(ctx context.Context) error { return svc.HandleWebhook(ctx, values) })
	}
}
