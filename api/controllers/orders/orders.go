// Package orders exposes the checkout and order workflow over HTTP.
package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/api/middleware"
	"github.com/angelmondragon/bakehouse-backend/api/responses"
	"github.com/angelmondragon/bakehouse-backend/api/validators"
	internalorders "github.com/angelmondragon/bakehouse-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

func actorFromRequest(r *http.Request) internalorders.Actor {
	ctx := r.Context()
	return internalorders.Actor{
		AccountID:  middleware.AccountIDFromContext(ctx),
		CustomerID: middleware.CustomerIDFromContext(ctx),
		Role:       middleware.RoleFromContext(ctx),
	}
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
}

func orderID(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	id, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, false
	}
	return id, true
}

// Create places a storefront order. Guests are allowed; signed-in customers
// get the order linked to their account.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var body internalorders.CreateOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), actorFromRequest(r), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), order.ID.String()), "order.created")
		}
		responses.WriteCreated(w, order)
	}
}

// Get returns an order to its owner or to an admin. Guest orders are
// addressed by id alone.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, ok := orderID(w, r, logg)
		if !ok {
			return
		}
		order, err := svc.Get(r.Context(), actorFromRequest(r), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CustomerUpdate edits delivery and contact details while the order is PENDING.
func CustomerUpdate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, ok := orderID(w, r, logg)
		if !ok {
			return
		}
		var body internalorders.CustomerUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateByCustomer(r.Context(), actorFromRequest(r), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// StripePayment opens or reuses the card payment intent for the unpaid balance.
func StripePayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, ok := orderID(w, r, logg)
		if !ok {
			return
		}
		session, err := svc.StripeSession(r.Context(), actorFromRequest(r), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// HitPayPayment creates the hosted checkout the customer is redirected to.
func HitPayPayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, ok := orderID(w, r, logg)
		if !ok {
			return
		}
		session, err := svc.HitPaySession(r.Context(), actorFromRequest(r), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}
