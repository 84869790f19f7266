package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bakehouse-backend/api/responses"
	"github.com/angelmondragon/bakehouse-backend/api/validators"
	internalorders "github.com/angelmondragon/bakehouse-backend/internal/orders"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/pagination"
)

// AdminList pages orders newest first. Filters: status (comma separated),
// type, deliveryDate and keyword.
func AdminList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		query, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parseListQuery(r *http.Request) (internalorders.ListQuery, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return internalorders.ListQuery{}, err
	}
	date, err := validators.ParseQueryDate(r, "deliveryDate", false)
	if err != nil {
		return internalorders.ListQuery{}, err
	}
	q := r.URL.Query()
	query := internalorders.ListQuery{
		DeliveryDate: date,
		Keyword:      strings.TrimSpace(q.Get("keyword")),
		Limit:        limit,
		Cursor:       strings.TrimSpace(q.Get("cursor")),
	}
	for _, raw := range strings.Split(q.Get("status"), ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return internalorders.ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Statuses = append(query.Statuses, status)
	}
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		orderType, err := enums.ParseOrderType(raw)
		if err != nil {
			return internalorders.ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter")
		}
		query.Type = orderType
	}
	return query, nil
}

// AdminCreateAdhoc records an order taken by staff.
func AdminCreateAdhoc(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var body internalorders.AdhocOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CreateAdhoc(r.Context(), actorFromRequest(r), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), order.ID.String()), "order.adhoc_created")
		}
		responses.WriteCreated(w, order)
	}
}

// AdminUpdate re-prices an order and reconciles stock and payments.
func AdminUpdate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, ok := orderID(w, r, logg)
		if !ok {
			return
		}
		var body internalorders.AdminUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateByAdmin(r.Context(), actorFromRequest(r), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminUpdateStatus moves a batch of orders. Per-order failures are reported
// in the result rather than failing the request.
func AdminUpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var body internalorders.StatusUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.UpdateStatus(r.Context(), actorFromRequest(r), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, ok := orderID(w, r, logg)
		if !ok {
			return
		}
		var body internalorders.CancelRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), actorFromRequest(r), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func AdminRefund(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, ok := orderID(w, r, logg)
		if !ok {
			return
		}
		var body internalorders.RefundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Refund(r.Context(), actorFromRequest(r), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
