package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/api/responses"
	"github.com/angelmondragon/bakehouse-backend/api/validators"
	"github.com/angelmondragon/bakehouse-backend/internal/settings"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

func AdminGetSettings(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		setting, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings.ToDTO(setting))
	}
}

// AdminUpdateDeliverySettings edits the horizon, cutoff and blackout rules.
func AdminUpdateDeliverySettings(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return updateSettings(svc, logg, func(r *http.Request) (settingsUpdate, error) {
		var body settings.UpdateDeliveryInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return func(s settings.Service) (*models.Setting, error) { return s.UpdateDelivery(r.Context(), body) }, nil
	})
}

func AdminUpdatePeakDaySurcharge(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return updateSettings(svc, logg, func(r *http.Request) (settingsUpdate, error) {
		var body settings.UpdatePeakDayInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return func(s settings.Service) (*models.Setting, error) { return s.UpdatePeakDaySurcharge(r.Context(), body) }, nil
	})
}

func AdminUpdateMinForDelivery(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return updateSettings(svc, logg, func(r *http.Request) (settingsUpdate, error) {
		var body settings.UpdateMinForDeliveryInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return func(s settings.Service) (*models.Setting, error) { return s.UpdateMinForDelivery(r.Context(), body) }, nil
	})
}

type cartMinimumRequest struct {
	MinAmount decimal.Decimal `json:"minAmount"`
}

func AdminUpdateCartMinimum(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return updateSettings(svc, logg, func(r *http.Request) (settingsUpdate, error) {
		var body cartMinimumRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return func(s settings.Service) (*models.Setting, error) { return s.UpdateCartMinimum(r.Context(), body.MinAmount) }, nil
	})
}

type lowStockThresholdRequest struct {
	Threshold int `json:"threshold" validate:"gte=0"`
}

func AdminUpdateLowStockThreshold(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return updateSettings(svc, logg, func(r *http.Request) (settingsUpdate, error) {
		var body lowStockThresholdRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return func(s settings.Service) (*models.Setting, error) { return s.UpdateLowStockThreshold(r.Context(), body.Threshold) }, nil
	})
}

type settingsUpdate func(settings.Service) (*models.Setting, error)

// updateSettings decodes with parse, applies the update and answers with the
// resulting settings view.
func updateSettings(svc settings.Service, logg *logger.Logger, parse func(*http.Request) (settingsUpdate, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		apply, err := parse(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		setting, err := apply(svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings.ToDTO(setting))
	}
}
