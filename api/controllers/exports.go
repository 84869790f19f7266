package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bakehouse-backend/api/responses"
	"github.com/angelmondragon/bakehouse-backend/api/validators"
	"github.com/angelmondragon/bakehouse-backend/internal/reports"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// ReportRenderer renders the per-day operational documents.
type ReportRenderer interface {
	Workbook(ctx context.Context, kind reports.Kind, date types.Date) (*reports.File, error)
	PackingSlip(ctx context.Context, date types.Date) (*reports.File, error)
}

func AdminExportPackingSlip(svc ReportRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports unavailable"))
			return
		}
		date, err := validators.ParseQueryDate(r, "date", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		file, err := svc.PackingSlip(r.Context(), *date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteFile(w, file.Name, file.ContentType, file.Data)
	}
}

// AdminExportReport renders one of the named day workbooks.
func AdminExportReport(svc ReportRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports unavailable"))
			return
		}
		kind, err := reports.ParseKind(chi.URLParam(r, "report"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := validators.ParseQueryDate(r, "date", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		file, err := svc.Workbook(r.Context(), kind, *date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteFile(w, file.Name, file.ContentType, file.Data)
	}
}
