package forecast

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/abcxyz-forecast/api/middleware"
	"github.com/angelmondragon/abcxyz-forecast/api/responses"
	"github.com/angelmondragon/abcxyz-forecast/api/validators"
	internalforecast "github.com/angelmondragon/abcxyz-forecast/internal/forecast"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/pagination"
)

type forecastRequest struct {
	Origin   string                  `json:"origin"`
	ResultID string                  `json:"result_id"`
	Items    []internalforecast.Item `json:"items" validate:"dive"`
}

func (r forecastRequest) toInput(requestedBy string) (internalforecast.Input, error) {
	origin, err := enums.ParseForecastOrigin(r.Origin)
	if err != nil {
		return internalforecast.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid origin").
			WithDetails(map[string]any{"allowed": []string{string(enums.ForecastOriginDB), string(enums.ForecastOriginSpreadsheet)}})
	}
	return internalforecast.Input{
		Origin:      origin,
		ResultID:    strings.TrimSpace(r.ResultID),
		Items:       r.Items,
		RequestedBy: requestedBy,
	}, nil
}

// Create predicts the requested items and records the run.
func Create(svc internalforecast.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "forecast service unavailable"))
			return
		}

		var req forecastRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Forecast(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

// ListRuns pages through recorded runs, newest first.
func ListRuns(svc internalforecast.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "forecast service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, err := svc.ListRuns(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetRun(svc internalforecast.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "forecast service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetRun(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// DeleteRun removes a run together with its details.
func DeleteRun(svc internalforecast.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "forecast service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteRun(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Model(svc internalforecast.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "forecast service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.ModelInfo())
	}
}
