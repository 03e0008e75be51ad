// internal/api/handler/forecast.go
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"goalflow/internal/domain"
	"goalflow/internal/service"
	"goalflow/internal/util"
)

// ForecastHandler serves weekly flow history and forecasts.
type ForecastHandler struct {
	base
	service service.ForecastService
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(svc service.ForecastService, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		base:    newBase(logger),
		service: svc,
	}
}

// forecastParams reads the optional query overrides on top of the service defaults.
func (h *ForecastHandler) forecastParams(r *http.Request) (domain.ForecastParams, error) {
	d := h.service.Defaults()
	params := domain.ForecastParams{Horizon: d.Horizon, AnnualRate: d.AnnualRate, SpendingFactor: d.SpendingFactor}
	q := r.URL.Query()

	if v := q.Get("horizon"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("%w: horizon must be an integer", util.ErrInvalidInput)
		}
		params.Horizon = n
	}
	if v := q.Get("annual_rate"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, fmt.Errorf("%w: annual_rate must be a number", util.ErrInvalidInput)
		}
		params.AnnualRate = f
	}
	if v := q.Get("spending_factor"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, fmt.Errorf("%w: spending_factor must be a number", util.ErrInvalidInput)
		}
		params.SpendingFactor = f
	}

	if err := h.validate.Struct(params); err != nil {
		return params, fmt.Errorf("%w: %s", util.ErrInvalidInput, err.Error())
	}
	return params, nil
}

// Forecast handles the forecast request.
// GET /forecast/{accountID}?horizon=&annual_rate=&spending_factor=
func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	accountID, err := idParam(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	params, err := h.forecastParams(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.service.Forecast(r.Context(), accountID, params)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// WeeklyFlow handles the weekly net flow request.
// GET /accounts/{accountID}/weekly-flow
func (h *ForecastHandler) WeeklyFlow(w http.ResponseWriter, r *http.Request) {
	accountID, err := idParam(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	series, err := h.service.WeeklyFlow(r.Context(), accountID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if series == nil {
		series = []domain.WeeklyFlowPoint{}
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"data":       series,
	})
}
