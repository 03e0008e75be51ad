// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"goalflow/internal/api/types"
	"goalflow/internal/util" // For custom errors
)

// DefaultTimeout bounds every request handled by the router.
const DefaultTimeout = 15 * time.Second

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// base carries what every handler needs to decode, validate and answer requests.
type base struct {
	logger   *slog.Logger
	validate *validator.Validate
}

func newBase(logger *slog.Logger) base {
	if logger == nil {
		logger = util.GetLogger()
	}
	return base{logger: logger, validate: validator.New()}
}

// Helper function to send JSON responses.
func (h base) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h base) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error() // Use the error message directly for invalid input
	case util.IsNotFound(err):
		statusCode = http.StatusNotFound
		message = util.ErrMovementNotFound.Error()
		if util.IsError(err, util.ErrAccountNotFound) {
			message = util.ErrAccountNotFound.Error()
		}
	case util.IsError(err, util.ErrInsufficientData):
		statusCode = http.StatusUnprocessableEntity
		message = util.ErrInsufficientData.Error()
	case util.IsError(err, util.ErrInvariantViolation), util.IsError(err, util.ErrBalanceDrift):
		h.logger.Error("Invariant violation", "error", err)
		message = err.Error()
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, types.ErrorResponse{Error: message})
}

// respondWithValidationError reports each failing field with the rule it broke.
func (h base) respondWithValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		h.respondWithError(w, fmt.Errorf("%w: %s", util.ErrInvalidInput, err.Error()))
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	h.respondWithJSON(w, http.StatusBadRequest, types.ErrorResponse{
		Error:  util.ErrInvalidInput.Error(),
		Fields: fields,
	})
}

// decodeAndValidate reads a JSON body into dst, rejecting unknown fields, and validates it.
// It writes the error response itself and reports whether the caller may continue.
func (h base) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.respondWithError(w, fmt.Errorf("%w: malformed request body: %s", util.ErrInvalidInput, err.Error()))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondWithValidationError(w, err)
		return false
	}
	return true
}

// idParam parses a positive int64 URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", util.ErrInvalidInput, name)
	}
	return id, nil
}

// pageParams reads limit and offset from the query string. Missing or invalid
// values fall back to the defaults; limit is capped at maxPageLimit.
func pageParams(r *http.Request) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
