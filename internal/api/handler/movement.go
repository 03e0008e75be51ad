// internal/api/handler/movement.go
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"goalflow/internal/api/types"
	"goalflow/internal/service"
)

// MovementHandler handles HTTP requests that mutate or read the movement log.
type MovementHandler struct {
	base
	service service.LedgerService
}

// NewMovementHandler creates a new MovementHandler.
func NewMovementHandler(svc service.LedgerService, logger *slog.Logger) *MovementHandler {
	return &MovementHandler{
		base:    newBase(logger),
		service: svc,
	}
}

// RecordMovementRequest represents the request body for recording a movement.
// Omit the source for income and the destination for spending.
type RecordMovementRequest struct {
	SourceAccountID      *int64           `json:"source_account_id" validate:"omitempty,gt=0"`
	DestinationAccountID *int64           `json:"destination_account_id" validate:"omitempty,gt=0"`
	Amount               *decimal.Decimal `json:"amount" validate:"required"`
	Category             string           `json:"category" validate:"max=64"`
	OccurredAt           *time.Time       `json:"occurred_at"`
}

// AmendMovementRequest represents the request body for amending a movement's amount.
type AmendMovementRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// RecordMovement handles the record movement request.
// POST /movements
func (h *MovementHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req RecordMovementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := service.MovementInput{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               *req.Amount,
		Category:             req.Category,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}

	res, err := h.service.RecordMovement(r.Context(), in)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Movement recorded",
		"movement_id": res.Movement.ID,
		"movement":    res.Movement,
		"balances":    res.Balances,
	})
}

// ListMovements handles the movement log request, newest first.
// GET /movements
func (h *MovementHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	movements, total, err := h.service.ListMovements(r.Context(), limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewPage(movements, limit, offset, total))
}

// GetMovement handles the get movement request.
// GET /movements/{movementID}
func (h *MovementHandler) GetMovement(w http.ResponseWriter, r *http.Request) {
	movementID, err := idParam(r, "movementID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	movement, err := h.service.GetMovement(r.Context(), movementID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, movement)
}

// AmendMovement handles the amend amount request.
// PATCH /movements/{movementID}
func (h *MovementHandler) AmendMovement(w http.ResponseWriter, r *http.Request) {
	movementID, err := idParam(r, "movementID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req AmendMovementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.service.AmendAmount(r.Context(), movementID, *req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Movement amended",
		"movement": res.Movement,
		"balances": res.Balances,
	})
}

// DeleteMovement handles the delete movement request.
// DELETE /movements/{movementID}
func (h *MovementHandler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	movementID, err := idParam(r, "movementID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	res, err := h.service.DeleteMovement(r.Context(), movementID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Movement deleted",
		"movement_id": res.Movement.ID,
		"balances":    res.Balances,
	})
}
