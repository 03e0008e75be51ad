// internal/api/handler/account.go
package handler

import (
	"log/slog"
	"net/http"

	"goalflow/internal/api/types"
	"goalflow/internal/domain"
	"goalflow/internal/service"
	"goalflow/internal/util"
)

// AccountHandler handles HTTP requests related to accounts and their balances.
type AccountHandler struct {
	base
	service service.LedgerService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc service.LedgerService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		base:    newBase(logger),
		service: svc,
	}
}

// CreateAccountRequest represents the request body for opening an account.
type CreateAccountRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=32"`
}

// CreateAccount handles the create account request.
// POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req.FirstName, req.LastName, req.Email, req.PhoneNumber)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, account)
}

// UpdateAccountRequest represents the request body for changing holder details.
// The balance is owned by the ledger and cannot be sent here.
type UpdateAccountRequest struct {
	FirstName   *string `json:"first_name" validate:"omitnil,min=1,max=100"`
	LastName    *string `json:"last_name" validate:"omitnil,min=1,max=100"`
	Email       *string `json:"email" validate:"omitnil,email,max=255"`
	PhoneNumber *string `json:"phone_number" validate:"omitnil,max=32"`
}

// UpdateAccount handles the update account request.
// PATCH /accounts/{accountID}
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := idParam(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req UpdateAccountRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), accountID, service.AccountUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, account)
}

// DeleteAccount handles the delete account request. Accounts with movements are refused.
// DELETE /accounts/{accountID}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := idParam(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), accountID); err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Account deleted",
		"account_id": accountID,
	})
}

// ListAccounts handles the list accounts request.
// GET /accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": accounts})
}

// GetAccount handles the get account request.
// GET /accounts/{accountID}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := idParam(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, account)
}

// GetMovementHistory handles the movement history request.
// GET /accounts/{accountID}/movements
func (h *AccountHandler) GetMovementHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := idParam(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	limit, offset := pageParams(r)
	movements, total, err := h.service.GetMovementHistory(r.Context(), accountID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewPage(movements, limit, offset, total))
}

// Reconcile handles the reconciliation request. Drift is answered with 500 and the report.
// GET /accounts/{accountID}/reconcile
func (h *AccountHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	accountID, err := idParam(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	report, err := h.service.Reconcile(r.Context(), accountID)
	if err != nil {
		if util.IsError(err, util.ErrBalanceDrift) && report != nil {
			h.logger.Error("Reconciliation found drift", "account_id", accountID, "error", err)
			h.respondWithJSON(w, http.StatusInternalServerError, types.DriftResponse{
				Error:  util.ErrBalanceDrift.Error(),
				Report: report,
			})
			return
		}
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, report)
}
