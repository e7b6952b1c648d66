package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/salon64/BB-M7011E/internal/ledger"
	"github.com/salon64/BB-M7011E/internal/models"
)

// AccountService is the provisioning collaborator: it creates member
// accounts and toggles their active flag. Balances are never touched here;
// all mutation goes through the ledger engine.
type AccountService struct {
	db        *sql.DB
	engine    *ledger.Engine
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB, engine *ledger.Engine) *AccountService {
	return &AccountService{
		db:        db,
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// CreateAccountRequest registers a member card.
type CreateAccountRequest struct {
	AccountID string `json:"accountId" validate:"required,min=4,max=32"`
	Name      string `json:"name" validate:"required,min=1,max=100"`
}

// SetStatusRequest soft-activates or deactivates an account.
type SetStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// CreateAccount registers a new member account
// @Summary Create account
// @Description Register a member card with a zero balance
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAccountRequest true "Account details"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Account already exists"
// @Router /accounts [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	account := models.Account{ID: req.AccountID, Name: req.Name, Active: true, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(r.Context(), `
		INSERT INTO accounts (id, name, balance, active, created_at, updated_at)
		VALUES ($1, $2, 0, TRUE, $3, $3)`, account.ID, account.Name, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			SendErrorResponse(w, "Account already exists", http.StatusConflict, nil)
			return
		}
		log.Printf("[ACCOUNT] Failed to create account %s: %v", req.AccountID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Created account %s", account.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// SetStatus toggles the active flag
// @Summary Set account status
// @Description Soft-activate or deactivate an account; accounts are never deleted
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body SetStatusRequest true "Desired status"
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId}/status [put]
func (s *AccountService) SetStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req SetStatusRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE accounts SET active = $1, updated_at = $2 WHERE id = $3`,
		*req.Active, time.Now(), accountID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to set status for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[ACCOUNT] Account %s active=%t", accountID, *req.Active)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"accountId": accountID, "active": *req.Active})
}

// BalanceEnquiry returns the current balance
// @Summary Get account balance
// @Description Retrieve balance and status for an account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountId query string true "Account ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Router /accounts/balance-enquiry [get]
func (s *AccountService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		SendErrorResponse(w, "accountId is required", http.StatusBadRequest, nil)
		return
	}

	var balance int64
	var active bool
	err := s.db.QueryRowContext(r.Context(), `
		SELECT balance, active FROM accounts WHERE id = $1`, accountID).Scan(&balance, &active)
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Balance enquiry failed for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusServiceUnavailable, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountId": accountID,
		"balance":   balance,
		"active":    active,
	})
}

// History returns the account's audit trail
// @Summary Get account history
// @Description Retrieve the account's ledger entries, newest first
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param limit query int false "Number of entries to return (default: 50, max: 200)"
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId}/history [get]
func (s *AccountService) History(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	entries, err := s.engine.History(r.Context(), accountID, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountId": accountID,
		"entries":   entries,
		"count":     len(entries),
	})
}
