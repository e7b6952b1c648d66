package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/salon64/BB-M7011E/internal/ledger"
	"github.com/salon64/BB-M7011E/internal/models"
)

// ReceiptQueue is the redis list downstream consumers read receipts from.
const ReceiptQueue = "receipts_queue"

// PaymentService exposes the ledger engine over HTTP. It resolves catalog
// items to prices before debiting, translates engine failures into status
// codes, and queues receipts after commit.
type PaymentService struct {
	db        *sql.DB
	redis     *redis.Client
	engine    *ledger.Engine
	validator *ValidationHelper
}

func NewPaymentService(db *sql.DB, redisClient *redis.Client, engine *ledger.Engine) *PaymentService {
	return &PaymentService{
		db:        db,
		redis:     redisClient,
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// DebitRequest is a purchase at the kiosk: either a catalog item or a raw
// amount, exactly one of which must be set.
type DebitRequest struct {
	AccountID      string `json:"accountId" validate:"required"`
	ItemID         string `json:"itemId,omitempty" validate:"omitempty,uuid4"`
	Amount         int64  `json:"amount,omitempty" validate:"omitempty,gt=0"`
	IdempotencyKey string `json:"idempotencyKey" validate:"required,max=128"`
}

// CreditRequest tops up an account balance.
type CreditRequest struct {
	AccountID      string           `json:"accountId" validate:"required"`
	Amount         int64            `json:"amount" validate:"required,gt=0"`
	IdempotencyKey string           `json:"idempotencyKey" validate:"required,max=128"`
	Kind           models.EntryKind `json:"kind,omitempty" validate:"omitempty,oneof=TOPUP ADJUSTMENT"`
}

// PaymentResponse carries the balance after a successful operation.
type PaymentResponse struct {
	AccountID  string `json:"accountId"`
	NewBalance int64  `json:"newBalance"`
}

// Debit charges an account
// @Summary Debit an account
// @Description Charge a member account for a catalog item or a raw amount
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DebitRequest true "Debit request"
// @Success 200 {object} PaymentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse "Insufficient funds"
// @Failure 403 {object} ErrorResponse "Account not active"
// @Failure 404 {object} ErrorResponse "Account or item not found"
// @Failure 503 {object} ErrorResponse "Storage unavailable, safe to retry"
// @Router /payments/debit [post]
func (s *PaymentService) Debit(w http.ResponseWriter, r *http.Request) {
	var req DebitRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if (req.ItemID == "") == (req.Amount == 0) {
		SendErrorResponse(w, "Exactly one of itemId or amount is required", http.StatusBadRequest, nil)
		return
	}

	amount := req.Amount
	if req.ItemID != "" {
		price, err := s.resolveItemPrice(r.Context(), req.ItemID)
		if err != nil {
			log.Printf("[PAYMENT] Item lookup failed for %s: %v", req.ItemID, err)
			s.writeItemError(w, err)
			return
		}
		amount = price
	}

	newBalance, err := s.engine.Debit(r.Context(), req.AccountID, amount, req.IdempotencyKey, models.EntryPurchase, req.ItemID)
	if err != nil {
		log.Printf("[PAYMENT] Debit rejected: account=%s amount=%d: %v", req.AccountID, amount, err)
		writeEngineError(w, err)
		return
	}

	s.queueReceipt(r.Context(), models.Receipt{
		ReceiptID:      uuid.NewString(),
		AccountID:      req.AccountID,
		Amount:         amount,
		NewBalance:     newBalance,
		Kind:           models.EntryPurchase,
		ItemID:         req.ItemID,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PaymentResponse{AccountID: req.AccountID, NewBalance: newBalance})
}

// Credit tops up an account
// @Summary Credit an account
// @Description Add funds to a member account; permitted even when the account is inactive
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreditRequest true "Credit request"
// @Success 200 {object} PaymentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Account not found"
// @Failure 503 {object} ErrorResponse "Storage unavailable, safe to retry"
// @Router /payments/credit [post]
func (s *PaymentService) Credit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = models.EntryTopup
	}

	newBalance, err := s.engine.Credit(r.Context(), req.AccountID, req.Amount, req.IdempotencyKey, kind, "")
	if err != nil {
		log.Printf("[PAYMENT] Credit rejected: account=%s amount=%d: %v", req.AccountID, req.Amount, err)
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PaymentResponse{AccountID: req.AccountID, NewBalance: newBalance})
}

var errItemNotFound = errors.New("item not found")
var errItemInactive = errors.New("item not active")

// resolveItemPrice maps a catalog item to its price. The engine only sees
// amounts; price resolution stays at this boundary.
func (s *PaymentService) resolveItemPrice(ctx context.Context, itemID string) (int64, error) {
	var price int64
	var active bool
	err := s.db.QueryRowContext(ctx, `
		SELECT price, active FROM items WHERE id = $1`, itemID).Scan(&price, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errItemNotFound
	}
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, errItemInactive
	}
	return price, nil
}

func (s *PaymentService) writeItemError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errItemNotFound):
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
	case errors.Is(err, errItemInactive):
		SendErrorResponse(w, "Item not active", http.StatusConflict, nil)
	default:
		SendErrorResponse(w, "Failed to resolve item", http.StatusServiceUnavailable, nil)
	}
}

// queueReceipt pushes the receipt for downstream consumers. Best effort: the
// payment already committed, so a queue failure is only logged.
func (s *PaymentService) queueReceipt(ctx context.Context, receipt models.Receipt) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		log.Printf("[PAYMENT] Failed to marshal receipt %s: %v", receipt.ReceiptID, err)
		return
	}
	if err := s.redis.RPush(ctx, ReceiptQueue, data).Err(); err != nil {
		log.Printf("[PAYMENT] Failed to queue receipt %s: %v", receipt.ReceiptID, err)
	}
}

// writeEngineError maps the engine's failure taxonomy onto HTTP status codes,
// mirroring the rejected-transaction semantics of the kiosk protocol.
func writeEngineError(w http.ResponseWriter, err error) {
	var storageFailure *ledger.StorageError
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		SendErrorResponse(w, err.Error(), http.StatusPaymentRequired, nil)
	case errors.Is(err, ledger.ErrAccountInactive):
		SendErrorResponse(w, "Account not active", http.StatusForbidden, nil)
	case errors.Is(err, ledger.ErrAccountNotFound):
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrMissingIdempotencyKey):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.As(err, &storageFailure):
		SendErrorResponse(w, "Service temporarily unavailable, retry with the same idempotency key", http.StatusServiceUnavailable, nil)
	default:
		SendErrorResponse(w, "Failed to process operation", http.StatusInternalServerError, nil)
	}
}
