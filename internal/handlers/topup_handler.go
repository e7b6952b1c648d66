package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/salon64/BB-M7011E/internal/ledger"
	"github.com/salon64/BB-M7011E/internal/services"
)

type TopupHandler struct {
	service   *services.TopupService
	validator *services.ValidationHelper
}

func NewTopupHandler(service *services.TopupService) *TopupHandler {
	return &TopupHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR issues a top-up voucher as a QR code
// @Summary Generate top-up voucher
// @Description Issue a single-use, time-limited top-up voucher rendered as a QR code
// @Tags topup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{accountId=string,amount=int64} true "Voucher request"
// @Success 200 {object} object{voucherId=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /topup/qr/generate [post]
func (h *TopupHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId" validate:"required"`
		Amount    int64  `json:"amount" validate:"required,gt=0"`
	}

	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	voucher, qrImage, err := h.service.GenerateVoucher(r.Context(), req.AccountID, req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"voucherId": voucher.VoucherID,
		"expiresIn": int64(services.VoucherTTL.Seconds()),
		"qrImage":   qrImage,
	})
}

// RedeemQR redeems a scanned voucher
// @Summary Redeem top-up voucher
// @Description Redeem a scanned voucher, crediting the account it was issued for
// @Tags topup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{voucherId=string} true "Scanned voucher ID"
// @Success 200 {object} object{accountId=string,newBalance=int64}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /topup/qr/redeem [post]
func (h *TopupHandler) RedeemQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VoucherID string `json:"voucherId" validate:"required,uuid4"`
	}

	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	voucher, newBalance, err := h.service.RedeemVoucher(r.Context(), req.VoucherID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVoucherNotFound):
			services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
		case errors.Is(err, ledger.ErrAccountNotFound):
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		default:
			services.SendErrorResponse(w, "Failed to redeem voucher", http.StatusServiceUnavailable, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountId":  voucher.AccountID,
		"amount":     voucher.Amount,
		"newBalance": newBalance,
	})
}
