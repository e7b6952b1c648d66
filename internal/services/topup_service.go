package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/salon64/BB-M7011E/internal/ledger"
	"github.com/salon64/BB-M7011E/internal/models"
	"github.com/skip2/go-qrcode"
)

// VoucherTTL is how long a generated top-up voucher stays redeemable.
const VoucherTTL = 15 * time.Minute

var ErrVoucherNotFound = errors.New("invalid or expired voucher")

// TopupVoucher is a single-use, time-limited credit authorization. Staff
// generate one as a QR code; the kiosk scans and redeems it. The voucher id
// doubles as the ledger idempotency key, so a voucher can only ever credit
// once even if redemption is retried.
type TopupVoucher struct {
	VoucherID string `json:"voucherId"`
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
	IssuedAt  int64  `json:"issuedAt"`
}

type TopupService struct {
	redis  *redis.Client
	engine *ledger.Engine
}

func NewTopupService(redisClient *redis.Client, engine *ledger.Engine) *TopupService {
	return &TopupService{
		redis:  redisClient,
		engine: engine,
	}
}

// GenerateVoucher issues a voucher and renders it as a QR PNG (base64).
func (s *TopupService) GenerateVoucher(ctx context.Context, accountID string, amount int64) (*TopupVoucher, string, error) {
	if s.redis == nil {
		return nil, "", errors.New("voucher store unavailable")
	}

	voucher := &TopupVoucher{
		VoucherID: uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		IssuedAt:  time.Now().Unix(),
	}

	data, err := json.Marshal(voucher)
	if err != nil {
		return nil, "", err
	}
	if err := s.redis.Set(ctx, voucherKey(voucher.VoucherID), data, VoucherTTL).Err(); err != nil {
		return nil, "", err
	}

	qr, err := qrcode.New(voucher.VoucherID, qrcode.Medium)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, "", err
	}

	return voucher, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// RedeemVoucher consumes the voucher and credits the account. The voucher id
// is the idempotency key: if the credit committed but the redis delete was
// lost, a second redemption replays rather than double-credits.
func (s *TopupService) RedeemVoucher(ctx context.Context, voucherID string) (*TopupVoucher, int64, error) {
	if s.redis == nil {
		return nil, 0, errors.New("voucher store unavailable")
	}

	data, err := s.redis.Get(ctx, voucherKey(voucherID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrVoucherNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	var voucher TopupVoucher
	if err := json.Unmarshal(data, &voucher); err != nil {
		return nil, 0, err
	}

	newBalance, err := s.engine.Credit(ctx, voucher.AccountID, voucher.Amount, "voucher:"+voucher.VoucherID, models.EntryTopup, "")
	if err != nil {
		return nil, 0, err
	}

	s.redis.Del(ctx, voucherKey(voucherID))
	return &voucher, newBalance, nil
}

func voucherKey(voucherID string) string {
	return fmt.Sprintf("topup:%s", voucherID)
}
