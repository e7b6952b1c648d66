package models

import "time"

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryPurchase   EntryKind = "PURCHASE"
	EntryTopup      EntryKind = "TOPUP"
	EntryAdjustment EntryKind = "ADJUSTMENT"
)

// LedgerEntry is one immutable balance change. AmountDelta is negative for
// debits and positive for credits. BalanceAfter records the balance the
// operation produced, which is what an idempotent replay returns.
type LedgerEntry struct {
	ID             int64     `json:"id" db:"id"`
	AccountID      string    `json:"account_id" db:"account_id"`
	AmountDelta    int64     `json:"amount_delta" db:"amount_delta"`
	Kind           EntryKind `json:"kind" db:"kind"`
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	Reference      string    `json:"reference,omitempty" db:"reference"` // item id for purchases
	BalanceAfter   int64     `json:"balance_after" db:"balance_after"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
