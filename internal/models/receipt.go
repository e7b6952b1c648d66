package models

import "time"

// Receipt is the record pushed onto the receipts queue after a successful
// payment, consumed by the register display and bookkeeping export.
type Receipt struct {
	ReceiptID      string    `json:"receipt_id"`
	AccountID      string    `json:"account_id"`
	Amount         int64     `json:"amount"`
	NewBalance     int64     `json:"new_balance"`
	Kind           EntryKind `json:"kind"`
	ItemID         string    `json:"item_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}
