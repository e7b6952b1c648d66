package models

import "time"

// Account is a member's stored-value record, keyed by their campus card ID.
// Balance is held in the smallest currency unit and is mutated only by the
// ledger engine. Accounts are never deleted, only deactivated.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Balance   int64     `json:"balance" db:"balance"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
