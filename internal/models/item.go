package models

import "time"

// Item is a fixed-price catalog product dispensed by the kiosk.
// Price is in the smallest currency unit.
type Item struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     int64     `json:"price" db:"price"`
	BarcodeID string    `json:"barcode_id,omitempty" db:"barcode_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
