package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Callers match with
// errors.Is and translate to protocol status codes; the engine never retries
// any of them itself.
var (
	// ErrAccountNotFound is returned when the account id references no account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive is returned when a debit targets a deactivated
	// account. Credits are still allowed on inactive accounts.
	ErrAccountInactive = errors.New("account not active")

	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	// The wrapped message carries the current and required amounts.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateEntry is returned by stores when an idempotency key was
	// already used for the account. The engine resolves it as a replay.
	ErrDuplicateEntry = errors.New("duplicate idempotency key")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrMissingIdempotencyKey is returned when no idempotency key is supplied.
	ErrMissingIdempotencyKey = errors.New("idempotency key required")
)

// StorageError marks a durability-layer failure. The operation may or may not
// have applied; retrying with the same idempotency key is always safe.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
