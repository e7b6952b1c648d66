package ledger

import (
	"context"

	"github.com/salon64/BB-M7011E/internal/models"
)

// Store is the durable backing for accounts and the append-only ledger.
// The engine serializes writers per account before calling into it, but
// implementations still enforce uniqueness of (account_id, idempotency_key)
// as defense in depth against a second engine instance.
type Store interface {
	// GetAccount returns the account or ErrAccountNotFound.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// FindEntry returns the entry recorded for (accountID, idempotencyKey),
	// or nil if the key has not been used.
	FindEntry(ctx context.Context, accountID, idempotencyKey string) (*models.LedgerEntry, error)

	// Apply persists the entry and sets the account balance to
	// entry.BalanceAfter as a single atomic unit. No partial state may become
	// visible. Returns ErrDuplicateEntry if the idempotency key is taken.
	Apply(ctx context.Context, entry *models.LedgerEntry) error

	// History returns the account's entries, newest first.
	History(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error)
}

// Drift is one account whose balance disagrees with the sum of its entries.
type Drift struct {
	AccountID string
	Balance   int64
	LedgerSum int64
}

// Auditor is implemented by stores that can cross-check every account
// balance against its ledger sum.
type Auditor interface {
	VerifyBalances(ctx context.Context) ([]Drift, error)
}
