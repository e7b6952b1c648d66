package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/salon64/BB-M7011E/internal/models"
)

// Engine owns all balance mutation. Every debit and credit against one
// account runs its check-then-mutate sequence under that account's mutex, so
// concurrent requests cannot interleave reads and writes of the same balance.
// Operations on different accounts do not contend.
type Engine struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// Debit charges amount from the account and appends a PURCHASE-style entry.
// Checks run in order: idempotent replay, existence, active flag, funds.
// Returns the new balance.
func (e *Engine) Debit(ctx context.Context, accountID string, amount int64, idempotencyKey string, kind models.EntryKind, reference string) (int64, error) {
	if err := validateInput(amount, idempotencyKey); err != nil {
		return 0, err
	}
	if kind == "" {
		kind = models.EntryPurchase
	}

	lock := e.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	if prior, err := e.store.FindEntry(ctx, accountID, idempotencyKey); err != nil {
		return 0, err
	} else if prior != nil {
		log.Printf("[LEDGER] Replay detected: account=%s key=%s, returning prior balance %d", accountID, idempotencyKey, prior.BalanceAfter)
		return prior.BalanceAfter, nil
	}

	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if !account.Active {
		return 0, fmt.Errorf("%w: %s", ErrAccountInactive, accountID)
	}
	if account.Balance < amount {
		return 0, fmt.Errorf("%w: has %d, needs %d", ErrInsufficientFunds, account.Balance, amount)
	}

	return e.apply(ctx, &models.LedgerEntry{
		AccountID:      accountID,
		AmountDelta:    -amount,
		Kind:           kind,
		IdempotencyKey: idempotencyKey,
		Reference:      reference,
		BalanceAfter:   account.Balance - amount,
	})
}

// Credit adds amount to the account. Inactive accounts may still be credited
// so reactivation and top-up flows keep working. Returns the new balance.
func (e *Engine) Credit(ctx context.Context, accountID string, amount int64, idempotencyKey string, kind models.EntryKind, reference string) (int64, error) {
	if err := validateInput(amount, idempotencyKey); err != nil {
		return 0, err
	}
	if kind == "" {
		kind = models.EntryTopup
	}

	lock := e.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	if prior, err := e.store.FindEntry(ctx, accountID, idempotencyKey); err != nil {
		return 0, err
	} else if prior != nil {
		log.Printf("[LEDGER] Replay detected: account=%s key=%s, returning prior balance %d", accountID, idempotencyKey, prior.BalanceAfter)
		return prior.BalanceAfter, nil
	}

	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	return e.apply(ctx, &models.LedgerEntry{
		AccountID:      accountID,
		AmountDelta:    amount,
		Kind:           kind,
		IdempotencyKey: idempotencyKey,
		Reference:      reference,
		BalanceAfter:   account.Balance + amount,
	})
}

// Balance returns the current balance without taking the account lock; reads
// always observe a committed state because mutation is atomic in the store.
func (e *Engine) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// History returns the account's audit trail, newest first.
func (e *Engine) History(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.History(ctx, accountID, limit)
}

func (e *Engine) apply(ctx context.Context, entry *models.LedgerEntry) (int64, error) {
	// A request cancelled before commit must not apply.
	if err := ctx.Err(); err != nil {
		return 0, storageErr("apply", err)
	}

	entry.CreatedAt = e.now()
	if err := e.store.Apply(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			// Lost a race with another writer on the same key (e.g. a second
			// service instance); the storage constraint caught it, so surface
			// the original result.
			if prior, ferr := e.store.FindEntry(ctx, entry.AccountID, entry.IdempotencyKey); ferr == nil && prior != nil {
				return prior.BalanceAfter, nil
			}
		}
		return 0, err
	}

	log.Printf("[LEDGER] %s account=%s delta=%d balance=%d key=%s", entry.Kind, entry.AccountID, entry.AmountDelta, entry.BalanceAfter, entry.IdempotencyKey)
	return entry.BalanceAfter, nil
}

// lockFor returns the mutex for an account, creating it on first use.
// Locks are never evicted; the population is bounded by the member base.
func (e *Engine) lockFor(accountID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[accountID] = lock
	}
	return lock
}

func validateInput(amount int64, idempotencyKey string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	return nil
}
