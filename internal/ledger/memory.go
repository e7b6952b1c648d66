package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/salon64/BB-M7011E/internal/models"
)

// Memory is an in-memory Store for tests and local development.
// Apply is atomic under a single mutex, mirroring the transactional
// guarantee of the Postgres adapter.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	entries  map[string][]models.LedgerEntry
	keys     map[string]bool // "accountID\x00idempotencyKey"
	opening  map[string]int64
	nextID   int64
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*models.Account),
		entries:  make(map[string][]models.LedgerEntry),
		keys:     make(map[string]bool),
		opening:  make(map[string]int64),
	}
}

// PutAccount seeds or replaces an account. The seeded balance counts as an
// opening balance for VerifyBalances, not as a ledger entry.
func (m *Memory) PutAccount(account models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = &account
	m.opening[account.ID] = account.Balance
}

// SetActive toggles an account's active flag.
func (m *Memory) SetActive(accountID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[accountID]; ok {
		account.Active = active
	}
}

func (m *Memory) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *Memory) FindEntry(_ context.Context, accountID, idempotencyKey string) (*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entry := range m.entries[accountID] {
		if entry.IdempotencyKey == idempotencyKey {
			copied := entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) Apply(_ context.Context, entry *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[entry.AccountID]
	if !ok {
		return ErrAccountNotFound
	}
	key := entry.AccountID + "\x00" + entry.IdempotencyKey
	if m.keys[key] {
		return ErrDuplicateEntry
	}

	m.nextID++
	entry.ID = m.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries[entry.AccountID] = append(m.entries[entry.AccountID], *entry)
	m.keys[key] = true
	account.Balance = entry.BalanceAfter
	account.UpdatedAt = entry.CreatedAt
	return nil
}

func (m *Memory) History(_ context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.entries[accountID]
	entries := []models.LedgerEntry{}
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(entries) < limit); i-- {
		entries = append(entries, all[i])
	}
	return entries, nil
}

func (m *Memory) VerifyBalances(_ context.Context) ([]Drift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	drifts := []Drift{}
	for id, account := range m.accounts {
		sum := m.opening[id]
		for _, entry := range m.entries[id] {
			sum += entry.AmountDelta
		}
		if sum != account.Balance {
			drifts = append(drifts, Drift{AccountID: id, Balance: account.Balance, LedgerSum: sum})
		}
	}
	return drifts, nil
}

var _ Store = (*Memory)(nil)
var _ Auditor = (*Memory)(nil)
