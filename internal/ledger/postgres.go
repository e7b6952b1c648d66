package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/salon64/BB-M7011E/internal/models"
)

// uniqueViolation is the Postgres error code raised when the
// (account_id, idempotency_key) constraint rejects a duplicate entry.
const uniqueViolation = "23505"

// Postgres persists accounts and ledger entries in two relations. Apply runs
// inside a database transaction and takes a FOR UPDATE row lock on the
// account, so the atomic append+update holds even if a second service
// instance bypasses the in-process account lock.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, balance, active, created_at, updated_at
		FROM accounts
		WHERE id = $1`, accountID).
		Scan(&account.ID, &account.Name, &account.Balance, &account.Active, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storageErr("get account", err)
	}
	return &account, nil
}

func (p *Postgres) FindEntry(ctx context.Context, accountID, idempotencyKey string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := p.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount_delta, kind, idempotency_key, reference, balance_after, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND idempotency_key = $2`, accountID, idempotencyKey).
		Scan(&entry.ID, &entry.AccountID, &entry.AmountDelta, &entry.Kind,
			&entry.IdempotencyKey, &entry.Reference, &entry.BalanceAfter, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find entry", err)
	}
	return &entry, nil
}

func (p *Postgres) Apply(ctx context.Context, entry *models.LedgerEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	// Row lock for the duration of the append+update.
	var current int64
	err = tx.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, entry.AccountID).
		Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	if err != nil {
		return storageErr("lock account", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (account_id, amount_delta, kind, idempotency_key, reference, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		entry.AccountID, entry.AmountDelta, entry.Kind, entry.IdempotencyKey,
		entry.Reference, entry.BalanceAfter, entry.CreatedAt).
		Scan(&entry.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEntry
		}
		return storageErr("append entry", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		entry.BalanceAfter, entry.CreatedAt, entry.AccountID)
	if err != nil {
		return storageErr("update balance", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (p *Postgres) History(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, amount_delta, kind, idempotency_key, reference, balance_after, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, storageErr("history", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.AmountDelta, &entry.Kind,
			&entry.IdempotencyKey, &entry.Reference, &entry.BalanceAfter, &entry.CreatedAt); err != nil {
			return nil, storageErr("history", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("history", err)
	}
	return entries, nil
}

// VerifyBalances reports every account whose stored balance disagrees with
// the sum of its ledger deltas.
func (p *Postgres) VerifyBalances(ctx context.Context) ([]Drift, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT a.id, a.balance, COALESCE(SUM(l.amount_delta), 0) AS ledger_sum
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.balance
		HAVING a.balance <> COALESCE(SUM(l.amount_delta), 0)`)
	if err != nil {
		return nil, storageErr("verify balances", err)
	}
	defer rows.Close()

	drifts := []Drift{}
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.AccountID, &d.Balance, &d.LedgerSum); err != nil {
			return nil, storageErr("verify balances", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("verify balances", err)
	}
	return drifts, nil
}
