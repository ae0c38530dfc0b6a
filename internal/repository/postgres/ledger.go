package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

type LedgerRepo struct {
	DB DBTX
}

const ledgerColumns = `id, user_id, kind, amount, reference_id, unblock_at, created_at`

// Transaction scoped advisory lock, released on commit or rollback
const lockWallet = `-- name: LockWallet
SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))
`

func (r *LedgerRepo) LockWallet(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.DB.Exec(ctx, lockWallet, userID.String()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const appendEntry = `-- name: AppendEntry
INSERT INTO ledger_entries (` + ledgerColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + ledgerColumns

func (r *LedgerRepo) AppendEntry(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, appendEntry, e.ID, e.UserID, e.Kind, e.Amount, e.ReferenceID, e.UnblockAt, e.CreatedAt)
	entry, err := pgx.CollectOneRow(rows, rowToLedgerEntry)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return entry, apperrors.ErrLedgerEntryExists
			case pgerrcode.ForeignKeyViolation:
				return entry, apperrors.ErrUserNotFound
			}
		}
		return entry, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

const getTotals = `-- name: GetTotals
SELECT
	COALESCE(SUM(amount) FILTER (WHERE kind = 'cashback_credit'), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'cashback_unblock'), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'donation'), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'withdrawal_reserve'), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'withdrawal_release'), 0)
FROM ledger_entries
WHERE user_id = $1
`

func (r *LedgerRepo) GetTotals(ctx context.Context, userID uuid.UUID) (models.LedgerTotals, error) {
	var t models.LedgerTotals
	err := r.DB.QueryRow(ctx, getTotals, userID).Scan(&t.Credited, &t.Unblocked, &t.Donated, &t.Reserved, &t.Released)
	if err != nil {
		return t, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Unblock entries reference the credit entry they unblock
const listDueCredits = `-- name: ListDueCredits
SELECT ` + ledgerColumns + ` FROM ledger_entries c
WHERE c.kind = 'cashback_credit'
	AND c.unblock_at <= $1
	AND NOT EXISTS (
		SELECT 1 FROM ledger_entries u
		WHERE u.kind = 'cashback_unblock' AND u.reference_id = c.id
	)
ORDER BY c.unblock_at, c.id
LIMIT $2
`

func (r *LedgerRepo) ListDueCredits(ctx context.Context, now time.Time, limit int) ([]models.LedgerEntry, error) {
	rows, _ := r.DB.Query(ctx, listDueCredits, now, limit)
	entries, err := pgx.CollectRows(rows, rowToLedgerEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

const listEntries = `-- name: ListEntries
SELECT ` + ledgerColumns + ` FROM ledger_entries
WHERE user_id = $1
ORDER BY created_at, id
`

func (r *LedgerRepo) ListEntries(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	rows, _ := r.DB.Query(ctx, listEntries, userID)
	entries, err := pgx.CollectRows(rows, rowToLedgerEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

func rowToLedgerEntry(row pgx.CollectableRow) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.ReferenceID, &e.UnblockAt, &e.CreatedAt)
	return e, err
}
