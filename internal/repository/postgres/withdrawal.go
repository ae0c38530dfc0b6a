package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
)

type WithdrawalRepo struct {
	DB DBTX
}

const withdrawalColumns = `id, requester_id, amount, pix_key, status, requested_at, decided_at, decided_by, rejection_reason, note`

const createWithdrawal = `-- name: CreateWithdrawal
INSERT INTO withdrawals (` + withdrawalColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + withdrawalColumns

func (r *WithdrawalRepo) CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createWithdrawal,
		w.ID, w.RequesterID, w.Amount, w.PixKey, w.Status, w.RequestedAt, w.DecidedAt, w.DecidedBy, w.RejectionReason, w.Note,
	)
	withdrawal, err := pgx.CollectOneRow(rows, rowToWithdrawal)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return withdrawal, apperrors.ErrUserNotFound
		}
		return withdrawal, fmt.Errorf("db error: %w", err)
	}

	return withdrawal, nil
}

const updateWithdrawal = `-- name: UpdateWithdrawal
UPDATE withdrawals
SET status = $2, decided_at = $3, decided_by = $4, rejection_reason = $5, note = $6
WHERE id = $1
RETURNING ` + withdrawalColumns

func (r *WithdrawalRepo) UpdateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, updateWithdrawal, w.ID, w.Status, w.DecidedAt, w.DecidedBy, w.RejectionReason, w.Note)
	return collectWithdrawal(rows)
}

const getWithdrawal = `-- name: GetWithdrawal
SELECT ` + withdrawalColumns + ` FROM withdrawals
WHERE id = $1
`

func (r *WithdrawalRepo) GetWithdrawal(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Withdrawal, error) {
	query := getWithdrawal
	if forUpdate {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, id)
	return collectWithdrawal(rows)
}

func (r *WithdrawalRepo) ListWithdrawals(ctx context.Context, opts repository.ListWithdrawalsOpts) ([]models.Withdrawal, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if opts.RequesterID != nil {
		add("requester_id = $%d", *opts.RequesterID)
	}
	if opts.Status != "" {
		add("status = $%d", opts.Status)
	}

	query := "SELECT " + withdrawalColumns + " FROM withdrawals"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY requested_at DESC, id"

	rows, _ := r.DB.Query(ctx, query, args...)
	withdrawals, err := pgx.CollectRows(rows, rowToWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return withdrawals, nil
}

func collectWithdrawal(rows pgx.Rows) (models.Withdrawal, error) {
	withdrawal, err := pgx.CollectOneRow(rows, rowToWithdrawal)

	switch {
	case err == nil:
		return withdrawal, nil
	case errors.Is(err, pgx.ErrNoRows):
		return withdrawal, apperrors.ErrWithdrawalNotFound
	default:
		return withdrawal, fmt.Errorf("db error: %w", err)
	}
}

func rowToWithdrawal(row pgx.CollectableRow) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID, &w.RequesterID, &w.Amount, &w.PixKey, &w.Status, &w.RequestedAt,
		&w.DecidedAt, &w.DecidedBy, &w.RejectionReason, &w.Note,
	)
	return w, err
}
