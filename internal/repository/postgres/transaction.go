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

type TransactionRepo struct {
	DB DBTX
}

const transactionColumns = `id, product_id, buyer_id, merchant_id, purchase_price, cashback_percent, cashback_amount, ` +
	`pickup_code, status, pix_payload, purchased_at, pix_expires_at, paid_at, released_at, closed_at`

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + transactionColumns

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, t.ProductID, t.BuyerID, t.MerchantID, t.PurchasePrice, t.CashbackPercent, t.CashbackAmount,
		t.PickupCode, t.Status, t.PixPayload, t.PurchasedAt, t.PixExpiresAt, t.PaidAt, t.ReleasedAt, t.ClosedAt,
	)
	trx, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "transactions_pickup_code_idx" {
			return trx, apperrors.ErrPickupCodeTaken
		}
		return trx, fmt.Errorf("db error: %w", err)
	}

	return trx, nil
}

const updateTransaction = `-- name: UpdateTransaction
UPDATE transactions
SET status = $2, pix_payload = $3, pix_expires_at = $4, paid_at = $5, released_at = $6, closed_at = $7
WHERE id = $1
RETURNING ` + transactionColumns

func (r *TransactionRepo) UpdateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, updateTransaction, t.ID, t.Status, t.PixPayload, t.PixExpiresAt, t.PaidAt, t.ReleasedAt, t.ClosedAt)
	return collectTransaction(rows)
}

const getTransaction = `-- name: GetTransaction
SELECT ` + transactionColumns + ` FROM transactions
WHERE id = $1
`

func (r *TransactionRepo) GetTransaction(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Transaction, error) {
	query := getTransaction
	if forUpdate {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, id)
	return collectTransaction(rows)
}

const getTransactionByPickupCode = `-- name: GetTransactionByPickupCode
SELECT ` + transactionColumns + ` FROM transactions
WHERE upper(pickup_code) = upper($1)
`

func (r *TransactionRepo) GetTransactionByPickupCode(ctx context.Context, code string, forUpdate bool) (models.Transaction, error) {
	query := getTransactionByPickupCode
	if forUpdate {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, code)
	return collectTransaction(rows)
}

func (r *TransactionRepo) ListTransactions(ctx context.Context, opts repository.ListTransactionsOpts) ([]models.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if opts.BuyerID != nil {
		add("buyer_id = $%d", *opts.BuyerID)
	}
	if opts.Status != "" {
		add("status = $%d", opts.Status)
	}
	if opts.ExpiredBefore != nil {
		where = append(where, "status = 'AWAITING_PAYMENT'")
		add("pix_expires_at < $%d", *opts.ExpiredBefore)
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY purchased_at DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.ForUpdateSkipLocked {
		query += " FOR UPDATE SKIP LOCKED"
	}

	rows, _ := r.DB.Query(ctx, query, args...)
	trxs, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return trxs, nil
}

func collectTransaction(rows pgx.Rows) (models.Transaction, error) {
	trx, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return trx, nil
	case errors.Is(err, pgx.ErrNoRows):
		return trx, apperrors.ErrTransactionNotFound
	default:
		return trx, fmt.Errorf("db error: %w", err)
	}
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.ProductID, &t.BuyerID, &t.MerchantID, &t.PurchasePrice, &t.CashbackPercent, &t.CashbackAmount,
		&t.PickupCode, &t.Status, &t.PixPayload, &t.PurchasedAt, &t.PixExpiresAt, &t.PaidAt, &t.ReleasedAt, &t.ClosedAt,
	)
	return t, err
}
