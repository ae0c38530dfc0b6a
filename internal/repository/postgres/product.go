package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

type ProductRepo struct {
	DB DBTX
}

const productColumns = `p.id, p.merchant_id, p.name, p.price, p.cashback_percent, p.stock`

const createProduct = `-- name: CreateProduct
INSERT INTO products AS p (id, merchant_id, name, price, cashback_percent, stock)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + productColumns

func (r *ProductRepo) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createProduct, p.ID, p.MerchantID, p.Name, p.Price, p.CashbackPercent, p.Stock)
	product, err := pgx.CollectOneRow(rows, rowToProduct)
	if err != nil {
		return product, fmt.Errorf("db error: %w", err)
	}

	return product, nil
}

const getProduct = `-- name: GetProduct
SELECT ` + productColumns + ` FROM products p
WHERE p.id = $1
`

func (r *ProductRepo) GetProduct(ctx context.Context, productID uuid.UUID) (models.Product, error) {
	rows, _ := r.DB.Query(ctx, getProduct, productID)
	product, err := pgx.CollectOneRow(rows, rowToProduct)

	switch {
	case err == nil:
		return product, nil
	case errors.Is(err, pgx.ErrNoRows):
		return product, apperrors.ErrProductNotFound
	default:
		return product, fmt.Errorf("db error: %w", err)
	}
}

// Single statement: the row lock taken by UPDATE makes concurrent buyers of the last unit wait,
// the loser re-evaluates 'stock > 0' and updates nothing
const decrementStock = `-- name: DecrementStock
UPDATE products p
SET stock = p.stock - 1
FROM entities e
WHERE p.id = $1
	AND p.stock > 0
	AND e.id = p.merchant_id
	AND e.approval_status = 'APPROVED'
	AND e.active
RETURNING ` + productColumns

const isPurchasable = `-- name: IsPurchasable
SELECT EXISTS (
	SELECT 1 FROM products p
	JOIN entities e ON e.id = p.merchant_id
	WHERE p.id = $1 AND e.approval_status = 'APPROVED' AND e.active
)
`

func (r *ProductRepo) DecrementStock(ctx context.Context, productID uuid.UUID) (models.Product, error) {
	rows, _ := r.DB.Query(ctx, decrementStock, productID)
	product, err := pgx.CollectOneRow(rows, rowToProduct)

	switch {
	case err == nil:
		return product, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing updated: either sold out or product is not on sale at all
		var exists bool
		if err := r.DB.QueryRow(ctx, isPurchasable, productID).Scan(&exists); err != nil {
			return product, fmt.Errorf("db error: %w", err)
		}
		if !exists {
			return product, apperrors.ErrProductNotFound
		}
		return product, apperrors.ErrOutOfStock
	default:
		return product, fmt.Errorf("db error: %w", err)
	}
}

const restoreStock = `-- name: RestoreStock
UPDATE products SET stock = stock + 1
WHERE id = $1
`

func (r *ProductRepo) RestoreStock(ctx context.Context, productID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, restoreStock, productID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrProductNotFound
	}
	return nil
}

const listPurchasable = `-- name: ListPurchasable
SELECT ` + productColumns + ` FROM products p
JOIN entities e ON e.id = p.merchant_id
WHERE e.approval_status = 'APPROVED' AND e.active AND p.stock > 0
ORDER BY p.name, p.id
`

func (r *ProductRepo) ListPurchasable(ctx context.Context) ([]models.Product, error) {
	rows, _ := r.DB.Query(ctx, listPurchasable)
	products, err := pgx.CollectRows(rows, rowToProduct)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return products, nil
}

func rowToProduct(row pgx.CollectableRow) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.MerchantID, &p.Name, &p.Price, &p.CashbackPercent, &p.Stock)
	return p, err
}
