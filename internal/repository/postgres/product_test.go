package postgres

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
	"github.com/nkiryanov/cashbackmart/internal/testutil"
)

func Test_ProductRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx(t, pg.Pool, func(tx pgx.Tx, s repository.Storage) {
		owner := mustUser(t, s, "owner")
		merchant := mustEntity(t, s, models.EntityMerchant, owner.ID, true)
		pending := mustEntity(t, s, models.EntityMerchant, owner.ID, false)

		t.Run("decrement ok", func(t *testing.T) {
			inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
				product := mustProduct(t, s, merchant.ID, 2)

				got, err := s.Product().DecrementStock(t.Context(), product.ID)

				require.NoError(t, err)
				require.Equal(t, 1, got.Stock)
				require.True(t, got.Price.Equal(product.Price))
			})
		})

		t.Run("decrement last unit then out of stock", func(t *testing.T) {
			inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
				product := mustProduct(t, s, merchant.ID, 1)
				_, err := s.Product().DecrementStock(t.Context(), product.ID)
				require.NoError(t, err)

				_, err = s.Product().DecrementStock(t.Context(), product.ID)

				require.ErrorIs(t, err, apperrors.ErrOutOfStock)
			})
		})

		t.Run("not purchasable from pending merchant", func(t *testing.T) {
			inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
				product := mustProduct(t, s, pending.ID, 5)

				_, err := s.Product().DecrementStock(t.Context(), product.ID)

				require.ErrorIs(t, err, apperrors.ErrProductNotFound)
			})
		})

		t.Run("unknown product", func(t *testing.T) {
			inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
				_, err := s.Product().DecrementStock(t.Context(), uuid.New())
				require.ErrorIs(t, err, apperrors.ErrProductNotFound)

				err = s.Product().RestoreStock(t.Context(), uuid.New())
				require.ErrorIs(t, err, apperrors.ErrProductNotFound)
			})
		})

		t.Run("restore stock", func(t *testing.T) {
			inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
				product := mustProduct(t, s, merchant.ID, 0)

				err := s.Product().RestoreStock(t.Context(), product.ID)
				require.NoError(t, err)

				got, err := s.Product().GetProduct(t.Context(), product.ID)
				require.NoError(t, err)
				require.Equal(t, 1, got.Stock)
			})
		})

		t.Run("list purchasable", func(t *testing.T) {
			inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
				onSale := mustProduct(t, s, merchant.ID, 1)
				mustProduct(t, s, merchant.ID, 0)
				mustProduct(t, s, pending.ID, 3)

				products, err := s.Product().ListPurchasable(t.Context())

				require.NoError(t, err)
				require.Len(t, products, 1)
				require.Equal(t, onSale.ID, products[0].ID)
			})
		})
	})

	t.Run("concurrent buyers of last unit", func(t *testing.T) {
		var product models.Product
		err := NewStorage(pg.Pool).InTx(t.Context(), func(s repository.Storage) error {
			owner := mustUser(t, s, "concurrent-owner")
			merchant := mustEntity(t, s, models.EntityMerchant, owner.ID, true)
			product = mustProduct(t, s, merchant.ID, 1)
			return nil
		})
		require.NoError(t, err)

		const buyers = 10
		results := make(chan error, buyers)
		var wg sync.WaitGroup
		for range buyers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := NewStorage(pg.Pool).Product().DecrementStock(t.Context(), product.ID)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var ok, outOfStock int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperrors.ErrOutOfStock):
				outOfStock++
			}
		}
		require.Equal(t, 1, ok, "only one buyer may take the last unit")
		require.Equal(t, buyers-1, outOfStock)
	})
}
