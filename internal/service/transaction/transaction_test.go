package transaction

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
	"github.com/nkiryanov/cashbackmart/internal/repository/postgres"
	"github.com/nkiryanov/cashbackmart/internal/service/validate"
	"github.com/nkiryanov/cashbackmart/internal/service/wallet"
	"github.com/nkiryanov/cashbackmart/internal/testutil"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	tx       pgx.Tx
	storage  repository.Storage
	service  *Service
	wallet   *wallet.Service
	clock    *clock
	buyer    models.Actor
	owner    models.Actor
	stranger models.Actor
	product  models.Product
}

func newFixture(t *testing.T, tx pgx.Tx, cfg Config) fixture {
	t.Helper()
	st := postgres.NewStorage(tx)
	ctx := t.Context()

	c := &clock{now: time.Now().UTC().Truncate(time.Microsecond)}

	actor := func(name string) models.Actor {
		user, err := st.User().CreateUser(ctx, name, "hash", models.RoleCustomer)
		require.NoError(t, err)
		return models.Actor{UserID: user.ID, Role: user.Role}
	}
	buyer, owner, stranger := actor("buyer"), actor("owner"), actor("stranger")

	merchant, err := st.Entity().CreateEntity(ctx, models.Entity{
		ID:             uuid.New(),
		Kind:           models.EntityMerchant,
		OwnerUserID:    owner.UserID,
		LegalName:      "Coffee Shop",
		Document:       validate.GenerateCNPJ(),
		DocumentKind:   string(validate.CNPJ),
		ApprovalStatus: models.ApprovalApproved,
		Active:         true,
		CreatedAt:      c.now,
	})
	require.NoError(t, err)

	product, err := st.Product().CreateProduct(ctx, models.Product{
		MerchantID:      merchant.ID,
		Name:            "Espresso machine",
		Price:           decimal.RequireFromString("100.00"),
		CashbackPercent: decimal.RequireFromString("15"),
		Stock:           2,
	})
	require.NoError(t, err)

	w, err := wallet.New(wallet.Config{
		DonationThreshold: wallet.DefaultDonationThreshold,
		MinWithdrawal:     wallet.DefaultMinWithdrawal,
		Now:               c.Now,
	}, st, logger.NewNoOpLogger())
	require.NoError(t, err)

	cfg.PixKey = "pix@cashbackmart.example"
	cfg.Now = c.Now
	s, err := New(cfg, st, w, logger.NewNoOpLogger())
	require.NoError(t, err)

	return fixture{
		tx:       tx,
		storage:  st,
		service:  s,
		wallet:   w,
		clock:    c,
		buyer:    buyer,
		owner:    owner,
		stranger: stranger,
		product:  product,
	}
}

func (f fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.storage.Product().GetProduct(t.Context(), f.product.ID)
	require.NoError(t, err)
	return p.Stock
}

func (f fixture) create(t *testing.T) models.Transaction {
	t.Helper()
	trx, err := f.service.Create(t.Context(), f.buyer, f.product.ID)
	require.NoError(t, err)
	return trx
}

func (f fixture) paid(t *testing.T) models.Transaction {
	t.Helper()
	trx, err := f.service.ConfirmPayment(t.Context(), f.create(t).ID)
	require.NoError(t, err)
	return trx
}

func TestNewPickupCode(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	seen := make(map[string]bool)

	for range 100 {
		code, err := NewPickupCode()
		require.NoError(t, err)
		require.Regexp(t, re, code)
		seen[code] = true
	}
	require.Greater(t, len(seen), 95, "codes must be random")
}

func Test_Transaction(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, cfg Config, fn func(f fixture)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(newFixture(t, tx, cfg))
		})
	}

	t.Run("new requires pix key", func(t *testing.T) {
		w, err := wallet.New(wallet.Config{}, postgres.NewStorage(pg.Pool), logger.NewNoOpLogger())
		require.NoError(t, err)

		_, err = New(Config{}, postgres.NewStorage(pg.Pool), w, logger.NewNoOpLogger())
		require.Error(t, err)
	})

	t.Run("Create", func(t *testing.T) {
		t.Run("awaiting payment with pix charge", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.create(t)

				require.Equal(t, models.TransactionAwaitingPayment, trx.Status)
				require.Equal(t, f.buyer.UserID, trx.BuyerID)
				require.Equal(t, f.product.MerchantID, trx.MerchantID)
				require.Equal(t, "15.00", trx.CashbackAmount.StringFixed(2))
				require.Regexp(t, `^[A-Z0-9]{8}$`, trx.PickupCode)
				require.Contains(t, trx.PixPayload, "5406100.00")
				require.WithinDuration(t, f.clock.now.Add(defaultPixTTL), *trx.PixExpiresAt, time.Millisecond)
				require.Equal(t, 1, f.stock(t), "one unit taken")
			})
		})

		t.Run("out of stock", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				f.create(t)
				f.create(t)

				_, err := f.service.Create(t.Context(), f.buyer, f.product.ID)

				require.ErrorIs(t, err, apperrors.ErrOutOfStock)
				require.Zero(t, f.stock(t))
			})
		})

		t.Run("unknown product", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				_, err := f.service.Create(t.Context(), f.buyer, uuid.New())

				require.ErrorIs(t, err, apperrors.ErrNotFound)
			})
		})

		t.Run("pickup code collision retried", func(t *testing.T) {
			codes := []string{"SAMECODE", "SAMECODE", "FRESH001"}
			cfg := Config{PickupCode: func() (string, error) {
				code := codes[0]
				codes = codes[1:]
				return code, nil
			}}

			inTx(t, cfg, func(f fixture) {
				first := f.create(t)
				second := f.create(t)

				require.Equal(t, "SAMECODE", first.PickupCode)
				require.Equal(t, "FRESH001", second.PickupCode)
			})
		})

		t.Run("pickup codes exhausted", func(t *testing.T) {
			cfg := Config{
				PickupAttempts: 3,
				PickupCode:     func() (string, error) { return "SAMECODE", nil },
			}

			inTx(t, cfg, func(f fixture) {
				f.create(t)

				_, err := f.service.Create(t.Context(), f.buyer, f.product.ID)

				require.ErrorIs(t, err, apperrors.ErrPickupCodeExhausted)
				require.Equal(t, 1, f.stock(t), "failed purchase gives the unit back")
			})
		})
	})

	t.Run("ConfirmPayment", func(t *testing.T) {
		t.Run("paid and cashback blocked", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)

				require.Equal(t, models.TransactionPaid, trx.Status)
				require.NotNil(t, trx.PaidAt)

				w, err := f.wallet.GetBalance(t.Context(), f.buyer.UserID)
				require.NoError(t, err)
				require.Equal(t, "15.00", w.Blocked.StringFixed(2))
				require.True(t, w.Available.IsZero())
			})
		})

		t.Run("twice is invalid state and credits once", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)

				_, err := f.service.ConfirmPayment(t.Context(), trx.ID)
				require.ErrorIs(t, err, apperrors.ErrInvalidState)

				w, err := f.wallet.GetBalance(t.Context(), f.buyer.UserID)
				require.NoError(t, err)
				require.Equal(t, "15.00", w.Total.StringFixed(2), "never a double credit")
			})
		})

		t.Run("after deadline expires", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.create(t)
				f.clock.Advance(defaultPixTTL + time.Second)

				_, err := f.service.ConfirmPayment(t.Context(), trx.ID)
				require.ErrorIs(t, err, apperrors.ErrTransactionExpired)
				require.ErrorIs(t, err, apperrors.ErrExpired)

				got, err := f.service.Get(t.Context(), f.buyer, trx.ID)
				require.NoError(t, err)
				require.Equal(t, models.TransactionExpired, got.Status, "expiry is committed")
				require.NotNil(t, got.ClosedAt)
				require.Equal(t, 2, f.stock(t), "unit given back")

				w, err := f.wallet.GetBalance(t.Context(), f.buyer.UserID)
				require.NoError(t, err)
				require.True(t, w.Total.IsZero(), "no income from late payment")
			})
		})

		t.Run("unknown transaction", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				_, err := f.service.ConfirmPayment(t.Context(), uuid.New())

				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
			})
		})

		t.Run("cashback is a snapshot", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)

				_, err := f.tx.Exec(t.Context(), "UPDATE products SET price = 1, cashback_percent = 50 WHERE id = $1", f.product.ID)
				require.NoError(t, err)

				got, err := f.service.Get(t.Context(), f.buyer, trx.ID)
				require.NoError(t, err)
				require.True(t, got.CashbackAmount.Equal(trx.CashbackAmount))
				require.True(t, got.PurchasePrice.Equal(decimal.NewFromInt(100)))
			})
		})
	})

	t.Run("Release", func(t *testing.T) {
		t.Run("by merchant owner with pickup code", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)

				released, err := f.service.Release(t.Context(), f.owner, " "+strings.ToLower(trx.PickupCode)+" ")

				require.NoError(t, err)
				require.Equal(t, models.TransactionReleased, released.Status)
				require.NotNil(t, released.ReleasedAt)
			})
		})

		t.Run("by admin with id", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)
				admin := models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}

				released, err := f.service.Release(t.Context(), admin, trx.ID.String())

				require.NoError(t, err)
				require.Equal(t, models.TransactionReleased, released.Status)
			})
		})

		t.Run("by stranger forbidden", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)

				_, err := f.service.Release(t.Context(), f.stranger, trx.PickupCode)
				require.ErrorIs(t, err, apperrors.ErrForbidden)

				_, err = f.service.Release(t.Context(), f.buyer, trx.PickupCode)
				require.ErrorIs(t, err, apperrors.ErrForbidden, "buyer can't release own purchase")
			})
		})

		t.Run("not paid yet", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.create(t)

				_, err := f.service.Release(t.Context(), f.owner, trx.PickupCode)

				require.ErrorIs(t, err, apperrors.ErrInvalidState)
			})
		})

		t.Run("twice", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)
				_, err := f.service.Release(t.Context(), f.owner, trx.PickupCode)
				require.NoError(t, err)

				_, err = f.service.Release(t.Context(), f.owner, trx.PickupCode)

				require.ErrorIs(t, err, apperrors.ErrInvalidState)
			})
		})

		t.Run("unknown code", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				_, err := f.service.Release(t.Context(), f.owner, "NOPE0000")

				require.ErrorIs(t, err, apperrors.ErrNotFound)
			})
		})
	})

	t.Run("Cancel", func(t *testing.T) {
		t.Run("by buyer restores stock", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.create(t)

				canceled, err := f.service.Cancel(t.Context(), f.buyer, trx.ID)

				require.NoError(t, err)
				require.Equal(t, models.TransactionCanceled, canceled.Status)
				require.Equal(t, 2, f.stock(t))
			})
		})

		t.Run("twice is a no-op", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.create(t)
				_, err := f.service.Cancel(t.Context(), f.buyer, trx.ID)
				require.NoError(t, err)

				again, err := f.service.Cancel(t.Context(), f.buyer, trx.ID)

				require.NoError(t, err)
				require.Equal(t, models.TransactionCanceled, again.Status)
				require.Equal(t, 2, f.stock(t), "stock restored only once")
			})
		})

		t.Run("by stranger forbidden", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.create(t)

				_, err := f.service.Cancel(t.Context(), f.stranger, trx.ID)

				require.ErrorIs(t, err, apperrors.ErrForbidden)
			})
		})

		t.Run("after payment", func(t *testing.T) {
			inTx(t, Config{}, func(f fixture) {
				trx := f.paid(t)

				_, err := f.service.Cancel(t.Context(), f.buyer, trx.ID)

				require.ErrorIs(t, err, apperrors.ErrInvalidState)
			})
		})
	})

	t.Run("ExpireDue", func(t *testing.T) {
		inTx(t, Config{}, func(f fixture) {
			awaiting := f.create(t)
			paid := f.paid(t)

			n, err := f.service.ExpireDue(t.Context(), f.clock.now)
			require.NoError(t, err)
			require.Zero(t, n, "nothing is past deadline yet")

			n, err = f.service.ExpireDue(t.Context(), f.clock.now.Add(time.Hour))
			require.NoError(t, err)
			require.Equal(t, 1, n)

			got, err := f.service.Get(t.Context(), f.buyer, awaiting.ID)
			require.NoError(t, err)
			require.Equal(t, models.TransactionExpired, got.Status)

			got, err = f.service.Get(t.Context(), f.buyer, paid.ID)
			require.NoError(t, err)
			require.Equal(t, models.TransactionPaid, got.Status, "expiry is a no-op once paid")

			require.Equal(t, 1, f.stock(t), "expired unit is back, paid one is not")
		})
	})

	t.Run("Get and List", func(t *testing.T) {
		inTx(t, Config{}, func(f fixture) {
			first := f.create(t)
			f.clock.Advance(time.Minute)
			second := f.paid(t)

			_, err := f.service.Get(t.Context(), f.owner, first.ID)
			require.NoError(t, err, "merchant owner sees own sales")

			_, err = f.service.Get(t.Context(), f.stranger, first.ID)
			require.ErrorIs(t, err, apperrors.ErrForbidden)

			all, err := f.service.List(t.Context(), f.buyer, "")
			require.NoError(t, err)
			require.Len(t, all, 2)
			require.Equal(t, second.ID, all[0].ID, "newest first")

			paid, err := f.service.List(t.Context(), f.buyer, models.TransactionPaid)
			require.NoError(t, err)
			require.Len(t, paid, 1)

			none, err := f.service.List(t.Context(), f.stranger, "")
			require.NoError(t, err)
			require.Empty(t, none)
		})
	})

	t.Run("scenario purchase to available cashback", func(t *testing.T) {
		inTx(t, Config{HoldPeriod: 48 * time.Hour}, func(f fixture) {
			trx := f.paid(t)
			require.Equal(t, "15.00", trx.CashbackAmount.StringFixed(2))

			_, err := f.service.Release(t.Context(), f.owner, trx.PickupCode)
			require.NoError(t, err)

			n, err := f.wallet.UnblockDue(t.Context(), f.clock.now.Add(47*time.Hour))
			require.NoError(t, err)
			require.Zero(t, n)

			n, err = f.wallet.UnblockDue(t.Context(), f.clock.now.Add(48*time.Hour))
			require.NoError(t, err)
			require.Equal(t, 1, n)

			w, err := f.wallet.GetBalance(t.Context(), f.buyer.UserID)
			require.NoError(t, err)
			require.Equal(t, "15.00", w.Available.StringFixed(2))
			require.True(t, w.Blocked.IsZero())
		})
	})
}
