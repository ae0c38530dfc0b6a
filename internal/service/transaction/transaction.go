package transaction

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
	"github.com/nkiryanov/cashbackmart/internal/service/pix"
	"github.com/nkiryanov/cashbackmart/internal/service/wallet"
)

const (
	defaultPixTTL         = 30 * time.Minute
	defaultHoldPeriod     = 30 * 24 * time.Hour
	defaultPickupAttempts = 5
	expireBatchSize       = 100

	pickupCodeLen      = 8
	pickupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Config struct {
	// Payment window of the PIX charge
	PixTTL time.Duration

	// Delay between payment and cashback becoming available
	HoldPeriod time.Duration

	// Receiver of PIX payments
	PixKey       string
	MerchantName string
	MerchantCity string

	// Attempts to allocate unique pickup code
	PickupAttempts int

	// Pickup code generator, random [A-Z0-9]{8} when nil
	PickupCode func() (string, error)

	// Clock, time.Now when nil
	Now func() time.Time
}

// Purchase lifecycle: CREATED -> AWAITING_PAYMENT -> PAID -> RELEASED
// with EXPIRED and CANCELED side exits before payment
type Service struct {
	cfg     Config
	storage repository.Storage
	wallet  *wallet.Service
	logger  logger.Logger
	tracer  trace.Tracer
}

func New(cfg Config, storage repository.Storage, wallet *wallet.Service, log logger.Logger) (*Service, error) {
	if storage == nil || wallet == nil || log == nil {
		return nil, errors.New("storage, wallet and logger must not be nil")
	}
	if cfg.PixKey == "" {
		return nil, errors.New("pix key must not be empty")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.PixTTL, defaultPixTTL)
	setDefaultDuration(&cfg.HoldPeriod, defaultHoldPeriod)

	if cfg.PickupAttempts <= 0 {
		cfg.PickupAttempts = defaultPickupAttempts
	}
	if cfg.PickupCode == nil {
		cfg.PickupCode = NewPickupCode
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		cfg:     cfg,
		storage: storage,
		wallet:  wallet,
		logger:  log.With("component", "transaction"),
		tracer:  otel.Tracer("github.com/nkiryanov/cashbackmart/internal/service/transaction"),
	}, nil
}

// Random pickup code, crypto/rand backed
func NewPickupCode() (string, error) {
	size := big.NewInt(int64(len(pickupCodeAlphabet)))
	code := make([]byte, pickupCodeLen)
	for i := range code {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("can't generate pickup code: %w", err)
		}
		code[i] = pickupCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// Buy one unit of the product and open PIX charge for it
func (s *Service) Create(ctx context.Context, actor models.Actor, productID uuid.UUID) (models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "transaction.Create", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
	))
	defer span.End()

	var trx models.Transaction
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		product, err := st.Product().DecrementStock(ctx, productID)
		if err != nil {
			return err
		}

		now := s.cfg.Now()
		trx, err = s.insert(ctx, st, product, actor.UserID, now)
		if err != nil {
			return err
		}

		payload, err := pix.Payload(pix.Charge{
			Key:          s.cfg.PixKey,
			MerchantName: s.cfg.MerchantName,
			MerchantCity: s.cfg.MerchantCity,
			Amount:       trx.PurchasePrice,
			TxID:         strings.ReplaceAll(trx.ID.String(), "-", ""),
		})
		if err != nil {
			return err
		}

		if err := trx.AwaitPayment(payload, now.Add(s.cfg.PixTTL)); err != nil {
			return err
		}

		trx, err = st.Transaction().UpdateTransaction(ctx, trx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Info("Transaction not created", "product_id", productID, "buyer_id", actor.UserID, "error", err)
		return trx, err
	}

	s.logger.Info("Transaction created", "transaction_id", trx.ID, "product_id", productID, "buyer_id", actor.UserID)
	return trx, nil
}

// Insert CREATED transaction, every attempt in its own savepoint so a taken code doesn't abort the db transaction
func (s *Service) insert(ctx context.Context, st repository.Storage, product models.Product, buyerID uuid.UUID, now time.Time) (models.Transaction, error) {
	for attempt := 1; attempt <= s.cfg.PickupAttempts; attempt++ {
		code, err := s.cfg.PickupCode()
		if err != nil {
			return models.Transaction{}, err
		}

		var trx models.Transaction
		err = st.InTx(ctx, func(st repository.Storage) error {
			created, err := st.Transaction().CreateTransaction(ctx, models.NewTransaction(product, buyerID, code, now))
			trx = created
			return err
		})

		switch {
		case err == nil:
			return trx, nil
		case errors.Is(err, apperrors.ErrPickupCodeTaken):
			s.logger.Debug("Pickup code collision", "attempt", attempt)
		default:
			return trx, err
		}
	}

	return models.Transaction{}, apperrors.ErrPickupCodeExhausted
}

// Confirm PIX payment and credit blocked cashback
// Past the payment window the transaction expires, stock goes back and apperrors.ErrTransactionExpired is returned
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "transaction.ConfirmPayment", trace.WithAttributes(
		attribute.String("transaction.id", id.String()),
	))
	defer span.End()

	var (
		trx     models.Transaction
		expired bool
	)

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		trx, err = st.Transaction().GetTransaction(ctx, id, true)
		if err != nil {
			return err
		}

		now := s.cfg.Now()
		err = trx.MarkPaid(now)
		switch {
		case errors.Is(err, apperrors.ErrTransactionExpired):
			// commit expiry, the caller still gets an error
			expired = true
			return s.expire(ctx, st, &trx, now)
		case err != nil:
			return err
		}

		trx, err = st.Transaction().UpdateTransaction(ctx, trx)
		if err != nil {
			return err
		}

		return s.wallet.In(st).ApplyCashback(ctx, trx.BuyerID, trx.ID, trx.CashbackAmount, now.Add(s.cfg.HoldPeriod))
	})

	switch {
	case err != nil:
		span.RecordError(err)
		s.logger.Warn("Payment not confirmed", "transaction_id", id, "error", err)
		return trx, err
	case expired:
		s.logger.Info("Payment arrived after deadline, transaction expired", "transaction_id", id)
		return trx, apperrors.ErrTransactionExpired
	}

	s.logger.Info("Payment confirmed", "transaction_id", id, "cashback", trx.CashbackAmount.StringFixed(2))
	return trx, nil
}

// Hand the goods over. ref is the transaction id or its pickup code
// Only the merchant owner or an admin may release
func (s *Service) Release(ctx context.Context, actor models.Actor, ref string) (models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "transaction.Release")
	defer span.End()

	var trx models.Transaction
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		if id, parseErr := uuid.Parse(ref); parseErr == nil {
			trx, err = st.Transaction().GetTransaction(ctx, id, true)
		} else {
			trx, err = st.Transaction().GetTransactionByPickupCode(ctx, strings.TrimSpace(ref), true)
		}
		if err != nil {
			return err
		}

		if !actor.IsAdmin() {
			merchant, err := st.Entity().GetEntity(ctx, trx.MerchantID, false)
			if err != nil {
				return err
			}
			if merchant.OwnerUserID != actor.UserID {
				return fmt.Errorf("only merchant owner may release the transaction: %w", apperrors.ErrForbidden)
			}
		}

		if err := trx.Release(s.cfg.Now()); err != nil {
			return err
		}

		trx, err = st.Transaction().UpdateTransaction(ctx, trx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return trx, err
	}

	s.logger.Info("Transaction released", "transaction_id", trx.ID, "actor_id", actor.UserID)
	return trx, nil
}

// Cancel unpaid transaction and give the unit back, canceling twice is a no-op
// Only the buyer or an admin may cancel
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Transaction, error) {
	var trx models.Transaction
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		trx, err = st.Transaction().GetTransaction(ctx, id, true)
		if err != nil {
			return err
		}
		if trx.BuyerID != actor.UserID && !actor.IsAdmin() {
			return fmt.Errorf("only buyer may cancel the transaction: %w", apperrors.ErrForbidden)
		}

		changed, err := trx.Cancel(s.cfg.Now())
		if err != nil || !changed {
			return err
		}

		trx, err = st.Transaction().UpdateTransaction(ctx, trx)
		if err != nil {
			return err
		}
		return st.Product().RestoreStock(ctx, trx.ProductID)
	})
	if err != nil {
		return trx, err
	}

	s.logger.Info("Transaction canceled", "transaction_id", id, "actor_id", actor.UserID)
	return trx, nil
}

// Expire every awaiting transaction past its payment window
// Rows locked by concurrent confirmations are skipped, they are decided there
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "transaction.ExpireDue")
	defer span.End()

	expired := 0
	for {
		var batch int
		err := s.storage.InTx(ctx, func(st repository.Storage) error {
			trxs, err := st.Transaction().ListTransactions(ctx, repository.ListTransactionsOpts{
				ExpiredBefore:       &now,
				ForUpdateSkipLocked: true,
				Limit:               expireBatchSize,
			})
			if err != nil {
				return err
			}

			batch = len(trxs)
			for i := range trxs {
				if err := s.expire(ctx, st, &trxs[i], now); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			return expired, err
		}

		expired += batch
		if batch < expireBatchSize {
			return expired, nil
		}
	}
}

func (s *Service) expire(ctx context.Context, st repository.Storage, trx *models.Transaction, now time.Time) error {
	if !trx.Expire(now) {
		return nil
	}

	updated, err := st.Transaction().UpdateTransaction(ctx, *trx)
	if err != nil {
		return err
	}
	*trx = updated

	return st.Product().RestoreStock(ctx, trx.ProductID)
}

// Buyer, merchant owner and admins may see the transaction
func (s *Service) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Transaction, error) {
	trx, err := s.storage.Transaction().GetTransaction(ctx, id, false)
	if err != nil {
		return trx, err
	}
	if trx.BuyerID == actor.UserID || actor.IsAdmin() {
		return trx, nil
	}

	merchant, err := s.storage.Entity().GetEntity(ctx, trx.MerchantID, false)
	if err != nil {
		return models.Transaction{}, err
	}
	if merchant.OwnerUserID != actor.UserID {
		return models.Transaction{}, apperrors.ErrForbidden
	}

	return trx, nil
}

// Buyer purchase history, newest first
func (s *Service) List(ctx context.Context, actor models.Actor, status string) ([]models.Transaction, error) {
	return s.storage.Transaction().ListTransactions(ctx, repository.ListTransactionsOpts{
		BuyerID: &actor.UserID,
		Status:  status,
	})
}
