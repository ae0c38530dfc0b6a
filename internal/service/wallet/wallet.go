package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
)

const instrumentationName = "github.com/nkiryanov/cashbackmart/internal/service/wallet"

const unblockBatchSize = 100

var (
	DefaultDonationThreshold = decimal.RequireFromString("0.10")
	DefaultMinWithdrawal     = decimal.RequireFromString("50.00")
)

type Config struct {
	// Share of the total balance that must have been donated before withdrawing, zero disables the gate
	DonationThreshold decimal.Decimal

	// Available balance floor required to withdraw, zero disables the floor
	MinWithdrawal decimal.Decimal

	// Meter to count failed money movements, global meter provider when nil
	Meter metric.Meter

	// Clock, time.Now when nil
	Now func() time.Time
}

// Wallet ledger. Balances are derived from append-only ledger entries,
// every mutation holds the per-wallet lock for the rest of the db transaction
type Service struct {
	cfg      Config
	storage  repository.Storage
	logger   logger.Logger
	tracer   trace.Tracer
	failures metric.Int64Counter
}

func New(cfg Config, storage repository.Storage, log logger.Logger) (*Service, error) {
	if storage == nil || log == nil {
		return nil, errors.New("storage and logger must not be nil")
	}
	if cfg.DonationThreshold.IsNegative() || cfg.MinWithdrawal.IsNegative() {
		return nil, errors.New("donation threshold and minimum withdrawal must not be negative")
	}

	if cfg.Meter == nil {
		cfg.Meter = otel.Meter(instrumentationName)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	failures, err := cfg.Meter.Int64Counter(
		"wallet.mutation.failures",
		metric.WithDescription("Refused or failed wallet debits and credits"),
	)
	if err != nil {
		return nil, fmt.Errorf("can't create failures counter: %w", err)
	}

	return &Service{
		cfg:      cfg,
		storage:  storage,
		logger:   log.With("component", "wallet"),
		tracer:   otel.Tracer(instrumentationName),
		failures: failures,
	}, nil
}

// Same ledger bound to other storage, usually an open db transaction of the caller
func (s *Service) In(storage repository.Storage) *Service {
	c := *s
	c.storage = storage
	return &c
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	totals, err := s.storage.Ledger().GetTotals(ctx, userID)
	if err != nil {
		return models.Wallet{}, err
	}

	w := models.NewWallet(userID, totals)
	if err := s.canWithdraw(w); err != nil {
		var eligibility *apperrors.EligibilityError
		if errors.As(err, &eligibility) {
			w.EligibilityReason = eligibility.Reason
		}
	} else {
		w.WithdrawalEligible = true
	}

	return w, nil
}

// Credit blocked cashback for a paid transaction
// Crediting the same transaction again is a no-op
func (s *Service) ApplyCashback(ctx context.Context, userID uuid.UUID, transactionID uuid.UUID, amount decimal.Decimal, unblockAt time.Time) (err error) {
	ctx, span := s.tracer.Start(ctx, "wallet.ApplyCashback", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("transaction.id", transactionID.String()),
	))
	defer func() { s.end(ctx, span, "apply_cashback", userID, amount, err) }()

	switch {
	case amount.IsNegative():
		return apperrors.ErrAmountInvalid
	case amount.IsZero():
		// zero percent products earn nothing
		return nil
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		if err := st.Ledger().LockWallet(ctx, userID); err != nil {
			return err
		}

		_, err := st.Ledger().AppendEntry(ctx, models.LedgerEntry{
			UserID:      userID,
			Kind:        models.EntryCashbackCredit,
			Amount:      amount,
			ReferenceID: transactionID,
			UnblockAt:   &unblockAt,
			CreatedAt:   s.cfg.Now(),
		})
		return err
	})
	if errors.Is(err, apperrors.ErrLedgerEntryExists) {
		s.logger.Info("Cashback already credited", "transaction_id", transactionID)
		return nil
	}

	return err
}

// Move every credit whose hold period is over from blocked to available
// Returns number of credits unblocked
func (s *Service) UnblockDue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "wallet.UnblockDue")
	defer span.End()

	unblocked := 0
	for {
		credits, err := s.storage.Ledger().ListDueCredits(ctx, now, unblockBatchSize)
		if err != nil {
			span.RecordError(err)
			return unblocked, err
		}

		for _, credit := range credits {
			err := s.storage.InTx(ctx, func(st repository.Storage) error {
				if err := st.Ledger().LockWallet(ctx, credit.UserID); err != nil {
					return err
				}

				_, err := st.Ledger().AppendEntry(ctx, models.LedgerEntry{
					UserID:      credit.UserID,
					Kind:        models.EntryCashbackUnblock,
					Amount:      credit.Amount,
					ReferenceID: credit.ID,
					CreatedAt:   now,
				})
				return err
			})

			switch {
			case err == nil:
				unblocked++
			case errors.Is(err, apperrors.ErrLedgerEntryExists):
				// unblocked concurrently by another sweeper
			default:
				s.fail(ctx, "unblock", credit.UserID, credit.Amount, err)
				return unblocked, err
			}
		}

		if len(credits) < unblockBatchSize {
			return unblocked, nil
		}
	}
}

// Donate available balance to an approved and active institution
func (s *Service) Donate(ctx context.Context, donorID uuid.UUID, institutionID uuid.UUID, amount decimal.Decimal) (donation models.Donation, err error) {
	ctx, span := s.tracer.Start(ctx, "wallet.Donate", trace.WithAttributes(
		attribute.String("user.id", donorID.String()),
		attribute.String("institution.id", institutionID.String()),
	))
	defer func() { s.end(ctx, span, "donate", donorID, amount, err) }()

	if !validAmount(amount) {
		return donation, apperrors.ErrAmountInvalid
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		institution, err := st.Entity().GetEntity(ctx, institutionID, false)
		switch {
		case errors.Is(err, apperrors.ErrEntityNotFound):
			return apperrors.ErrInstitutionNotFound
		case err != nil:
			return err
		case institution.Kind != models.EntityInstitution || !institution.Participating():
			return apperrors.ErrInstitutionNotFound
		}

		w, err := s.lockAndLoad(ctx, st, donorID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(w.Available) {
			return apperrors.NewEligibilityError(apperrors.ErrInsufficientFunds,
				"donation of %s exceeds available balance %s", amount.StringFixed(2), w.Available.StringFixed(2))
		}

		donation, err = st.Donation().CreateDonation(ctx, models.Donation{
			ID:            uuid.New(),
			DonorID:       donorID,
			InstitutionID: institutionID,
			Amount:        amount,
			CreatedAt:     s.cfg.Now(),
		})
		if err != nil {
			return err
		}

		_, err = st.Ledger().AppendEntry(ctx, models.LedgerEntry{
			UserID:      donorID,
			Kind:        models.EntryDonation,
			Amount:      amount,
			ReferenceID: donation.ID,
			CreatedAt:   donation.CreatedAt,
		})
		return err
	})

	return donation, err
}

// Check withdrawal rules, debit available balance and create PENDING withdrawal
func (s *Service) ReserveForWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, pixKey string) (withdrawal models.Withdrawal, err error) {
	ctx, span := s.tracer.Start(ctx, "wallet.ReserveForWithdrawal", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer func() { s.end(ctx, span, "reserve", userID, amount, err) }()

	if !validAmount(amount) {
		return withdrawal, apperrors.ErrAmountInvalid
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		w, err := s.lockAndLoad(ctx, st, userID)
		if err != nil {
			return err
		}
		if err := s.canWithdraw(w); err != nil {
			return err
		}
		if amount.GreaterThan(w.Available) {
			return apperrors.NewEligibilityError(apperrors.ErrInsufficientFunds,
				"withdrawal of %s exceeds available balance %s", amount.StringFixed(2), w.Available.StringFixed(2))
		}

		withdrawal, err = st.Withdrawal().CreateWithdrawal(ctx, models.Withdrawal{
			ID:          uuid.New(),
			RequesterID: userID,
			Amount:      amount,
			PixKey:      pixKey,
			Status:      models.WithdrawalPending,
			RequestedAt: s.cfg.Now(),
		})
		if err != nil {
			return err
		}

		_, err = st.Ledger().AppendEntry(ctx, models.LedgerEntry{
			UserID:      userID,
			Kind:        models.EntryWithdrawalReserve,
			Amount:      amount,
			ReferenceID: withdrawal.ID,
			CreatedAt:   withdrawal.RequestedAt,
		})
		return err
	})

	return withdrawal, err
}

// Return reserved amount of the withdrawal back to available balance
// Releasing the same withdrawal again is a no-op
func (s *Service) ReleaseReservation(ctx context.Context, w models.Withdrawal) (err error) {
	ctx, span := s.tracer.Start(ctx, "wallet.ReleaseReservation", trace.WithAttributes(
		attribute.String("user.id", w.RequesterID.String()),
		attribute.String("withdrawal.id", w.ID.String()),
	))
	defer func() { s.end(ctx, span, "release", w.RequesterID, w.Amount, err) }()

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		if err := st.Ledger().LockWallet(ctx, w.RequesterID); err != nil {
			return err
		}

		_, err := st.Ledger().AppendEntry(ctx, models.LedgerEntry{
			UserID:      w.RequesterID,
			Kind:        models.EntryWithdrawalRelease,
			Amount:      w.Amount,
			ReferenceID: w.ID,
			CreatedAt:   s.cfg.Now(),
		})
		return err
	})
	if errors.Is(err, apperrors.ErrLedgerEntryExists) {
		s.logger.Info("Reservation already released", "withdrawal_id", w.ID)
		return nil
	}

	return err
}

func (s *Service) lockAndLoad(ctx context.Context, st repository.Storage, userID uuid.UUID) (models.Wallet, error) {
	if err := st.Ledger().LockWallet(ctx, userID); err != nil {
		return models.Wallet{}, err
	}

	totals, err := st.Ledger().GetTotals(ctx, userID)
	if err != nil {
		return models.Wallet{}, err
	}

	return models.NewWallet(userID, totals), nil
}

// Donation gate first, then the available floor
func (s *Service) canWithdraw(w models.Wallet) error {
	threshold := s.cfg.DonationThreshold
	if threshold.IsPositive() && (!w.Total.IsPositive() || w.TotalDonated.Div(w.Total).LessThan(threshold)) {
		return apperrors.NewEligibilityError(apperrors.ErrDonationRequired,
			"donate at least %s%% of your balance to withdraw, donated %s%% so far",
			threshold.Mul(decimal.NewFromInt(100)).StringFixed(0), w.DonatedPercentOfTotal.StringFixed(2))
	}

	if w.Available.LessThan(s.cfg.MinWithdrawal) {
		return apperrors.NewEligibilityError(apperrors.ErrBelowMinimum,
			"available balance %s is below the minimum of %s required to withdraw",
			w.Available.StringFixed(2), s.cfg.MinWithdrawal.StringFixed(2))
	}

	return nil
}

func (s *Service) end(ctx context.Context, span trace.Span, op string, userID uuid.UUID, amount decimal.Decimal, err error) {
	if err != nil {
		s.fail(ctx, op, userID, amount, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Every refused or failed money movement is logged and counted
func (s *Service) fail(ctx context.Context, op string, userID uuid.UUID, amount decimal.Decimal, err error) {
	s.logger.Warn("Wallet operation failed", "op", op, "user_id", userID, "amount", amount.StringFixed(2), "error", err)
	s.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("reason", reasonOf(err)),
	))
}

func reasonOf(err error) string {
	for _, k := range []error{
		apperrors.ErrInsufficientFunds,
		apperrors.ErrDonationRequired,
		apperrors.ErrBelowMinimum,
		apperrors.ErrInvalidInput,
		apperrors.ErrNotFound,
	} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "internal"
}

// Positive amount in whole cents
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
