package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
	"github.com/nkiryanov/cashbackmart/internal/service/wallet"
)

var errPixKeyMissing = fmt.Errorf("pix key is required: %w", apperrors.ErrInvalidInput)

// Cash-out workflow on top of the wallet ledger
// Requests reserve the amount, admins decide, rejected and canceled requests give it back
type WithdrawalService struct {
	storage repository.Storage
	wallet  *wallet.Service
	logger  logger.Logger

	// Clock, time.Now when nil
	Now func() time.Time
}

func NewService(storage repository.Storage, wallet *wallet.Service, log logger.Logger) (*WithdrawalService, error) {
	if storage == nil || wallet == nil || log == nil {
		return nil, errors.New("storage, wallet and logger must not be nil")
	}

	return &WithdrawalService{
		storage: storage,
		wallet:  wallet,
		logger:  log.With("component", "withdrawal"),
		Now:     time.Now,
	}, nil
}

func (s *WithdrawalService) Request(ctx context.Context, actor models.Actor, amount decimal.Decimal, pixKey string) (models.Withdrawal, error) {
	pixKey = strings.TrimSpace(pixKey)
	if pixKey == "" {
		return models.Withdrawal{}, errPixKeyMissing
	}

	w, err := s.wallet.ReserveForWithdrawal(ctx, actor.UserID, amount, pixKey)
	if err != nil {
		return w, err
	}

	s.logger.Info("Withdrawal requested", "withdrawal_id", w.ID, "user_id", actor.UserID, "amount", amount.StringFixed(2))
	return w, nil
}

func (s *WithdrawalService) Approve(ctx context.Context, actor models.Actor, id uuid.UUID, note string) (models.Withdrawal, error) {
	return s.decide(ctx, actor, id, "approve", func(w *models.Withdrawal, now time.Time) error {
		return w.Approve(actor.UserID, note, now)
	})
}

// Reject pending request and release its reservation in the same db transaction
func (s *WithdrawalService) Reject(ctx context.Context, actor models.Actor, id uuid.UUID, reason string, note string) (models.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	return s.decide(ctx, actor, id, "reject", func(w *models.Withdrawal, now time.Time) error {
		return w.Reject(actor.UserID, reason, note, now)
	})
}

// Approved withdrawal was sent over the payment rail
func (s *WithdrawalService) MarkPaid(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Withdrawal, error) {
	return s.decide(ctx, actor, id, "pay", func(w *models.Withdrawal, now time.Time) error {
		return w.MarkPaid(actor.UserID, now)
	})
}

func (s *WithdrawalService) decide(ctx context.Context, actor models.Actor, id uuid.UUID, op string, fn func(*models.Withdrawal, time.Time) error) (models.Withdrawal, error) {
	if !actor.IsAdmin() {
		return models.Withdrawal{}, fmt.Errorf("only admin may %s withdrawal: %w", op, apperrors.ErrForbidden)
	}

	w, err := s.update(ctx, id, fn)
	if err != nil {
		return w, err
	}

	s.logger.Info("Withdrawal decided", "withdrawal_id", id, "status", w.Status, "admin_id", actor.UserID)
	return w, nil
}

// Requester takes own pending request back
func (s *WithdrawalService) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Withdrawal, error) {
	w, err := s.update(ctx, id, func(w *models.Withdrawal, now time.Time) error {
		if w.RequesterID != actor.UserID {
			return fmt.Errorf("only requester may cancel withdrawal: %w", apperrors.ErrForbidden)
		}
		return w.Cancel(now)
	})
	if err != nil {
		return w, err
	}

	s.logger.Info("Withdrawal canceled", "withdrawal_id", id, "user_id", actor.UserID)
	return w, nil
}

// Lock the row, apply transition, save and return the reservation when the new status requires it
func (s *WithdrawalService) update(ctx context.Context, id uuid.UUID, fn func(*models.Withdrawal, time.Time) error) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		w, err = st.Withdrawal().GetWithdrawal(ctx, id, true)
		if err != nil {
			return err
		}

		if err := fn(&w, s.Now()); err != nil {
			return err
		}

		w, err = st.Withdrawal().UpdateWithdrawal(ctx, w)
		if err != nil {
			return err
		}

		if w.ReservationReturned() {
			return s.wallet.In(st).ReleaseReservation(ctx, w)
		}
		return nil
	})

	return w, err
}

func (s *WithdrawalService) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Withdrawal, error) {
	w, err := s.storage.Withdrawal().GetWithdrawal(ctx, id, false)
	if err != nil {
		return w, err
	}
	if w.RequesterID != actor.UserID && !actor.IsAdmin() {
		return models.Withdrawal{}, apperrors.ErrForbidden
	}
	return w, nil
}

// Admins see every request, customers only their own. Empty status means any
func (s *WithdrawalService) List(ctx context.Context, actor models.Actor, status string) ([]models.Withdrawal, error) {
	opts := repository.ListWithdrawalsOpts{Status: status}
	if !actor.IsAdmin() {
		opts.RequesterID = &actor.UserID
	}
	return s.storage.Withdrawal().ListWithdrawals(ctx, opts)
}
