package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
)

const (
	WithdrawalPending  = "PENDING"
	WithdrawalApproved = "APPROVED"
	WithdrawalRejected = "REJECTED"
	WithdrawalPaid     = "PAID"
	WithdrawalCanceled = "CANCELED"
)

// Cash-out request. While PENDING its amount is reserved in the requester wallet
type Withdrawal struct {
	ID              uuid.UUID
	RequesterID     uuid.UUID
	Amount          decimal.Decimal
	PixKey          string
	Status          string
	RequestedAt     time.Time
	DecidedAt       *time.Time
	DecidedBy       *uuid.UUID
	RejectionReason string
	Note            string
}

func (w *Withdrawal) decide(from string, to string, adminID uuid.UUID, now time.Time) error {
	if w.Status != from {
		return fmt.Errorf("can't move withdrawal from %s to %s: %w", w.Status, to, apperrors.ErrInvalidState)
	}

	w.Status = to
	w.DecidedAt = &now
	w.DecidedBy = &adminID
	return nil
}

func (w *Withdrawal) Approve(adminID uuid.UUID, note string, now time.Time) error {
	if err := w.decide(WithdrawalPending, WithdrawalApproved, adminID, now); err != nil {
		return err
	}
	w.Note = note
	return nil
}

func (w *Withdrawal) Reject(adminID uuid.UUID, reason string, note string, now time.Time) error {
	if reason == "" {
		return apperrors.ErrRejectReasonMissing
	}
	if err := w.decide(WithdrawalPending, WithdrawalRejected, adminID, now); err != nil {
		return err
	}
	w.RejectionReason = reason
	w.Note = note
	return nil
}

// Approved withdrawal was sent over the payment rail
func (w *Withdrawal) MarkPaid(adminID uuid.UUID, now time.Time) error {
	return w.decide(WithdrawalApproved, WithdrawalPaid, adminID, now)
}

// Requester withdraws own pending request
func (w *Withdrawal) Cancel(now time.Time) error {
	return w.decide(WithdrawalPending, WithdrawalCanceled, w.RequesterID, now)
}

// Whether the reserved amount has to go back to the wallet
func (w *Withdrawal) ReservationReturned() bool {
	return w.Status == WithdrawalRejected || w.Status == WithdrawalCanceled
}
