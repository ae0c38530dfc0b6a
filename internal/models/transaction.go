package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
)

const (
	TransactionCreated         = "CREATED"
	TransactionAwaitingPayment = "AWAITING_PAYMENT"
	TransactionPaid            = "PAID"
	TransactionReleased        = "RELEASED"
	TransactionExpired         = "EXPIRED"
	TransactionCanceled        = "CANCELED"
)

// Purchase of one product unit
// Cashback amount is computed once at creation and never recomputed
type Transaction struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	BuyerID         uuid.UUID
	MerchantID      uuid.UUID
	PurchasePrice   decimal.Decimal
	CashbackPercent decimal.Decimal
	CashbackAmount  decimal.Decimal
	PickupCode      string
	Status          string
	PixPayload      string
	PurchasedAt     time.Time
	PixExpiresAt    *time.Time
	PaidAt          *time.Time
	ReleasedAt      *time.Time
	ClosedAt        *time.Time // set when canceled or expired
}

// Cashback rounded to cents, half away from zero
func CashbackFor(price decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return price.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// Create transaction in CREATED status with the product snapshot
func NewTransaction(p Product, buyerID uuid.UUID, pickupCode string, now time.Time) Transaction {
	return Transaction{
		ID:              uuid.New(),
		ProductID:       p.ID,
		BuyerID:         buyerID,
		MerchantID:      p.MerchantID,
		PurchasePrice:   p.Price,
		CashbackPercent: p.CashbackPercent,
		CashbackAmount:  CashbackFor(p.Price, p.CashbackPercent),
		PickupCode:      pickupCode,
		Status:          TransactionCreated,
		PurchasedAt:     now,
	}
}

func (t *Transaction) invalidState(op string) error {
	return fmt.Errorf("can't %s transaction in status %s: %w", op, t.Status, apperrors.ErrInvalidState)
}

// Attach PIX payload and wait for payment
func (t *Transaction) AwaitPayment(payload string, expiresAt time.Time) error {
	if t.Status != TransactionCreated {
		return t.invalidState("await payment for")
	}

	t.PixPayload = payload
	t.PixExpiresAt = &expiresAt
	t.Status = TransactionAwaitingPayment
	return nil
}

// Whether PIX payment window is over at the moment
func (t *Transaction) PaymentExpired(now time.Time) bool {
	return t.PixExpiresAt != nil && now.After(*t.PixExpiresAt)
}

// Mark paid. Returns apperrors.ErrTransactionExpired if the payment window is over,
// the transaction is left untouched in that case
func (t *Transaction) MarkPaid(now time.Time) error {
	if t.Status != TransactionAwaitingPayment {
		return t.invalidState("confirm payment for")
	}
	if t.PaymentExpired(now) {
		return apperrors.ErrTransactionExpired
	}

	t.PaidAt = &now
	t.Status = TransactionPaid
	return nil
}

// Expire awaiting transaction past its deadline
// Any other status is a no-op, changed reports whether the status moved
func (t *Transaction) Expire(now time.Time) (changed bool) {
	if t.Status != TransactionAwaitingPayment || !t.PaymentExpired(now) {
		return false
	}

	t.ClosedAt = &now
	t.Status = TransactionExpired
	return true
}

func (t *Transaction) Release(now time.Time) error {
	if t.Status != TransactionPaid {
		return t.invalidState("release")
	}

	t.ReleasedAt = &now
	t.Status = TransactionReleased
	return nil
}

// Cancel transaction that is not paid yet
// Canceling twice is a no-op, changed reports whether the status moved
func (t *Transaction) Cancel(now time.Time) (changed bool, err error) {
	switch t.Status {
	case TransactionCanceled:
		return false, nil
	case TransactionCreated, TransactionAwaitingPayment:
		t.ClosedAt = &now
		t.Status = TransactionCanceled
		return true, nil
	default:
		return false, t.invalidState("cancel")
	}
}
