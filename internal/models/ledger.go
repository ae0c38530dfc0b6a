package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger entry kinds. Each kind moves money between wallet partitions:
//
//	cashback_credit     +blocked
//	cashback_unblock    -blocked +available
//	donation            -available
//	withdrawal_reserve  -available
//	withdrawal_release  +available
const (
	EntryCashbackCredit    = "cashback_credit"
	EntryCashbackUnblock   = "cashback_unblock"
	EntryDonation          = "donation"
	EntryWithdrawalReserve = "withdrawal_reserve"
	EntryWithdrawalRelease = "withdrawal_release"
)

// Append-only ledger record
// Amount is always positive, the kind defines direction
// ReferenceID points to transaction, credit entry, donation or withdrawal
type LedgerEntry struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Kind        string
	Amount      decimal.Decimal
	ReferenceID uuid.UUID
	UnblockAt   *time.Time // cashback_credit only
	CreatedAt   time.Time
}

// Sums per entry kind for one user
type LedgerTotals struct {
	Credited  decimal.Decimal
	Unblocked decimal.Decimal
	Donated   decimal.Decimal
	Reserved  decimal.Decimal
	Released  decimal.Decimal
}

// Wallet is a view derived from ledger totals, never stored
type Wallet struct {
	UserID                uuid.UUID
	Total                 decimal.Decimal
	Available             decimal.Decimal
	Blocked               decimal.Decimal
	TotalDonated          decimal.Decimal
	DonatedPercentOfTotal decimal.Decimal
	WithdrawalEligible    bool
	EligibilityReason     string
}

func NewWallet(userID uuid.UUID, t LedgerTotals) Wallet {
	blocked := t.Credited.Sub(t.Unblocked)
	available := t.Unblocked.Add(t.Released).Sub(t.Donated).Sub(t.Reserved)
	total := available.Add(blocked)

	percent := decimal.Zero
	if total.IsPositive() {
		percent = t.Donated.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return Wallet{
		UserID:                userID,
		Total:                 total,
		Available:             available,
		Blocked:               blocked,
		TotalDonated:          t.Donated,
		DonatedPercentOfTotal: percent,
	}
}
