package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds
// Handlers and callers should match on kinds with errors.Is, specific errors below wrap one of them
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDonationRequired  = errors.New("donation required")
	ErrBelowMinimum      = errors.New("below minimum balance")
	ErrOutOfStock        = errors.New("out of stock")
	ErrExpired           = errors.New("expired")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

var (
	ErrUserAlreadyExists = kind(ErrConflict, "user already exists")
	ErrUserNotFound      = kind(ErrNotFound, "user not found")

	ErrInvalidCredentials = kind(ErrUnauthenticated, "invalid username or password")
	ErrTokenInvalid       = kind(ErrUnauthenticated, "access token is invalid or expired")

	ErrProductNotFound = kind(ErrNotFound, "product not found")

	ErrTransactionNotFound = kind(ErrNotFound, "transaction not found")
	ErrTransactionExpired  = kind(ErrExpired, "pix payment window expired")
	ErrPickupCodeTaken     = kind(ErrConflict, "pickup code already taken")
	ErrPickupCodeExhausted = kind(ErrConflict, "can't allocate unique pickup code")

	ErrWithdrawalNotFound  = kind(ErrNotFound, "withdrawal not found")
	ErrRejectReasonMissing = kind(ErrInvalidInput, "rejection reason is required")

	ErrEntityNotFound      = kind(ErrNotFound, "entity not found")
	ErrEntityAlreadyExists = kind(ErrConflict, "entity with this document already registered")
	ErrInstitutionNotFound = kind(ErrNotFound, "institution not found or not approved")
	ErrDocumentInvalid     = kind(ErrInvalidInput, "document is not a valid CPF or CNPJ")

	ErrLedgerEntryExists = kind(ErrConflict, "ledger entry already recorded")
	ErrAmountInvalid     = kind(ErrInvalidInput, "amount must be positive")
)

type kindError struct {
	kind error
	msg  string
}

func kind(k error, msg string) error {
	return &kindError{kind: k, msg: msg}
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// EligibilityError is returned by the wallet ledger when a debit is refused by a business rule
// Reason is safe to show to the end user as is
type EligibilityError struct {
	Kind   error
	Reason string
}

func NewEligibilityError(kind error, format string, args ...any) *EligibilityError {
	return &EligibilityError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *EligibilityError) Unwrap() error {
	return e.Kind
}
