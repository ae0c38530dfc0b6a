package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cashbackmart/internal/models"
)

// Storage gives access to every repository over the same connection or transaction
type Storage interface {
	User() UserRepo
	Product() ProductRepo
	Transaction() TransactionRepo
	Ledger() LedgerRepo
	Donation() DonationRepo
	Withdrawal() WithdrawalRepo
	Entity() EntityRepo

	// Run fn in db transaction, commit if fn returns nil
	// Nested calls create savepoints
	InTx(ctx context.Context, fn func(Storage) error) error
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string, role string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Product/stock adapter
type ProductRepo interface {
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (models.Product, error)

	// Take one unit atomically and return product snapshot at that instant
	// Only products of approved and active merchants may be taken
	// Returns apperrors.ErrOutOfStock if nothing left, apperrors.ErrProductNotFound if product not purchasable
	DecrementStock(ctx context.Context, productID uuid.UUID) (models.Product, error)

	// Give one unit back
	RestoreStock(ctx context.Context, productID uuid.UUID) error

	// Products of approved and active merchants only
	ListPurchasable(ctx context.Context) ([]models.Product, error)
}

type ListTransactionsOpts struct {
	BuyerID *uuid.UUID
	Status  string

	// Awaiting payment with pix deadline before the moment
	ExpiredBefore *time.Time

	// Lock returned rows skipping rows locked by others
	ForUpdateSkipLocked bool

	Limit int
}

type TransactionRepo interface {
	// If pickup code is taken must return apperrors.ErrPickupCodeTaken
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// Save mutable lifecycle fields: status, pix, paid, released and closed timestamps
	UpdateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// If not found must return apperrors.ErrTransactionNotFound
	GetTransaction(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Transaction, error)
	// Code compared case-insensitively
	GetTransactionByPickupCode(ctx context.Context, code string, forUpdate bool) (models.Transaction, error)

	// Newest first
	ListTransactions(ctx context.Context, opts ListTransactionsOpts) ([]models.Transaction, error)
}

type LedgerRepo interface {
	// Serialize wallet mutations of one user until the end of current db transaction
	LockWallet(ctx context.Context, userID uuid.UUID) error

	// Append entry. Entry with same kind and reference must return apperrors.ErrLedgerEntryExists
	AppendEntry(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error)

	GetTotals(ctx context.Context, userID uuid.UUID) (models.LedgerTotals, error)

	// Cashback credits with unblock_at <= now that are not unblocked yet
	ListDueCredits(ctx context.Context, now time.Time, limit int) ([]models.LedgerEntry, error)

	// Oldest first
	ListEntries(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error)
}

type DonationRepo interface {
	CreateDonation(ctx context.Context, d models.Donation) (models.Donation, error)
	ListDonations(ctx context.Context, donorID uuid.UUID) ([]models.Donation, error)
}

type ListWithdrawalsOpts struct {
	RequesterID *uuid.UUID
	Status      string
}

type WithdrawalRepo interface {
	CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error)

	// If not found must return apperrors.ErrWithdrawalNotFound
	GetWithdrawal(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Withdrawal, error)

	// Newest first
	ListWithdrawals(ctx context.Context, opts ListWithdrawalsOpts) ([]models.Withdrawal, error)
}

type ListEntitiesOpts struct {
	Kind   string
	Status string

	// Approved and active only
	ParticipatingOnly bool
}

type EntityRepo interface {
	// If entity of the kind with the document exists has to return apperrors.ErrEntityAlreadyExists
	CreateEntity(ctx context.Context, e models.Entity) (models.Entity, error)
	UpdateEntity(ctx context.Context, e models.Entity) (models.Entity, error)

	// If not found must return apperrors.ErrEntityNotFound
	GetEntity(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Entity, error)

	// Oldest first
	ListEntities(ctx context.Context, opts ListEntitiesOpts) ([]models.Entity, error)
}
