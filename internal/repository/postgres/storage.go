package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/cashbackmart/internal/repository"
)

// Either pool, connection or transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Product() repository.ProductRepo {
	return &ProductRepo{DB: s.db}
}

func (s *Storage) Transaction() repository.TransactionRepo {
	return &TransactionRepo{DB: s.db}
}

func (s *Storage) Ledger() repository.LedgerRepo {
	return &LedgerRepo{DB: s.db}
}

func (s *Storage) Donation() repository.DonationRepo {
	return &DonationRepo{DB: s.db}
}

func (s *Storage) Withdrawal() repository.WithdrawalRepo {
	return &WithdrawalRepo{DB: s.db}
}

func (s *Storage) Entity() repository.EntityRepo {
	return &EntityRepo{DB: s.db}
}

// Begin on pgx.Tx creates a savepoint, so InTx may be nested safely
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}

		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
