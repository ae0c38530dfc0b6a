package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

type DonationRepo struct {
	DB DBTX
}

const donationColumns = `id, donor_id, institution_id, amount, created_at`

const createDonation = `-- name: CreateDonation
INSERT INTO donations (` + donationColumns + `)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + donationColumns

func (r *DonationRepo) CreateDonation(ctx context.Context, d models.Donation) (models.Donation, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createDonation, d.ID, d.DonorID, d.InstitutionID, d.Amount, d.CreatedAt)
	donation, err := pgx.CollectOneRow(rows, rowToDonation)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return donation, apperrors.ErrInstitutionNotFound
		}
		return donation, fmt.Errorf("db error: %w", err)
	}

	return donation, nil
}

const listDonations = `-- name: ListDonations
SELECT ` + donationColumns + ` FROM donations
WHERE donor_id = $1
ORDER BY created_at DESC, id
`

func (r *DonationRepo) ListDonations(ctx context.Context, donorID uuid.UUID) ([]models.Donation, error) {
	rows, _ := r.DB.Query(ctx, listDonations, donorID)
	donations, err := pgx.CollectRows(rows, rowToDonation)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return donations, nil
}

func rowToDonation(row pgx.CollectableRow) (models.Donation, error) {
	var d models.Donation
	err := row.Scan(&d.ID, &d.DonorID, &d.InstitutionID, &d.Amount, &d.CreatedAt)
	return d, err
}
