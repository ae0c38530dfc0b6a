package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
)

type EntityRepo struct {
	DB DBTX
}

const entityColumns = `id, kind, owner_user_id, legal_name, document, document_kind, approval_status, active, rejection_reason, decided_at, decided_by, created_at`

const createEntity = `-- name: CreateEntity
INSERT INTO entities (` + entityColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + entityColumns

func (r *EntityRepo) CreateEntity(ctx context.Context, e models.Entity) (models.Entity, error) {
	rows, _ := r.DB.Query(ctx, createEntity,
		e.ID, e.Kind, e.OwnerUserID, e.LegalName, e.Document, e.DocumentKind,
		e.ApprovalStatus, e.Active, e.RejectionReason, e.DecidedAt, e.DecidedBy, e.CreatedAt,
	)
	entity, err := pgx.CollectOneRow(rows, rowToEntity)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return entity, apperrors.ErrEntityAlreadyExists
			case pgerrcode.ForeignKeyViolation:
				return entity, apperrors.ErrUserNotFound
			}
		}
		return entity, fmt.Errorf("db error: %w", err)
	}

	return entity, nil
}

const updateEntity = `-- name: UpdateEntity
UPDATE entities
SET approval_status = $2, active = $3, rejection_reason = $4, decided_at = $5, decided_by = $6
WHERE id = $1
RETURNING ` + entityColumns

func (r *EntityRepo) UpdateEntity(ctx context.Context, e models.Entity) (models.Entity, error) {
	rows, _ := r.DB.Query(ctx, updateEntity, e.ID, e.ApprovalStatus, e.Active, e.RejectionReason, e.DecidedAt, e.DecidedBy)
	return collectEntity(rows)
}

const getEntity = `-- name: GetEntity
SELECT ` + entityColumns + ` FROM entities
WHERE id = $1
`

func (r *EntityRepo) GetEntity(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Entity, error) {
	query := getEntity
	if forUpdate {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, id)
	return collectEntity(rows)
}

func (r *EntityRepo) ListEntities(ctx context.Context, opts repository.ListEntitiesOpts) ([]models.Entity, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if opts.Kind != "" {
		add("kind = $%d", opts.Kind)
	}
	if opts.Status != "" {
		add("approval_status = $%d", opts.Status)
	}
	if opts.ParticipatingOnly {
		where = append(where, "approval_status = 'APPROVED' AND active")
	}

	query := "SELECT " + entityColumns + " FROM entities"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, _ := r.DB.Query(ctx, query, args...)
	entities, err := pgx.CollectRows(rows, rowToEntity)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entities, nil
}

func collectEntity(rows pgx.Rows) (models.Entity, error) {
	entity, err := pgx.CollectOneRow(rows, rowToEntity)

	switch {
	case err == nil:
		return entity, nil
	case errors.Is(err, pgx.ErrNoRows):
		return entity, apperrors.ErrEntityNotFound
	default:
		return entity, fmt.Errorf("db error: %w", err)
	}
}

func rowToEntity(row pgx.CollectableRow) (models.Entity, error) {
	var e models.Entity
	err := row.Scan(
		&e.ID, &e.Kind, &e.OwnerUserID, &e.LegalName, &e.Document, &e.DocumentKind,
		&e.ApprovalStatus, &e.Active, &e.RejectionReason, &e.DecidedAt, &e.DecidedBy, &e.CreatedAt,
	)
	return e, err
}
