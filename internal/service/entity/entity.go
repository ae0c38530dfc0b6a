package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
	"github.com/nkiryanov/cashbackmart/internal/service/validate"
)

// Merchant and institution onboarding
type EntityService struct {
	storage repository.Storage
	logger  logger.Logger

	// Clock, time.Now when nil
	Now func() time.Time
}

func NewService(storage repository.Storage, log logger.Logger) (*EntityService, error) {
	if storage == nil || log == nil {
		return nil, errors.New("storage and logger must not be nil")
	}

	return &EntityService{
		storage: storage,
		logger:  log.With("component", "entity"),
		Now:     time.Now,
	}, nil
}

// Register merchant or institution owned by the actor. It waits for an admin decision,
// formatted documents like 12.345.678/0001-95 are accepted
func (s *EntityService) Register(ctx context.Context, actor models.Actor, kind string, legalName string, document string) (models.Entity, error) {
	if kind != models.EntityMerchant && kind != models.EntityInstitution {
		return models.Entity{}, fmt.Errorf("unknown entity kind %q: %w", kind, apperrors.ErrInvalidInput)
	}

	legalName = strings.TrimSpace(legalName)
	if legalName == "" {
		return models.Entity{}, fmt.Errorf("legal name is required: %w", apperrors.ErrInvalidInput)
	}

	digits := validate.StripDocument(document)
	docKind := validate.Document(digits)
	if docKind == validate.Invalid {
		return models.Entity{}, apperrors.ErrDocumentInvalid
	}

	e, err := s.storage.Entity().CreateEntity(ctx, models.Entity{
		ID:             uuid.New(),
		Kind:           kind,
		OwnerUserID:    actor.UserID,
		LegalName:      legalName,
		Document:       digits,
		DocumentKind:   string(docKind),
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      s.Now(),
	})
	if err != nil {
		return e, err
	}

	s.logger.Info("Entity registered", "entity_id", e.ID, "kind", kind, "owner_id", actor.UserID)
	return e, nil
}

// Approve pending entity or reactivate deactivated one
func (s *EntityService) Approve(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Entity, error) {
	return s.decide(ctx, actor, id, "approve", func(e *models.Entity, now time.Time) error {
		return e.Approve(actor.UserID, now)
	})
}

func (s *EntityService) Reject(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (models.Entity, error) {
	reason = strings.TrimSpace(reason)
	return s.decide(ctx, actor, id, "reject", func(e *models.Entity, now time.Time) error {
		return e.Reject(actor.UserID, reason, now)
	})
}

func (s *EntityService) Deactivate(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Entity, error) {
	return s.decide(ctx, actor, id, "deactivate", func(e *models.Entity, now time.Time) error {
		return e.Deactivate(actor.UserID, now)
	})
}

func (s *EntityService) decide(ctx context.Context, actor models.Actor, id uuid.UUID, op string, fn func(*models.Entity, time.Time) error) (models.Entity, error) {
	if !actor.IsAdmin() {
		return models.Entity{}, fmt.Errorf("only admin may %s entity: %w", op, apperrors.ErrForbidden)
	}

	var e models.Entity
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		e, err = st.Entity().GetEntity(ctx, id, true)
		if err != nil {
			return err
		}

		if err := fn(&e, s.Now()); err != nil {
			return err
		}

		e, err = st.Entity().UpdateEntity(ctx, e)
		return err
	})
	if err != nil {
		return e, err
	}

	s.logger.Info("Entity decided", "entity_id", id, "op", op, "status", e.ApprovalStatus, "active", e.Active, "admin_id", actor.UserID)
	return e, nil
}

// Admin review queue. Empty kind or status means any
func (s *EntityService) List(ctx context.Context, actor models.Actor, kind string, status string) ([]models.Entity, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("only admin may list entities: %w", apperrors.ErrForbidden)
	}
	return s.storage.Entity().ListEntities(ctx, repository.ListEntitiesOpts{Kind: kind, Status: status})
}

// Approved and active entities of the kind, what customers may buy from or donate to
func (s *EntityService) ListPublic(ctx context.Context, kind string) ([]models.Entity, error) {
	return s.storage.Entity().ListEntities(ctx, repository.ListEntitiesOpts{Kind: kind, ParticipatingOnly: true})
}
