package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
)

const (
	EntityMerchant    = "merchant"
	EntityInstitution = "institution"
)

const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// Merchant or institution taking part in the marketplace
// Approval is a one-time decision, Active is an independent toggle on top of it
type Entity struct {
	ID              uuid.UUID
	Kind            string
	OwnerUserID     uuid.UUID
	LegalName       string
	Document        string
	DocumentKind    string
	ApprovalStatus  string
	Active          bool
	RejectionReason string
	DecidedAt       *time.Time
	DecidedBy       *uuid.UUID
	CreatedAt       time.Time
}

// Merchant products are purchasable and institutions accept donations only when this is true
func (e *Entity) Participating() bool {
	return e.ApprovalStatus == ApprovalApproved && e.Active
}

func (e *Entity) invalidState(op string) error {
	return fmt.Errorf("can't %s %s in status %s (active=%t): %w", op, e.Kind, e.ApprovalStatus, e.Active, apperrors.ErrInvalidState)
}

// Approve pending entity or reactivate an approved one that was deactivated
func (e *Entity) Approve(adminID uuid.UUID, now time.Time) error {
	switch {
	case e.ApprovalStatus == ApprovalPending:
		e.ApprovalStatus = ApprovalApproved
	case e.ApprovalStatus == ApprovalApproved && !e.Active:
	default:
		return e.invalidState("approve")
	}

	e.Active = true
	e.DecidedAt = &now
	e.DecidedBy = &adminID
	return nil
}

func (e *Entity) Reject(adminID uuid.UUID, reason string, now time.Time) error {
	if reason == "" {
		return apperrors.ErrRejectReasonMissing
	}
	if e.ApprovalStatus != ApprovalPending {
		return e.invalidState("reject")
	}

	e.ApprovalStatus = ApprovalRejected
	e.RejectionReason = reason
	e.DecidedAt = &now
	e.DecidedBy = &adminID
	return nil
}

func (e *Entity) Deactivate(adminID uuid.UUID, now time.Time) error {
	if !e.Participating() {
		return e.invalidState("deactivate")
	}

	e.Active = false
	e.DecidedAt = &now
	e.DecidedBy = &adminID
	return nil
}
