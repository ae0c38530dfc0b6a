package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Donation struct {
	ID            uuid.UUID
	DonorID       uuid.UUID
	InstitutionID uuid.UUID
	Amount        decimal.Decimal
	CreatedAt     time.Time
}
