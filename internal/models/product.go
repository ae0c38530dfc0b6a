package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product price and cashback percent as seen by the transaction at the instant of purchase
type Product struct {
	ID              uuid.UUID
	MerchantID      uuid.UUID
	Name            string
	Price           decimal.Decimal
	CashbackPercent decimal.Decimal
	Stock           int
}
