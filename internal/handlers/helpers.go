package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/handlers/userctx"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

// Money as JSON number with exactly two decimals
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func actorFrom(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := userctx.FromContext(r.Context())
	if !ok {
		// route is not wrapped with auth middleware
		render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
	}
	return actor, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

type transactionResponse struct {
	ID              uuid.UUID   `json:"id"`
	ProductID       uuid.UUID   `json:"product_id"`
	MerchantID      uuid.UUID   `json:"merchant_id"`
	Status          string      `json:"status"`
	PurchasePrice   json.Number `json:"purchase_price"`
	CashbackPercent json.Number `json:"cashback_percent"`
	CashbackAmount  json.Number `json:"cashback_amount"`
	PickupCode      string      `json:"pickup_code"`
	PixPayload      string      `json:"pix_payload,omitempty"`
	PurchasedAt     time.Time   `json:"purchased_at"`
	PixExpiresAt    *time.Time  `json:"pix_expires_at,omitempty"`
	PaidAt          *time.Time  `json:"paid_at,omitempty"`
	ReleasedAt      *time.Time  `json:"released_at,omitempty"`
	ClosedAt        *time.Time  `json:"closed_at,omitempty"`
}

func newTransactionResponse(t models.Transaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		ProductID:       t.ProductID,
		MerchantID:      t.MerchantID,
		Status:          t.Status,
		PurchasePrice:   money(t.PurchasePrice),
		CashbackPercent: money(t.CashbackPercent),
		CashbackAmount:  money(t.CashbackAmount),
		PickupCode:      t.PickupCode,
		PixPayload:      t.PixPayload,
		PurchasedAt:     t.PurchasedAt,
		PixExpiresAt:    t.PixExpiresAt,
		PaidAt:          t.PaidAt,
		ReleasedAt:      t.ReleasedAt,
		ClosedAt:        t.ClosedAt,
	}
}

type withdrawalResponse struct {
	ID              uuid.UUID   `json:"id"`
	Amount          json.Number `json:"amount"`
	PixKey          string      `json:"pix_key"`
	Status          string      `json:"status"`
	RequestedAt     time.Time   `json:"requested_at"`
	DecidedAt       *time.Time  `json:"decided_at,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	Note            string      `json:"note,omitempty"`
}

func newWithdrawalResponse(w models.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:              w.ID,
		Amount:          money(w.Amount),
		PixKey:          w.PixKey,
		Status:          w.Status,
		RequestedAt:     w.RequestedAt,
		DecidedAt:       w.DecidedAt,
		RejectionReason: w.RejectionReason,
		Note:            w.Note,
	}
}

type entityResponse struct {
	ID              uuid.UUID  `json:"id"`
	Kind            string     `json:"kind"`
	LegalName       string     `json:"legal_name"`
	Document        string     `json:"document"`
	DocumentKind    string     `json:"document_kind"`
	ApprovalStatus  string     `json:"approval_status"`
	Active          bool       `json:"active"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newEntityResponse(e models.Entity) entityResponse {
	return entityResponse{
		ID:              e.ID,
		Kind:            e.Kind,
		LegalName:       e.LegalName,
		Document:        e.Document,
		DocumentKind:    e.DocumentKind,
		ApprovalStatus:  e.ApprovalStatus,
		Active:          e.Active,
		RejectionReason: e.RejectionReason,
		DecidedAt:       e.DecidedAt,
		CreatedAt:       e.CreatedAt,
	}
}

func mapSlice[T any, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
