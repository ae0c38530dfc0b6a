package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/logger"
)

func handleWallet(s walletService, l logger.Logger) http.Handler {
	type response struct {
		Total                 json.Number `json:"total"`
		Available             json.Number `json:"available"`
		Blocked               json.Number `json:"blocked"`
		TotalDonated          json.Number `json:"total_donated"`
		DonatedPercentOfTotal json.Number `json:"donated_percent_of_total"`
		WithdrawalEligible    bool        `json:"withdrawal_eligible"`
		EligibilityReason     string      `json:"eligibility_reason,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		wallet, err := s.GetBalance(r.Context(), actor.UserID)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, response{
			Total:                 money(wallet.Total),
			Available:             money(wallet.Available),
			Blocked:               money(wallet.Blocked),
			TotalDonated:          money(wallet.TotalDonated),
			DonatedPercentOfTotal: money(wallet.DonatedPercentOfTotal),
			WithdrawalEligible:    wallet.WithdrawalEligible,
			EligibilityReason:     wallet.EligibilityReason,
		})
	})
}

func handleDonate(s walletService, l logger.Logger) http.Handler {
	type request struct {
		InstitutionID string          `json:"institution_id" validate:"required,uuid"`
		Amount        decimal.Decimal `json:"amount"`
	}
	type response struct {
		ID            uuid.UUID   `json:"id"`
		InstitutionID uuid.UUID   `json:"institution_id"`
		Amount        json.Number `json:"amount"`
		CreatedAt     time.Time   `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		donation, err := s.Donate(r.Context(), actor.UserID, uuid.MustParse(data.InstitutionID), data.Amount)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSONWithStatus(w, response{
			ID:            donation.ID,
			InstitutionID: donation.InstitutionID,
			Amount:        money(donation.Amount),
			CreatedAt:     donation.CreatedAt,
		}, http.StatusCreated)
	})
}
