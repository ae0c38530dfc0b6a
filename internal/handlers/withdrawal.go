package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

func handleRequestWithdrawal(s withdrawalService, l logger.Logger) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount"`
		PixKey string          `json:"pix_key" validate:"required,max=77"`
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

		withdrawal, err := s.Request(r.Context(), actor, data.Amount, data.PixKey)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newWithdrawalResponse(withdrawal), http.StatusCreated)
	})
}

func handleListWithdrawals(s withdrawalService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		withdrawals, err := s.List(r.Context(), actor, r.URL.Query().Get("status"))
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, mapSlice(withdrawals, newWithdrawalResponse))
	})
}

func handleGetWithdrawal(s withdrawalService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		withdrawal, err := s.Get(r.Context(), actor, id)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, newWithdrawalResponse(withdrawal))
	})
}

type decisionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
	Note   string `json:"note" validate:"max=500"`
}

type withdrawalAction func(r *http.Request, actor models.Actor, id uuid.UUID, data decisionRequest) (models.Withdrawal, error)

// Shared shape of approve, reject, pay and cancel. Body is optional
func handleWithdrawalAction(l logger.Logger, action withdrawalAction) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		data, err := render.BindOptional[decisionRequest](w, r)
		if err != nil {
			return
		}

		withdrawal, err := action(r, actor, id, data)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, newWithdrawalResponse(withdrawal))
	})
}

func handleApproveWithdrawal(s withdrawalService, l logger.Logger) http.Handler {
	return handleWithdrawalAction(l, func(r *http.Request, actor models.Actor, id uuid.UUID, data decisionRequest) (models.Withdrawal, error) {
		return s.Approve(r.Context(), actor, id, data.Note)
	})
}

func handleRejectWithdrawal(s withdrawalService, l logger.Logger) http.Handler {
	return handleWithdrawalAction(l, func(r *http.Request, actor models.Actor, id uuid.UUID, data decisionRequest) (models.Withdrawal, error) {
		return s.Reject(r.Context(), actor, id, data.Reason, data.Note)
	})
}

func handlePayWithdrawal(s withdrawalService, l logger.Logger) http.Handler {
	return handleWithdrawalAction(l, func(r *http.Request, actor models.Actor, id uuid.UUID, _ decisionRequest) (models.Withdrawal, error) {
		return s.MarkPaid(r.Context(), actor, id)
	})
}

func handleCancelWithdrawal(s withdrawalService, l logger.Logger) http.Handler {
	return handleWithdrawalAction(l, func(r *http.Request, actor models.Actor, id uuid.UUID, _ decisionRequest) (models.Withdrawal, error) {
		return s.Cancel(r.Context(), actor, id)
	})
}
