package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/logger"
)

func handleCreateTransaction(s transactionService, l logger.Logger) http.Handler {
	type request struct {
		ProductID string `json:"product_id" validate:"required,uuid"`
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

		trx, err := s.Create(r.Context(), actor, uuid.MustParse(data.ProductID))
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newTransactionResponse(trx), http.StatusCreated)
	})
}

func handleListTransactions(s transactionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		trxs, err := s.List(r.Context(), actor, r.URL.Query().Get("status"))
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, mapSlice(trxs, newTransactionResponse))
	})
}

func handleGetTransaction(s transactionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		trx, err := s.Get(r.Context(), actor, id)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, newTransactionResponse(trx))
	})
}

// PIX settlement callback, admin only
func handleConfirmPayment(s transactionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		trx, err := s.ConfirmPayment(r.Context(), id)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, newTransactionResponse(trx))
	})
}

func handleCancelTransaction(s transactionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		trx, err := s.Cancel(r.Context(), actor, id)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, newTransactionResponse(trx))
	})
}

// Merchant scans or types the pickup code shown by the buyer
func handleReleaseTransaction(s transactionService, l logger.Logger) http.Handler {
	type request struct {
		Code string `json:"code" validate:"required"`
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

		trx, err := s.Release(r.Context(), actor, data.Code)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, newTransactionResponse(trx))
	})
}
