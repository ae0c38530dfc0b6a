package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/service/product"
)

type productResponse struct {
	ID              uuid.UUID   `json:"id"`
	MerchantID      uuid.UUID   `json:"merchant_id"`
	Name            string      `json:"name"`
	Price           json.Number `json:"price"`
	CashbackPercent json.Number `json:"cashback_percent"`
	Stock           int         `json:"stock"`
}

func newProductResponse(p models.Product) productResponse {
	return productResponse{
		ID:              p.ID,
		MerchantID:      p.MerchantID,
		Name:            p.Name,
		Price:           money(p.Price),
		CashbackPercent: money(p.CashbackPercent),
		Stock:           p.Stock,
	}
}

func handleListProducts(s productService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		products, err := s.ListPurchasable(r.Context())
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, mapSlice(products, newProductResponse))
	})
}

func handleCreateProduct(s productService, l logger.Logger) http.Handler {
	type request struct {
		MerchantID      string          `json:"merchant_id" validate:"required,uuid"`
		Name            string          `json:"name" validate:"required,max=200"`
		Price           decimal.Decimal `json:"price"`
		CashbackPercent decimal.Decimal `json:"cashback_percent"`
		Stock           int             `json:"stock" validate:"min=0"`
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

		p, err := s.Create(r.Context(), actor, product.NewProduct{
			MerchantID:      uuid.MustParse(data.MerchantID),
			Name:            data.Name,
			Price:           data.Price,
			CashbackPercent: data.CashbackPercent,
			Stock:           data.Stock,
		})
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newProductResponse(p), http.StatusCreated)
	})
}
