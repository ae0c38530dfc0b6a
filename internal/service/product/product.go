package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Merchant catalog, the stock side of purchases
type ProductService struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, log logger.Logger) (*ProductService, error) {
	if storage == nil || log == nil {
		return nil, errors.New("storage and logger must not be nil")
	}
	return &ProductService{storage: storage, logger: log.With("component", "product")}, nil
}

type NewProduct struct {
	MerchantID      uuid.UUID
	Name            string
	Price           decimal.Decimal
	CashbackPercent decimal.Decimal
	Stock           int
}

func (p NewProduct) validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("product name is required: %w", apperrors.ErrInvalidInput)
	case !p.Price.IsPositive() || !p.Price.Equal(p.Price.Round(2)):
		return fmt.Errorf("price must be positive with at most 2 decimals: %w", apperrors.ErrInvalidInput)
	case p.CashbackPercent.IsNegative() || p.CashbackPercent.GreaterThan(hundred):
		return fmt.Errorf("cashback percent must be between 0 and 100: %w", apperrors.ErrInvalidInput)
	case p.Stock < 0:
		return fmt.Errorf("stock must not be negative: %w", apperrors.ErrInvalidInput)
	}
	return nil
}

// Add product to the merchant the actor owns. Admins may add to any merchant
func (s *ProductService) Create(ctx context.Context, actor models.Actor, p NewProduct) (models.Product, error) {
	if err := p.validate(); err != nil {
		return models.Product{}, err
	}

	merchant, err := s.storage.Entity().GetEntity(ctx, p.MerchantID, false)
	if err != nil {
		return models.Product{}, err
	}
	if merchant.Kind != models.EntityMerchant {
		return models.Product{}, apperrors.ErrEntityNotFound
	}
	if merchant.OwnerUserID != actor.UserID && !actor.IsAdmin() {
		return models.Product{}, fmt.Errorf("only merchant owner may add products: %w", apperrors.ErrForbidden)
	}

	product, err := s.storage.Product().CreateProduct(ctx, models.Product{
		ID:              uuid.New(),
		MerchantID:      p.MerchantID,
		Name:            strings.TrimSpace(p.Name),
		Price:           p.Price,
		CashbackPercent: p.CashbackPercent,
		Stock:           p.Stock,
	})
	if err != nil {
		return product, err
	}

	s.logger.Info("Product created", "product_id", product.ID, "merchant_id", product.MerchantID)
	return product, nil
}

func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (models.Product, error) {
	return s.storage.Product().GetProduct(ctx, id)
}

// Products of approved and active merchants
func (s *ProductService) ListPurchasable(ctx context.Context) ([]models.Product, error) {
	return s.storage.Product().ListPurchasable(ctx)
}
