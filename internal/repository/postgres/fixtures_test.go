package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
	"github.com/nkiryanov/cashbackmart/internal/service/validate"
	"github.com/nkiryanov/cashbackmart/internal/testutil"
)

func inTx(t *testing.T, outer DBTX, fn func(pgx.Tx, repository.Storage)) {
	testutil.InTx(outer, t, func(tx pgx.Tx) {
		fn(tx, NewStorage(tx))
	})
}

func mustUser(t *testing.T, s repository.Storage, username string) models.User {
	user, err := s.User().CreateUser(t.Context(), username, "hashed", models.RoleCustomer)
	require.NoError(t, err)
	return user
}

func mustEntity(t *testing.T, s repository.Storage, kind string, owner uuid.UUID, participating bool) models.Entity {
	doc := validate.GenerateCNPJ()

	e := models.Entity{
		ID:             uuid.New(),
		Kind:           kind,
		OwnerUserID:    owner,
		LegalName:      fmt.Sprintf("%s %s", kind, doc),
		Document:       doc,
		DocumentKind:   string(validate.CNPJ),
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      time.Now(),
	}
	if participating {
		e.ApprovalStatus = models.ApprovalApproved
		e.Active = true
	}

	entity, err := s.Entity().CreateEntity(t.Context(), e)
	require.NoError(t, err)
	return entity
}

func mustProduct(t *testing.T, s repository.Storage, merchantID uuid.UUID, stock int) models.Product {
	product, err := s.Product().CreateProduct(t.Context(), models.Product{
		MerchantID:      merchantID,
		Name:            "Coffee",
		Price:           decimal.RequireFromString("100.00"),
		CashbackPercent: decimal.RequireFromString("15"),
		Stock:           stock,
	})
	require.NoError(t, err)
	return product
}
