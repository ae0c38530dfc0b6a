package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nkiryanov/cashbackmart/internal/handlers/middleware"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/service/product"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth        authService
	User        userService
	Transaction transactionService
	Wallet      walletService
	Withdrawal  withdrawalService
	Entity      entityService
	Product     productService
}

func NewRouter(s Services, logger logger.Logger) http.Handler {
	authMiddleware := middleware.AuthMiddleware(s.Auth)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	withAdmin := func(h http.Handler) http.Handler {
		return authMiddleware(middleware.AdminOnly(h))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/user/register", handleRegister(s.Auth, logger))
	mux.Handle("POST /api/user/login", handleLogin(s.Auth, logger))
	mux.Handle("GET /api/user/me", withAuth(handleUserMe(s.User, logger)))

	mux.Handle("GET /api/products", handleListProducts(s.Product, logger))
	mux.Handle("POST /api/products", withAuth(handleCreateProduct(s.Product, logger)))

	mux.Handle("POST /api/transactions", withAuth(handleCreateTransaction(s.Transaction, logger)))
	mux.Handle("GET /api/transactions", withAuth(handleListTransactions(s.Transaction, logger)))
	mux.Handle("GET /api/transactions/{id}", withAuth(handleGetTransaction(s.Transaction, logger)))
	mux.Handle("POST /api/transactions/{id}/confirm", withAdmin(handleConfirmPayment(s.Transaction, logger)))
	mux.Handle("POST /api/transactions/{id}/cancel", withAuth(handleCancelTransaction(s.Transaction, logger)))
	mux.Handle("POST /api/transactions/release", withAuth(handleReleaseTransaction(s.Transaction, logger)))

	mux.Handle("GET /api/wallet", withAuth(handleWallet(s.Wallet, logger)))
	mux.Handle("POST /api/donations", withAuth(handleDonate(s.Wallet, logger)))

	mux.Handle("POST /api/withdrawals", withAuth(handleRequestWithdrawal(s.Withdrawal, logger)))
	mux.Handle("GET /api/withdrawals", withAuth(handleListWithdrawals(s.Withdrawal, logger)))
	mux.Handle("GET /api/withdrawals/{id}", withAuth(handleGetWithdrawal(s.Withdrawal, logger)))
	mux.Handle("POST /api/withdrawals/{id}/approve", withAdmin(handleApproveWithdrawal(s.Withdrawal, logger)))
	mux.Handle("POST /api/withdrawals/{id}/reject", withAdmin(handleRejectWithdrawal(s.Withdrawal, logger)))
	mux.Handle("POST /api/withdrawals/{id}/pay", withAdmin(handlePayWithdrawal(s.Withdrawal, logger)))
	mux.Handle("POST /api/withdrawals/{id}/cancel", withAuth(handleCancelWithdrawal(s.Withdrawal, logger)))

	mux.Handle("POST /api/entities", withAuth(handleRegisterEntity(s.Entity, logger)))
	mux.Handle("GET /api/entities", withAdmin(handleListEntities(s.Entity, logger)))
	mux.Handle("POST /api/entities/{id}/approve", withAdmin(handleApproveEntity(s.Entity, logger)))
	mux.Handle("POST /api/entities/{id}/reject", withAdmin(handleRejectEntity(s.Entity, logger)))
	mux.Handle("POST /api/entities/{id}/deactivate", withAdmin(handleDeactivateEntity(s.Entity, logger)))
	mux.Handle("GET /api/institutions", handleListInstitutions(s.Entity, logger))

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
	)

	// Server spans and metrics go to the global otel providers
	return otelhttp.NewHandler(handler, "http.server")
}

type authService interface {
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, password string) (models.IssuedToken, error)

	// Has to return apperrors.ErrInvalidCredentials for unknown user or wrong password
	Login(ctx context.Context, username string, password string) (models.IssuedToken, error)

	// Resolve access token to the caller
	Authenticate(access string) (models.Actor, error)
}

type userService interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

type transactionService interface {
	Create(ctx context.Context, actor models.Actor, productID uuid.UUID) (models.Transaction, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	Release(ctx context.Context, actor models.Actor, ref string) (models.Transaction, error)
	Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Transaction, error)
	Get(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Transaction, error)
	List(ctx context.Context, actor models.Actor, status string) ([]models.Transaction, error)
}

type walletService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	Donate(ctx context.Context, donorID uuid.UUID, institutionID uuid.UUID, amount decimal.Decimal) (models.Donation, error)
}

type withdrawalService interface {
	Request(ctx context.Context, actor models.Actor, amount decimal.Decimal, pixKey string) (models.Withdrawal, error)
	Approve(ctx context.Context, actor models.Actor, id uuid.UUID, note string) (models.Withdrawal, error)
	Reject(ctx context.Context, actor models.Actor, id uuid.UUID, reason string, note string) (models.Withdrawal, error)
	MarkPaid(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Withdrawal, error)
	Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Withdrawal, error)
	Get(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Withdrawal, error)
	List(ctx context.Context, actor models.Actor, status string) ([]models.Withdrawal, error)
}

type entityService interface {
	Register(ctx context.Context, actor models.Actor, kind string, legalName string, document string) (models.Entity, error)
	Approve(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Entity, error)
	Reject(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (models.Entity, error)
	Deactivate(ctx context.Context, actor models.Actor, id uuid.UUID) (models.Entity, error)
	List(ctx context.Context, actor models.Actor, kind string, status string) ([]models.Entity, error)
	ListPublic(ctx context.Context, kind string) ([]models.Entity, error)
}

type productService interface {
	Create(ctx context.Context, actor models.Actor, p product.NewProduct) (models.Product, error)
	ListPurchasable(ctx context.Context) ([]models.Product, error)
}
