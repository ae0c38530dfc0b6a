package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/cashbackmart/internal/db"
	"github.com/nkiryanov/cashbackmart/internal/handlers"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/repository/postgres"
	"github.com/nkiryanov/cashbackmart/internal/service/auth"
	"github.com/nkiryanov/cashbackmart/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/cashbackmart/internal/service/entity"
	"github.com/nkiryanov/cashbackmart/internal/service/product"
	"github.com/nkiryanov/cashbackmart/internal/service/sweeper"
	"github.com/nkiryanov/cashbackmart/internal/service/transaction"
	"github.com/nkiryanov/cashbackmart/internal/service/user"
	"github.com/nkiryanov/cashbackmart/internal/service/wallet"
	"github.com/nkiryanov/cashbackmart/internal/service/withdrawal"
	"github.com/nkiryanov/cashbackmart/internal/telemetry"
)

const (
	serviceName     = "cashbackmart"
	shutdownTimeout = 5 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	sweeper   *sweeper.Sweeper
	pool      *pgxpool.Pool
	telemetry telemetry.Shutdown
	logger    logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (app *ServerApp, err error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    c.OtelEndpoint,
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("error while setting up telemetry: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer func() {
		if err != nil {
			pool.Close()
			_ = shutdownTelemetry(ctx)
		}
	}()

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager: %w", err)
	}
	authService, err := auth.NewService(auth.DefaultHasher, tokenManager, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(auth.DefaultHasher, storage.User())

	walletService, err := wallet.New(wallet.Config{
		DonationThreshold: c.DonationThreshold,
		MinWithdrawal:     c.MinWithdrawal,
	}, storage, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating wallet service: %w", err)
	}
	transactionService, err := transaction.New(transaction.Config{
		PixTTL:       c.PixTTL,
		HoldPeriod:   c.HoldPeriod,
		PixKey:       c.PixKey,
		MerchantName: c.MerchantName,
		MerchantCity: c.MerchantCity,
	}, storage, walletService, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating transaction service: %w", err)
	}
	withdrawalService, err := withdrawal.NewService(storage, walletService, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating withdrawal service: %w", err)
	}
	entityService, err := entity.NewService(storage, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating entity service: %w", err)
	}
	productService, err := product.NewService(storage, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating product service: %w", err)
	}

	if c.AdminLogin != "" && c.AdminPassword != "" {
		if _, err = userService.EnsureAdmin(ctx, c.AdminLogin, c.AdminPassword); err != nil {
			return nil, fmt.Errorf("error while ensuring admin account: %w", err)
		}
	}

	mux := handlers.NewRouter(handlers.Services{
		Auth:        authService,
		User:        userService,
		Transaction: transactionService,
		Wallet:      walletService,
		Withdrawal:  withdrawalService,
		Entity:      entityService,
		Product:     productService,
	}, logger)

	sw := sweeper.New(c.SweepInterval, logger,
		sweeper.Job{Name: "unblock_cashback", Run: walletService.UnblockDue},
		sweeper.Job{Name: "expire_pix", Run: transactionService.ExpireDue},
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		sweeper:    sw,
		pool:       pool,
		telemetry:  shutdownTelemetry,
		logger:     logger,
	}, nil
}

// Run starts http server with background sweeper and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.ListenAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-s.sweeper.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")

		if err := s.telemetry(timeoutCtx); err != nil {
			s.logger.Warn("Telemetry shutdown failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}
