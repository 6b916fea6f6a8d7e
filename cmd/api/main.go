package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-payments/config"
	httpHandler "storefront-payments/internal/adapter/http/handler"
	pgStorage "storefront-payments/internal/adapter/storage/postgres"
	redisStorage "storefront-payments/internal/adapter/storage/redis"
	"storefront-payments/internal/core/ports"
	"storefront-payments/internal/email"
	"storefront-payments/internal/gateway"
	"storefront-payments/internal/rates"
	"storefront-payments/internal/service"
	"storefront-payments/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Storefront Payments API")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	orderRepo := pgStorage.NewOrderRepo(pool)
	attemptRepo := pgStorage.NewAttemptRepo(pool)
	webhookRepo := pgStorage.NewWebhookEventRepo(pool)
	returnRepo := pgStorage.NewReturnRepo(pool)
	invRepo := pgStorage.NewInventoryRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	dedupStore := redisStorage.NewDedupStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Exchange rates with a TTL cache in front of the upstream source
	rateClient := rates.NewClient(cfg.Rates)
	rateCache := rates.NewCache(rateClient, cfg.Rates.TTL, nil, log)

	// Gateway adapters
	paypal := gateway.NewPayPalAdapter(cfg.PayPal, nil, log)
	bitcoin := gateway.NewBitcoinAdapter(cfg.Bitcoin, cfg.Store.Currency, rateCache, nil, log)
	monero := gateway.NewMoneroAdapter(cfg.Monero, cfg.Store.Currency, rateCache, nil, log)
	registry := gateway.NewRegistry(paypal, bitcoin, monero)

	// Transactional email
	mailer := email.NewMailer(cfg.SMTP, log)

	// Initialize business services
	checkoutSvc := service.NewCheckoutService(orderRepo, attemptRepo, invRepo, registry, transactor, cfg.Store.Currency, nil, log)
	reconcileSvc := service.NewReconcileService(orderRepo, attemptRepo, webhookRepo, invRepo, registry, dedupStore, mailer, cfg.Sweep.BatchSize, nil, log)
	adminSvc := service.NewOrderAdminService(orderRepo, invRepo, mailer, nil, log)
	returnSvc := service.NewReturnService(returnRepo, orderRepo, registry, mailer, nil, log)
	tokenVerifier := service.NewJWTTokenVerifier(cfg.Admin.JWTSecret, cfg.Admin.JWTIssuer)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		CheckoutSvc:    checkoutSvc,
		ReconcileSvc:   reconcileSvc,
		AdminSvc:       adminSvc,
		ReturnSvc:      returnSvc,
		TokenVerifier:  tokenVerifier,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
