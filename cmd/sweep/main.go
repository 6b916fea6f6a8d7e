package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-payments/config"
	pgStorage "storefront-payments/internal/adapter/storage/postgres"
	redisStorage "storefront-payments/internal/adapter/storage/redis"
	"storefront-payments/internal/email"
	"storefront-payments/internal/gateway"
	"storefront-payments/internal/rates"
	"storefront-payments/internal/service"
	"storefront-payments/pkg/logger"

	"github.com/rs/zerolog"
)

// The sweep daemon expires payment attempts whose payment window has
// elapsed without settlement, cancelling the order and releasing stock.
// It runs separately from the API so a slow sweep never blocks requests.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Dur("interval", cfg.Sweep.Interval).
		Int("batch_size", cfg.Sweep.BatchSize).
		Msg("Starting stale-payment sweep daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	orderRepo := pgStorage.NewOrderRepo(pool)
	attemptRepo := pgStorage.NewAttemptRepo(pool)
	webhookRepo := pgStorage.NewWebhookEventRepo(pool)
	invRepo := pgStorage.NewInventoryRepo(pool)

	dedupStore := redisStorage.NewDedupStore(rdb)

	rateClient := rates.NewClient(cfg.Rates)
	rateCache := rates.NewCache(rateClient, cfg.Rates.TTL, nil, log)

	paypal := gateway.NewPayPalAdapter(cfg.PayPal, nil, log)
	bitcoin := gateway.NewBitcoinAdapter(cfg.Bitcoin, cfg.Store.Currency, rateCache, nil, log)
	monero := gateway.NewMoneroAdapter(cfg.Monero, cfg.Store.Currency, rateCache, nil, log)
	registry := gateway.NewRegistry(paypal, bitcoin, monero)

	mailer := email.NewMailer(cfg.SMTP, log)

	reconcileSvc := service.NewReconcileService(orderRepo, attemptRepo, webhookRepo, invRepo, registry, dedupStore, mailer, cfg.Sweep.BatchSize, nil, log)

	ticker := time.NewTicker(cfg.Sweep.Interval)
	defer ticker.Stop()

	// First pass immediately so a restart does not delay expiry by a full interval.
	runSweep(ctx, reconcileSvc, log)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweep daemon exited")
			return
		case <-ticker.C:
			runSweep(ctx, reconcileSvc, log)
		}
	}
}

func runSweep(ctx context.Context, svc *service.ReconcileServiceImpl, log zerolog.Logger) {
	start := time.Now()
	expired, err := svc.ExpireStalePayments(ctx, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Sweep pass failed")
		return
	}
	log.Info().
		Int("expired", expired).
		Dur("took", time.Since(start)).
		Msg("Sweep pass complete")
}
