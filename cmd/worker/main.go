package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/storefrontlab/storefront-backend/internal/carts"
	"github.com/storefrontlab/storefront-backend/internal/checkout"
	"github.com/storefrontlab/storefront-backend/internal/consumers/cartsync"
	"github.com/storefrontlab/storefront-backend/internal/consumers/completion"
	"github.com/storefrontlab/storefront-backend/internal/payments"
	"github.com/storefrontlab/storefront-backend/internal/products"
	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/db"
	"github.com/storefrontlab/storefront-backend/pkg/instance"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/metrics"
	"github.com/storefrontlab/storefront-backend/pkg/migrate"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
	"github.com/storefrontlab/storefront-backend/pkg/outbox/idempotency"
	"github.com/storefrontlab/storefront-backend/pkg/pubsub"
	"github.com/storefrontlab/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build idempotency manager", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	providers, err := payments.NewRegistryFromConfig(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payment registry", err)
		os.Exit(1)
	}

	productsRepo := products.NewRepository(dbClient.DB())
	cartsRepo := carts.NewRepository(dbClient.DB())
	cartsSvc, err := carts.NewService(cartsRepo, productsRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to build carts service", err)
		os.Exit(1)
	}

	checkoutRepo := checkout.NewRepository(dbClient.DB())
	checkoutSvc, err := checkout.NewService(checkoutRepo, cartsSvc, productsRepo, dbClient, outboxSvc, providers, cfg.Checkout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
		os.Exit(1)
	}

	synchronizer, err := checkout.NewSynchronizer(checkoutRepo, cartsSvc, productsRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart synchronizer", err)
		os.Exit(1)
	}

	cartSyncMetrics := metrics.NewCartSyncMetrics(prometheus.DefaultRegisterer)
	cartSyncConsumer, err := cartsync.NewConsumer(synchronizer, pubsubClient.CartSubscription(), manager, cartSyncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart sync consumer", err)
		os.Exit(1)
	}

	completionConsumer, err := completion.NewConsumer(checkoutSvc, pubsubClient.CheckoutSubscription(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build completion consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:             cfg,
		Logger:             logg,
		DB:                 dbClient,
		Redis:              redisClient,
		PubSub:             pubsubClient,
		CartSyncConsumer:   cartSyncConsumer,
		CompletionConsumer: completionConsumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
