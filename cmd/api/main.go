package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/storefrontlab/storefront-backend/api/routes"
	"github.com/storefrontlab/storefront-backend/internal/carts"
	"github.com/storefrontlab/storefront-backend/internal/checkout"
	"github.com/storefrontlab/storefront-backend/internal/payments"
	"github.com/storefrontlab/storefront-backend/internal/products"
	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/db"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/migrate"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
	"github.com/storefrontlab/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	// BigQuery is only wired into the analytics worker, so readiness here
	// skips it.
	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, nil, cartsSvc, checkoutSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
