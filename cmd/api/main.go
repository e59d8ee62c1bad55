package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/karimfahmy/nilecart-backend/api/controllers"
	"github.com/karimfahmy/nilecart-backend/api/routes"
	checkoutsvc "github.com/karimfahmy/nilecart-backend/internal/checkout"
	"github.com/karimfahmy/nilecart-backend/internal/orders"
	"github.com/karimfahmy/nilecart-backend/internal/refunds"
	paymobwebhook "github.com/karimfahmy/nilecart-backend/internal/webhooks/paymob"
	"github.com/karimfahmy/nilecart-backend/pkg/config"
	"github.com/karimfahmy/nilecart-backend/pkg/db"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/metrics"
	"github.com/karimfahmy/nilecart-backend/pkg/migrate"
	"github.com/karimfahmy/nilecart-backend/pkg/outbox"
	"github.com/karimfahmy/nilecart-backend/pkg/paymob"
	"github.com/karimfahmy/nilecart-backend/pkg/redis"
)

const webhookGuardTTL = 24 * time.Hour

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	paymobClient, err := paymob.NewClient(cfg.Paymob, logg, metrics.NewGatewayMetrics(registry))
	if err != nil {
		logg.Error(context.Background(), "failed to create paymob client", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersSvc, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	refundsSvc, err := refunds.NewService(refunds.NewRepository(dbClient.DB()), dbClient, outboxSvc, paymobClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkoutsvc.NewService(ordersSvc, paymobClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookSvc, err := paymobwebhook.NewService(paymobwebhook.ServiceParams{
		Orders:                 ordersSvc,
		Refunds:                refundsSvc,
		HMACSecret:             cfg.Paymob.HMACSecret,
		AllowUnverifiedWebhook: cfg.Paymob.AllowUnverifiedWebhook,
		Metrics:                metrics.NewCallbackMetrics(registry),
		Logger:                 logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := paymobwebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "paymob:txn")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
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

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			CheckoutService: checkoutSvc,
			OrdersService:   ordersSvc,
			RefundsService:  refundsSvc,
			WebhookService:  webhookSvc,
			WebhookGuard:    webhookGuard,
			RateLimiter:     redisClient,
			Metrics:         registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
