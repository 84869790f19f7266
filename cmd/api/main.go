package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bakehouse-backend/api/controllers"
	"github.com/angelmondragon/bakehouse-backend/api/routes"
	"github.com/angelmondragon/bakehouse-backend/internal/app"
	"github.com/angelmondragon/bakehouse-backend/internal/auth"
	"github.com/angelmondragon/bakehouse-backend/internal/users"
	"github.com/angelmondragon/bakehouse-backend/internal/webhooks"
	hitpaywebhook "github.com/angelmondragon/bakehouse-backend/internal/webhooks/hitpay"
	stripewebhook "github.com/angelmondragon/bakehouse-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	"github.com/angelmondragon/bakehouse-backend/pkg/env"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/metrics"
	"github.com/angelmondragon/bakehouse-backend/pkg/migrate"
	"github.com/angelmondragon/bakehouse-backend/pkg/redis"
)

const (
	webhookReplayTTL = 72 * time.Hour
	shutdownTimeout  = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := env.LoadDotenv(); err != nil {
		logg.Warn(context.Background(), "ignoring unreadable .env file")
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

	if err := migrate.ApplyOnBoot(context.Background(), cfg, logg, dbClient); err != nil {
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

	domain, err := app.Build(context.Background(), app.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Registry: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire domain services", err)
		os.Exit(1)
	}
	defer func() {
		if err := domain.Close(context.Background()); err != nil {
			logg.Error(context.Background(), "error closing domain services", err)
		}
	}()

	authService, err := auth.NewService(auth.ServiceParams{
		Accounts:  users.NewRepository(dbClient.DB()),
		Limiter:   redisClient,
		JWTConfig: cfg.JWT,
		RateLimit: cfg.AuthRateLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Ready:       map[string]controllers.Pinger{"database": dbClient, "redis": redisClient},
		Redis:       redisClient,
		HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Metrics:     promhttp.Handler(),
		Auth:        authService,
		Register:    registerService,
		Orders:      domain.Orders,
		Stock:       domain.Stock,
		Delivery:    domain.Delivery,
		Promo:       domain.Promo,
		Settings:    domain.Settings,
		Reports:     domain.Reports,
	}
	if err := wireGateways(&deps, domain, redisClient, logg); err != nil {
		logg.Error(context.Background(), "failed to wire payment webhooks", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"stripe": deps.StripeWebhook != nil,
		"hitpay": deps.HitPayWebhook != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

// wireGateways mounts the webhook handlers for the gateways the deployment
// has credentials for.
func wireGateways(deps *routes.Deps, domain *app.Domain, redisClient *redis.Client, logg *logger.Logger) error {
	if domain.Stripe != nil {
		svc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Orders:   domain.OrderRepo,
			Payments: domain.Orders,
			Fees:     domain.Stripe,
			Logger:   logg,
		})
		if err != nil {
			return err
		}
		guard, err := webhooks.NewReplayGuard(redisClient, webhookReplayTTL, "stripe")
		if err != nil {
			return err
		}
		deps.StripeWebhook, deps.StripeClient, deps.StripeGuard = svc, domain.Stripe, guard
	}
	if domain.HitPay != nil {
		svc, err := hitpaywebhook.NewService(hitpaywebhook.ServiceParams{
			Payments: domain.Orders,
			Logger:   logg,
		})
		if err != nil {
			return err
		}
		guard, err := webhooks.NewReplayGuard(redisClient, webhookReplayTTL, "hitpay")
		if err != nil {
			return err
		}
		deps.HitPayWebhook, deps.HitPaySalt, deps.HitPayGuard = svc, domain.HitPay.Salt(), guard
	}
	return nil
}
