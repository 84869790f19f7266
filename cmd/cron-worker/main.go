package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bakehouse-backend/internal/app"
	"github.com/angelmondragon/bakehouse-backend/internal/cron"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	"github.com/angelmondragon/bakehouse-backend/pkg/env"
	"github.com/angelmondragon/bakehouse-backend/pkg/instance"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/mailer"
	"github.com/angelmondragon/bakehouse-backend/pkg/metrics"
	"github.com/angelmondragon/bakehouse-backend/pkg/migrate"
	"github.com/angelmondragon/bakehouse-backend/pkg/redis"
	"github.com/angelmondragon/bakehouse-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := env.LoadDotenv(); err != nil {
		logg.Warn(context.Background(), "ignoring unreadable .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	domain, err := app.Build(context.Background(), app.Params{Config: cfg, Logger: logg, DB: dbClient})
	if err != nil {
		logg.Error(context.Background(), "failed to wire domain services", err)
		os.Exit(1)
	}
	defer func() {
		if err := domain.Close(context.Background()); err != nil {
			logg.Error(context.Background(), "error closing domain services", err)
		}
	}()

	jobs, err := buildJobs(context.Background(), cfg, logg, dbClient, domain)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	claims, err := cron.NewRedisClaims(redisClient, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron claims", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Claims:   claims,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Clock:    domain.Clock,
		Interval: cfg.Bakery.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(jobs),
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, domain *app.Domain) ([]cron.Job, error) {
	jobs, err := cron.NewOrderJobs(logg, domain.Orders)
	if err != nil {
		return nil, err
	}

	restock, err := cron.NewRestockJob(cron.RestockJobParams{
		Logger: logg,
		DB:     dbClient,
		Stock:  domain.Stock,
		Outbox: domain.Outbox,
		Clock:  domain.Clock,
	})
	if err != nil {
		return nil, err
	}

	sender, err := mailer.New(cfg.Sendgrid, logg)
	if err != nil {
		return nil, err
	}
	exportParams := cron.ExportJobParams{
		Logger:    logg,
		Reports:   domain.Reports,
		Mailer:    sender,
		Recipient: cfg.Bakery.ExportRecipient,
		Clock:     domain.Clock,
		Enabled:   cfg.App.IsProd() || cfg.FeatureFlags.ForceExports,
	}
	if strings.TrimSpace(cfg.GCS.ExportBucket) != "" {
		archive, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return nil, err
		}
		exportParams.Archive = archive
	}
	export, err := cron.NewExportJob(exportParams)
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: domain.OutboxRepo,
	})
	if err != nil {
		return nil, err
	}

	return append(jobs, restock, export, retention), nil
}
