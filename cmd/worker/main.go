package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/bakehouse-backend/internal/analytics"
	"github.com/angelmondragon/bakehouse-backend/internal/notifications"
	"github.com/angelmondragon/bakehouse-backend/pkg/bigquery"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/env"
	"github.com/angelmondragon/bakehouse-backend/pkg/instance"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/mailer"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/registry"
	"github.com/angelmondragon/bakehouse-backend/pkg/pubsub"
	"github.com/angelmondragon/bakehouse-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = env.LoadDotenv()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.Needs{
		Notifications: true,
		Analytics:     cfg.FeatureFlags.AnalyticsSink,
	}, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	requireResource(ctx, logg, "event registry", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	sender, err := mailer.New(cfg.Sendgrid, logg)
	requireResource(ctx, logg, "mailer", err)

	notificationConsumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Subscription: pubsubClient.NotificationSubscription(),
		Events:       events,
		Idempotency:  manager,
		Mailer:       sender,
		StaffEmail:   cfg.Bakery.ExportRecipient,
		Logger:       logg,
	})
	requireResource(ctx, logg, "notification consumer", err)

	params := ServiceParams{
		Logger:        logg,
		Redis:         redisClient,
		PubSub:        pubsubClient,
		Notifications: notificationConsumer,
	}

	if cfg.FeatureFlags.AnalyticsSink {
		bqClient, err := bigquery.NewClient(ctx, bigquery.Params{
			GCP:            cfg.GCP,
			Config:         cfg.BigQuery,
			SalesSchema:    analytics.SalesSchema(),
			PartitionField: analytics.SalesPartitionField,
			Logger:         logg,
		})
		requireResource(ctx, logg, "bigquery client", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "failed to close bigquery client", err)
			}
		}()

		writer, err := analytics.NewWriter(bqClient, analytics.RetryPolicy{})
		requireResource(ctx, logg, "analytics writer", err)

		analyticsService, err := analytics.NewService(analytics.ServiceParams{
			Subscription: pubsubClient.AnalyticsSubscription(),
			Events:       events,
			Idempotency:  manager,
			Writer:       writer,
			Logger:       logg,
		})
		requireResource(ctx, logg, "analytics consumer", err)
		params.Analytics = analyticsService
		params.BigQuery = bqClient
	}

	service, err := NewService(params)
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
		"analytics":   cfg.FeatureFlags.AnalyticsSink,
	})
	logg.Info(runCtx, "worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
