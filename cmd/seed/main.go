package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/bakehouse-backend/internal/app"
	"github.com/angelmondragon/bakehouse-backend/internal/seed"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	"github.com/angelmondragon/bakehouse-backend/pkg/env"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = env.LoadDotenv()

	file := flag.String("file", "seed.yaml", "seed document to apply")
	skipStock := flag.Bool("skip-stock", false, "do not open ledger rows for new products")
	flag.Parse()

	doc, err := seed.Load(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid seed file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "file": *file})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "dev migrations", migrate.ApplyOnBoot(ctx, cfg, logg, dbClient))

	domain, err := app.Build(ctx, app.Params{Config: cfg, Logger: logg, DB: dbClient})
	requireResource(ctx, logg, "domain services", err)
	defer domain.Close(ctx)

	var ledger seed.Ledger
	if !*skipStock {
		ledger = domain.Stock
	}

	res, err := seed.Run(ctx, dbClient, ledger, doc)
	requireResource(ctx, logg, "seed", err)

	logg.Info(logg.WithFields(ctx, map[string]any{
		"settings":         res.Settings,
		"delivery_methods": res.DeliveryMethods,
		"outskirts":        res.Outskirts,
		"zones":            res.Zones,
		"products":         res.Products,
		"products_created": len(res.Created),
		"bundles":          res.Bundles,
		"slice_boxes":      res.SliceBoxes,
	}), "seed applied")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
