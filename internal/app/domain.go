// Package app assembles the domain services shared by the API and the cron worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bakehouse-backend/internal/backups"
	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/internal/catalog"
	"github.com/angelmondragon/bakehouse-backend/internal/customers"
	"github.com/angelmondragon/bakehouse-backend/internal/delivery"
	"github.com/angelmondragon/bakehouse-backend/internal/orders"
	"github.com/angelmondragon/bakehouse-backend/internal/promo"
	"github.com/angelmondragon/bakehouse-backend/internal/reports"
	"github.com/angelmondragon/bakehouse-backend/internal/settings"
	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	"github.com/angelmondragon/bakehouse-backend/pkg/hitpay"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/metrics"
	"github.com/angelmondragon/bakehouse-backend/pkg/mongo"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/stripe"
)

const brand = "Bakehouse"

// Domain holds the wired services.
type Domain struct {
	Settings   settings.Service
	Calendar   *calendar.Service
	Catalog    catalog.Service
	Stock      stock.Service
	Promo      promo.Service
	Delivery   delivery.Service
	Customers  customers.Service
	Orders     orders.Service
	OrderRepo  orders.Repository
	Reports    *reports.Service
	Outbox     *outbox.Service
	OutboxRepo *outbox.Repository
	Stripe     *stripe.Client
	HitPay     *hitpay.Client
	Clock      calendar.Clock

	closers []func(context.Context) error
}

type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Registry prometheus.Registerer
}

// Build wires every domain service. Gateways and the snapshot store are
// optional and only connected when configured.
func Build(ctx context.Context, p Params) (*Domain, error) {
	if p.Config == nil {
		return nil, errors.New("config required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.DB == nil {
		return nil, errors.New("database client required")
	}
	cfg := p.Config
	loc, err := cfg.Bakery.Location()
	if err != nil {
		return nil, err
	}
	conn := p.DB.DB()
	d := &Domain{Clock: calendar.NewClock(loc)}

	if d.Settings, err = settings.NewService(settings.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}
	if d.Calendar, err = calendar.NewService(d.Settings, d.Clock); err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	if d.Catalog, err = catalog.NewService(catalog.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	if d.Stock, err = stock.NewService(stock.NewRepository(conn), d.Calendar, d.Settings, p.Logger); err != nil {
		return nil, fmt.Errorf("stock service: %w", err)
	}
	orderRepo := orders.NewRepository(conn)
	d.OrderRepo = orderRepo
	if d.Promo, err = promo.NewService(promo.NewRepository(conn), orderRepo, d.Clock); err != nil {
		return nil, fmt.Errorf("promo service: %w", err)
	}
	if d.Delivery, err = delivery.NewService(delivery.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("delivery service: %w", err)
	}
	if d.Customers, err = customers.NewService(customers.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("customer service: %w", err)
	}
	d.OutboxRepo = outbox.NewRepository(conn)
	d.Outbox = outbox.NewService(d.OutboxRepo, p.Logger)

	backupStore, err := d.backups(ctx, cfg.Mongo, p.Logger)
	if err != nil {
		return nil, err
	}
	if err := d.gateways(ctx, cfg, p.Logger); err != nil {
		return nil, err
	}

	params := orders.ServiceParams{
		Repo:      orderRepo,
		Tx:        p.DB,
		Outbox:    d.Outbox,
		Settings:  d.Settings,
		Calendar:  d.Calendar,
		Catalog:   d.Catalog,
		Stock:     d.Stock,
		Promo:     d.Promo,
		Delivery:  d.Delivery,
		Customers: d.Customers,
		Backups:   backupStore,
		Logger:    p.Logger,
		Config:    cfg.Bakery,
	}
	// typed nils would defeat the gateway nil checks
	if d.Stripe != nil {
		params.Stripe = d.Stripe
	}
	if d.HitPay != nil {
		params.HitPay = d.HitPay
	}
	if p.Registry != nil {
		params.Metrics = metrics.NewOrderMetrics(p.Registry)
	}
	if d.Orders, err = orders.NewService(params); err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	if d.Reports, err = reports.NewService(reports.ServiceParams{Orders: d.Orders, Zones: d.Delivery, Brand: brand}); err != nil {
		return nil, fmt.Errorf("reports service: %w", err)
	}
	return d, nil
}

func (d *Domain) backups(ctx context.Context, cfg config.MongoConfig, logg *logger.Logger) (orders.BackupStore, error) {
	client, err := mongo.New(ctx, cfg, logg)
	if errors.Is(err, mongo.ErrNotConfigured) {
		logg.Warn(ctx, "mongo not configured, order snapshots disabled")
		return backups.Disabled{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	d.closers = append(d.closers, client.Close)
	return backups.NewMongoStore(client.Collection(cfg.BackupsCollection)), nil
}

func (d *Domain) gateways(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, cfg.Bakery.Currency, logg)
		if err != nil {
			return fmt.Errorf("stripe client: %w", err)
		}
		d.Stripe = client
	} else {
		logg.Warn(ctx, "stripe not configured")
	}
	if strings.TrimSpace(cfg.HitPay.APIKey) != "" {
		client, err := hitpay.NewClient(cfg.HitPay, cfg.Bakery.Currency, &http.Client{Timeout: cfg.HitPay.Timeout})
		if err != nil {
			return fmt.Errorf("hitpay client: %w", err)
		}
		d.HitPay = client
	} else {
		logg.Warn(ctx, "hitpay not configured")
	}
	return nil
}

// Close releases connections opened by Build.
func (d *Domain) Close(ctx context.Context) error {
	var errs []error
	for _, closeFn := range d.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
