package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bakehouse-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/bakehouse-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/bakehouse-backend/api/controllers/webhooks"
	"github.com/angelmondragon/bakehouse-backend/api/middleware"
	"github.com/angelmondragon/bakehouse-backend/internal/auth"
	"github.com/angelmondragon/bakehouse-backend/internal/delivery"
	"github.com/angelmondragon/bakehouse-backend/internal/orders"
	"github.com/angelmondragon/bakehouse-backend/internal/promo"
	"github.com/angelmondragon/bakehouse-backend/internal/settings"
	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/metrics"
	"github.com/angelmondragon/bakehouse-backend/pkg/redis"
)

// RedisStore is the redis surface the middleware chain needs.
type RedisStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything the router mounts. Gateway pieces may be nil when
// the deployment does not offer that gateway; their routes are then omitted.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Ready       map[string]controllers.Pinger
	Redis       RedisStore
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler

	Auth     auth.Service
	Register auth.RegisterService
	Orders   orders.Service
	Stock    stock.Service
	Delivery delivery.Service
	Promo    promo.Service
	Settings settings.Service
	Reports  controllers.ReportRenderer

	StripeWebhook webhookcontrollers.StripeWebhookService
	StripeClient  StripeSigner
	StripeGuard   webhookcontrollers.ReplayGuard
	HitPayWebhook webhookcontrollers.HitPayWebhookService
	HitPaySalt    string
	HitPayGuard   webhookcontrollers.ReplayGuard
}

// StripeSigner exposes the webhook signing secret.
type StripeSigner interface {
	SigningSecret() string
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		0,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			if d.StripeWebhook != nil && d.StripeClient != nil {
				r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeWebhook, d.StripeClient, d.StripeGuard, logg))
			}
			if d.HitPayWebhook != nil {
				r.Post("/hitpay", webhookcontrollers.HitPayWebhook(d.HitPayWebhook, d.HitPaySalt, d.HitPayGuard, logg))
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(d.Redis, logg))

			r.Route("/auth", func(r chi.Router) {
				r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
				r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.AuthRegister(d.Register, logg))
				if !cfg.App.IsProd() {
					r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/admin/register", controllers.AdminRegister(d.Register, logg))
				}
			})

			r.Get("/products/{productId}/stocks", controllers.ProductStocks(d.Stock, logg))
			r.Post("/checkout/summary", controllers.CheckoutSummary(d.Orders, logg))
			r.Post("/checkout/deliverable-dates", controllers.DeliverableDates(d.Orders, logg))
			r.Get("/delivery-methods/{methodId}/fee", controllers.DeliveryFee(d.Delivery, logg))
			r.Post("/promo-codes/check", controllers.PromoCheck(d.Promo, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Create(d.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Get(d.Orders, logg))
				r.Put("/{orderId}", ordercontrollers.CustomerUpdate(d.Orders, logg))
				r.Post("/{orderId}/payments/stripe", ordercontrollers.StripePayment(d.Orders, logg))
				r.Post("/{orderId}/payments/hitpay", ordercontrollers.HitPayPayment(d.Orders, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.AccountRoleAdmin, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(d.Orders, logg))
			r.Post("/adhoc", ordercontrollers.AdminCreateAdhoc(d.Orders, logg))
			r.Post("/status", ordercontrollers.AdminUpdateStatus(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Get(d.Orders, logg))
			r.Put("/{orderId}", ordercontrollers.AdminUpdate(d.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.AdminCancel(d.Orders, logg))
			r.Post("/{orderId}/refund", ordercontrollers.AdminRefund(d.Orders, logg))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/delivery", controllers.AdminGetSettings(d.Settings, logg))
			r.Put("/delivery", controllers.AdminUpdateDeliverySettings(d.Settings, logg))
			r.Put("/peak-day-surcharge", controllers.AdminUpdatePeakDaySurcharge(d.Settings, logg))
			r.Put("/min-for-delivery", controllers.AdminUpdateMinForDelivery(d.Settings, logg))
			r.Put("/cart-minimum", controllers.AdminUpdateCartMinimum(d.Settings, logg))
			r.Put("/low-stock-threshold", controllers.AdminUpdateLowStockThreshold(d.Settings, logg))
		})

		r.Route("/promo-codes", func(r chi.Router) {
			r.Get("/", controllers.AdminListPromoCodes(d.Promo, logg))
			r.Post("/", controllers.AdminCreatePromoCode(d.Promo, logg))
			r.Get("/tags", controllers.AdminPromoTags(d.Promo, logg))
			r.Put("/{promoId}", controllers.AdminUpdatePromoCode(d.Promo, logg))
			r.Put("/{promoId}/status", controllers.AdminSetPromoStatus(d.Promo, logg))
			r.Get("/{promoId}/export", controllers.AdminExportPromoPool(d.Promo, logg))
		})

		r.Put("/stocks", controllers.AdminSetLedgerQty(d.Stock, logg))
		r.Get("/stocks/low", controllers.AdminLowStock(d.Stock, logg))
		r.Put("/products/{productId}/fixed-stock", controllers.AdminSetFixedStock(d.Stock, logg))

		r.Get("/exports/packing-slip", controllers.AdminExportPackingSlip(d.Reports, logg))
		r.Get("/exports/{report}", controllers.AdminExportReport(d.Reports, logg))
	})

	return r
}
