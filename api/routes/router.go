package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karimfahmy/nilecart-backend/api/controllers"
	webhookcontrollers "github.com/karimfahmy/nilecart-backend/api/controllers/webhooks"
	"github.com/karimfahmy/nilecart-backend/api/middleware"
	checkoutsvc "github.com/karimfahmy/nilecart-backend/internal/checkout"
	"github.com/karimfahmy/nilecart-backend/internal/orders"
	"github.com/karimfahmy/nilecart-backend/internal/refunds"
	paymobwebhook "github.com/karimfahmy/nilecart-backend/internal/webhooks/paymob"
	"github.com/karimfahmy/nilecart-backend/pkg/config"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
)

const (
	checkoutRateLimit  = 20
	checkoutRateWindow = time.Minute
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	Readiness       map[string]controllers.Pinger
	CheckoutService checkoutsvc.Service
	OrdersService   orders.Service
	RefundsService  refunds.Service
	WebhookService  *paymobwebhook.Service
	WebhookGuard    *paymobwebhook.IdempotencyGuard
	RateLimiter     middleware.RateLimiter
	Metrics         prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks/paymob", func(r chi.Router) {
		r.Post("/", webhookcontrollers.PaymobWebhook(p.WebhookService, p.WebhookGuard, logg))
		r.Get("/redirect", webhookcontrollers.PaymobRedirect(p.WebhookService, cfg.Storefront, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/shipping/rates", controllers.ShippingRates(logg))

		// Checkout and order lookup accept both guests and signed-in
		// customers.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.With(middleware.RateLimit(p.RateLimiter, "checkout", checkoutRateLimit, checkoutRateWindow, logg)).
				Post("/checkout", controllers.Checkout(p.CheckoutService, logg))
			r.Get("/orders/{orderId}", controllers.GetOrder(p.OrdersService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/orders", controllers.ListOrders(p.OrdersService, logg))
			r.Post("/refunds", controllers.RequestRefund(p.RefundsService, logg))
			r.Get("/orders/{orderId}/refunds", controllers.ListOrderRefunds(p.RefundsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/ship", controllers.ShipOrder(p.OrdersService, logg))
			r.Post("/deliver", controllers.DeliverOrder(p.OrdersService, logg))
			r.Post("/cancel", controllers.CancelOrder(p.OrdersService, logg))
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", controllers.ListRefunds(p.RefundsService, logg))
			r.Get("/{refundId}", controllers.GetRefund(p.RefundsService, logg))
			r.Post("/{refundId}/approve", controllers.ApproveRefund(p.RefundsService, logg))
			r.Post("/{refundId}/deny", controllers.DenyRefund(p.RefundsService, logg))
		})
	})

	return r
}
