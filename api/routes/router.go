package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefrontlab/storefront-backend/api/controllers"
	"github.com/storefrontlab/storefront-backend/api/middleware"
	"github.com/storefrontlab/storefront-backend/internal/carts"
	"github.com/storefrontlab/storefront-backend/internal/checkout"
	"github.com/storefrontlab/storefront-backend/pkg/bigquery"
	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/db"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/redis"
)

// NewRouter wires middleware and controllers into the public HTTP surface.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	bigqueryClient bigquery.Pinger,
	cartService carts.Service,
	checkoutService checkout.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, bigqueryClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Put("/items", controllers.CartSetItem(cartService, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/start", controllers.CheckoutStart(checkoutService, cartService, logg))
			r.Get("/session", controllers.CheckoutSession(checkoutService, logg))
			r.Get("/steps/{step}", controllers.CheckoutStepAccess(checkoutService, logg))
			r.Post("/buyer-info", controllers.CheckoutBuyerInfo(checkoutService, logg))
			r.Post("/delivery", controllers.CheckoutDelivery(checkoutService, logg))
			r.Post("/payment", controllers.CheckoutPayment(checkoutService, logg))
			r.Post("/confirm", controllers.CheckoutConfirm(checkoutService, logg))
			r.Post("/cancel", controllers.CheckoutCancel(checkoutService, logg))
			r.Get("/history", controllers.CheckoutHistory(checkoutService, cfg.Checkout, logg))
		})
	})

	return r
}
