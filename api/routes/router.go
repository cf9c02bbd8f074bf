package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fabshop-backend/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/fabshop-backend/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/fabshop-backend/api/controllers/orders"
	quotecontrollers "github.com/angelmondragon/fabshop-backend/api/controllers/quotes"
	webhookcontrollers "github.com/angelmondragon/fabshop-backend/api/controllers/webhooks"
	"github.com/angelmondragon/fabshop-backend/api/middleware"
	"github.com/angelmondragon/fabshop-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/fabshop-backend/internal/checkout"
	"github.com/angelmondragon/fabshop-backend/internal/orders"
	"github.com/angelmondragon/fabshop-backend/pkg/config"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/redis"
)

// Dependencies are the services the HTTP surface calls. Nil services make
// their routes answer 500; a nil Redis disables replay and rate limiting.
type Dependencies struct {
	DB            controllers.Pinger
	Redis         *redis.Client
	Quotes        cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Store
	Documents     ordercontrollers.DocumentService
	SquareWebhook webhookcontrollers.SquareWebhookService
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// FilesDir is served at /files when documents are stored locally.
	FilesDir string
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": deps.DB}
	var (
		replayStore middleware.ReplayStore
		counters    middleware.RateLimitStore
	)
	if deps.Redis != nil {
		replayStore = deps.Redis
		counters = deps.Redis
		readiness["redis"] = deps.Redis
	}

	quotePolicy := middleware.NewRateLimitPolicy("quotes", cfg.RateLimit.QuoteWindow, cfg.RateLimit.QuoteIPLimit)
	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.CheckoutWindow, cfg.RateLimit.CheckoutLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, readiness, logg))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if deps.FilesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(deps.FilesDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.App.RequestTimeout))

		r.Post("/webhooks/square", webhookcontrollers.SquareWebhook(deps.SquareWebhook, logg))

		r.With(middleware.RateLimit(quotePolicy, counters, logg)).
			Post("/quotes", quotecontrollers.Create(deps.Quotes, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(checkoutPolicy, counters, logg))
			r.Use(middleware.Idempotency(replayStore, logg))
			r.Post("/checkout", checkoutcontrollers.Checkout(deps.Checkout, logg))
			r.Post("/orders/{jobId}/payment-intent", checkoutcontrollers.PaymentIntent(deps.Checkout, logg))
			r.Post("/orders/{jobId}/retry", checkoutcontrollers.Retry(deps.Checkout, logg))
		})

		r.Get("/orders/{jobId}", ordercontrollers.Detail(deps.Orders, logg))
		r.Get("/orders/{jobId}/documents", ordercontrollers.Document(deps.Documents, logg))
	})

	return r
}
