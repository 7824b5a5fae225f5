package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucalabs/luca-backend/api/controllers"
	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/internal/webhooks/ingest"
	"github.com/lucalabs/luca-backend/pkg/config"
	"github.com/lucalabs/luca-backend/pkg/enums"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

// Services groups the domain services the router exposes. Each field is the
// narrow interface a controller needs, so tests can swap stubs per route.
type Services struct {
	OAuth        controllers.OAuthService
	Integrations controllers.IntegrationsService
	Webhooks     controllers.WebhookIngestor
	Pixel        controllers.PixelService
	Metrics      controllers.MetricsService
	Expenses     controllers.ExpensesService
}

// Normalizers holds one verifier-decoder per webhook provider.
type Normalizers struct {
	Shopify ingest.Normalizer
	Salla   ingest.Normalizer
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pingers map[string]controllers.Pinger,
	services Services,
	normalizers Normalizers,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.FrontendURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, pingers))
	})

	// provider-facing surface: no JWT, each endpoint authenticates its own way
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/shopify", controllers.Webhook(services.Webhooks, normalizers.Shopify, logg))
		r.Post("/salla", controllers.Webhook(services.Webhooks, normalizers.Salla, logg))
	})

	r.Get("/auth/{platform}/callback", controllers.OAuthCallback(services.OAuth, cfg.App.FrontendURL, logg))

	// tracking pixel: authenticated per request by X-API-Key
	r.Route("/pixel", func(r chi.Router) {
		r.Post("/click", controllers.PixelCapture(services.Pixel, logg))
		r.Post("/event", controllers.PixelEvent(services.Pixel, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		mutating := middleware.RequireRole(logg,
			enums.TenantRoleOwner.String(),
			enums.TenantRoleAdmin.String(),
		)

		r.Route("/integrations", func(r chi.Router) {
			r.Get("/", controllers.IntegrationsList(services.Integrations, logg))
			r.With(mutating).Post("/{platform}/connect", controllers.OAuthConnect(services.OAuth, logg))
			r.With(mutating).Delete("/{platform}", controllers.IntegrationsDisconnect(services.Integrations, logg))
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/summary", controllers.MetricsSummary(services.Metrics, logg))
			r.Get("/daily", controllers.MetricsDaily(services.Metrics, logg))
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", controllers.ExpensesList(services.Expenses, logg))
			r.With(mutating).Post("/", controllers.ExpenseCreate(services.Expenses, logg))
			r.With(mutating).Put("/{expenseId}", controllers.ExpenseUpdate(services.Expenses, logg))
			r.With(mutating).Delete("/{expenseId}", controllers.ExpenseDelete(services.Expenses, logg))
		})

		r.Get("/pixel-events", controllers.PixelEventsList(services.Pixel, logg))

		r.Route("/pixel-keys", func(r chi.Router) {
			r.With(mutating).Post("/", controllers.PixelKeyIssue(services.Pixel, logg))
			r.With(mutating).Delete("/{keyId}", controllers.PixelKeyRevoke(services.Pixel, logg))
		})
	})

	return r
}
