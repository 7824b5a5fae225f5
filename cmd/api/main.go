package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucalabs/luca-backend/api/controllers"
	"github.com/lucalabs/luca-backend/api/routes"
	"github.com/lucalabs/luca-backend/internal/integrations"
	"github.com/lucalabs/luca-backend/internal/oauth"
	"github.com/lucalabs/luca-backend/internal/pixel"
	"github.com/lucalabs/luca-backend/internal/reporting"
	"github.com/lucalabs/luca-backend/internal/webhooks/ingest"
	salla "github.com/lucalabs/luca-backend/internal/webhooks/salla"
	shopify "github.com/lucalabs/luca-backend/internal/webhooks/shopify"
	"github.com/lucalabs/luca-backend/pkg/config"
	"github.com/lucalabs/luca-backend/pkg/db"
	"github.com/lucalabs/luca-backend/pkg/logger"
	"github.com/lucalabs/luca-backend/pkg/metrics"
	"github.com/lucalabs/luca-backend/pkg/migrate"
	"github.com/lucalabs/luca-backend/pkg/redis"
	"github.com/lucalabs/luca-backend/pkg/vault"
)

// webhookDedupeTTL bounds how long a delivery id blocks redeliveries in
// redis; the unique index on financial_events is the durable guarantee.
const webhookDedupeTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
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

	credentialVault, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		logg.Error(context.Background(), "failed to create credential vault", err)
		os.Exit(1)
	}

	integrationsService, err := integrations.NewService(integrations.ServiceParams{
		Repo:  integrations.NewRepository(dbClient.DB()),
		Vault: credentialVault,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create integrations service", err)
		os.Exit(1)
	}

	connector, err := oauth.NewConnector(oauth.ConnectorParams{
		HTTPClient: &http.Client{Timeout: cfg.Worker.RequestTimeout},
		OAuth:      cfg.OAuth,
		BaseURL:    cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create oauth connector", err)
		os.Exit(1)
	}

	stateStore, err := oauth.NewStateStore(oauth.NewStateRepository(dbClient.DB()), cfg.OAuth.StateTTL, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create oauth state store", err)
		os.Exit(1)
	}

	oauthService, err := oauth.NewService(oauth.ServiceParams{
		Connector:    connector,
		Integrations: integrationsService,
		States:       stateStore,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create oauth service", err)
		os.Exit(1)
	}

	webhookGuard, err := ingest.NewRedisGuard(redisClient, webhookDedupeTTL, "webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	ingestService, err := ingest.NewService(ingest.ServiceParams{
		Repo:    ingest.NewRepository(dbClient.DB()),
		Tenants: integrationsService,
		Tx:      dbClient,
		Guard:   webhookGuard,
		Metrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook ingest service", err)
		os.Exit(1)
	}

	pixelService, err := pixel.NewService(pixel.ServiceParams{
		Repo: pixel.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pixel service", err)
		os.Exit(1)
	}

	reportingService, err := reporting.NewService(reporting.ServiceParams{
		Repo:   reporting.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reporting service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(cfg, logg,
		map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
		routes.Services{
			OAuth:        oauthService,
			Integrations: integrationsService,
			Webhooks:     ingestService,
			Pixel:        pixelService,
			Metrics:      reportingService,
			Expenses:     reportingService,
		},
		routes.Normalizers{
			Shopify: shopify.NewNormalizer(cfg.Webhooks.ShopifySecret),
			Salla:   salla.NewNormalizer(cfg.Webhooks.SallaSecret),
		},
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
