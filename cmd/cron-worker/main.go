package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucalabs/luca-backend/internal/adspend"
	"github.com/lucalabs/luca-backend/internal/attribution"
	"github.com/lucalabs/luca-backend/internal/cron"
	"github.com/lucalabs/luca-backend/internal/integrations"
	"github.com/lucalabs/luca-backend/internal/oauth"
	"github.com/lucalabs/luca-backend/internal/reporting"
	"github.com/lucalabs/luca-backend/pkg/config"
	"github.com/lucalabs/luca-backend/pkg/db"
	"github.com/lucalabs/luca-backend/pkg/logger"
	"github.com/lucalabs/luca-backend/pkg/metrics"
	"github.com/lucalabs/luca-backend/pkg/migrate"
	"github.com/lucalabs/luca-backend/pkg/redis"
	"github.com/lucalabs/luca-backend/pkg/vault"
)

const lockKeyFormat = "luca:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
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

	registry := cron.NewRegistry()
	if err := registerJobs(cfg, logg, dbClient, registry); err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Worker.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	go serveMetrics(ctx, cfg.Worker.MetricsPort, logg)

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func registerJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, registry *cron.Registry) error {
	credentialVault, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		return err
	}

	integrationsService, err := integrations.NewService(integrations.ServiceParams{
		Repo:  integrations.NewRepository(dbClient.DB()),
		Vault: credentialVault,
	})
	if err != nil {
		return err
	}

	connector, err := oauth.NewConnector(oauth.ConnectorParams{
		HTTPClient: &http.Client{Timeout: cfg.Worker.RequestTimeout},
		OAuth:      cfg.OAuth,
		BaseURL:    cfg.App.BaseURL,
	})
	if err != nil {
		return err
	}

	stateStore, err := oauth.NewStateStore(oauth.NewStateRepository(dbClient.DB()), cfg.OAuth.StateTTL, nil)
	if err != nil {
		return err
	}

	oauthService, err := oauth.NewService(oauth.ServiceParams{
		Connector:    connector,
		Integrations: integrationsService,
		States:       stateStore,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	engine, err := attribution.NewEngine(attribution.EngineParams{
		Repo:   attribution.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Config: cfg.Attribution,
		Logger: logg,
	})
	if err != nil {
		return err
	}

	reportingRepo := reporting.NewRepository(dbClient.DB())
	reportingService, err := reporting.NewService(reporting.ServiceParams{
		Repo:   reportingRepo,
		Logger: logg,
	})
	if err != nil {
		return err
	}

	spendService, err := adspend.NewService(adspend.ServiceParams{
		Repo:        adspend.NewRepository(dbClient.DB()),
		Clients:     adspend.NewClients(&http.Client{Timeout: cfg.Worker.RequestTimeout}),
		Credentials: integrationsService,
		Refresher:   oauthService,
		SyncDays:    cfg.Worker.SpendSyncDays,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	sweepJob, err := cron.NewAttributionSweepJob(cron.AttributionSweepJobParams{
		Logger: logg,
		Engine: engine,
	})
	if err != nil {
		return err
	}
	registry.Register(sweepJob)

	stateJob, err := cron.NewStateSweepJob(cron.StateSweepJobParams{
		Logger: logg,
		States: stateStore,
	})
	if err != nil {
		return err
	}
	registry.Register(stateJob)

	rollupJob, err := cron.NewRollupJob(cron.RollupJobParams{
		Logger:     logg,
		Tenants:    reportingRepo,
		Rollup:     reportingService,
		RollupDays: cfg.Worker.RollupDays,
	})
	if err != nil {
		return err
	}
	registry.Register(rollupJob)

	spendJob, err := cron.NewSpendSyncJob(cron.SpendSyncJobParams{
		Logger: logg,
		Syncer: spendService,
	})
	if err != nil {
		return err
	}
	registry.Register(spendJob)

	return nil
}

func serveMetrics(ctx context.Context, port string, logg *logger.Logger) {
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener stopped unexpectedly", err)
	}
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
