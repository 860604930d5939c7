package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keyward/licensing-backend/api/routes"
	"github.com/keyward/licensing-backend/internal/activations"
	"github.com/keyward/licensing-backend/internal/audit"
	"github.com/keyward/licensing-backend/internal/brands"
	"github.com/keyward/licensing-backend/internal/licensekeys"
	"github.com/keyward/licensing-backend/internal/licenses"
	"github.com/keyward/licensing-backend/internal/notify"
	"github.com/keyward/licensing-backend/pkg/config"
	"github.com/keyward/licensing-backend/pkg/db"
	"github.com/keyward/licensing-backend/pkg/keycrypt"
	"github.com/keyward/licensing-backend/pkg/logger"
	"github.com/keyward/licensing-backend/pkg/metrics"
	"github.com/keyward/licensing-backend/pkg/migrate"
	"github.com/keyward/licensing-backend/pkg/pubsub"
	"github.com/keyward/licensing-backend/pkg/redis"

	productsrepo "github.com/keyward/licensing-backend/internal/products"
)

const shutdownTimeout = 15 * time.Second

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

	licenseCodec, err := keycrypt.New(cfg.LicenseKeys.Secret, cfg.LicenseKeys.IV, cfg.LicenseKeys.BlockSize, cfg.LicenseKeys.Mode)
	if err != nil {
		logg.Error(context.Background(), "failed to build license key codec", err)
		os.Exit(1)
	}
	brandCodec, err := keycrypt.New(cfg.BrandKeys.Secret, cfg.BrandKeys.IV, cfg.BrandKeys.BlockSize, cfg.BrandKeys.Mode)
	if err != nil {
		logg.Error(context.Background(), "failed to build brand key codec", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	licensingMetrics := metrics.NewLicensingMetrics(registry)

	auditor := audit.NewDBEmitter(dbClient.DB(), logg, cfg.Audit)
	defer auditor.Close()

	var sink notify.Sink = notify.NewLogSink(logg)
	if cfg.NotificationsEnabled() {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()

		sink, err = notify.NewPubSubSink(pubsubClient.NotificationPublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to build notification sink", err)
			os.Exit(1)
		}
	}

	keysRepo, err := licensekeys.NewRepository(dbClient.DB(), licenseCodec)
	if err != nil {
		logg.Error(context.Background(), "failed to build license key repository", err)
		os.Exit(1)
	}

	brandResolver, err := brands.NewResolver(brands.NewRepository(dbClient.DB()), brandCodec)
	if err != nil {
		logg.Error(context.Background(), "failed to build brand resolver", err)
		os.Exit(1)
	}

	statusCache := activations.NewStatusCache(redisClient, licenseCodec, cfg.StatusCache.TTL, licensingMetrics, logg)

	licenseService, err := licenses.NewService(
		dbClient,
		keysRepo,
		productsrepo.NewRepository(dbClient.DB()),
		licenses.NewRepository(dbClient.DB()),
		statusCache,
		auditor,
		sink,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build license service", err)
		os.Exit(1)
	}

	activationService, err := activations.NewService(
		dbClient,
		keysRepo,
		activations.NewRepository(dbClient.DB()),
		statusCache,
		auditor,
		licensingMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build activation service", err)
		os.Exit(1)
	}

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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			brandResolver,
			licenseService,
			activationService,
			registry,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
