package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mateovaldes/idp-registry-backend/internal/cron"
	"github.com/mateovaldes/idp-registry-backend/internal/permits"
	"github.com/mateovaldes/idp-registry-backend/internal/uploads"
	"github.com/mateovaldes/idp-registry-backend/pkg/config"
	"github.com/mateovaldes/idp-registry-backend/pkg/db"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/metrics"
	"github.com/mateovaldes/idp-registry-backend/pkg/migrate"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	"github.com/mateovaldes/idp-registry-backend/pkg/redis"
	"github.com/mateovaldes/idp-registry-backend/pkg/storage/gcs"
)

const lockKeyFormat = "idp:cron-worker:lock:%s"

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

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	expiryJob, err := cron.NewPermitExpiryJob(cron.PermitExpiryJobParams{
		Logger:      logg,
		DB:          dbClient,
		PermitRepo:  permits.NewRepository(dbClient.DB()),
		Outbox:      outboxService,
		Metrics:     metricsCollector,
		WarningDays: cfg.Cron.ExpiryWarningDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create permit expiry job", err)
		os.Exit(1)
	}

	orphanJob, err := cron.NewOrphanUploadJob(cron.OrphanUploadJobParams{
		Logger:     logg,
		DB:         dbClient,
		UploadRepo: uploads.NewRepository(dbClient.DB()),
		Outbox:     outboxService,
		GCS:        gcsClient,
		Bucket:     cfg.GCS.BucketName,
		Retention:  cfg.Uploads.DraftRetention,
		Metrics:    metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orphan upload job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, orphanJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
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
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
