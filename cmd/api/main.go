package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mateovaldes/idp-registry-backend/api/routes"
	"github.com/mateovaldes/idp-registry-backend/internal/applications"
	"github.com/mateovaldes/idp-registry-backend/internal/permits"
	"github.com/mateovaldes/idp-registry-backend/internal/staff"
	"github.com/mateovaldes/idp-registry-backend/internal/uploads"
	"github.com/mateovaldes/idp-registry-backend/internal/verify"
	"github.com/mateovaldes/idp-registry-backend/pkg/auth/session"
	"github.com/mateovaldes/idp-registry-backend/pkg/config"
	"github.com/mateovaldes/idp-registry-backend/pkg/db"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/migrate"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	"github.com/mateovaldes/idp-registry-backend/pkg/redis"
	"github.com/mateovaldes/idp-registry-backend/pkg/storage/gcs"
)

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
	cfg.Service.Kind = "api"

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

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	applicationsRepo := applications.NewRepository(dbClient.DB())
	permitsRepo := permits.NewRepository(dbClient.DB())
	uploadsRepo := uploads.NewRepository(dbClient.DB())

	uploadsService, err := uploads.NewService(
		uploadsRepo,
		applicationsRepo,
		gcsClient,
		dbClient,
		outboxService,
		logg,
		cfg.GCS.BucketName,
		cfg.GCS.UploadURLExpiry,
		cfg.Uploads.MaxUploadBytes,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create uploads service", err)
		os.Exit(1)
	}

	applicationsService, err := applications.NewService(
		applicationsRepo,
		permitsRepo,
		uploadsService,
		redisClient,
		dbClient,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create applications service", err)
		os.Exit(1)
	}

	permitsService, err := permits.NewService(
		permitsRepo,
		applicationsRepo,
		gcsClient,
		dbClient,
		outboxService,
		logg,
		cfg.GCS.BucketName,
		cfg.GCS.DownloadURLExpiry,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create permits service", err)
		os.Exit(1)
	}

	verifyService, err := verify.NewService(permitsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create verify service", err)
		os.Exit(1)
	}

	staffService, err := staff.NewService(staff.ServiceParams{
		Repo:           staff.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create staff service", err)
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
			gcsClient,
			sessionManager,
			staffService,
			applicationsService,
			uploadsService,
			permitsService,
			verifyService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
