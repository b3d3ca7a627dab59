package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/api/v1/handler"
	"github.com/samuelysliu/pdf-editor/internal/api/v1/router"
	"github.com/samuelysliu/pdf-editor/internal/composite"
	"github.com/samuelysliu/pdf-editor/internal/config"
	"github.com/samuelysliu/pdf-editor/internal/logger"
	"github.com/samuelysliu/pdf-editor/internal/pdfkit"
	"github.com/samuelysliu/pdf-editor/internal/pubsub"
	"github.com/samuelysliu/pdf-editor/internal/repository"
	"github.com/samuelysliu/pdf-editor/internal/repository/memory"
	"github.com/samuelysliu/pdf-editor/internal/service"
	"github.com/samuelysliu/pdf-editor/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// @title PDF Editor API
// @version 1.0
// @description Quota-metered PDF editing backend
// @host localhost:8080
// @BasePath /v1
// @Schemes http https

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}
	logger.Info().Str("environment", cfg.Environment).Str("store", cfg.Store).Str("storage", cfg.StorageBackend).Msg("App environment loaded")

	ctx := context.Background()

	// 2. Repositories
	repos, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open store")
	}
	if pool != nil {
		defer pool.Close()
	}

	// 3. Object storage
	files, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open object storage")
	}

	// 4. Event publisher
	var publisher pubsub.Publisher = pubsub.Noop{}
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Pub/Sub publisher")
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Info().Msg("GCP_PROJECT_ID not set, events are not published")
	}

	// 5. Receipt verification
	verifier := newVerifier(ctx, cfg, logger)

	// 6. Services
	quotaSvc := service.NewQuotaService(repos.Quota, logger)
	engine := composite.NewEngine(files, composite.Options{ReferenceDPI: cfg.ReferenceDPI, Prefetch: cfg.ImagePrefetch}, logger)
	converter := service.NewConverterClient(cfg.ConverterURL, time.Duration(cfg.ConverterTOSec)*time.Second, logger)

	svc := router.Services{
		Users: service.NewUserService(repos.Users, service.AuthConfig{
			JWTSecret:    cfg.JWTSecret,
			TokenTTL:     time.Duration(cfg.JWTTTLHours) * time.Hour,
			DefaultQuota: cfg.DefaultQuota,
		}, logger),
		Quota: quotaSvc,
		PDFs: service.NewPDFService(repos, quotaSvc, files, engine, pdfkit.NewPdftoppm(cfg.PdftoppmPath), converter, publisher,
			service.PDFServiceOptions{ListLimitMax: cfg.ListLimitMax, EventsTopic: cfg.PubSubEventsTopic}, logger),
		Annotations: service.NewAnnotationService(repos.PDFs, repos.Strokes, repos.Images, files, logger),
		Payments: service.NewPaymentService(repos.Payments, cfg.Catalog, verifier, publisher, service.PaymentOptions{
			AllowUnverifiedReceipts: cfg.AllowUnverifiedReceipts,
			EnableMockPurchase:      cfg.EnableMockPurchase,
			EventsTopic:             cfg.PubSubEventsTopic,
		}, logger),
		Subscriptions: service.NewSubscriptionService(repos.Subscriptions, verifier, service.SubscriptionOptions{
			DefaultDays:             cfg.SubscriptionDays,
			AllowUnverifiedReceipts: cfg.AllowUnverifiedReceipts,
		}, logger),
	}

	var db handler.Pinger
	if pool != nil {
		db = pool
	}
	r := router.New(cfg, svc, db, logger)

	// 7. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return
	}
	logger.Info().Msg("Server shut down gracefully")
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Repositories, *pgxpool.Pool, error) {
	if cfg.Store == "memory" {
		logger.Warn().Msg("Using the in-memory store, data is lost on restart")
		return memory.New().Repositories(), nil, nil
	}
	pool, err := repository.NewPool(ctx, cfg.DBConnectionString, cfg.DBMaxConns, cfg.IsDevelopment())
	if err != nil {
		return repository.Repositories{}, nil, err
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return repository.Repositories{}, nil, err
	}
	logger.Info().Msg("Database connection successful")
	return repository.NewPostgres(pool), pool, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3(ctx, storage.S3Options{
			Endpoint:  cfg.S3URL,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return storage.NewLocal(cfg.StorageRoot), nil
}

// newVerifier returns the Google Play verifier when it is configured. Without
// it receipts are rejected unless unverified receipts are explicitly allowed.
func newVerifier(ctx context.Context, cfg *config.Config, logger zerolog.Logger) service.ReceiptVerifier {
	if cfg.GooglePlayPackageName != "" {
		key, err := service.LoadServiceAccountKey(ctx, cfg.GoogleServiceAccountKeyPath, cfg.GoogleServiceAccountSecretID, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load Google service account key")
		}
		if key != nil {
			v, err := service.NewGooglePlayVerifier(ctx, cfg.GooglePlayPackageName, key, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to create Google Play verifier")
			}
			logger.Info().Str("package", cfg.GooglePlayPackageName).Msg("Google Play receipt verification enabled")
			return v
		}
	}
	if cfg.AllowUnverifiedReceipts {
		logger.Warn().Str("receipt_verification", "unverified").Msg("Receipts are accepted without verification")
	} else {
		logger.Warn().Msg("Receipt verification is not configured, purchases will be rejected")
	}
	return service.UnverifiedReceipts{}
}
