package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/config"
	"github.com/samuelysliu/pdf-editor/internal/logger"
	"github.com/samuelysliu/pdf-editor/internal/repository"
	"github.com/samuelysliu/pdf-editor/internal/service"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

func main() {
	mode := flag.String("mode", "", "Admin mode: migrate|grant-quota|setup-pubsub")
	userID := flag.Int64("user", 0, "User id for grant-quota")
	pages := flag.Int("pages", 0, "Pages to add for grant-quota")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var runErr error
	switch *mode {
	case "migrate":
		runErr = migrate(ctx, cfg, logger)
	case "grant-quota":
		runErr = grantQuota(ctx, cfg, *userID, *pages, logger)
	case "setup-pubsub":
		runErr = setupPubSub(ctx, cfg, logger)
	default:
		logger.Fatal().Msgf("Invalid mode: %q", *mode)
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msgf("%s failed", *mode)
	}
	logger.Info().Msgf("%s finished", *mode)
}

func openPool(ctx context.Context, cfg *config.Config) (*repository.Repositories, func(), error) {
	if cfg.Store != "postgres" {
		return nil, nil, errors.New("admin commands need STORE=postgres")
	}
	pool, err := repository.NewPool(ctx, cfg.DBConnectionString, 2, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	repos := repository.NewPostgres(pool)
	return &repos, pool.Close, nil
}

func migrate(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	_, closeFn, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	logger.Info().Msg("Schema applied")
	return nil
}

// grantQuota credits pages to a user outside of a purchase, e.g. for support refunds.
func grantQuota(ctx context.Context, cfg *config.Config, userID int64, pages int, logger zerolog.Logger) error {
	if userID <= 0 || pages <= 0 {
		return errors.New("-user and -pages must be positive")
	}
	repos, closeFn, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	balance, err := service.NewQuotaService(repos.Quota, logger).Add(ctx, userID, pages)
	if err != nil {
		return err
	}
	logger.Info().Int64("user_id", userID).Int("pages", pages).Int("quota_remaining", balance).Msg("Quota granted")
	return nil
}

// setupPubSub creates the events topic. PUBSUB_EMULATOR_HOST points the
// client at a local emulator.
func setupPubSub(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.GCPProjectID == "" {
		return errors.New("GCP_PROJECT_ID is not set")
	}
	var opts []option.ClientOption
	if cfg.PubSubEmulatorHost != "" {
		opts = append(opts, option.WithEndpoint(cfg.PubSubEmulatorHost), option.WithoutAuthentication())
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close pubsub client")
		}
	}()

	topic := client.Topic(cfg.PubSubEventsTopic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		logger.Info().Str("topic", cfg.PubSubEventsTopic).Msg("Topic already exists")
		return nil
	}
	if _, err := client.CreateTopic(ctx, cfg.PubSubEventsTopic); err != nil {
		return err
	}
	logger.Info().Str("topic", cfg.PubSubEventsTopic).Msg("Topic created")
	return nil
}
