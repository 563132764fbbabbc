package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"sales-collector/internal/adapters/appconfig"
	"sales-collector/internal/adapters/messaging"
	"sales-collector/internal/adapters/pairing"
	"sales-collector/internal/adapters/redis"
	"sales-collector/internal/adapters/whatsapp"
	"sales-collector/internal/app"
	"sales-collector/internal/config"
	"sales-collector/internal/logging"
	"sales-collector/internal/ports"
)

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		if err := runLambda(); err != nil {
			os.Exit(1)
		}
	} else {
		if err := runLocal(); err != nil {
			os.Exit(1)
		}
	}
}

func runLambda() error {
	logger := logging.New(logging.DefaultConfig())

	application, cleanup, err := build(context.Background(), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	lambda.Start(application.HandleLambda)
	return nil
}

func runLocal() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	logger := logging.New(logging.DefaultConfig())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, cleanup, err := build(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return application.Serve(ctx)
}

func build(ctx context.Context, logger *slog.Logger) (*app.App, func(), error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return nil, nil, err
	}

	if cfg.Secrets.RedisSecretName != "" {
		sm, err := config.NewSecretsManagerClient(ctx)
		if err != nil {
			logger.Error("failed to create secrets manager client", "error", err)
			return nil, nil, err
		}
		if err := cfg.ApplySecrets(ctx, sm); err != nil {
			logger.Error("failed to resolve secrets", "error", err)
			return nil, nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		return nil, nil, err
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		return nil, nil, err
	}

	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	network, err := newNetwork(ctx, cfg.WhatsApp, logger.With("component", "whatsapp"))
	if err != nil {
		logger.Error("failed to set up chat network", "error", err)
		redisClient.Close()
		return nil, nil, err
	}

	application, err := app.New(ctx, app.Options{
		Config:       cfg,
		Logger:       logger,
		Store:        redis.NewRepository(redisClient, logger.With("component", "repository")),
		Network:      network,
		Cache:        pairing.NewFileCache(cfg.WhatsApp.PairingCache),
		PolicyLoader: appconfig.NewLoader(cfg.AppConfig, cfg.Notifier, logger.With("component", "config_loader")),
	})
	if err != nil {
		logger.Error("failed to build application", "error", err)
		redisClient.Close()
		return nil, nil, err
	}

	cleanup := func() {
		application.Close()
		redisClient.Close()
	}
	return application, cleanup, nil
}

func newNetwork(ctx context.Context, cfg config.WhatsAppConfig, logger *slog.Logger) (ports.ChatNetwork, error) {
	if cfg.Driver == config.DriverLog {
		logger.Info("using log driver, messages are not delivered")
		return messaging.NewNetwork(logger), nil
	}
	return whatsapp.NewNetwork(ctx, cfg, logger)
}
