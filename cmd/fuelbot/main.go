package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sheetsapi "google.golang.org/api/sheets/v4"

	"fuelbot/internal/bot"
	"fuelbot/internal/config"
	"fuelbot/internal/fleet"
	"fuelbot/internal/record"
	"fuelbot/internal/session"
	"fuelbot/internal/store"
	"fuelbot/internal/store/postgres"
	"fuelbot/internal/store/sheets"
	"fuelbot/pkg/client"
	"fuelbot/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create store", "error", err, "backend", cfg.Store)
		os.Exit(1)
	}

	registry := fleet.NewRegistry(st, cfg.RefreshInterval(), logger)
	if err := registry.Refresh(ctx); err != nil {
		logger.Error("initial registry refresh failed", "error", err)
		os.Exit(1)
	}
	go registry.Run(ctx)

	sessions := session.NewStore()
	writer := record.New(st, logger)
	handler := bot.NewHandler(sessions, registry, writer, st, logger)

	b, err := bot.New(cfg.TelegramToken, handler, sessions, logger)
	if err != nil {
		logger.Error("failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	b.Run(ctx)
}

func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Store == config.StorePostgres {
		return postgres.New(ctx, postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
	}

	httpClient, err := client.New(ctx, cfg.CredentialsFile, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}
	return sheets.New(ctx, httpClient, cfg.SpreadsheetID, logger)
}
