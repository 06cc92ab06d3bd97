package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/db"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

	if err := run(cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("Glimpse story service failed")
	}
}

func run(cfg *config.Config) error {
	logger.Log.Info().Msg("Glimpse story service starting")

	database, err := db.New(cfg.Database.Path, cfg.Database.ConnectionTimeout)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	srv, err := server.New(cfg, database)
	if err != nil {
		return err
	}

	if err := config.WatchPlayback(srv.UpdatePlayback); err != nil {
		if !errors.Is(err, config.ErrNoConfigFile) {
			return err
		}
		logger.Log.Debug().Msg("No config file; playback reload disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return serveErr
}
