package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"hemicycle.dev/plenary/internal/cli"
	"hemicycle.dev/plenary/internal/config"
	"hemicycle.dev/plenary/internal/db"
	"hemicycle.dev/plenary/internal/logging"
)

// bootstrap loads the environment, configuration, and logger that every
// command shares. A non-nil error has already been reported to stderr.
func bootstrap(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Logger{}, err
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Logger{}, err
	}
	return cfg, logger, nil
}

// openPrimary opens the primary store with the configured options.
func openPrimary(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*db.Pool, error) {
	pool, err := db.Open(ctx, cfg.DBPath, db.Options{
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
		LocalRun:    cfg.LocalRun,
	})
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.DBPath).Msg("primary store open failed")
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return nil, err
	}
	return pool, nil
}
