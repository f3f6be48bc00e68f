package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"hemicycle.dev/plenary/internal/analytics"
	"hemicycle.dev/plenary/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := openPrimary(ctx, cfg, logger)
	if err != nil {
		return 1
	}
	defer pool.Close()

	if err := analytics.Ping(ctx, cfg.AnalyticsDBPath); err != nil {
		logger.Error().Err(err).Str("path", cfg.AnalyticsDBPath).Msg("analytics store check failed")
		fmt.Fprintf(os.Stderr, "Analytics store check failed: %v\n", err)
		return 1
	}

	fmt.Println("ok")
	return 0
}
