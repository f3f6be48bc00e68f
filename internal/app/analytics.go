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

func runGenerateAnalytics(args []string) int {
	fs := flag.NewFlagSet("generate-analytics", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", time.Hour, "Command timeout")

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

	builder := analytics.NewBuilder(pool, cfg.AnalyticsDBPath, logger)
	info, err := builder.Build(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("analytics rebuild failed")
		fmt.Fprintf(os.Stderr, "Analytics rebuild failed: %v\n", err)
		return 1
	}

	fmt.Printf("speeches=%d topics=%d languages=%d generated_at=%s\n",
		info.SpeechRows, info.TopicCount, info.LanguageRows,
		info.GeneratedAt.Format(time.RFC3339))
	return 0
}
