package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"hemicycle.dev/plenary/internal/cli"
	"hemicycle.dev/plenary/internal/config"
	"hemicycle.dev/plenary/internal/fetcher"
	"hemicycle.dev/plenary/internal/llm"
	"hemicycle.dev/plenary/internal/meps"
	"hemicycle.dev/plenary/internal/pipeline"
	"hemicycle.dev/plenary/internal/topics"
)

func runRefresh(args []string) int {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 6*time.Hour, "Command timeout")

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

	return runPipeline(ctx, cfg, logger, func(ctx context.Context, orch *pipeline.Orchestrator) (*pipeline.Result, error) {
		return orch.Refresh(ctx)
	})
}

func runBulk(args []string) int {
	fs := flag.NewFlagSet("bulk", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 12*time.Hour, "Command timeout")
	start := fs.String("start", "", "First date to ingest (YYYY-MM-DD)")
	end := fs.String("end", "", "Last date to ingest (YYYY-MM-DD)")
	noSkipExisting := fs.Bool("no-skip-existing", false, "Re-process stored sittings with unclassified speeches")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "bulk requires --start and --end")
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	return runPipeline(ctx, cfg, logger, func(ctx context.Context, orch *pipeline.Orchestrator) (*pipeline.Result, error) {
		return orch.Bulk(ctx, *start, *end, *noSkipExisting)
	})
}

// runPipeline wires the ingest stages and executes one driver mode.
func runPipeline(ctx context.Context, cfg *config.Config, logger zerolog.Logger, drive func(context.Context, *pipeline.Orchestrator) (*pipeline.Result, error)) int {
	if err := cfg.RequireLLM(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	pool, err := openPrimary(ctx, cfg, logger)
	if err != nil {
		return 1
	}
	defer pool.Close()

	completer, err := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build LLM client: %v\n", err)
		return 1
	}

	store := topics.NewStore(cfg.MacroTopicsFile)
	classifier := topics.NewClassifier(completer, store, cfg.TopicBatchSize, logger)

	failures := pipeline.NewFailureLog(cfg.FailuresLog)
	defer failures.Close()

	orch := pipeline.New(
		pool,
		fetcher.New(fetcher.Options{BaseURL: cfg.EuroparlBaseURL}),
		classifier,
		meps.NewResolver(pool, logger),
		failures,
		pipeline.Options{FetchConcurrency: cfg.FetchConcurrency, AIWorkers: cfg.AIWorkers},
		logger,
	)

	result, err := drive(ctx, orch)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
		fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", err)
		return 1
	}

	fmt.Printf("processed=%d failed=%d fetch_skipped=%d ai_failed=%d pending=%d\n",
		result.Processed, result.Failed, result.FetchSkipped, result.AIFailed, result.Pending)
	if result.Failed > 0 {
		return 1
	}
	return 0
}
