package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"hemicycle.dev/plenary/internal/cli"
	"hemicycle.dev/plenary/internal/langdetect"
)

func runDetectLanguage(args []string) int {
	fs := flag.NewFlagSet("detect-language", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Hour, "Command timeout")
	all := fs.Bool("all", false, "Re-detect every speech, not only the unset ones")

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

	speeches, err := pool.SpeechesWithoutLanguage(ctx, *all)
	if err != nil {
		logger.Error().Err(err).Msg("speech query failed")
		fmt.Fprintf(os.Stderr, "Failed to query speeches: %v\n", err)
		return 1
	}

	detected := 0
	undecided := 0
	for _, speech := range speeches {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "Detection interrupted: %v\n", ctx.Err())
			return 1
		}
		result := langdetect.Detect(speech.Content)
		if err := pool.UpdateSpeechLanguage(ctx, speech.ID, result.Code); err != nil {
			logger.Error().Err(err).Int64("speech_id", speech.ID).Msg("language update failed")
			fmt.Fprintf(os.Stderr, "Failed to update speech %d: %v\n", speech.ID, err)
			return 1
		}
		if result.Code == "" {
			undecided++
		} else {
			detected++
		}
	}

	logger.Info().
		Int("detected", detected).
		Int("undecided", undecided).
		Bool("all", *all).
		Msg("language detection finished")
	fmt.Printf("detected=%d undecided=%d total=%d\n", detected, undecided, len(speeches))
	return 0
}
