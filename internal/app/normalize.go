package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"hemicycle.dev/plenary/internal/cli"
	"hemicycle.dev/plenary/internal/llm"
	"hemicycle.dev/plenary/internal/parties"
	"hemicycle.dev/plenary/internal/topics"
)

// minGroupMembers is the floor below which a display affiliation collapses
// to Other.
const minGroupMembers = 10

func runNormalizeTopics(args []string) int {
	fs := flag.NewFlagSet("normalize-topics", flag.ContinueOnError)
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
	if err := cfg.RequireLLM(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := openPrimary(ctx, cfg, logger)
	if err != nil {
		return 1
	}
	defer pool.Close()

	counts, err := pool.DistinctMacroTopics(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read macro topics: %v\n", err)
		return 1
	}
	if len(counts) < 2 {
		fmt.Println("nothing to merge")
		return 0
	}

	completer, err := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build LLM client: %v\n", err)
		return 1
	}

	labels := make([]topics.LabelCount, len(counts))
	for i, c := range counts {
		labels[i] = topics.LabelCount{Label: c.Topic, Count: c.Count}
	}

	normalizer := topics.NewNormalizer(completer, cfg.TopicRulesFile, logger)
	rules, err := normalizer.ProposeRules(ctx, labels)
	if err != nil {
		logger.Error().Err(err).Msg("merge rule proposal failed")
		fmt.Fprintf(os.Stderr, "Failed to propose merge rules: %v\n", err)
		return 1
	}

	var rewritten int64
	for _, rule := range rules {
		n, err := pool.RewriteMacroTopic(ctx, rule.Canonical, rule.Variants)
		if err != nil {
			logger.Error().Err(err).Str("canonical", rule.Canonical).Msg("topic rewrite failed")
			fmt.Fprintf(os.Stderr, "Failed to apply rule for %q: %v\n", rule.Canonical, err)
			return 1
		}
		rewritten += n
	}

	logger.Info().
		Int("rules", len(rules)).
		Int64("speeches", rewritten).
		Msg("macro topics normalized")
	fmt.Printf("rules=%d rewritten=%d\n", len(rules), rewritten)
	fmt.Println("analytics store is stale; run generate-analytics")
	return 0
}

func runNormalizeParties(args []string) int {
	fs := flag.NewFlagSet("normalize-parties", flag.ContinueOnError)
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

	rows, err := pool.ListSpeechAffiliations(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read affiliations: %v\n", err)
		return 1
	}

	updated := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "Normalization interrupted: %v\n", ctx.Err())
			return 1
		}
		raw := row.Raw
		if raw == "" {
			raw = row.PoliticalGroup
		}
		norm := parties.Normalize(raw, row.Title)
		if err := pool.UpdateSpeechAffiliation(ctx, row.ID, norm.Std, norm.Kind); err != nil {
			logger.Error().Err(err).Int64("speech_id", row.ID).Msg("affiliation update failed")
			fmt.Fprintf(os.Stderr, "Failed to update speech %d: %v\n", row.ID, err)
			return 1
		}
		updated++
	}

	if err := pool.DeriveMemberGroups(ctx, minGroupMembers); err != nil {
		logger.Error().Err(err).Msg("member group derivation failed")
		fmt.Fprintf(os.Stderr, "Failed to derive member groups: %v\n", err)
		return 1
	}

	logger.Info().Int("speeches", updated).Msg("affiliations normalized")
	fmt.Printf("normalized=%d\n", updated)
	fmt.Println("analytics store is stale; run generate-analytics")
	return 0
}
