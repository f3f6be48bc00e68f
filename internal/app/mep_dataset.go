package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"hemicycle.dev/plenary/internal/cli"
	"hemicycle.dev/plenary/internal/db"
	"hemicycle.dev/plenary/internal/meps"
)

func runRefreshMEPDataset(args []string) int {
	fs := flag.NewFlagSet("refresh-mep-dataset", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", time.Hour, "Command timeout")
	linkOnly := fs.Bool("link-only", false, "Skip roster sync and historic synthesis; only link speakers")
	term := fs.Int("term", 0, "Also import the roster of this parliamentary term (e.g. 9)")

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

	resolver := meps.NewResolver(pool, logger)

	if !*linkOnly {
		client := meps.NewClient(cfg.MEPAPIBaseURL, logger)

		// Term import runs first so the current-roster sync below settles
		// is_current flags for members present in both.
		if *term > 0 {
			termRoster, err := client.TermMembers(ctx, *term)
			if err != nil {
				logger.Error().Err(err).Int("term", *term).Msg("term roster fetch failed")
				fmt.Fprintf(os.Stderr, "Failed to fetch term %d roster: %v\n", *term, err)
				return 1
			}
			termMembers := make([]db.Member, len(termRoster))
			for i, m := range termRoster {
				termMembers[i] = db.Member{
					ID:         m.ID,
					Label:      m.Label,
					GivenName:  m.GivenName,
					FamilyName: m.FamilyName,
					Country:    m.Country,
					Source:     db.MemberSourceAPI,
				}
			}
			if err := pool.UpsertMembers(ctx, termMembers); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to upsert term members: %v\n", err)
				return 1
			}
			logger.Info().Int("term", *term).Int("members", len(termMembers)).Msg("term roster synced")
		}

		roster, err := client.CurrentMembers(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("roster fetch failed")
			fmt.Fprintf(os.Stderr, "Failed to fetch roster: %v\n", err)
			return 1
		}

		members := make([]db.Member, len(roster))
		currentIDs := make([]int64, len(roster))
		for i, m := range roster {
			members[i] = db.Member{
				ID:         m.ID,
				Label:      m.Label,
				GivenName:  m.GivenName,
				FamilyName: m.FamilyName,
				Country:    m.Country,
				IsCurrent:  true,
				Source:     db.MemberSourceAPI,
			}
			currentIDs[i] = m.ID
		}
		if err := pool.UpsertMembers(ctx, members); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to upsert members: %v\n", err)
			return 1
		}
		if err := pool.MarkRosterCurrent(ctx, currentIDs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to update current flags: %v\n", err)
			return 1
		}
		logger.Info().Int("members", len(members)).Msg("roster synced")
	}

	speakers, linked, err := resolver.LinkOnly(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to link speakers: %v\n", err)
		return 1
	}

	created := 0
	var historicLinked int64
	if !*linkOnly {
		created, historicLinked, err = resolver.SynthesizeHistoric(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to synthesize historic members: %v\n", err)
			return 1
		}
	}

	fmt.Printf("linked_speakers=%d linked_speeches=%d historic_created=%d historic_linked=%d\n",
		speakers, linked, created, historicLinked)
	return 0
}
