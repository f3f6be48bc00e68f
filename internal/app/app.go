package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "refresh":
		return runRefresh(args[1:])
	case "bulk":
		return runBulk(args[1:])
	case "detect-language":
		return runDetectLanguage(args[1:])
	case "generate-analytics":
		return runGenerateAnalytics(args[1:])
	case "normalize-topics":
		return runNormalizeTopics(args[1:])
	case "normalize-parties":
		return runNormalizeParties(args[1:])
	case "refresh-mep-dataset":
		return runRefreshMEPDataset(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "plenary CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  plenary <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health               Verify both stores open and migrations apply")
	fmt.Fprintln(os.Stderr, "  refresh              Ingest everything after the last fully classified sitting")
	fmt.Fprintln(os.Stderr, "  bulk                 Ingest a date range (--start, --end)")
	fmt.Fprintln(os.Stderr, "  detect-language      Backfill speech languages (--all re-detects everything)")
	fmt.Fprintln(os.Stderr, "  generate-analytics   Rebuild the analytics store from the primary store")
	fmt.Fprintln(os.Stderr, "  normalize-topics     Merge near-duplicate macro topics via the LLM")
	fmt.Fprintln(os.Stderr, "  normalize-parties    Normalize political affiliations and member groups")
	fmt.Fprintln(os.Stderr, "  refresh-mep-dataset  Sync the member roster and resolve speakers")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"plenary <command> -h\" for command-specific flags.")
}
