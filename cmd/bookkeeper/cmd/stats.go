package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/zahanm/collect-beans/pkg/db"
)

var statsRecent int

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display run and commit statistics",
	Long: `Display statistics about importer runs and ledger commits.

Shows:
- Total and failed importer runs
- Total commits of the destination file
- The most recent runs and commits

Example:
  bookkeeper stats
  bookkeeper stats --recent 10`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsRecent, "recent", 5, "number of recent runs and commits to show")
}

func runStats(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	stats, err := a.history.GetStats()
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Collect Statistics ===")
	fmt.Printf("Total runs:    %d\n", stats.TotalRuns)
	fmt.Printf("Failed runs:   %d\n", stats.FailedRuns)
	fmt.Printf("Total commits: %d\n", stats.TotalCommits)

	if stats.LastRun.Valid {
		fmt.Printf("Last run:      %s\n", stats.LastRun.String)
	} else {
		fmt.Printf("Last run:      (never)\n")
	}
	if stats.LastCommit.Valid {
		fmt.Printf("Last commit:   %s\n", stats.LastCommit.String)
	} else {
		fmt.Printf("Last commit:   (never)\n")
	}

	if dest, err := a.history.GetMetadata(db.KeyDestinationFile); err == nil && dest != "" {
		fmt.Printf("Destination:   %s\n", dest)
	}

	if statsRecent > 0 {
		runs, err := a.history.RecentRuns(statsRecent)
		exitOnError(err, "failed to get recent runs")
		if len(runs) > 0 {
			fmt.Println("\n=== Recent Runs ===")
			for _, r := range runs {
				state := "ok"
				if !r.Succeeded() {
					state = fmt.Sprintf("failed: %v", r.Errors)
				}
				fmt.Printf("%s  %-16s %-12s %s\n", r.RunAt.Local().Format("2006-01-02 15:04"), r.Importer, r.Mode, state)
			}
		}

		commits, err := a.history.RecentCommits(statsRecent)
		exitOnError(err, "failed to get recent commits")
		if len(commits) > 0 {
			fmt.Println("\n=== Recent Commits ===")
			for _, c := range commits {
				note := "checked"
				switch {
				case c.Forced:
					note = fmt.Sprintf("forced past %d errors", c.CheckErrors)
				case !c.CheckPassed:
					note = "unchecked"
				}
				fmt.Printf("%s  %-24s %s\n", c.CommittedAt.Local().Format("2006-01-02 15:04"), c.DestinationFile, note)
			}
		}
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
