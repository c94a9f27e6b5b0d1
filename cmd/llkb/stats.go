package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/llkb/internal/export"
)

// statsActivityDays is the history window summarized alongside analytics.
const statsActivityDays = 7

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Recompute and show knowledge base analytics",
	Long: `Recompute the analytics rollup from the lessons and components files and
render it, along with an activity tally from the recent history logs.
Analytics are derived state: this never modifies lessons or components.

Examples:
  llkb stats
  llkb stats --format csv
  llkb stats --format json`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "markdown", "output format: markdown, csv, or json")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	analytics, err := store.UpdateAnalytics()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	events, err := store.ReadEventsRange(now.AddDate(0, 0, -(statsActivityDays-1)), now)
	if err != nil {
		return err
	}

	out, err := export.Analytics(analytics, export.NewActivity(events, statsActivityDays), export.Format(statsFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
