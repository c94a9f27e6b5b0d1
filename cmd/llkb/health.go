package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check knowledge base health",
	Long: `Check the knowledge base: directory layout, JSON validity of each core
file, history directory, lesson trust signals, and registry drift.

Exits non-zero when the status is warning or error.

Examples:
  llkb health
  llkb health --json`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "emit the full report as JSON")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	report := store.CheckHealth(time.Now().UTC())

	if healthJSON {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", report.Status)
		for _, check := range report.Checks {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s: %s\n", check.Status, check.Name, check.Detail)
		}
	}

	switch report.Status {
	case knowledge.HealthWarning:
		cmd.SilenceErrors = true
		return fmt.Errorf("health status: warning")
	case knowledge.HealthError:
		cmd.SilenceErrors = true
		return fmt.Errorf("health status: error")
	}
	return nil
}
