package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the knowledge base directory",
	Long: `Create the knowledge base directory with empty lessons and components
files, the history and patterns directories, and a starter config.

Examples:
  # Initialize under the default directory (.artk/llkb)
  llkb init

  # Initialize under a custom directory
  llkb init --root .knowledge`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const starterConfig = `# llkb configuration. Every key is optional; omitted keys use defaults.
extraction:
  min_occurrences: 2
  min_lines: 3
  similarity_threshold: 0.8
  predictive: false
retention:
  history_days: 90
  lesson_inactivity_days: 60
  component_inactivity_days: 90
relevance:
  prioritize_by_confidence: false
logging:
  level: info
  format: console
`

func runInit(cmd *cobra.Command, _ []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	for _, dir := range []string{store.Root(), store.HistoryDir(), store.PatternsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// First write establishes the current-version empty files.
	if err := store.UpdateLessons(func(*knowledge.LessonsFile) error { return nil }); err != nil {
		return err
	}
	if err := store.UpdateComponents(func(*knowledge.ComponentsFile) error { return nil }); err != nil {
		return err
	}
	if _, err := store.UpdateAnalytics(); err != nil {
		return err
	}

	cfgFile := store.ConfigPath()
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if err := os.WriteFile(cfgFile, []byte(starterConfig), 0o600); err != nil {
			return fmt.Errorf("write starter config: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized knowledge base at %s\n", store.Root())
	return nil
}
