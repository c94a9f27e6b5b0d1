package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/llkb/internal/migrate"
)

var pruneArchiveStale bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention policy",
	Long: `Delete history files older than the retention window and, with
--archive-stale, archive lessons and components with no recent activity.
Analytics are recomputed afterward. Steps run independently: failures are
collected and reported together.

Examples:
  llkb prune
  llkb prune --archive-stale`,
	RunE: runPrune,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade store files to the current schema version",
	Long: `Upgrade lessons, components, and analytics files to the current schema.
Each file is backed up first; the backup is removed only once the upgraded
file is safely in place. Files already current are skipped.

Examples:
  llkb migrate`,
	RunE: runMigrate,
}

var syncRegistryCmd = &cobra.Command{
	Use:   "sync-registry",
	Short: "Rebuild the module registry from the components file",
	Long: `Rebuild the component-name registry (modules.json) from the components
file and report any drift that was corrected.

Examples:
  llkb sync-registry`,
	RunE: runSyncRegistry,
}

func init() {
	pruneCmd.Flags().BoolVar(&pruneArchiveStale, "archive-stale", false, "archive inactive lessons and components")
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncRegistryCmd)
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	m := migrate.New(store, logger)
	result := m.Prune(migrate.PruneOptions{
		HistoryRetentionDays:    cfg.Retention.HistoryDays,
		ArchiveStale:            pruneArchiveStale || cfg.Retention.ArchiveStale,
		LessonInactivityDays:    cfg.Retention.LessonInactivityDays,
		ComponentInactivityDays: cfg.Retention.ComponentInactivityDays,
	}, time.Now().UTC())

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d history files, archived %d lessons, %d components\n",
		len(result.DeletedHistoryFiles), result.ArchivedLessons, result.ArchivedComponents)
	for _, e := range result.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", e)
	}
	if !result.Success {
		cmd.SilenceErrors = true
		return fmt.Errorf("prune finished with %d errors", len(result.Errors))
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	m := migrate.New(store, logger)
	results, problems := m.MigrateAll()

	for _, r := range results {
		if r.Migrated {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: migrated %s -> %s\n", r.Path, r.From, r.To)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Path, r.Skipped)
		}
	}
	for _, p := range problems {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", p)
	}
	if len(problems) > 0 {
		cmd.SilenceErrors = true
		return fmt.Errorf("migration finished with %d errors", len(problems))
	}
	return nil
}

func runSyncRegistry(cmd *cobra.Command, _ []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	before, err := store.ValidateRegistry()
	if err != nil {
		return err
	}
	if err := store.SyncRegistry(); err != nil {
		return err
	}

	if len(before) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Registry already consistent")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Corrected %d registry problems:\n", len(before))
	for _, p := range before {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
	}
	return nil
}
