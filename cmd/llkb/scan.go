package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/llkb/internal/dupdetect"
	"github.com/fyrsmithlabs/llkb/internal/export"
	"github.com/fyrsmithlabs/llkb/internal/extraction"
)

var (
	scanFormat     string
	scanPredictive bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Scan test files for duplicate patterns and extraction candidates",
	Long: `Recursively scan a directory of test files, group repeated step code by
similarity, and rank the groups as extraction candidates (EXTRACT_NOW,
CONSIDER, SKIP). Steps that already match an extracted component are
reported for reuse instead.

The scan is read-only: recording an extracted component is a separate,
explicit step.

Examples:
  llkb scan e2e/
  llkb scan e2e/ --predictive
  llkb scan e2e/ --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "markdown", "output format: markdown, csv, or json")
	scanCmd.Flags().BoolVar(&scanPredictive, "predictive", false, "also flag well-known reusable UI patterns on first sight")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	detector := dupdetect.NewDetector(dupdetect.Options{
		MinLines:            cfg.Scan.MinLines,
		MinOccurrences:      cfg.Scan.MinOccurrences,
		SimilarityThreshold: cfg.Extraction.SimilarityThreshold,
		ExcludeDirs:         cfg.Scan.ExcludeDirs,
	}, logger)

	report, steps, err := detector.DetectInDir(args[0])
	if err != nil {
		return fmt.Errorf("scan %s: %w", args[0], err)
	}

	components, err := store.LoadComponents()
	if err != nil {
		return err
	}
	matches := detector.MatchComponents(steps, components.Components)

	engine := extraction.NewEngine(extraction.Config{
		MinOccurrences:      cfg.Extraction.MinOccurrences,
		MinLines:            cfg.Extraction.MinLines,
		SimilarityThreshold: cfg.Extraction.SimilarityThreshold,
		Predictive:          scanPredictive || cfg.Extraction.Predictive,
	}, logger)
	candidates := engine.EvaluateReport(report, components.Components)

	out, err := export.ScanReport(report, candidates, matches, export.Format(scanFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
