package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/export"
	"github.com/fyrsmithlabs/llkb/internal/relevance"
)

var (
	ctxJourneyID  string
	ctxTitle      string
	ctxScope      string
	ctxRoutes     []string
	ctxKeywords   []string
	ctxCategories []string
	ctxFormat     string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Retrieve ranked knowledge for a journey",
	Long: `Score every lesson and component against the given journey and print the
selected context: top lessons, reusable components, matching quirks, and
selector/timing hints.

Examples:
  llkb context --journey checkout-happy-path --title "Complete checkout" --scope framework:playwright
  llkb context --journey login --title "Login flow" --route /login --category auth --format json`,
	RunE: runContext,
}

func init() {
	contextCmd.Flags().StringVar(&ctxJourneyID, "journey", "", "journey (scenario) identifier")
	contextCmd.Flags().StringVar(&ctxTitle, "title", "", "journey title")
	contextCmd.Flags().StringVar(&ctxScope, "scope", "", "journey scope (universal, framework:<name>, app-specific)")
	contextCmd.Flags().StringArrayVar(&ctxRoutes, "route", nil, "route the journey touches (repeatable)")
	contextCmd.Flags().StringArrayVar(&ctxKeywords, "keyword", nil, "explicit keyword (repeatable)")
	contextCmd.Flags().StringArrayVar(&ctxCategories, "category", nil, "declared category (repeatable)")
	contextCmd.Flags().StringVar(&ctxFormat, "format", "prompt", "output format: prompt or json")
	_ = contextCmd.MarkFlagRequired("journey")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, _ []string) error {
	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	journey := relevance.Journey{
		ID:       ctxJourneyID,
		Title:    ctxTitle,
		Scope:    ctxScope,
		Routes:   ctxRoutes,
		Keywords: ctxKeywords,
	}
	for _, c := range ctxCategories {
		journey.Categories = append(journey.Categories, classify.Category(c))
	}

	engine := relevance.NewEngine(store, relevance.Options{
		PrioritizeByConfidence: cfg.Relevance.PrioritizeByConfidence,
		MaxLessons:             cfg.Relevance.MaxLessons,
		MaxComponents:          cfg.Relevance.MaxComponents,
	}, logger)

	ctx, err := engine.GetRelevantContext(journey)
	if err != nil {
		return err
	}

	switch ctxFormat {
	case "json":
		return printJSON(cmd, ctx)
	case "prompt":
		fmt.Fprint(cmd.OutOrStdout(), export.FormatForPrompt(ctx))
		return nil
	}
	return fmt.Errorf("unknown format %q (want prompt or json)", ctxFormat)
}
