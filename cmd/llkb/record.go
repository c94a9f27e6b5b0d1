package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

var (
	recordJourney string
	recordFailed  bool

	lessonTitle    string
	lessonPattern  string
	lessonTrigger  string
	lessonCategory string
	lessonScope    string
	lessonTags     []string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record knowledge events",
}

var recordLessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Capture a new lesson",
	Long: `Capture a lesson learned during test authoring. If the category is
omitted it is inferred from the pattern text.

Examples:
  llkb record lesson --title "Toast needs explicit wait" \
    --pattern "waitForSelector('.toast') before asserting" \
    --trigger "flaky toast assertions" --category timing --scope universal`,
	RunE: runRecordLesson,
}

var recordAppliedCmd = &cobra.Command{
	Use:   "applied <lesson-id>",
	Short: "Record that a lesson was applied",
	Long: `Record one application of a lesson in a journey, updating its
occurrence count, success rate, and confidence.

Examples:
  llkb record applied 2f1c... --journey checkout-happy-path
  llkb record applied 2f1c... --journey checkout-happy-path --failed`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordApplied,
}

var recordUsedCmd = &cobra.Command{
	Use:   "used <component-id>",
	Short: "Record that a component was used",
	Long: `Record one use of an extracted component in a journey.

Examples:
  llkb record used 9d2a... --journey signup
  llkb record used 9d2a... --journey signup --failed`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordUsed,
}

func init() {
	recordLessonCmd.Flags().StringVar(&lessonTitle, "title", "", "short lesson title")
	recordLessonCmd.Flags().StringVar(&lessonPattern, "pattern", "", "what to do (the fix)")
	recordLessonCmd.Flags().StringVar(&lessonTrigger, "trigger", "", "when it applies")
	recordLessonCmd.Flags().StringVar(&lessonCategory, "category", "", "category (inferred from pattern when omitted)")
	recordLessonCmd.Flags().StringVar(&lessonScope, "scope", knowledge.ScopeUniversal, "scope: universal, framework:<name>, app-specific")
	recordLessonCmd.Flags().StringArrayVar(&lessonTags, "tag", nil, "tag (repeatable)")
	_ = recordLessonCmd.MarkFlagRequired("title")
	_ = recordLessonCmd.MarkFlagRequired("pattern")

	for _, c := range []*cobra.Command{recordAppliedCmd, recordUsedCmd} {
		c.Flags().StringVar(&recordJourney, "journey", "", "journey the event happened in")
		c.Flags().BoolVar(&recordFailed, "failed", false, "the application did not fix the problem")
		_ = c.MarkFlagRequired("journey")
	}

	recordCmd.AddCommand(recordLessonCmd)
	recordCmd.AddCommand(recordAppliedCmd)
	recordCmd.AddCommand(recordUsedCmd)
	rootCmd.AddCommand(recordCmd)
}

func runRecordLesson(cmd *cobra.Command, _ []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	category := classify.Category(lessonCategory)
	if lessonCategory == "" {
		category = classify.Classify(lessonPattern)
	}

	id, err := store.AddLesson(knowledge.Lesson{
		Title:    lessonTitle,
		Pattern:  lessonPattern,
		Trigger:  lessonTrigger,
		Category: category,
		Scope:    lessonScope,
		Tags:     lessonTags,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded lesson %s (%s)\n", id, category)
	return nil
}

func runRecordApplied(cmd *cobra.Command, args []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := store.RecordLessonApplication(args[0], recordJourney, !recordFailed); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded application of %s in %s\n", args[0], recordJourney)
	return nil
}

func runRecordUsed(cmd *cobra.Command, args []string) error {
	_, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := store.RecordComponentUse(args[0], recordJourney, !recordFailed); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded use of %s in %s\n", args[0], recordJourney)
	return nil
}
