// Package export renders knowledge-base state for humans and prompts:
// analytics and scan reports as markdown, CSV, or JSON, and relevance
// context as a prompt-injection block.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/llkb/internal/dupdetect"
	"github.com/fyrsmithlabs/llkb/internal/extraction"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
	"github.com/fyrsmithlabs/llkb/internal/relevance"
)

// Format selects an output encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ErrUnknownFormat is returned for formats outside the supported set.
var ErrUnknownFormat = fmt.Errorf("unknown export format")

// Activity tallies history events over a recent window, by event type.
type Activity struct {
	Days   int            `json:"days"`
	Total  int            `json:"total"`
	ByType map[string]int `json:"byType,omitempty"`
}

// NewActivity counts events by type for a window of the given length in days.
func NewActivity(events []knowledge.HistoryEvent, days int) *Activity {
	a := &Activity{Days: days, Total: len(events), ByType: map[string]int{}}
	for _, ev := range events {
		a.ByType[string(ev.Type)]++
	}
	return a
}

// Analytics renders an analytics rollup, with an optional recent-activity
// tally from the history log.
func Analytics(a *knowledge.AnalyticsFile, activity *Activity, format Format) (string, error) {
	switch format {
	case FormatJSON:
		if activity == nil {
			return marshalJSON(a)
		}
		return marshalJSON(struct {
			Analytics *knowledge.AnalyticsFile `json:"analytics"`
			Activity  *Activity                `json:"recentActivity"`
		}{a, activity})
	case FormatCSV:
		return analyticsCSV(a, activity)
	case FormatMarkdown:
		return analyticsMarkdown(a, activity), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func analyticsMarkdown(a *knowledge.AnalyticsFile, activity *Activity) string {
	var b strings.Builder
	b.WriteString("# Knowledge Base Analytics\n\n")
	fmt.Fprintf(&b, "- Lessons: %d total, %d active, %d archived\n",
		a.Overview.TotalLessons, a.Overview.ActiveLessons, a.Overview.ArchivedLessons)
	fmt.Fprintf(&b, "- Components: %d total, %d active\n",
		a.Overview.TotalComponents, a.Overview.ActiveComponents)
	fmt.Fprintf(&b, "- Avg lesson confidence: %.2f, avg success rate: %.2f\n",
		a.AvgLessonConfidence, a.AvgLessonSuccessRate)

	if len(a.LessonsByCategory) > 0 {
		b.WriteString("\n## Lessons by category\n\n")
		for _, k := range sortedKeys(a.LessonsByCategory) {
			fmt.Fprintf(&b, "- %s: %d\n", k, a.LessonsByCategory[k])
		}
	}

	if len(a.TopLessons) > 0 {
		b.WriteString("\n## Top lessons\n\n")
		b.WriteString("| Rank | Title | Score |\n|---|---|---|\n")
		for i, l := range a.TopLessons {
			fmt.Fprintf(&b, "| %d | %s | %.2f |\n", i+1, l.Title, l.Score)
		}
	}
	if len(a.TopComponents) > 0 {
		b.WriteString("\n## Top components\n\n")
		b.WriteString("| Rank | Name | Uses |\n|---|---|---|\n")
		for i, c := range a.TopComponents {
			fmt.Fprintf(&b, "| %d | %s | %d |\n", i+1, c.Name, c.TotalUses)
		}
	}

	review := len(a.NeedsReview.LowConfidenceLessons) +
		len(a.NeedsReview.DecliningLessons) +
		len(a.NeedsReview.UnderusedComponents)
	if review > 0 {
		b.WriteString("\n## Needs review\n\n")
		writeIDList(&b, "Low confidence", a.NeedsReview.LowConfidenceLessons)
		writeIDList(&b, "Declining", a.NeedsReview.DecliningLessons)
		writeIDList(&b, "Underused components", a.NeedsReview.UnderusedComponents)
	}

	if activity != nil {
		fmt.Fprintf(&b, "\n## Recent activity (last %d days)\n\n", activity.Days)
		fmt.Fprintf(&b, "- Events: %d\n", activity.Total)
		for _, k := range sortedKeys(activity.ByType) {
			fmt.Fprintf(&b, "- %s: %d\n", k, activity.ByType[k])
		}
	}
	return b.String()
}

func analyticsCSV(a *knowledge.AnalyticsFile, activity *Activity) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	rows := [][]string{
		{"metric", "value"},
		{"totalLessons", itoa(a.Overview.TotalLessons)},
		{"activeLessons", itoa(a.Overview.ActiveLessons)},
		{"archivedLessons", itoa(a.Overview.ArchivedLessons)},
		{"totalComponents", itoa(a.Overview.TotalComponents)},
		{"activeComponents", itoa(a.Overview.ActiveComponents)},
		{"avgLessonConfidence", ftoa(a.AvgLessonConfidence)},
		{"avgLessonSuccessRate", ftoa(a.AvgLessonSuccessRate)},
	}
	for _, k := range sortedKeys(a.LessonsByCategory) {
		rows = append(rows, []string{"lessonsByCategory." + k, itoa(a.LessonsByCategory[k])})
	}
	if activity != nil {
		rows = append(rows, []string{"recentActivityDays", itoa(activity.Days)})
		rows = append(rows, []string{"recentActivityEvents", itoa(activity.Total)})
		for _, k := range sortedKeys(activity.ByType) {
			rows = append(rows, []string{"recentActivity." + k, itoa(activity.ByType[k])})
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	w.Flush()
	return b.String(), w.Error()
}

// ScanReport renders a duplicate-detection run with its extraction
// candidates and any steps that already match an extracted component.
func ScanReport(report *dupdetect.Report, candidates []extraction.Candidate, matches []dupdetect.ComponentMatch, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(struct {
			Report     *dupdetect.Report          `json:"report"`
			Candidates []extraction.Candidate     `json:"candidates"`
			Matches    []dupdetect.ComponentMatch `json:"componentMatches,omitempty"`
		}{report, candidates, matches})
	case FormatCSV:
		return scanCSV(candidates, matches)
	case FormatMarkdown:
		return scanMarkdown(report, candidates, matches), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func scanMarkdown(report *dupdetect.Report, candidates []extraction.Candidate, matches []dupdetect.ComponentMatch) string {
	var b strings.Builder
	b.WriteString("# Duplicate Scan Report\n\n")
	fmt.Fprintf(&b, "Scanned %d files, extracted %d steps, found %d duplicate patterns.\n",
		report.FilesScanned, report.StepsExtracted, report.DuplicatePatterns)

	if len(matches) > 0 {
		b.WriteString("\n## Reuse existing components\n\n")
		b.WriteString("| Step | Location | Component | Similarity |\n|---|---|---|---|\n")
		for _, m := range matches {
			fmt.Fprintf(&b, "| %s | %s:%d | %s | %.2f |\n",
				m.Step.StepName, m.Step.File, m.Step.StartLine, m.ComponentName, m.Score)
		}
	}

	if len(candidates) == 0 {
		return b.String()
	}
	b.WriteString("\n| Recommendation | Occurrences | Journeys | Confidence | Reason |\n|---|---|---|---|---|\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "| %s | %d | %d | %.2f | %s |\n",
			c.Recommendation, len(c.Group.Steps), c.Group.UniqueJourneys,
			c.Decision.Confidence, c.Decision.Reason)
	}

	b.WriteString("\n## Samples\n")
	for i, c := range candidates {
		if len(c.Group.Samples) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### Pattern %d (%s)\n\n```\n%s\n```\n", i+1, c.Recommendation, c.Group.Samples[0])
	}
	return b.String()
}

func scanCSV(candidates []extraction.Candidate, matches []dupdetect.ComponentMatch) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	rows := [][]string{{"kind", "recommendation", "occurrences", "uniqueJourneys", "confidence", "composite", "reason"}}
	for _, c := range candidates {
		rows = append(rows, []string{
			"candidate",
			string(c.Recommendation),
			itoa(len(c.Group.Steps)),
			itoa(c.Group.UniqueJourneys),
			ftoa(c.Decision.Confidence),
			ftoa(c.Composite),
			c.Decision.Reason,
		})
	}
	for _, m := range matches {
		rows = append(rows, []string{
			"reuse", "", "", "", ftoa(m.Score), "",
			fmt.Sprintf("%s:%d matches component %s", m.Step.File, m.Step.StartLine, m.ComponentName),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	w.Flush()
	return b.String(), w.Error()
}

// FormatForPrompt renders a relevance context as the block injected into a
// test-generation prompt.
func FormatForPrompt(ctx *relevance.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Known lessons for %q\n", ctx.Journey.Title)

	if len(ctx.Lessons) == 0 && len(ctx.Components) == 0 && len(ctx.Quirks) == 0 {
		b.WriteString("\nNo prior knowledge recorded for this journey.\n")
		return b.String()
	}

	for _, sl := range ctx.Lessons {
		fmt.Fprintf(&b, "\n- [%s] %s\n  When: %s\n  Do: %s\n",
			sl.Lesson.Category, sl.Lesson.Title, sl.Lesson.Trigger, sl.Lesson.Pattern)
	}

	if len(ctx.Components) > 0 {
		b.WriteString("\n## Reusable components — use these instead of rewriting\n")
		for _, sc := range ctx.Components {
			fmt.Fprintf(&b, "\n- %s (%s)", sc.Component.Name, sc.Component.Category)
			if sc.Component.FilePath != "" {
				fmt.Fprintf(&b, " — %s", sc.Component.FilePath)
			}
			if sc.Component.Description != "" {
				fmt.Fprintf(&b, "\n  %s", sc.Component.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(ctx.Quirks) > 0 {
		b.WriteString("\n## App quirks\n")
		for _, q := range ctx.Quirks {
			fmt.Fprintf(&b, "\n- %s: %s\n", q.Title, q.Pattern)
		}
	}

	writePatterns(&b, "Selector hints", ctx.SelectorPatterns)
	writePatterns(&b, "Timing hints", ctx.TimingPatterns)
	writePatterns(&b, "Assertion hints", ctx.AssertionPatterns)
	writePatterns(&b, "Auth hints", ctx.AuthPatterns)
	writePatterns(&b, "Test data hints", ctx.DataPatterns)
	return b.String()
}

func writePatterns(b *strings.Builder, heading string, patterns []relevance.Pattern) {
	if len(patterns) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", heading)
	for _, p := range patterns {
		fmt.Fprintf(b, "\n- %s: `%s`\n", p.Name, p.Value)
	}
}

func writeIDList(b *strings.Builder, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(ids, ", "))
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itoa(n int) string     { return fmt.Sprintf("%d", n) }
func ftoa(f float64) string { return fmt.Sprintf("%.2f", f) }
