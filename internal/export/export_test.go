package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/dupdetect"
	"github.com/fyrsmithlabs/llkb/internal/extraction"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
	"github.com/fyrsmithlabs/llkb/internal/relevance"
)

func sampleAnalytics() *knowledge.AnalyticsFile {
	return &knowledge.AnalyticsFile{
		Version: knowledge.CurrentVersion,
		Overview: knowledge.AnalyticsOverview{
			TotalLessons: 3, ActiveLessons: 2, ArchivedLessons: 1,
			TotalComponents: 1, ActiveComponents: 1,
		},
		LessonsByCategory:    map[string]int{"timing": 2, "auth": 1},
		AvgLessonConfidence:  0.61,
		AvgLessonSuccessRate: 0.84,
		TopLessons:           []knowledge.TopLesson{{ID: "l1", Title: "wait for toast", Score: 8.1}},
		TopComponents:        []knowledge.TopComponent{{ID: "c1", Name: "submitForm", TotalUses: 12}},
		NeedsReview:          knowledge.NeedsReview{LowConfidenceLessons: []string{"l9"}},
	}
}

func TestAnalyticsMarkdown(t *testing.T) {
	out, err := Analytics(sampleAnalytics(), nil, FormatMarkdown)
	require.NoError(t, err)

	assert.Contains(t, out, "# Knowledge Base Analytics")
	assert.Contains(t, out, "Lessons: 3 total, 2 active, 1 archived")
	assert.Contains(t, out, "| 1 | wait for toast | 8.10 |")
	assert.Contains(t, out, "| 1 | submitForm | 12 |")
	assert.Contains(t, out, "Low confidence: l9")
}

func TestAnalyticsCSV(t *testing.T) {
	out, err := Analytics(sampleAnalytics(), nil, FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "metric,value", lines[0])
	assert.Contains(t, out, "totalLessons,3")
	assert.Contains(t, out, "lessonsByCategory.auth,1")
}

func TestAnalyticsRecentActivity(t *testing.T) {
	ok := true
	activity := NewActivity([]knowledge.HistoryEvent{
		{Type: knowledge.EventLessonApplied, Success: &ok},
		{Type: knowledge.EventLessonApplied, Success: &ok},
		{Type: knowledge.EventComponentUsed, Success: &ok},
	}, 7)

	out, err := Analytics(sampleAnalytics(), activity, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, out, "## Recent activity (last 7 days)")
	assert.Contains(t, out, "- Events: 3")
	assert.Contains(t, out, "- lesson_applied: 2")
	assert.Contains(t, out, "- component_used: 1")

	out, err = Analytics(sampleAnalytics(), activity, FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, out, "recentActivityEvents,3")
	assert.Contains(t, out, "recentActivity.lesson_applied,2")
}

func TestAnalyticsJSONRoundTrips(t *testing.T) {
	out, err := Analytics(sampleAnalytics(), nil, FormatJSON)
	require.NoError(t, err)

	var decoded knowledge.AnalyticsFile
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, sampleAnalytics().Overview, decoded.Overview)
}

func TestUnknownFormat(t *testing.T) {
	_, err := Analytics(sampleAnalytics(), nil, Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestScanReportMarkdown(t *testing.T) {
	report := &dupdetect.Report{FilesScanned: 3, StepsExtracted: 5, DuplicatePatterns: 1}
	candidates := []extraction.Candidate{{
		Group: dupdetect.DuplicateGroup{
			Steps:          []dupdetect.TestStep{{JourneyID: "a"}, {JourneyID: "b"}},
			UniqueJourneys: 2,
			Samples:        []string{"await page.click('#submit');"},
		},
		Decision:       extraction.Decision{ShouldExtract: true, Confidence: 0.9, Reason: "duplicated 2 times across 2 journeys"},
		Composite:      1.67,
		Recommendation: extraction.RecommendExtractNow,
	}}

	matches := []dupdetect.ComponentMatch{{
		Step:          dupdetect.TestStep{File: "e2e/checkout.spec.ts", StepName: "submit order", StartLine: 12},
		ComponentID:   "c1",
		ComponentName: "submitAndWait",
		Score:         0.91,
	}}

	out, err := ScanReport(report, candidates, matches, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 3 files, extracted 5 steps, found 1 duplicate patterns.")
	assert.Contains(t, out, "## Reuse existing components")
	assert.Contains(t, out, "| submit order | e2e/checkout.spec.ts:12 | submitAndWait | 0.91 |")
	assert.Contains(t, out, "| EXTRACT_NOW | 2 | 2 | 0.90 |")
	assert.Contains(t, out, "await page.click('#submit');")
}

func TestFormatForPrompt(t *testing.T) {
	ctx := &relevance.Context{
		Journey: relevance.Journey{Title: "Checkout"},
		Lessons: []relevance.ScoredLesson{{
			Lesson: knowledge.Lesson{
				Title:    "Toast needs explicit wait",
				Trigger:  "flaky toast assertions",
				Pattern:  "waitForSelector('.toast') before asserting",
				Category: classify.CategoryTiming,
			},
			Score: 0.8,
		}},
		Components: []relevance.ScoredComponent{{
			Component: knowledge.Component{Name: "submitForm", Category: classify.CategoryUIInteraction, FilePath: "components/submit.ts"},
			Score:     0.7,
		}},
		Quirks: []knowledge.Lesson{{Title: "double submit", Pattern: "button fires twice, debounce"}},
		SelectorPatterns: []relevance.Pattern{
			{Name: "checkout submit", Value: "[data-testid='checkout-submit']"},
		},
		AuthPatterns: []relevance.Pattern{
			{Name: "api login", Value: "loginViaAPI(user)"},
		},
	}

	out := FormatForPrompt(ctx)
	assert.Contains(t, out, `## Known lessons for "Checkout"`)
	assert.Contains(t, out, "[timing] Toast needs explicit wait")
	assert.Contains(t, out, "When: flaky toast assertions")
	assert.Contains(t, out, "submitForm (ui-interaction) — components/submit.ts")
	assert.Contains(t, out, "double submit: button fires twice, debounce")
	assert.Contains(t, out, "`[data-testid='checkout-submit']`")
	assert.Contains(t, out, "## Auth hints")
	assert.Contains(t, out, "`loginViaAPI(user)`")
}

func TestFormatForPromptEmpty(t *testing.T) {
	out := FormatForPrompt(&relevance.Context{Journey: relevance.Journey{Title: "New area"}})
	assert.Contains(t, out, "No prior knowledge recorded")
}
