package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/dupdetect"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

const threeLineSnippet = "await page.click('#submit');\nawait page.waitForSelector('.toast');\nawait expect(toast).toBeVisible();"

func TestDecideRejectsShortSnippets(t *testing.T) {
	e := NewEngine(Config{}, nil)

	d := e.Decide("await page.click('#x');", 10, 10, nil)
	assert.False(t, d.ShouldExtract)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Contains(t, d.Reason, "code lines")
}

func TestDecideRejectsWhenComponentExists(t *testing.T) {
	e := NewEngine(Config{}, nil)
	components := []knowledge.Component{
		{ID: "c1", Name: "submitAndWait", Source: knowledge.ComponentSource{
			OriginalCode: "await page.click('#go');\nawait page.waitForSelector('.toast');\nawait expect(toast).toBeVisible();",
		}},
	}

	d := e.Decide(threeLineSnippet, 5, 3, components)
	assert.False(t, d.ShouldExtract)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, "c1", d.MatchedComponent)
	assert.Contains(t, d.Reason, "submitAndWait")
}

func TestDecideIgnoresArchivedComponents(t *testing.T) {
	e := NewEngine(Config{}, nil)
	components := []knowledge.Component{
		{ID: "c1", Name: "retired", Archived: true, Source: knowledge.ComponentSource{OriginalCode: threeLineSnippet}},
	}

	d := e.Decide(threeLineSnippet, 3, 3, components)
	assert.True(t, d.ShouldExtract)
}

func TestDecideOccurrenceThreshold(t *testing.T) {
	e := NewEngine(Config{}, nil)

	// A singleton is rejected harder than a repeat below the threshold.
	single := e.Decide(threeLineSnippet, 1, 1, nil)
	assert.False(t, single.ShouldExtract)
	assert.Equal(t, 0.3, single.Confidence)

	raised := NewEngine(Config{MinOccurrences: 3}, nil)
	repeat := raised.Decide(threeLineSnippet, 2, 2, nil)
	assert.False(t, repeat.ShouldExtract)
	assert.Equal(t, 0.4, repeat.Confidence)

	at := e.Decide(threeLineSnippet, DefaultMinOccurrences, 1, nil)
	assert.True(t, at.ShouldExtract)
	assert.Equal(t, 0.8, at.Confidence)
	assert.Equal(t, knowledge.ExtractedByDuplicateDetection, at.Source)
	assert.NotEmpty(t, at.Category)
}

func TestDecideConfidenceScalesWithJourneySpread(t *testing.T) {
	e := NewEngine(Config{}, nil)

	two := e.Decide(threeLineSnippet, 4, 2, nil)
	assert.Equal(t, 0.9, two.Confidence)

	// Spread beyond three journeys hits the cap.
	many := e.Decide(threeLineSnippet, 8, 7, nil)
	assert.Equal(t, 0.95, many.Confidence)
}

func TestDecidePredictive(t *testing.T) {
	on := NewEngine(Config{Predictive: true}, nil)
	off := NewEngine(Config{}, nil)

	snippet := "await page.goto('/checkout');\nawait page.waitForLoadState();\nawait expect(page).toHaveURL(/checkout/);"

	d := on.Decide(snippet, 1, 1, nil)
	assert.True(t, d.ShouldExtract)
	assert.Equal(t, 0.6, d.Confidence)
	assert.Equal(t, knowledge.ExtractedByPrediction, d.Source)
	assert.Equal(t, classify.CategoryNavigation, d.Category)

	d = off.Decide(snippet, 1, 1, nil)
	assert.False(t, d.ShouldExtract)

	noise := "const rows = data.map(fn);\nconst total = sum(rows);\nreturn total;"
	d = on.Decide(noise, 1, 1, nil)
	assert.False(t, d.ShouldExtract)
	assert.Equal(t, 0.3, d.Confidence)
}

func TestEvaluateReportBucketsScenario(t *testing.T) {
	code := "await page.click('#submit');\nawait page.waitForSelector('.toast');"
	steps := []dupdetect.TestStep{
		{JourneyID: "checkout", Code: code},
		{JourneyID: "signup", Code: code},
		{JourneyID: "profile", Code: code},
	}
	report := dupdetect.NewDetector(dupdetect.Options{}, nil).Detect(steps)
	require.Equal(t, 1, report.DuplicatePatterns)
	require.Equal(t, 3, report.Groups[0].UniqueJourneys)

	e := NewEngine(Config{MinLines: 2}, nil)
	candidates := e.EvaluateReport(report, nil)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.True(t, c.Decision.ShouldExtract)
	assert.Equal(t, 0.95, c.Decision.Confidence)
	assert.Equal(t, RecommendExtractNow, c.Recommendation)
	assert.InDelta(t, 3*0.3+3*0.4+0.95*0.3, c.Composite, 1e-9)
}

func TestEvaluateReportKeepsRejectedGroupsVisible(t *testing.T) {
	report := &dupdetect.Report{Groups: []dupdetect.DuplicateGroup{
		{Steps: []dupdetect.TestStep{{JourneyID: "a", Code: "short"}}, UniqueJourneys: 1, Samples: []string{"short"}},
	}}

	e := NewEngine(Config{}, nil)
	candidates := e.EvaluateReport(report, nil)
	require.Len(t, candidates, 1)
	assert.Equal(t, RecommendConsider, candidates[0].Recommendation, "size-rejected but widely seen patterns stay visible")
}
