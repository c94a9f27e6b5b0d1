package knowledge

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/confidence"
)

func analyticsFixture(now time.Time) (*LessonsFile, *ComponentsFile) {
	lessons := &LessonsFile{
		Lessons: []Lesson{
			{
				ID: "l1", Title: "high performer", Category: classify.CategoryTiming, Scope: ScopeUniversal,
				Metrics: LessonMetrics{Occurrences: 10, SuccessRate: 0.9, Confidence: 0.85, FirstSeen: now},
			},
			{
				ID: "l2", Title: "shaky", Category: classify.CategoryAuth, Scope: ScopeAppSpecific,
				Metrics: LessonMetrics{
					Occurrences: 4, SuccessRate: 0.5, Confidence: 0.2, FirstSeen: now,
					ConfidenceHistory: []confidence.HistoryPoint{
						{Date: now.Add(-2 * time.Hour), Value: 0.8},
						{Date: now.Add(-time.Hour), Value: 0.8},
					},
				},
			},
			{ID: "l3", Title: "shelved", Category: classify.CategoryTiming, Scope: ScopeUniversal, Archived: true},
		},
		Archived: []Lesson{{ID: "l4", Title: "long gone"}},
	}

	old := now.Add(-40 * 24 * time.Hour)
	components := &ComponentsFile{
		Components: []Component{
			{
				ID: "c1", Name: "popular", Category: classify.CategoryUIInteraction, Scope: ScopeUniversal,
				Metrics: ComponentMetrics{TotalUses: 25, SuccessRate: 0.95},
				Source:  ComponentSource{ExtractedAt: now},
			},
			{
				ID: "c2", Name: "dusty", Category: classify.CategoryNavigation, Scope: ScopeUniversal,
				Metrics: ComponentMetrics{TotalUses: 1, SuccessRate: 1},
				Source:  ComponentSource{ExtractedAt: old},
			},
		},
	}
	return lessons, components
}

func TestComputeAnalytics(t *testing.T) {
	now := time.Now().UTC()
	lessons, components := analyticsFixture(now)

	a := ComputeAnalytics(lessons, components, now)

	assert.Equal(t, 4, a.Overview.TotalLessons)
	assert.Equal(t, 2, a.Overview.ActiveLessons)
	assert.Equal(t, 2, a.Overview.ArchivedLessons)
	assert.Equal(t, 2, a.Overview.TotalComponents)
	assert.Equal(t, 2, a.Overview.ActiveComponents)

	assert.Equal(t, 1, a.LessonsByCategory["timing"])
	assert.Equal(t, 1, a.LessonsByCategory["auth"])

	// Averages cover active lessons only.
	assert.Equal(t, 0.53, a.AvgLessonConfidence)
	assert.Equal(t, 0.7, a.AvgLessonSuccessRate)

	// Top lessons ranked by successRate x occurrences.
	require.NotEmpty(t, a.TopLessons)
	assert.Equal(t, "l1", a.TopLessons[0].ID)
	assert.Equal(t, 9.0, a.TopLessons[0].Score)

	require.NotEmpty(t, a.TopComponents)
	assert.Equal(t, "c1", a.TopComponents[0].ID)

	// Needs review: low confidence and declining both flag l2; underused old component c2.
	assert.Contains(t, a.NeedsReview.LowConfidenceLessons, "l2")
	assert.Contains(t, a.NeedsReview.DecliningLessons, "l2")
	assert.Contains(t, a.NeedsReview.UnderusedComponents, "c2")
	assert.NotContains(t, a.NeedsReview.UnderusedComponents, "c1")
}

func TestComputeAnalyticsIsPure(t *testing.T) {
	now := time.Now().UTC()
	lessons, components := analyticsFixture(now)

	a1 := ComputeAnalytics(lessons, components, now)
	a2 := ComputeAnalytics(lessons, components, now)
	assert.Equal(t, a1, a2, "recomputation from the same sources must be deterministic")
}

func TestAnalyticsSafeToDeleteAndRegenerate(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddLesson(sampleLesson())
	require.NoError(t, err)

	first, err := s.UpdateAnalytics()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Overview.TotalLessons)

	require.NoError(t, os.Remove(s.AnalyticsPath()))

	second, err := s.LoadAnalytics()
	require.NoError(t, err)
	assert.Equal(t, first.Overview, second.Overview)
}
