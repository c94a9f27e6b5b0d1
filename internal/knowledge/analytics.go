package knowledge

import (
	"errors"
	"io/fs"
	"math"
	"sort"
	"time"

	"github.com/fyrsmithlabs/llkb/internal/confidence"
	"github.com/fyrsmithlabs/llkb/internal/jsonstore"
)

// Review thresholds for the needs-review lists.
const (
	lowConfidenceThreshold = 0.4
	underusedMaxUses       = 2
	underusedMinAge        = 30 * 24 * time.Hour
	topN                   = 5
)

// AnalyticsOverview summarizes entity counts.
type AnalyticsOverview struct {
	TotalLessons       int `json:"totalLessons"`
	ActiveLessons      int `json:"activeLessons"`
	ArchivedLessons    int `json:"archivedLessons"`
	TotalComponents    int `json:"totalComponents"`
	ActiveComponents   int `json:"activeComponents"`
	ArchivedComponents int `json:"archivedComponents"`
}

// TopLesson is one entry in the top-lessons ranking.
type TopLesson struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// TopComponent is one entry in the top-components ranking.
type TopComponent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TotalUses int    `json:"totalUses"`
}

// NeedsReview lists entries whose trust signals warrant human attention.
type NeedsReview struct {
	LowConfidenceLessons []string `json:"lowConfidenceLessons"`
	DecliningLessons     []string `json:"decliningLessons"`
	UnderusedComponents  []string `json:"underusedComponents"`
}

// AnalyticsFile is the derived rollup. It is a pure function of the lessons
// and components files — never a source of truth — and is safe to delete and
// regenerate at any time.
type AnalyticsFile struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`

	Overview             AnalyticsOverview `json:"overview"`
	LessonsByCategory    map[string]int    `json:"lessonsByCategory"`
	LessonsByScope       map[string]int    `json:"lessonsByScope"`
	ComponentsByCategory map[string]int    `json:"componentsByCategory"`
	ComponentsByScope    map[string]int    `json:"componentsByScope"`

	AvgLessonConfidence     float64 `json:"avgLessonConfidence"`
	AvgLessonSuccessRate    float64 `json:"avgLessonSuccessRate"`
	AvgComponentSuccessRate float64 `json:"avgComponentSuccessRate"`

	TopLessons    []TopLesson    `json:"topLessons"`
	TopComponents []TopComponent `json:"topComponents"`
	NeedsReview   NeedsReview    `json:"needsReview"`
}

// ComputeAnalytics derives the full analytics rollup from the lessons and
// components files. Always recomputed wholesale, never incrementally
// patched, so it cannot drift from its sources.
func ComputeAnalytics(lessons *LessonsFile, components *ComponentsFile, now time.Time) *AnalyticsFile {
	a := &AnalyticsFile{
		Version:              CurrentVersion,
		GeneratedAt:          now,
		LessonsByCategory:    make(map[string]int),
		LessonsByScope:       make(map[string]int),
		ComponentsByCategory: make(map[string]int),
		ComponentsByScope:    make(map[string]int),
		TopLessons:           []TopLesson{},
		TopComponents:        []TopComponent{},
		NeedsReview: NeedsReview{
			LowConfidenceLessons: []string{},
			DecliningLessons:     []string{},
			UnderusedComponents:  []string{},
		},
	}

	var confSum, rateSum float64
	active := 0
	for _, l := range lessons.Lessons {
		if l.Archived {
			continue
		}
		active++
		a.LessonsByCategory[string(l.Category)]++
		a.LessonsByScope[l.Scope]++
		confSum += l.Metrics.Confidence
		rateSum += l.Metrics.SuccessRate

		if l.Metrics.Confidence < lowConfidenceThreshold {
			a.NeedsReview.LowConfidenceLessons = append(a.NeedsReview.LowConfidenceLessons, l.ID)
		}
		if confidence.DetectDeclining(l.Metrics.Confidence, l.Metrics.ConfidenceHistory) {
			a.NeedsReview.DecliningLessons = append(a.NeedsReview.DecliningLessons, l.ID)
		}

		a.TopLessons = append(a.TopLessons, TopLesson{
			ID:    l.ID,
			Title: l.Title,
			Score: round2(l.Metrics.SuccessRate * float64(l.Metrics.Occurrences)),
		})
	}
	a.Overview.ActiveLessons = active
	a.Overview.ArchivedLessons = len(lessons.Archived) + (len(lessons.Lessons) - active)
	a.Overview.TotalLessons = len(lessons.Lessons) + len(lessons.Archived)

	if active > 0 {
		a.AvgLessonConfidence = round2(confSum / float64(active))
		a.AvgLessonSuccessRate = round2(rateSum / float64(active))
	}

	sort.SliceStable(a.TopLessons, func(i, j int) bool {
		return a.TopLessons[i].Score > a.TopLessons[j].Score
	})
	if len(a.TopLessons) > topN {
		a.TopLessons = a.TopLessons[:topN]
	}

	var compRateSum float64
	activeComponents := 0
	for _, c := range components.Components {
		if c.Archived {
			a.Overview.ArchivedComponents++
			continue
		}
		activeComponents++
		a.ComponentsByCategory[string(c.Category)]++
		a.ComponentsByScope[c.Scope]++
		compRateSum += c.Metrics.SuccessRate

		if c.Metrics.TotalUses < underusedMaxUses && now.Sub(c.Source.ExtractedAt) > underusedMinAge {
			a.NeedsReview.UnderusedComponents = append(a.NeedsReview.UnderusedComponents, c.ID)
		}

		a.TopComponents = append(a.TopComponents, TopComponent{
			ID:        c.ID,
			Name:      c.Name,
			TotalUses: c.Metrics.TotalUses,
		})
	}
	a.Overview.ActiveComponents = activeComponents
	a.Overview.TotalComponents = len(components.Components)

	if activeComponents > 0 {
		a.AvgComponentSuccessRate = round2(compRateSum / float64(activeComponents))
	}

	sort.SliceStable(a.TopComponents, func(i, j int) bool {
		return a.TopComponents[i].TotalUses > a.TopComponents[j].TotalUses
	})
	if len(a.TopComponents) > topN {
		a.TopComponents = a.TopComponents[:topN]
	}

	return a
}

// UpdateAnalytics recomputes the analytics file from the current lessons and
// components files and writes it atomically under lock.
func (s *Store) UpdateAnalytics() (*AnalyticsFile, error) {
	lessons, err := s.LoadLessons()
	if err != nil {
		return nil, err
	}
	components, err := s.LoadComponents()
	if err != nil {
		return nil, err
	}

	analytics := ComputeAnalytics(lessons, components, time.Now().UTC())
	err = jsonstore.UpdateWithLock(s.AnalyticsPath(), func(AnalyticsFile) (AnalyticsFile, error) {
		return *analytics, nil
	})
	if err != nil {
		return nil, err
	}
	return analytics, nil
}

// LoadAnalytics reads the analytics file, recomputing it when absent. A
// corrupt file remains a hard error; delete it to force regeneration.
func (s *Store) LoadAnalytics() (*AnalyticsFile, error) {
	var file AnalyticsFile
	err := jsonstore.Load(s.AnalyticsPath(), &file)
	if err == nil {
		return &file, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return s.UpdateAnalytics()
	}
	return nil, err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
