package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in   string
		want Version
	}{
		{"1.0.0", Version{1, 0, 0}},
		{"0.5.12", Version{0, 5, 12}},
		{" 1.2.3 ", Version{1, 2, 3}},
		{"", Version{}},
		{"1.0", Version{}},
		{"v1.0.0", Version{}},
		{"1.0.x", Version{}},
		{"1.-1.0", Version{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseVersion(tc.in), tc.in)
	}
}

func TestVersionCompare(t *testing.T) {
	assert.Equal(t, -1, Version{0, 9, 9}.Compare(Version{1, 0, 0}))
	assert.Equal(t, 1, Version{1, 0, 1}.Compare(Version{1, 0, 0}))
	assert.Equal(t, 0, Version{1, 2, 3}.Compare(Version{1, 2, 3}))
	assert.Equal(t, -1, Version{1, 2, 3}.Compare(Version{1, 3, 0}))
}

func newTestMigrator(t *testing.T) (*Migrator, *knowledge.Store) {
	t.Helper()
	store := knowledge.Open(t.TempDir(), nil)
	return New(store, nil), store
}

func writeLegacyLessons(t *testing.T, store *knowledge.Store, version string) {
	t.Helper()
	legacy := `{
  "version": "` + version + `",
  "lessons": [
    {
      "id": "l1",
      "title": "legacy lesson",
      "category": "timing",
      "scope": "universal",
      "occurrences": 7,
      "successRate": 0.8
    }
  ],
  "archived": []
}`
	require.NoError(t, os.MkdirAll(filepath.Dir(store.LessonsPath()), 0o755))
	require.NoError(t, os.WriteFile(store.LessonsPath(), []byte(legacy), 0o600))
}

func TestMigrateLegacyLessonsFile(t *testing.T) {
	m, store := newTestMigrator(t)
	writeLegacyLessons(t, store, "0.5.0")

	res, err := m.MigrateFile(store.LessonsPath())
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.Equal(t, "0.5.0", res.From)
	assert.Equal(t, "1.0.0", res.To)

	file, err := store.LoadLessons()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", file.Version)
	require.Len(t, file.Lessons, 1)

	l := file.Lessons[0]
	assert.Equal(t, "l1", l.ID)
	assert.Equal(t, classify.CategoryTiming, l.Category)
	assert.Equal(t, 7, l.Metrics.Occurrences, "legacy top-level counter folded into metrics")
	assert.Equal(t, 0.8, l.Metrics.SuccessRate)
	assert.False(t, l.Metrics.FirstSeen.IsZero())
	assert.False(t, l.Validation.HumanReviewed)

	// Backup removed after a confirmed successful save.
	entries, err := os.ReadDir(filepath.Dir(store.LessonsPath()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".backup.")
	}
}

func TestMigrateSkipsCurrentFile(t *testing.T) {
	m, store := newTestMigrator(t)
	_, err := store.AddLesson(knowledge.Lesson{
		Title: "fresh", Category: classify.CategoryTiming, Scope: knowledge.ScopeUniversal,
	})
	require.NoError(t, err)

	res, err := m.MigrateFile(store.LessonsPath())
	require.NoError(t, err)
	assert.False(t, res.Migrated)
	assert.Equal(t, "already current", res.Skipped)
}

func TestMigrateMissingFileIsNotAnError(t *testing.T) {
	m, store := newTestMigrator(t)
	res, err := m.MigrateFile(store.LessonsPath())
	require.NoError(t, err)
	assert.False(t, res.Migrated)
	assert.Equal(t, "file does not exist", res.Skipped)
}

func TestMigrateRefusesUnsupportedVersion(t *testing.T) {
	m, store := newTestMigrator(t)
	writeLegacyLessons(t, store, "0.0.1")
	before, err := os.ReadFile(store.LessonsPath())
	require.NoError(t, err)

	_, err = m.MigrateFile(store.LessonsPath())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0.1.0")

	// Refusal leaves the file untouched.
	after, err := os.ReadFile(store.LessonsPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMigrateAllCollectsIndependentFailures(t *testing.T) {
	m, store := newTestMigrator(t)
	writeLegacyLessons(t, store, "0.5.0")
	require.NoError(t, os.WriteFile(store.ComponentsPath(), []byte("{broken"), 0o600))

	results, problems := m.MigrateAll()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], store.ComponentsPath())

	migrated := 0
	for _, r := range results {
		if r.Migrated {
			migrated++
		}
	}
	assert.Equal(t, 1, migrated, "lessons still migrate when components are corrupt")
}

func TestPruneDeletesOldHistoryByFilename(t *testing.T) {
	m, store := newTestMigrator(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	store.AppendEvent(knowledge.HistoryEvent{Type: knowledge.EventOverride, Timestamp: now})
	store.AppendEvent(knowledge.HistoryEvent{Type: knowledge.EventOverride, Timestamp: now.AddDate(0, 0, -200)})

	result := m.Prune(PruneOptions{HistoryRetentionDays: 90}, now)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"2026-02-12.jsonl"}, result.DeletedHistoryFiles)

	files, err := store.ListHistoryFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-31.jsonl"}, files)
}

func TestPruneArchivesStaleEntries(t *testing.T) {
	m, store := newTestMigrator(t)
	now := time.Now().UTC()
	old := now.AddDate(0, 0, -120)

	require.NoError(t, store.UpdateLessons(func(f *knowledge.LessonsFile) error {
		f.Lessons = append(f.Lessons,
			knowledge.Lesson{ID: "stale", Category: classify.CategoryTiming, Scope: knowledge.ScopeUniversal,
				Metrics: knowledge.LessonMetrics{FirstSeen: old, LastSuccess: &old}},
			knowledge.Lesson{ID: "live", Category: classify.CategoryTiming, Scope: knowledge.ScopeUniversal,
				Metrics: knowledge.LessonMetrics{FirstSeen: now, LastSuccess: &now}},
		)
		return nil
	}))
	require.NoError(t, store.UpdateComponents(func(f *knowledge.ComponentsFile) error {
		f.Components = append(f.Components, knowledge.Component{
			ID: "dusty", Name: "dusty", Category: classify.CategoryNavigation, Scope: knowledge.ScopeUniversal,
			Source: knowledge.ComponentSource{ExtractedAt: old},
		})
		return nil
	}))

	result := m.Prune(PruneOptions{ArchiveStale: true, LessonInactivityDays: 60, ComponentInactivityDays: 90}, now)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.ArchivedLessons)
	assert.Equal(t, 1, result.ArchivedComponents)

	lessons, err := store.LoadLessons()
	require.NoError(t, err)
	require.Len(t, lessons.Lessons, 1)
	assert.Equal(t, "live", lessons.Lessons[0].ID)
	require.Len(t, lessons.Archived, 1)
	assert.True(t, lessons.Archived[0].Archived)

	components, err := store.LoadComponents()
	require.NoError(t, err)
	require.Len(t, components.Components, 1)
	assert.True(t, components.Components[0].Archived)

	// Analytics rebuilt as part of the pass.
	analytics, err := store.LoadAnalytics()
	require.NoError(t, err)
	assert.Equal(t, 1, analytics.Overview.ActiveLessons)
}

func TestPruneCollectsErrorsWithoutAborting(t *testing.T) {
	m, store := newTestMigrator(t)

	// A corrupt lessons file makes the archival step fail, but history
	// pruning and the result report still happen.
	require.NoError(t, os.WriteFile(store.LessonsPath(), []byte("{broken"), 0o600))

	result := m.Prune(PruneOptions{ArchiveStale: true}, time.Now().UTC())
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
}
