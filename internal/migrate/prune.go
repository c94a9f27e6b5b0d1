package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

// PruneOptions control retention maintenance.
type PruneOptions struct {
	// HistoryRetentionDays keeps daily history files at most this old,
	// judged by the date encoded in the filename, not file mtime.
	HistoryRetentionDays int
	// ArchiveStale enables archival of inactive lessons and components.
	ArchiveStale bool
	// LessonInactivityDays archives lessons with no success inside the window.
	LessonInactivityDays int
	// ComponentInactivityDays archives components unused inside the window.
	ComponentInactivityDays int
}

// DefaultPruneOptions mirror the retention defaults in config.
func DefaultPruneOptions() PruneOptions {
	return PruneOptions{
		HistoryRetentionDays:    90,
		LessonInactivityDays:    60,
		ComponentInactivityDays: 90,
	}
}

// PruneResult reports what a prune pass did. Steps run independently:
// Success is false when any step failed, but completed work is still
// reported.
type PruneResult struct {
	Success             bool     `json:"success"`
	DeletedHistoryFiles []string `json:"deletedHistoryFiles"`
	ArchivedLessons     int      `json:"archivedLessons"`
	ArchivedComponents  int      `json:"archivedComponents"`
	Errors              []string `json:"errors,omitempty"`
}

// Prune applies retention policy to the store: old history files are
// deleted, stale entries optionally archived, and analytics recomputed.
func (m *Migrator) Prune(opts PruneOptions, now time.Time) PruneResult {
	result := PruneResult{Success: true}
	fail := func(step string, err error) {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", step, err))
	}

	deleted, err := m.pruneHistory(opts.HistoryRetentionDays, now)
	result.DeletedHistoryFiles = deleted
	if err != nil {
		fail("history", err)
	}

	if opts.ArchiveStale {
		archived, err := m.archiveStaleLessons(opts.LessonInactivityDays, now)
		result.ArchivedLessons = archived
		if err != nil {
			fail("lessons", err)
		}

		archived, err = m.archiveStaleComponents(opts.ComponentInactivityDays, now)
		result.ArchivedComponents = archived
		if err != nil {
			fail("components", err)
		}
	}

	// Derived state only; always rebuilt after the sources changed.
	if _, err := m.store.UpdateAnalytics(); err != nil {
		fail("analytics", err)
	}

	m.logger.Info("prune complete",
		zap.Bool("success", result.Success),
		zap.Int("deletedHistoryFiles", len(result.DeletedHistoryFiles)),
		zap.Int("archivedLessons", result.ArchivedLessons),
		zap.Int("archivedComponents", result.ArchivedComponents))
	return result
}

func (m *Migrator) pruneHistory(retentionDays int, now time.Time) ([]string, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultPruneOptions().HistoryRetentionDays
	}
	cutoff := now.UTC().AddDate(0, 0, -retentionDays)

	files, err := m.store.ListHistoryFiles()
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, name := range files {
		day, err := time.Parse("2006-01-02", strings.TrimSuffix(name, ".jsonl"))
		if err != nil {
			// Not one of ours; leave it alone.
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		path := filepath.Join(m.store.HistoryDir(), name)
		if err := os.Remove(path); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}

// archiveStaleLessons moves lessons with no success inside the inactivity
// window to the archived list. Lessons that never succeeded are judged by
// first-seen age instead.
func (m *Migrator) archiveStaleLessons(inactivityDays int, now time.Time) (int, error) {
	if inactivityDays <= 0 {
		inactivityDays = DefaultPruneOptions().LessonInactivityDays
	}
	cutoff := now.UTC().AddDate(0, 0, -inactivityDays)

	archived := 0
	err := m.store.UpdateLessons(func(f *knowledge.LessonsFile) error {
		var kept []knowledge.Lesson
		for _, l := range f.Lessons {
			last := l.Metrics.FirstSeen
			if l.Metrics.LastSuccess != nil {
				last = *l.Metrics.LastSuccess
			}
			if !l.Archived && !last.IsZero() && last.Before(cutoff) {
				l.Archived = true
				f.Archived = append(f.Archived, l)
				archived++
				continue
			}
			kept = append(kept, l)
		}
		f.Lessons = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return archived, nil
}

// archiveStaleComponents flags unused components in place; unlike lessons
// they stay in the main list so the registry keeps resolving their names.
func (m *Migrator) archiveStaleComponents(inactivityDays int, now time.Time) (int, error) {
	if inactivityDays <= 0 {
		inactivityDays = DefaultPruneOptions().ComponentInactivityDays
	}
	cutoff := now.UTC().AddDate(0, 0, -inactivityDays)

	archived := 0
	err := m.store.UpdateComponents(func(f *knowledge.ComponentsFile) error {
		for i, c := range f.Components {
			last := c.Source.ExtractedAt
			if c.Metrics.LastUsed != nil {
				last = *c.Metrics.LastUsed
			}
			if !c.Archived && !last.IsZero() && last.Before(cutoff) {
				f.Components[i].Archived = true
				archived++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return archived, nil
}
