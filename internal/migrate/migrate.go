// Package migrate upgrades persisted knowledge files across schema versions
// and performs retention maintenance (history pruning, stale-entry archival).
package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llkb/internal/jsonstore"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

// MinSupportedVersion is the oldest schema the migration chain can upgrade.
// Files below this are refused untouched rather than best-effort converted.
var MinSupportedVersion = Version{Major: 0, Minor: 1}

var errUnsupportedVersion = errors.New("schema version below minimum supported")

// migration upgrades a decoded document in place and returns the version it
// produces. Documents are handled as generic maps because the whole point is
// that the typed schema did not exist yet at the source version.
type migration struct {
	// applies to versions in [from, below).
	from, below Version
	produces    Version
	apply       func(doc map[string]any)
}

// chain is ordered; each entry's produced version feeds the next bracket.
var chain = []migration{
	{
		from:     Version{Major: 0, Minor: 1},
		below:    Version{Major: 1},
		produces: Version{Major: 1},
		apply:    migrateZeroToOne,
	},
}

// migrateZeroToOne backfills the substructures the 1.0.0 schema requires:
// lesson metrics and validation blocks, component metrics and source blocks.
// Legacy flat fields are folded in where present.
func migrateZeroToOne(doc map[string]any) {
	for _, key := range []string{"lessons", "archived"} {
		items, _ := doc[key].([]any)
		for _, item := range items {
			lesson, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := lesson["metrics"]; !ok {
				metrics := map[string]any{
					"occurrences": 0,
					"successRate": float64(0),
					"confidence":  float64(0),
					"firstSeen":   time.Now().UTC().Format(time.RFC3339),
				}
				// Pre-1.0 files kept counters at the top level.
				if n, ok := lesson["occurrences"]; ok {
					metrics["occurrences"] = n
					delete(lesson, "occurrences")
				}
				if r, ok := lesson["successRate"]; ok {
					metrics["successRate"] = r
					delete(lesson, "successRate")
				}
				lesson["metrics"] = metrics
			}
			if _, ok := lesson["validation"]; !ok {
				lesson["validation"] = map[string]any{"humanReviewed": false}
			}
		}
	}

	components, _ := doc["components"].([]any)
	for _, item := range components {
		component, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := component["metrics"]; !ok {
			component["metrics"] = map[string]any{
				"totalUses":   0,
				"successRate": float64(0),
			}
		}
		if _, ok := component["source"]; !ok {
			component["source"] = map[string]any{
				"originalCode": "",
				"extractedBy":  string(knowledge.ExtractedByDuplicateDetection),
				"extractedAt":  time.Now().UTC().Format(time.RFC3339),
			}
		}
	}

	if _, ok := doc["globalRules"]; !ok {
		doc["globalRules"] = []any{}
	}
	if _, ok := doc["appQuirks"]; ok {
		return
	}
	if _, hasLessons := doc["lessons"]; hasLessons {
		doc["appQuirks"] = []any{}
	}
}

// Migrator upgrades store files in place.
type Migrator struct {
	store  *knowledge.Store
	logger *zap.Logger
}

// New builds a migrator for the given store.
func New(store *knowledge.Store, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{store: store, logger: logger}
}

// FileResult reports the outcome of migrating one file.
type FileResult struct {
	Path     string `json:"path"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Migrated bool   `json:"migrated"`
	Skipped  string `json:"skipped,omitempty"`
}

// MigrateAll upgrades every core store file that exists. Files are attempted
// independently; one failure does not stop the others.
func (m *Migrator) MigrateAll() ([]FileResult, []string) {
	var results []FileResult
	var problems []string
	for _, path := range []string{m.store.LessonsPath(), m.store.ComponentsPath(), m.store.AnalyticsPath()} {
		res, err := m.MigrateFile(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		results = append(results, res)
	}
	return results, problems
}

// MigrateFile upgrades one JSON document to the current schema version.
// The original is backed up first; the backup is removed only after the
// upgraded file is safely in place, and restored if the save fails.
func (m *Migrator) MigrateFile(path string) (FileResult, error) {
	res := FileResult{Path: path}

	var doc map[string]any
	if err := jsonstore.Load(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.Skipped = "file does not exist"
			return res, nil
		}
		return res, err
	}

	version, _ := doc["version"].(string)
	current := ParseVersion(version)
	target := ParseVersion(knowledge.CurrentVersion)
	res.From = current.String()

	if current.Compare(target) >= 0 {
		res.To = res.From
		res.Skipped = "already current"
		return res, nil
	}
	if current.Compare(MinSupportedVersion) < 0 {
		return res, fmt.Errorf("%w: have %s, need at least %s",
			errUnsupportedVersion, current, MinSupportedVersion)
	}

	backup := fmt.Sprintf("%s.backup.%s", path, time.Now().UTC().Format("20060102T150405"))
	original, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read for backup: %w", err)
	}
	if err := os.WriteFile(backup, original, 0o600); err != nil {
		return res, fmt.Errorf("write backup: %w", err)
	}

	for _, step := range chain {
		if current.Compare(step.from) >= 0 && current.Compare(step.below) < 0 {
			step.apply(doc)
			current = step.produces
		}
	}
	doc["version"] = knowledge.CurrentVersion
	doc["lastUpdated"] = time.Now().UTC().Format(time.RFC3339)

	if err := jsonstore.SaveAtomic(path, doc); err != nil {
		err = fmt.Errorf("save migrated file: %w", err)
		if restoreErr := os.WriteFile(path, original, 0o600); restoreErr != nil {
			m.logger.Error("restore from backup failed",
				zap.String("path", path), zap.String("backup", backup), zap.Error(restoreErr))
			err = multierr.Append(err, fmt.Errorf("restore from backup: %w", restoreErr))
		}
		return res, err
	}

	if err := os.Remove(backup); err != nil {
		m.logger.Warn("could not remove migration backup", zap.String("backup", backup), zap.Error(err))
	}

	res.To = knowledge.CurrentVersion
	res.Migrated = true
	m.logger.Info("migrated schema", zap.String("path", path), zap.String("from", res.From), zap.String("to", res.To))
	return res, nil
}
