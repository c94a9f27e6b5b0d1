package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llkb/internal/confidence"
	"github.com/fyrsmithlabs/llkb/internal/jsonstore"
)

// DefaultRoot is the default knowledge base directory.
const DefaultRoot = ".artk/llkb"

// Store is a handle to a knowledge base rooted at a single directory. All
// file paths derive from the root, so every caller in a process shares one
// consistent location instead of threading a default path through each call.
type Store struct {
	root   string
	logger *zap.Logger
}

// Open returns a store bound to root. An empty root uses DefaultRoot. A nil
// logger falls back to zap.NewNop.
func Open(root string, logger *zap.Logger) *Store {
	if root == "" {
		root = DefaultRoot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// File locations relative to the root.

func (s *Store) LessonsPath() string    { return filepath.Join(s.root, "lessons.json") }
func (s *Store) ComponentsPath() string { return filepath.Join(s.root, "components.json") }
func (s *Store) AnalyticsPath() string  { return filepath.Join(s.root, "analytics.json") }
func (s *Store) RegistryPath() string   { return filepath.Join(s.root, "modules.json") }
func (s *Store) ConfigPath() string     { return filepath.Join(s.root, "config.yml") }
func (s *Store) HistoryDir() string     { return filepath.Join(s.root, "history") }
func (s *Store) PatternsDir() string    { return filepath.Join(s.root, "patterns") }

// LoadLessons reads the lessons file. A missing file yields an empty
// well-formed structure; a corrupt file is a hard error.
func (s *Store) LoadLessons() (*LessonsFile, error) {
	var file LessonsFile
	if err := jsonstore.Load(s.LessonsPath(), &file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewLessonsFile(), nil
		}
		return nil, err
	}
	return &file, nil
}

// LoadComponents reads the components file, defaulting when missing.
func (s *Store) LoadComponents() (*ComponentsFile, error) {
	var file ComponentsFile
	if err := jsonstore.Load(s.ComponentsPath(), &file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewComponentsFile(), nil
		}
		return nil, err
	}
	return &file, nil
}

// UpdateLessons applies fn to the lessons file under the advisory lock. The
// version and lastUpdated stamps are maintained here so update functions
// only mutate domain content.
func (s *Store) UpdateLessons(fn func(*LessonsFile) error) error {
	return jsonstore.UpdateWithLock(s.LessonsPath(), func(cur LessonsFile) (LessonsFile, error) {
		if cur.Version == "" {
			cur = *NewLessonsFile()
		}
		if err := fn(&cur); err != nil {
			return cur, err
		}
		cur.Version = CurrentVersion
		cur.LastUpdated = time.Now().UTC()
		return cur, nil
	})
}

// UpdateComponents applies fn to the components file under the advisory
// lock, rebuilding indexes afterward.
func (s *Store) UpdateComponents(fn func(*ComponentsFile) error) error {
	return jsonstore.UpdateWithLock(s.ComponentsPath(), func(cur ComponentsFile) (ComponentsFile, error) {
		if cur.Version == "" {
			cur = *NewComponentsFile()
		}
		if err := fn(&cur); err != nil {
			return cur, err
		}
		cur.RebuildIndexes()
		cur.Version = CurrentVersion
		cur.LastUpdated = time.Now().UTC()
		return cur, nil
	})
}

// AddLesson stores a new lesson, assigning an ID and first-seen timestamp
// when absent.
func (s *Store) AddLesson(lesson Lesson) (string, error) {
	if err := lesson.Validate(); err != nil {
		return "", err
	}
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.Metrics.FirstSeen.IsZero() {
		lesson.Metrics.FirstSeen = time.Now().UTC()
	}

	err := s.UpdateLessons(func(f *LessonsFile) error {
		f.Lessons = append(f.Lessons, lesson)
		return nil
	})
	if err != nil {
		return "", err
	}
	return lesson.ID, nil
}

// RecordLessonApplication updates a lesson's metrics after it was applied to
// a journey: occurrence count, running success rate, recency stamps, and a
// recomputed confidence with history. Emits a lesson_applied history event.
func (s *Store) RecordLessonApplication(lessonID, journeyID string, success bool) error {
	now := time.Now().UTC()

	err := s.UpdateLessons(func(f *LessonsFile) error {
		for i := range f.Lessons {
			l := &f.Lessons[i]
			if l.ID != lessonID {
				continue
			}

			n := l.Metrics.Occurrences + 1
			applied := 0.0
			if success {
				applied = 1.0
			}
			l.Metrics.SuccessRate = (l.Metrics.SuccessRate*float64(n-1) + applied) / float64(n)
			l.Metrics.Occurrences = n
			l.Metrics.LastApplied = &now
			if success {
				ts := now
				l.Metrics.LastSuccess = &ts
			}

			l.Metrics.Confidence = confidence.Calculate(confidence.Inputs{
				Occurrences:   l.Metrics.Occurrences,
				SuccessRate:   l.Metrics.SuccessRate,
				FirstSeen:     l.Metrics.FirstSeen,
				LastSuccess:   l.Metrics.LastSuccess,
				HumanReviewed: l.Validation.HumanReviewed,
			}, now)
			l.Metrics.ConfidenceHistory = confidence.AppendHistory(
				l.Metrics.ConfidenceHistory,
				confidence.HistoryPoint{Date: now, Value: l.Metrics.Confidence},
				now,
			)

			if journeyID != "" && !contains(l.JourneyIDs, journeyID) {
				l.JourneyIDs = append(l.JourneyIDs, journeyID)
			}
			return nil
		}
		return fmt.Errorf("%w: %s", ErrLessonNotFound, lessonID)
	})
	if err != nil {
		return err
	}

	s.AppendEvent(HistoryEvent{
		Type:      EventLessonApplied,
		Timestamp: now,
		LessonID:  lessonID,
		JourneyID: journeyID,
		Success:   &success,
	})
	return nil
}

// AddComponent stores a newly extracted component and emits a
// component_extracted event.
func (s *Store) AddComponent(component Component) (string, error) {
	if err := component.Validate(); err != nil {
		return "", err
	}
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	if component.Source.ExtractedAt.IsZero() {
		component.Source.ExtractedAt = time.Now().UTC()
	}

	err := s.UpdateComponents(func(f *ComponentsFile) error {
		f.Components = append(f.Components, component)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.AppendEvent(HistoryEvent{
		Type:        EventComponentExtracted,
		Timestamp:   time.Now().UTC(),
		ComponentID: component.ID,
		JourneyID:   component.Source.ExtractedFrom,
	})
	return component.ID, nil
}

// RecordComponentUse updates a component's usage metrics and emits a
// component_used event.
func (s *Store) RecordComponentUse(componentID, journeyID string, success bool) error {
	now := time.Now().UTC()

	err := s.UpdateComponents(func(f *ComponentsFile) error {
		for i := range f.Components {
			c := &f.Components[i]
			if c.ID != componentID {
				continue
			}
			n := c.Metrics.TotalUses + 1
			used := 0.0
			if success {
				used = 1.0
			}
			c.Metrics.SuccessRate = (c.Metrics.SuccessRate*float64(n-1) + used) / float64(n)
			c.Metrics.TotalUses = n
			ts := now
			c.Metrics.LastUsed = &ts
			return nil
		}
		return fmt.Errorf("%w: %s", ErrComponentNotFound, componentID)
	})
	if err != nil {
		return err
	}

	s.AppendEvent(HistoryEvent{
		Type:        EventComponentUsed,
		Timestamp:   now,
		ComponentID: componentID,
		JourneyID:   journeyID,
		Success:     &success,
	})
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
