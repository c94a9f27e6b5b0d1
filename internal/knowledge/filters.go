package knowledge

import (
	"github.com/fyrsmithlabs/llkb/internal/classify"
)

// LessonFilter selects a subset of lessons. Zero-valued fields match
// everything, so filters compose.
type LessonFilter struct {
	Categories      []classify.Category
	Scopes          []string
	MinConfidence   float64
	MinSuccessRate  float64
	Tags            []string
	IncludeArchived bool
}

// ComponentFilter selects a subset of components.
type ComponentFilter struct {
	Categories      []classify.Category
	Scopes          []string
	MinSuccessRate  float64
	IncludeArchived bool
}

// FilterLessons returns the lessons in file matching f. Archived lessons are
// included only when IncludeArchived is set.
func FilterLessons(file *LessonsFile, f LessonFilter) []Lesson {
	candidates := file.Lessons
	if f.IncludeArchived {
		candidates = append(append([]Lesson{}, file.Lessons...), file.Archived...)
	}

	var out []Lesson
	for _, l := range candidates {
		if l.Archived && !f.IncludeArchived {
			continue
		}
		if len(f.Categories) > 0 && !containsCategory(f.Categories, l.Category) {
			continue
		}
		if len(f.Scopes) > 0 && !contains(f.Scopes, l.Scope) {
			continue
		}
		if l.Metrics.Confidence < f.MinConfidence {
			continue
		}
		if l.Metrics.SuccessRate < f.MinSuccessRate {
			continue
		}
		if len(f.Tags) > 0 && !intersects(l.Tags, f.Tags) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// FilterComponents returns the components in file matching f.
func FilterComponents(file *ComponentsFile, f ComponentFilter) []Component {
	var out []Component
	for _, c := range file.Components {
		if c.Archived && !f.IncludeArchived {
			continue
		}
		if len(f.Categories) > 0 && !containsCategory(f.Categories, c.Category) {
			continue
		}
		if len(f.Scopes) > 0 && !contains(f.Scopes, c.Scope) {
			continue
		}
		if c.Metrics.SuccessRate < f.MinSuccessRate {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FilterLessons loads the lessons file and applies f.
func (s *Store) FilterLessons(f LessonFilter) ([]Lesson, error) {
	file, err := s.LoadLessons()
	if err != nil {
		return nil, err
	}
	return FilterLessons(file, f), nil
}

// FilterComponents loads the components file and applies f.
func (s *Store) FilterComponents(f ComponentFilter) ([]Component, error) {
	file, err := s.LoadComponents()
	if err != nil {
		return nil, err
	}
	return FilterComponents(file, f), nil
}

func containsCategory(list []classify.Category, c classify.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
