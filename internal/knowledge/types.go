// Package knowledge persists the lessons-learned domain schema: lessons,
// extracted reusable components, derived analytics, and an append-only
// history log, all stored as independently-atomic JSON files under a single
// root directory.
package knowledge

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/confidence"
)

// CurrentVersion is the schema version written to every store file.
const CurrentVersion = "1.0.0"

// Common errors for knowledge store operations.
var (
	ErrLessonNotFound    = errors.New("lesson not found")
	ErrComponentNotFound = errors.New("component not found")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrEmptyTitle        = errors.New("title cannot be empty")
)

// Scope constants. A scope is either one of these or "framework:<name>".
const (
	ScopeUniversal   = "universal"
	ScopeAppSpecific = "app-specific"
	frameworkPrefix  = "framework:"
)

// IsFrameworkScope reports whether scope names a specific test framework.
func IsFrameworkScope(scope string) bool {
	return len(scope) > len(frameworkPrefix) && scope[:len(frameworkPrefix)] == frameworkPrefix
}

// LessonCategories are all categories legal for lessons, including quirk.
var LessonCategories = append(append([]classify.Category{}, classify.Priority...), classify.CategoryQuirk)

// ComponentCategories are the categories legal for extracted components.
// Quirk is excluded: a quirk describes app behavior, not reusable code.
var ComponentCategories = classify.Priority

// IsLessonCategory reports whether c is legal for a lesson.
func IsLessonCategory(c classify.Category) bool {
	for _, v := range LessonCategories {
		if v == c {
			return true
		}
	}
	return false
}

// IsComponentCategory reports whether c is legal for a component.
func IsComponentCategory(c classify.Category) bool {
	for _, v := range ComponentCategories {
		if v == c {
			return true
		}
	}
	return false
}

// LessonMetrics tracks how a lesson has performed over time.
type LessonMetrics struct {
	Occurrences       int                       `json:"occurrences"`
	SuccessRate       float64                   `json:"successRate"`
	Confidence        float64                   `json:"confidence"`
	FirstSeen         time.Time                 `json:"firstSeen"`
	LastSuccess       *time.Time                `json:"lastSuccess,omitempty"`
	LastApplied       *time.Time                `json:"lastApplied,omitempty"`
	ConfidenceHistory []confidence.HistoryPoint `json:"confidenceHistory,omitempty"`
}

// Validation records human review of a lesson.
type Validation struct {
	HumanReviewed bool       `json:"humanReviewed"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy    string     `json:"reviewedBy,omitempty"`
}

// Lesson is a captured fix or pattern learned during test authoring.
//
// Lessons are created on first observation, mutated on each application, and
// archived (never hard-deleted) when they go stale.
type Lesson struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Pattern  string            `json:"pattern"`
	Trigger  string            `json:"trigger"`
	Category classify.Category `json:"category"`
	Scope    string            `json:"scope"`

	// JourneyIDs are the scenario identifiers this lesson applies to.
	JourneyIDs []string `json:"journeyIds,omitempty"`

	Metrics    LessonMetrics `json:"metrics"`
	Validation Validation    `json:"validation"`
	Tags       []string      `json:"tags,omitempty"`
	Archived   bool          `json:"archived"`
}

// Validate checks the lesson's invariants.
func (l *Lesson) Validate() error {
	if l.Title == "" {
		return ErrEmptyTitle
	}
	if !IsLessonCategory(l.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// ExtractionSource identifies how a component came to be extracted.
type ExtractionSource string

const (
	// ExtractedByDuplicateDetection marks components promoted after repeated
	// occurrences crossed the extraction threshold.
	ExtractedByDuplicateDetection ExtractionSource = "duplicate-detection"

	// ExtractedByPrediction marks components extracted on first sight
	// because they matched a well-known reusable UI pattern.
	ExtractedByPrediction ExtractionSource = "predictive"
)

// ComponentMetrics tracks usage of an extracted component.
type ComponentMetrics struct {
	TotalUses   int        `json:"totalUses"`
	SuccessRate float64    `json:"successRate"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
}

// ComponentSource records where a component's code came from.
type ComponentSource struct {
	OriginalCode  string           `json:"originalCode"`
	ExtractedFrom string           `json:"extractedFrom"`
	ExtractedBy   ExtractionSource `json:"extractedBy"`
	ExtractedAt   time.Time        `json:"extractedAt"`
}

// Component is an extracted, named, reusable code unit.
type Component struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    classify.Category `json:"category"`
	Scope       string            `json:"scope"`
	FilePath    string            `json:"filePath,omitempty"`
	Metrics     ComponentMetrics  `json:"metrics"`
	Source      ComponentSource   `json:"source"`
	Archived    bool              `json:"archived"`
}

// Validate checks the component's invariants. Quirk is never a legal
// component category.
func (c *Component) Validate() error {
	if c.Name == "" {
		return ErrEmptyTitle
	}
	if !IsComponentCategory(c.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// LessonsFile is the persisted lessons schema.
type LessonsFile struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	Lessons     []Lesson  `json:"lessons"`
	Archived    []Lesson  `json:"archived"`
	GlobalRules []string  `json:"globalRules"`
	AppQuirks   []string  `json:"appQuirks"`
}

// NewLessonsFile returns an empty-but-well-formed lessons file, usable
// before first write.
func NewLessonsFile() *LessonsFile {
	return &LessonsFile{
		Version:     CurrentVersion,
		Lessons:     []Lesson{},
		Archived:    []Lesson{},
		GlobalRules: []string{},
		AppQuirks:   []string{},
	}
}

// ComponentIndexes are derived lookup tables rebuilt on every write.
type ComponentIndexes struct {
	ByCategory map[string][]string `json:"byCategory"`
	ByScope    map[string][]string `json:"byScope"`
}

// ComponentsFile is the persisted components schema.
type ComponentsFile struct {
	Version     string           `json:"version"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Components  []Component      `json:"components"`
	Indexes     ComponentIndexes `json:"indexes"`
}

// NewComponentsFile returns an empty-but-well-formed components file.
func NewComponentsFile() *ComponentsFile {
	f := &ComponentsFile{
		Version:    CurrentVersion,
		Components: []Component{},
	}
	f.RebuildIndexes()
	return f
}

// RebuildIndexes recomputes the category and scope indexes from the
// component list. Archived components are excluded.
func (f *ComponentsFile) RebuildIndexes() {
	f.Indexes = ComponentIndexes{
		ByCategory: make(map[string][]string),
		ByScope:    make(map[string][]string),
	}
	for _, c := range f.Components {
		if c.Archived {
			continue
		}
		f.Indexes.ByCategory[string(c.Category)] = append(f.Indexes.ByCategory[string(c.Category)], c.ID)
		f.Indexes.ByScope[c.Scope] = append(f.Indexes.ByScope[c.Scope], c.ID)
	}
}

// EventType enumerates history log events.
type EventType string

const (
	EventLessonApplied      EventType = "lesson_applied"
	EventComponentExtracted EventType = "component_extracted"
	EventComponentUsed      EventType = "component_used"
	EventOverride           EventType = "override"
	EventExtractionDeferred EventType = "extraction_deferred"
)

// HistoryEvent is one line in the append-only daily JSONL history log.
type HistoryEvent struct {
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	LessonID    string         `json:"lessonId,omitempty"`
	ComponentID string         `json:"componentId,omitempty"`
	JourneyID   string         `json:"journeyId,omitempty"`
	Success     *bool          `json:"success,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}
