// Package relevance ranks stored lessons and components against a target
// journey and assembles the context bundle injected into generation prompts.
//
// Scoring is a pure, stateless pass over a knowledge snapshot: nothing here
// writes state, and scores for lessons and components are not comparable to
// each other beyond their use as a sort key.
package relevance

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/codenorm"
	"github.com/fyrsmithlabs/llkb/internal/jsonstore"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

const (
	// MinScore is the relevance floor: anything at or below it is dropped.
	MinScore = 0.2

	defaultMaxLessons    = 10
	defaultMaxComponents = 10
	defaultMaxQuirks     = 5
	defaultMaxPatterns   = 5
	topCategoryCount     = 3
)

// Journey describes the test scenario context is being retrieved for.
type Journey struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Scope      string              `json:"scope"`
	Routes     []string            `json:"routes,omitempty"`
	Keywords   []string            `json:"keywords,omitempty"`
	Categories []classify.Category `json:"categories,omitempty"`
}

// Options tune selection behavior.
type Options struct {
	// PrioritizeByConfidence sorts by the trust metric first and relevance
	// second, instead of relevance alone.
	PrioritizeByConfidence bool
	MaxLessons             int
	MaxComponents          int
}

func (o Options) withDefaults() Options {
	if o.MaxLessons <= 0 {
		o.MaxLessons = defaultMaxLessons
	}
	if o.MaxComponents <= 0 {
		o.MaxComponents = defaultMaxComponents
	}
	return o
}

// ScoredLesson is a lesson with its relevance score for one journey.
type ScoredLesson struct {
	Lesson knowledge.Lesson `json:"lesson"`
	Score  float64          `json:"score"`
}

// ScoredComponent is a component with its relevance score for one journey.
type ScoredComponent struct {
	Component knowledge.Component `json:"component"`
	Score     float64             `json:"score"`
}

// Pattern is one entry of an auxiliary hint file (patterns/*.json).
type Pattern struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// PatternsFile is the on-disk shape of an auxiliary hint file.
type PatternsFile struct {
	Version  string    `json:"version,omitempty"`
	Patterns []Pattern `json:"patterns"`
}

// Summary aggregates what was selected.
type Summary struct {
	LessonCount    int      `json:"lessonCount"`
	ComponentCount int      `json:"componentCount"`
	QuirkCount     int      `json:"quirkCount"`
	TopCategories  []string `json:"topCategories"`
}

// Context is the bundle handed to prompt assembly.
type Context struct {
	Journey           Journey            `json:"journey"`
	Lessons           []ScoredLesson     `json:"lessons"`
	Components        []ScoredComponent  `json:"components"`
	Quirks            []knowledge.Lesson `json:"quirks"`
	SelectorPatterns  []Pattern          `json:"selectorPatterns,omitempty"`
	TimingPatterns    []Pattern          `json:"timingPatterns,omitempty"`
	AssertionPatterns []Pattern          `json:"assertionPatterns,omitempty"`
	AuthPatterns      []Pattern          `json:"authPatterns,omitempty"`
	DataPatterns      []Pattern          `json:"dataPatterns,omitempty"`
	Summary           Summary            `json:"summary"`
}

// DeriveKeywords expands a journey into its matching vocabulary: explicit
// keywords, title words longer than 3 characters, the scope string, and path
// segments of any declared routes. Lowercased and deduplicated, order
// preserved.
func DeriveKeywords(j Journey) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	for _, k := range j.Keywords {
		add(k)
	}
	for _, w := range strings.Fields(j.Title) {
		if len(w) > 3 {
			add(strings.Trim(w, ".,:;!?\"'"))
		}
	}
	add(j.Scope)
	for _, route := range j.Routes {
		for _, seg := range strings.Split(route, "/") {
			seg = strings.TrimPrefix(seg, ":")
			if len(seg) > 1 {
				add(seg)
			}
		}
	}
	return out
}

// ScoreLesson computes the journey relevance of one lesson. Additive factors,
// capped at 1; no single factor reaches the cap alone.
func ScoreLesson(l knowledge.Lesson, j Journey, keywords []string, now time.Time) float64 {
	score := 0.3 * l.Metrics.Confidence

	score += scopeBonus(l.Scope, j.Scope)
	score += tagOverlapBonus(l.Tags, keywords)

	if containsString(l.JourneyIDs, j.ID) {
		score += 0.25
	} else if journeyOverlapsScope(l.JourneyIDs, j.Scope) {
		score += 0.15
	}

	if containsCategory(j.Categories, l.Category) {
		score += 0.15
	}

	score += triggerOverlapBonus(l.Trigger, keywords)
	score += recencyBonus(l.Metrics.LastSuccess, now)

	if l.Metrics.SuccessRate >= 0.9 {
		score += 0.1
	}
	return capScore(score)
}

// ScoreComponent mirrors lesson scoring with component signals: success rate
// stands in for confidence, and use counts stand in for occurrences.
func ScoreComponent(c knowledge.Component, j Journey, keywords []string, now time.Time) float64 {
	score := 0.3 * c.Metrics.SuccessRate

	score += scopeBonus(c.Scope, j.Scope)
	score += textOverlapBonus(c.Name+" "+c.Description, keywords)

	if c.Source.ExtractedFrom != "" && c.Source.ExtractedFrom == j.ID {
		score += 0.25
	}

	if containsCategory(j.Categories, c.Category) {
		score += 0.15
	}

	switch {
	case c.Metrics.TotalUses > 10:
		score += 0.15
	case c.Metrics.TotalUses > 3:
		score += 0.10
	}

	score += recencyBonus(c.Metrics.LastUsed, now)

	if c.Metrics.SuccessRate >= 0.9 {
		score += 0.1
	}
	return capScore(score)
}

func scopeBonus(entryScope, journeyScope string) float64 {
	switch {
	case entryScope == knowledge.ScopeUniversal:
		return 0.2
	case knowledge.IsFrameworkScope(entryScope):
		if entryScope == journeyScope {
			return 0.25
		}
		return 0
	case entryScope == knowledge.ScopeAppSpecific:
		return 0.15
	}
	return 0
}

func tagOverlapBonus(tags, keywords []string) float64 {
	bonus := 0.0
	for _, tag := range tags {
		if containsString(keywords, strings.ToLower(tag)) {
			bonus += 0.1
		}
	}
	if bonus > 0.3 {
		bonus = 0.3
	}
	return bonus
}

func textOverlapBonus(text string, keywords []string) float64 {
	lower := strings.ToLower(text)
	bonus := 0.0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			bonus += 0.1
		}
	}
	if bonus > 0.3 {
		bonus = 0.3
	}
	return bonus
}

func triggerOverlapBonus(trigger string, keywords []string) float64 {
	if trigger == "" {
		return 0
	}
	tokens := codenorm.Tokenize(strings.ToLower(trigger))
	bonus := 0.0
	for _, k := range keywords {
		if _, ok := tokens[k]; ok {
			bonus += 0.05
		}
	}
	if bonus > 0.15 {
		bonus = 0.15
	}
	return bonus
}

func recencyBonus(last *time.Time, now time.Time) float64 {
	if last == nil {
		return 0
	}
	age := now.Sub(*last)
	switch {
	case age <= 7*24*time.Hour:
		return 0.1
	case age <= 30*24*time.Hour:
		return 0.05
	}
	return 0
}

func journeyOverlapsScope(journeyIDs []string, scope string) bool {
	scope = strings.ToLower(scope)
	if scope == "" {
		return false
	}
	for _, id := range journeyIDs {
		id = strings.ToLower(id)
		if strings.Contains(scope, id) || strings.Contains(id, scope) {
			return true
		}
	}
	return false
}

func capScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	return s
}

// Engine retrieves ranked context from a knowledge store.
type Engine struct {
	store  *knowledge.Store
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine builds a relevance engine over the given store.
func NewEngine(store *knowledge.Store, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, opts: opts.withDefaults(), logger: logger, now: time.Now}
}

// GetRelevantContext scores the full knowledge snapshot against the journey
// and returns the selected bundle.
func (e *Engine) GetRelevantContext(j Journey) (*Context, error) {
	lessonsFile, err := e.store.LoadLessons()
	if err != nil {
		return nil, err
	}
	componentsFile, err := e.store.LoadComponents()
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	keywords := DeriveKeywords(j)

	ctx := &Context{Journey: j}
	ctx.Lessons = e.rankLessons(lessonsFile.Lessons, j, keywords, now)
	ctx.Components = e.rankComponents(componentsFile.Components, j, keywords, now)
	ctx.Quirks = matchQuirks(lessonsFile, j, keywords)
	ctx.SelectorPatterns = e.loadPatterns("selectors.json", keywords)
	ctx.TimingPatterns = e.loadPatterns("timing.json", keywords)
	ctx.AssertionPatterns = e.loadPatterns("assertions.json", keywords)
	ctx.AuthPatterns = e.loadPatterns("auth.json", keywords)
	ctx.DataPatterns = e.loadPatterns("data.json", keywords)
	ctx.Summary = summarize(ctx)

	e.logger.Debug("context selected",
		zap.String("journey", j.ID),
		zap.Int("lessons", len(ctx.Lessons)),
		zap.Int("components", len(ctx.Components)),
		zap.Int("quirks", len(ctx.Quirks)))
	return ctx, nil
}

func (e *Engine) rankLessons(lessons []knowledge.Lesson, j Journey, keywords []string, now time.Time) []ScoredLesson {
	var scored []ScoredLesson
	for _, l := range lessons {
		if l.Archived {
			continue
		}
		if s := ScoreLesson(l, j, keywords, now); s > MinScore {
			scored = append(scored, ScoredLesson{Lesson: l, Score: s})
		}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		if e.opts.PrioritizeByConfidence && scored[a].Lesson.Metrics.Confidence != scored[b].Lesson.Metrics.Confidence {
			return scored[a].Lesson.Metrics.Confidence > scored[b].Lesson.Metrics.Confidence
		}
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > e.opts.MaxLessons {
		scored = scored[:e.opts.MaxLessons]
	}
	return scored
}

func (e *Engine) rankComponents(components []knowledge.Component, j Journey, keywords []string, now time.Time) []ScoredComponent {
	var scored []ScoredComponent
	for _, c := range components {
		if c.Archived {
			continue
		}
		if s := ScoreComponent(c, j, keywords, now); s > MinScore {
			scored = append(scored, ScoredComponent{Component: c, Score: s})
		}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		if e.opts.PrioritizeByConfidence && scored[a].Component.Metrics.SuccessRate != scored[b].Component.Metrics.SuccessRate {
			return scored[a].Component.Metrics.SuccessRate > scored[b].Component.Metrics.SuccessRate
		}
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > e.opts.MaxComponents {
		scored = scored[:e.opts.MaxComponents]
	}
	return scored
}

// matchQuirks pulls quirk-category lessons whose text touches the journey's
// scope, keywords, or routes.
func matchQuirks(file *knowledge.LessonsFile, j Journey, keywords []string) []knowledge.Lesson {
	var quirks []knowledge.Lesson
	for _, l := range file.Lessons {
		if l.Archived || l.Category != classify.CategoryQuirk {
			continue
		}
		if !quirkMatches(l, j, keywords) {
			continue
		}
		quirks = append(quirks, l)
		if len(quirks) == defaultMaxQuirks {
			break
		}
	}
	return quirks
}

func quirkMatches(l knowledge.Lesson, j Journey, keywords []string) bool {
	if l.Scope == j.Scope || l.Scope == knowledge.ScopeUniversal {
		return true
	}
	text := strings.ToLower(l.Title + " " + l.Pattern + " " + l.Trigger + " " + strings.Join(l.Tags, " "))
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	for _, route := range j.Routes {
		if route != "" && strings.Contains(text, strings.ToLower(route)) {
			return true
		}
	}
	return false
}

// loadPatterns reads one auxiliary hint file. Absence yields an empty list;
// a file that exists but fails to parse is logged and skipped.
func (e *Engine) loadPatterns(name string, keywords []string) []Pattern {
	var file PatternsFile
	path := filepath.Join(e.store.PatternsDir(), name)
	if err := jsonstore.Load(path, &file); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("skipping unreadable pattern file", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var matched []Pattern
	for _, p := range file.Patterns {
		if patternMatches(p, keywords) {
			matched = append(matched, p)
			if len(matched) == defaultMaxPatterns {
				break
			}
		}
	}
	return matched
}

func patternMatches(p Pattern, keywords []string) bool {
	text := strings.ToLower(p.Name + " " + p.Value + " " + p.Description)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func summarize(ctx *Context) Summary {
	counts := map[string]int{}
	for _, l := range ctx.Lessons {
		counts[string(l.Lesson.Category)]++
	}
	for _, c := range ctx.Components {
		counts[string(c.Component.Category)]++
	}

	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(a, b int) bool {
		if counts[categories[a]] != counts[categories[b]] {
			return counts[categories[a]] > counts[categories[b]]
		}
		return categories[a] < categories[b]
	})
	if len(categories) > topCategoryCount {
		categories = categories[:topCategoryCount]
	}

	return Summary{
		LessonCount:    len(ctx.Lessons),
		ComponentCount: len(ctx.Components),
		QuirkCount:     len(ctx.Quirks),
		TopCategories:  categories,
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func containsCategory(categories []classify.Category, c classify.Category) bool {
	for _, cat := range categories {
		if cat == c {
			return true
		}
	}
	return false
}
