// Package extraction decides whether a duplicated code pattern should become
// a reusable component, and ranks scan results into actionable buckets.
package extraction

import (
	"fmt"
	"math"
	"regexp"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/dupdetect"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
	"github.com/fyrsmithlabs/llkb/internal/similarity"
)

const (
	// DefaultMinOccurrences is how many times a pattern must repeat before
	// duplication alone justifies extraction.
	DefaultMinOccurrences = 2
	// DefaultMinLines is the minimum real-code line count worth extracting.
	DefaultMinLines = 3

	maxDuplicationConfidence = 0.95
	predictiveConfidence     = 0.6

	extractNowThreshold = 0.7
	considerThreshold   = 0.5
)

// Config tunes the decision engine. Zero values fall back to defaults;
// Predictive is an explicit opt-in.
type Config struct {
	MinOccurrences      int
	MinLines            int
	SimilarityThreshold float64
	Predictive          bool
}

func (c Config) withDefaults() Config {
	if c.MinOccurrences <= 0 {
		c.MinOccurrences = DefaultMinOccurrences
	}
	if c.MinLines <= 0 {
		c.MinLines = DefaultMinLines
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = similarity.DefaultNearDuplicateThreshold
	}
	return c
}

// Decision is the outcome for a single candidate snippet.
type Decision struct {
	ShouldExtract    bool                       `json:"shouldExtract"`
	Confidence       float64                    `json:"confidence"`
	Reason           string                     `json:"reason"`
	MatchedComponent string                     `json:"matchedComponent,omitempty"`
	Category         classify.Category          `json:"category,omitempty"`
	Source           knowledge.ExtractionSource `json:"source,omitempty"`
}

// Recommendation buckets a scan candidate by urgency.
type Recommendation string

const (
	RecommendExtractNow Recommendation = "EXTRACT_NOW"
	RecommendConsider   Recommendation = "CONSIDER"
	RecommendSkip       Recommendation = "SKIP"
)

// Candidate pairs a duplicate group with its decision and composite rank.
type Candidate struct {
	Group          dupdetect.DuplicateGroup `json:"group"`
	Decision       Decision                 `json:"decision"`
	Composite      float64                  `json:"composite"`
	Recommendation Recommendation           `json:"recommendation"`
}

// predictivePattern flags code shapes that tend to become components even
// before they repeat.
type predictivePattern struct {
	name     string
	re       *regexp.Regexp
	category classify.Category
}

var predictivePatterns = []predictivePattern{
	{"navigation", regexp.MustCompile(`(?i)\.goto\(|navigate|\.back\(\)|\.reload\(\)`), classify.CategoryNavigation},
	{"auth", regexp.MustCompile(`(?i)login|logout|sign[- ]?in|credentials|password`), classify.CategoryAuth},
	{"form-fill", regexp.MustCompile(`(?i)\.fill\(.*\)[\s\S]*\.fill\(`), classify.CategoryUIInteraction},
	{"modal", regexp.MustCompile(`(?i)modal|dialog|\[role=['"]dialog['"]\]`), classify.CategoryUIInteraction},
	{"toast", regexp.MustCompile(`(?i)toast|snackbar|notification`), classify.CategoryAssertion},
	{"loading", regexp.MustCompile(`(?i)spinner|loading|skeleton|waitForLoadState`), classify.CategoryTiming},
	{"select", regexp.MustCompile(`(?i)selectOption|dropdown|combobox`), classify.CategoryUIInteraction},
	{"tabs", regexp.MustCompile(`(?i)\[role=['"]tab['"]\]|switchTab|\.tab\b`), classify.CategoryUIInteraction},
	{"search", regexp.MustCompile(`(?i)search|\.press\(['"]Enter['"]\)`), classify.CategoryUIInteraction},
	{"table", regexp.MustCompile(`(?i)tbody|\brow\b|\bcell\b|getByRole\(['"]row['"]\)`), classify.CategoryAssertion},
}

// Engine applies extraction policy to candidates.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine builds a decision engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg.withDefaults(), logger: logger}
}

// Decide evaluates one snippet. occurrences and uniqueJourneys describe how
// often the pattern was seen across the corpus; components is the current
// extracted inventory, consulted so near-matches reuse instead of duplicate.
//
// Checks run in strict order: size gate, existing-component match,
// duplication, then predictive shape matching.
func (e *Engine) Decide(code string, occurrences, uniqueJourneys int, components []knowledge.Component) Decision {
	if dupdetect.CountCodeLines(code) < e.cfg.MinLines {
		return Decision{
			Confidence: 1,
			Reason:     fmt.Sprintf("below minimum of %d code lines", e.cfg.MinLines),
		}
	}

	if id, name, score := e.bestComponentMatch(code, components); id != "" {
		return Decision{
			Confidence:       1,
			Reason:           fmt.Sprintf("matches existing component %q (similarity %.2f)", name, score),
			MatchedComponent: id,
		}
	}

	if occurrences >= e.cfg.MinOccurrences {
		conf := math.Round((0.7+0.1*float64(uniqueJourneys))*100) / 100
		if conf > maxDuplicationConfidence {
			conf = maxDuplicationConfidence
		}
		return Decision{
			ShouldExtract: true,
			Confidence:    conf,
			Reason:        fmt.Sprintf("duplicated %d times across %d journeys", occurrences, uniqueJourneys),
			Category:      classify.Classify(code),
			Source:        knowledge.ExtractedByDuplicateDetection,
		}
	}

	if e.cfg.Predictive {
		for _, p := range predictivePatterns {
			if p.re.MatchString(code) {
				return Decision{
					ShouldExtract: true,
					Confidence:    predictiveConfidence,
					Reason:        fmt.Sprintf("matches %s pattern", p.name),
					Category:      p.category,
					Source:        knowledge.ExtractedByPrediction,
				}
			}
		}
	}
	// A true singleton is rejected more firmly than a pattern that repeats
	// but has not cleared the occurrence threshold yet.
	if occurrences <= 1 {
		return Decision{Confidence: 0.3, Reason: "no duplication or known pattern"}
	}
	return Decision{Confidence: 0.4, Reason: "occurrence count below threshold"}
}

func (e *Engine) bestComponentMatch(code string, components []knowledge.Component) (id, name string, score float64) {
	for _, c := range components {
		if c.Archived || c.Source.OriginalCode == "" {
			continue
		}
		s := similarity.Score(code, c.Source.OriginalCode)
		if s >= e.cfg.SimilarityThreshold && s > score {
			id, name, score = c.ID, c.Name, s
		}
	}
	return id, name, score
}

// EvaluateReport decides every duplicate group in a scan report and ranks the
// results. Composite score weighs spread over raw repetition: occurrences at
// 0.3, unique journeys at 0.4, decision confidence at 0.3.
func (e *Engine) EvaluateReport(report *dupdetect.Report, components []knowledge.Component) []Candidate {
	candidates := make([]Candidate, 0, len(report.Groups))
	for _, g := range report.Groups {
		code := g.Normalized
		if len(g.Samples) > 0 {
			code = g.Samples[0]
		}
		decision := e.Decide(code, len(g.Steps), g.UniqueJourneys, components)

		composite := float64(len(g.Steps))*0.3 + float64(g.UniqueJourneys)*0.4 + decision.Confidence*0.3

		rec := RecommendSkip
		switch {
		case decision.ShouldExtract && composite >= extractNowThreshold:
			rec = RecommendExtractNow
		case decision.ShouldExtract || composite >= considerThreshold:
			rec = RecommendConsider
		}
		candidates = append(candidates, Candidate{
			Group:          g,
			Decision:       decision,
			Composite:      composite,
			Recommendation: rec,
		})
	}
	e.logger.Debug("evaluated scan report", zap.Int("candidates", len(candidates)))
	return candidates
}
