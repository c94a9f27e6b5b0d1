package dupdetect

import (
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llkb/internal/codenorm"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
	"github.com/fyrsmithlabs/llkb/internal/similarity"
)

const (
	// DefaultMinLines is the minimum count of real code lines for a step to
	// participate in duplicate grouping.
	DefaultMinLines = 2
	// DefaultMinOccurrences is how many members a group needs to count as a
	// duplicate pattern.
	DefaultMinOccurrences = 2
	// DefaultComponentMatchThreshold is deliberately looser than the grouping
	// threshold so existing components catch near-miss rewrites.
	DefaultComponentMatchThreshold = 0.7

	maxGroupSamples = 3
)

// Options tune a detection run. Zero values fall back to package defaults.
type Options struct {
	MinLines            int
	MinOccurrences      int
	SimilarityThreshold float64
	ExcludeDirs         []string
}

func (o Options) withDefaults() Options {
	if o.MinLines <= 0 {
		o.MinLines = DefaultMinLines
	}
	if o.MinOccurrences <= 0 {
		o.MinOccurrences = DefaultMinOccurrences
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = similarity.DefaultNearDuplicateThreshold
	}
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = DefaultExcludeDirs
	}
	return o
}

// DuplicateGroup is a cluster of steps judged near-duplicates of each other.
type DuplicateGroup struct {
	Hash               string     `json:"hash"`
	Normalized         string     `json:"normalized"`
	Steps              []TestStep `json:"steps"`
	UniqueJourneys     int        `json:"uniqueJourneys"`
	InternalSimilarity float64    `json:"internalSimilarity"`
	Samples            []string   `json:"samples"`
}

// Report is the outcome of one detection run. It is recomputed per run and
// never persisted as knowledge state.
type Report struct {
	FilesScanned      int              `json:"filesScanned"`
	StepsExtracted    int              `json:"stepsExtracted"`
	DuplicatePatterns int              `json:"duplicatePatterns"`
	Groups            []DuplicateGroup `json:"groups"`
}

// ComponentMatch pairs a scanned step with an existing component it already
// resembles.
type ComponentMatch struct {
	Step          TestStep `json:"step"`
	ComponentID   string   `json:"componentId"`
	ComponentName string   `json:"componentName"`
	Score         float64  `json:"score"`
}

// groupStrategy assigns a normalized snippet to one of the open groups,
// returning the group index or -1 to open a new group. Kept as a seam so the
// linkage rule can be swapped without touching the detection loop.
type groupStrategy func(normalized string, groups []DuplicateGroup, threshold float64) int

// firstMemberLinkage compares the candidate against each group's founding
// member only. Greedy and order-dependent, but cheap and stable: a group never
// drifts away from its anchor as members accumulate.
func firstMemberLinkage(normalized string, groups []DuplicateGroup, threshold float64) int {
	for i := range groups {
		if normalized == groups[i].Normalized {
			return i
		}
		if similarity.Score(normalized, groups[i].Normalized) >= threshold {
			return i
		}
	}
	return -1
}

// Detector runs duplicate detection over a scanned corpus.
type Detector struct {
	opts   Options
	group  groupStrategy
	logger *zap.Logger
}

// NewDetector builds a detector with the given options.
func NewDetector(opts Options, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{opts: opts.withDefaults(), group: firstMemberLinkage, logger: logger}
}

// DetectInDir scans root for test files and reports duplicate step patterns.
// The scanned steps are returned alongside the report so callers can run
// further passes over them, like MatchComponents.
func (d *Detector) DetectInDir(root string) (*Report, []TestStep, error) {
	steps, files, err := ScanDir(root, d.opts.ExcludeDirs)
	if err != nil {
		return nil, nil, err
	}
	report := d.Detect(steps)
	report.FilesScanned = files
	d.logger.Info("duplicate detection complete",
		zap.Int("files", report.FilesScanned),
		zap.Int("steps", report.StepsExtracted),
		zap.Int("patterns", report.DuplicatePatterns))
	return report, steps, nil
}

// Detect groups the given steps into duplicate patterns.
func (d *Detector) Detect(steps []TestStep) *Report {
	report := &Report{StepsExtracted: len(steps)}

	var groups []DuplicateGroup
	for _, step := range steps {
		if CountCodeLines(step.Code) < d.opts.MinLines {
			continue
		}
		normalized := codenorm.Normalize(StripComments(step.Code))
		if normalized == "" {
			continue
		}
		idx := d.group(normalized, groups, d.opts.SimilarityThreshold)
		if idx < 0 {
			groups = append(groups, DuplicateGroup{
				Hash:       codenorm.HashCode(normalized),
				Normalized: normalized,
			})
			idx = len(groups) - 1
		}
		groups[idx].Steps = append(groups[idx].Steps, step)
	}

	for _, g := range groups {
		if len(g.Steps) < d.opts.MinOccurrences {
			continue
		}
		g.UniqueJourneys = countJourneys(g.Steps)
		g.InternalSimilarity = meanPairwiseSimilarity(g.Steps)
		for _, s := range g.Steps {
			if len(g.Samples) == maxGroupSamples {
				break
			}
			g.Samples = append(g.Samples, s.Code)
		}
		report.Groups = append(report.Groups, g)
	}

	// Most widespread patterns first.
	sort.SliceStable(report.Groups, func(i, j int) bool {
		if report.Groups[i].UniqueJourneys != report.Groups[j].UniqueJourneys {
			return report.Groups[i].UniqueJourneys > report.Groups[j].UniqueJourneys
		}
		return len(report.Groups[i].Steps) > len(report.Groups[j].Steps)
	})
	report.DuplicatePatterns = len(report.Groups)
	return report
}

// MatchComponents finds steps that already resemble an extracted component,
// so a scan can recommend reuse instead of re-extraction. Archived components
// are skipped.
func (d *Detector) MatchComponents(steps []TestStep, components []knowledge.Component) []ComponentMatch {
	var matches []ComponentMatch
	for _, step := range steps {
		best := ComponentMatch{Score: -1}
		for _, c := range components {
			if c.Archived || c.Source.OriginalCode == "" {
				continue
			}
			score := similarity.Score(step.Code, c.Source.OriginalCode)
			if score >= DefaultComponentMatchThreshold && score > best.Score {
				best = ComponentMatch{Step: step, ComponentID: c.ID, ComponentName: c.Name, Score: score}
			}
		}
		if best.Score >= 0 {
			matches = append(matches, best)
		}
	}
	return matches
}

func countJourneys(steps []TestStep) int {
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		seen[s.JourneyID] = struct{}{}
	}
	return len(seen)
}

func meanPairwiseSimilarity(steps []TestStep) float64 {
	if len(steps) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(steps); i++ {
		for j := i + 1; j < len(steps); j++ {
			sum += similarity.Score(steps[i].Code, steps[j].Code)
			pairs++
		}
	}
	return sum / float64(pairs)
}
