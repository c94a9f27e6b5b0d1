// Package similarity scores how alike two code snippets are.
//
// The score blends token-set Jaccard overlap (80%) with line-count closeness
// (20%) over normalized snippet forms. Identical normalized forms score
// exactly 1. Scores are symmetric and always within [0, 1].
package similarity

import (
	"math"
	"sort"

	"github.com/fyrsmithlabs/llkb/internal/codenorm"
)

// DefaultNearDuplicateThreshold is the score at or above which two snippets
// are treated as near-duplicates.
const DefaultNearDuplicateThreshold = 0.8

const (
	tokenWeight = 0.8
	lineWeight  = 0.2
)

// Score computes a similarity score in [0, 1] between two snippets, rounded
// to two decimal places. Returns exactly 1 when the normalized forms are
// string-identical.
func Score(a, b string) float64 {
	na := codenorm.Normalize(a)
	nb := codenorm.Normalize(b)
	if na == nb {
		return 1
	}

	jaccard := jaccardIndex(codenorm.Tokenize(na), codenorm.Tokenize(nb))
	lines := lineCloseness(codenorm.CountLines(a), codenorm.CountLines(b))

	return round2(tokenWeight*jaccard + lineWeight*lines)
}

// IsNearDuplicate reports whether Score(a, b) meets the threshold.
func IsNearDuplicate(a, b string, threshold float64) bool {
	return Score(a, b) >= threshold
}

// Match pairs a candidate index with its similarity score against a target.
type Match struct {
	Index int
	Score float64
}

// TopMatches scores target against every candidate and returns all matches at
// or above threshold, sorted descending by score. Ties keep candidate order.
func TopMatches(target string, candidates []string, threshold float64) []Match {
	var matches []Match
	for i, c := range candidates {
		if s := Score(target, c); s >= threshold {
			matches = append(matches, Match{Index: i, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// jaccardIndex is |intersection| / |union| over token sets. Both sets empty
// yields 1; exactly one empty yields 0.
func jaccardIndex(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// lineCloseness is 1 - |la-lb| / max(la, lb), and 1 when both counts are 0.
func lineCloseness(la, lb int) float64 {
	if la == 0 && lb == 0 {
		return 1
	}
	maxLines := la
	if lb > maxLines {
		maxLines = lb
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(maxLines)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
