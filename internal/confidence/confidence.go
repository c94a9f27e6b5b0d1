// Package confidence computes and tracks the trust score of a lesson.
//
// Confidence blends four factors: how often the lesson has been applied, how
// recently it last succeeded, its observed success rate, and whether a human
// has reviewed it. History is retained so that a decline in trust can be
// detected before a lesson goes stale.
package confidence

import (
	"math"
	"time"
)

// History retention limits. Both apply; the oldest entries are trimmed first.
const (
	MaxHistoryEntries = 100
	HistoryRetention  = 90 * 24 * time.Hour
)

// HistoryPoint is one dated confidence observation.
type HistoryPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Inputs are the lesson attributes the confidence formula consumes.
type Inputs struct {
	Occurrences   int
	SuccessRate   float64
	FirstSeen     time.Time
	LastSuccess   *time.Time
	HumanReviewed bool
}

// Calculate returns the lesson's confidence in [0, 1], rounded to two
// decimals.
//
// base scales with occurrences up to 10. Recency decays slowly (down to 0.7
// over 90 days) once the lesson has succeeded at least once; a lesson that
// has never succeeded decays faster (down to 0.5 over 30 days since first
// seen). Success rate contributes as a square root so early failures do not
// crater the score, and human review applies a 1.2x boost.
func Calculate(in Inputs, now time.Time) float64 {
	base := math.Min(float64(in.Occurrences)/10, 1)

	var recency float64
	if in.LastSuccess != nil {
		days := now.Sub(*in.LastSuccess).Hours() / 24
		recency = math.Max(1-days/90*0.3, 0.7)
	} else {
		days := now.Sub(in.FirstSeen).Hours() / 24
		recency = math.Max(1-days/30*0.5, 0.5)
	}

	successFactor := math.Sqrt(in.SuccessRate)

	boost := 1.0
	if in.HumanReviewed {
		boost = 1.2
	}

	score := base * recency * successFactor * boost
	return round2(clamp01(score))
}

// AppendHistory adds point to history and enforces both retention limits:
// entries older than 90 days are dropped, then the list is truncated to the
// most recent 100, oldest first in both cases.
func AppendHistory(history []HistoryPoint, point HistoryPoint, now time.Time) []HistoryPoint {
	history = append(history, point)

	cutoff := now.Add(-HistoryRetention)
	kept := history[:0]
	for _, p := range history {
		if !p.Date.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	if len(kept) > MaxHistoryEntries {
		kept = kept[len(kept)-MaxHistoryEntries:]
	}
	return kept
}

// DetectDeclining reports whether current confidence has dropped below 80% of
// the recent historical mean. Fewer than two history entries never count as
// declining.
func DetectDeclining(current float64, history []HistoryPoint) bool {
	if len(history) < 2 {
		return false
	}

	recent := history
	if len(recent) > 30 {
		recent = recent[len(recent)-30:]
	}

	var sum float64
	for _, p := range recent {
		sum += p.Value
	}
	mean := sum / float64(len(recent))
	return current < 0.8*mean
}

// Trend classifies the direction of a confidence history.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
	TrendUnknown    Trend = "unknown"
)

// ClassifyTrend compares the average of the first third of history against
// the last third. A relative change above +10% is increasing, below -10% is
// decreasing; anything else is stable. Histories shorter than three entries
// are unknown.
func ClassifyTrend(history []HistoryPoint) Trend {
	if len(history) < 3 {
		return TrendUnknown
	}

	third := len(history) / 3
	first := mean(history[:third])
	last := mean(history[len(history)-third:])

	if first == 0 {
		if last > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}

	change := (last - first) / first
	switch {
	case change > 0.1:
		return TrendIncreasing
	case change < -0.1:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func mean(points []HistoryPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
