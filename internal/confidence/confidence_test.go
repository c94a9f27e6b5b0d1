package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBounds(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Hour)

	tests := []struct {
		name string
		in   Inputs
	}{
		{"zero lesson", Inputs{FirstSeen: now}},
		{"maxed lesson", Inputs{Occurrences: 50, SuccessRate: 1, FirstSeen: now.Add(-time.Hour), LastSuccess: &recent, HumanReviewed: true}},
		{"never succeeded old lesson", Inputs{Occurrences: 3, SuccessRate: 0.5, FirstSeen: now.Add(-120 * 24 * time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.in, now)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCalculateMonotonicInOccurrences(t *testing.T) {
	now := time.Now()
	success := now.Add(-24 * time.Hour)

	prev := -1.0
	for occ := 0; occ <= 10; occ++ {
		got := Calculate(Inputs{
			Occurrences: occ,
			SuccessRate: 0.8,
			FirstSeen:   now.Add(-10 * 24 * time.Hour),
			LastSuccess: &success,
		}, now)
		assert.GreaterOrEqual(t, got, prev, "confidence must not decrease as occurrences grow (occ=%d)", occ)
		prev = got
	}
}

func TestCalculateHumanReviewBoost(t *testing.T) {
	now := time.Now()
	success := now.Add(-24 * time.Hour)
	base := Inputs{Occurrences: 5, SuccessRate: 0.8, FirstSeen: now.Add(-30 * 24 * time.Hour), LastSuccess: &success}

	unreviewed := Calculate(base, now)
	base.HumanReviewed = true
	reviewed := Calculate(base, now)

	assert.Greater(t, reviewed, unreviewed)
}

func TestCalculateRecencyFloors(t *testing.T) {
	now := time.Now()

	// Succeeded long ago: recency floored at 0.7, not lower.
	old := now.Add(-400 * 24 * time.Hour)
	withSuccess := Calculate(Inputs{Occurrences: 10, SuccessRate: 1, FirstSeen: old, LastSuccess: &old}, now)
	assert.Equal(t, 0.7, withSuccess)

	// Never succeeded: sqrt(0) zeroes the score regardless of recency.
	neverSucceeded := Calculate(Inputs{Occurrences: 10, SuccessRate: 0, FirstSeen: old}, now)
	assert.Equal(t, 0.0, neverSucceeded)
}

func TestAppendHistoryCaps(t *testing.T) {
	now := time.Now()

	var history []HistoryPoint
	for i := 0; i < 150; i++ {
		history = AppendHistory(history, HistoryPoint{Date: now.Add(time.Duration(i) * time.Minute), Value: 0.5}, now)
	}
	assert.Len(t, history, MaxHistoryEntries)

	// Entries beyond the 90-day window are trimmed even under the cap.
	stale := []HistoryPoint{
		{Date: now.Add(-100 * 24 * time.Hour), Value: 0.4},
		{Date: now.Add(-time.Hour), Value: 0.6},
	}
	trimmed := AppendHistory(stale, HistoryPoint{Date: now, Value: 0.7}, now)
	assert.Len(t, trimmed, 2)
	assert.Equal(t, 0.6, trimmed[0].Value, "oldest entries trim first")
}

func TestDetectDeclining(t *testing.T) {
	now := time.Now()

	assert.False(t, DetectDeclining(0.1, nil))
	assert.False(t, DetectDeclining(0.1, []HistoryPoint{{Date: now, Value: 0.9}}), "fewer than 2 entries never declines")

	steady := []HistoryPoint{
		{Date: now.Add(-2 * time.Hour), Value: 0.8},
		{Date: now.Add(-time.Hour), Value: 0.8},
	}
	assert.True(t, DetectDeclining(0.5, steady), "0.5 < 0.8*0.8")
	assert.False(t, DetectDeclining(0.75, steady))
}

func TestClassifyTrend(t *testing.T) {
	now := time.Now()
	mk := func(values ...float64) []HistoryPoint {
		pts := make([]HistoryPoint, len(values))
		for i, v := range values {
			pts[i] = HistoryPoint{Date: now.Add(time.Duration(i) * time.Minute), Value: v}
		}
		return pts
	}

	assert.Equal(t, TrendUnknown, ClassifyTrend(mk(0.5, 0.6)))
	assert.Equal(t, TrendIncreasing, ClassifyTrend(mk(0.3, 0.5, 0.7, 0.8, 0.9, 0.9)))
	assert.Equal(t, TrendDecreasing, ClassifyTrend(mk(0.9, 0.8, 0.6, 0.5, 0.4, 0.3)))
	assert.Equal(t, TrendStable, ClassifyTrend(mk(0.7, 0.7, 0.71, 0.7, 0.69, 0.7)))
}
