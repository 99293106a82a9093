package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateFeedback_Breakpoints(t *testing.T) {
	tests := []struct {
		score, max float64
		want       string
	}{
		{5, 5, FeedbackPerfect},
		{4.9, 5, FeedbackVeryGood},
		{4, 5, FeedbackVeryGood},
		{3.9, 5, FeedbackGood},
		{3, 5, FeedbackGood},
		{2.9, 5, FeedbackAverage},
		{2, 5, FeedbackAverage},
		{1.9, 5, FeedbackNeedsStudy},
		{0, 5, FeedbackNeedsStudy},
		{0, 0, FeedbackNeedsStudy},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, GenerateFeedback(nil, tc.score, tc.max), "score=%v max=%v", tc.score, tc.max)
	}
}

func TestGenerateFeedback_MonotonicTone(t *testing.T) {
	rank := map[string]int{
		FeedbackNeedsStudy: 0,
		FeedbackAverage:    1,
		FeedbackGood:       2,
		FeedbackVeryGood:   3,
		FeedbackPerfect:    4,
	}
	prev := -1
	for s := 0.0; s <= 10; s += 0.1 {
		r := rank[GenerateFeedback(nil, s, 10)]
		assert.GreaterOrEqual(t, r, prev)
		prev = r
	}
}

func TestCalculatePercentage(t *testing.T) {
	assert.Equal(t, 0.0, CalculatePercentage(0, 0))
	assert.Equal(t, 0.0, CalculatePercentage(3, 0))
	assert.Equal(t, 50.0, CalculatePercentage(1, 2))
	assert.InDelta(t, 76.666, CalculatePercentage(2.3, 3), 0.001)
}

func TestGradeLevel(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A"}, {90, "A"}, {89.99, "B"}, {80, "B"}, {79.9, "C"},
		{70, "C"}, {69, "D"}, {60, "D"}, {59.99, "F"}, {0, "F"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, GradeLevel(tc.pct), "pct=%v", tc.pct)
	}
}
