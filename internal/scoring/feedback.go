package scoring

const (
	FeedbackPerfect    = "excellent, you answered every question correctly!"
	FeedbackVeryGood   = "very good, nearly perfect"
	FeedbackGood       = "good, could improve with more practice"
	FeedbackAverage    = "average, review the topic"
	FeedbackNeedsStudy = "needs to restudy this topic"
)

// GenerateFeedback picks the overall message for a graded submission from the
// score/maxScore ratio. A zero maxScore lands in the lowest tier.
func GenerateFeedback(_ Breakdown, score, maxScore float64) string {
	if maxScore <= 0 {
		return FeedbackNeedsStudy
	}
	ratio := score / maxScore
	switch {
	case ratio >= 1:
		return FeedbackPerfect
	case ratio >= 0.8:
		return FeedbackVeryGood
	case ratio >= 0.6:
		return FeedbackGood
	case ratio >= 0.4:
		return FeedbackAverage
	default:
		return FeedbackNeedsStudy
	}
}

// CalculatePercentage returns score as a percentage of maxScore, or 0 when
// maxScore is 0.
func CalculatePercentage(score, maxScore float64) float64 {
	if maxScore == 0 {
		return 0
	}
	return score / maxScore * 100
}

// GradeLevel maps a percentage to a letter grade.
func GradeLevel(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}
