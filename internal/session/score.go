package session

// Score bands used wherever a quality score is rendered.
const (
	scoreExcellent = 80
	scoreGood      = 60
)

// ScoreLabel maps a commit score to its quality band. A nil score means
// the reviewer produced no numeric verdict.
func ScoreLabel(score *float64) string {
	if score == nil {
		return "No Score"
	}
	switch {
	case *score >= scoreExcellent:
		return "Excellent"
	case *score >= scoreGood:
		return "Good"
	default:
		return "Needs Improvement"
	}
}
