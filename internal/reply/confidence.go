package reply

import "math"

const (
	SmartFallbackConfidence = 0.4
	PlainFallbackConfidence = 0.2
)

// EstimateConfidence maps an outcome to a confidence in [0, 1]. score is
// only read for OutcomeMatched.
func EstimateConfidence(outcome Outcome, score float64) float64 {
	switch outcome {
	case OutcomeMatched:
		return clamp01(score)
	case OutcomeSmartFallback:
		return SmartFallbackConfidence
	default:
		return PlainFallbackConfidence
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
