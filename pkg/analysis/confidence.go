package analysis

import "github.com/mverbeek/sensetrack/pkg/model"

// ConfidenceInputs are the raw components of a confidence score.
// PatternStrength is a statistical fit measure (R²) and only participates
// when HasPatternStrength is set; frequency-only patterns carry no fit.
type ConfidenceInputs struct {
	DataPoints         int
	MinDataPoints      int
	TimeSpanDays       float64
	RecommendedDays    float64
	PatternStrength    float64
	HasPatternStrength bool
}

// Confidence is the scored breakdown. Every component is normalized to
// [0,1] and capped at 1; Overall is the arithmetic mean of the
// components that apply.
type Confidence struct {
	Data    float64 `json:"data"`
	Time    float64 `json:"time"`
	Pattern float64 `json:"pattern,omitempty"`
	Overall float64 `json:"overall"`
}

// Score combines the components of in into a Confidence.
//
// data-quantity score   = min(dataPoints / minDataPoints, 1)
// time-span score       = min(observedDays / recommendedDays, 1)
// pattern-strength score = clamped R² of the detected trend
func Score(in ConfidenceInputs) Confidence {
	c := Confidence{}

	if in.MinDataPoints > 0 {
		c.Data = clamp01(float64(in.DataPoints) / float64(in.MinDataPoints))
	}
	if in.RecommendedDays > 0 {
		c.Time = clamp01(in.TimeSpanDays / in.RecommendedDays)
	}

	sum := c.Data + c.Time
	n := 2.0
	if in.HasPatternStrength {
		c.Pattern = clamp01(in.PatternStrength)
		sum += c.Pattern
		n++
	}
	c.Overall = sum / n
	return c
}

// Strength bucket thresholds: weak < 0.4 <= moderate < 0.7 <= strong.
const (
	moderateThreshold = 0.4
	strongThreshold   = 0.7
)

// Strength maps an overall confidence to its qualitative bucket.
func Strength(confidence float64) model.PatternStrength {
	switch {
	case confidence >= strongThreshold:
		return model.StrengthStrong
	case confidence >= moderateThreshold:
		return model.StrengthModerate
	default:
		return model.StrengthWeak
	}
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
