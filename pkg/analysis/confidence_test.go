package analysis

import (
	"testing"

	"github.com/mverbeek/sensetrack/pkg/model"
	"github.com/mverbeek/sensetrack/pkg/testutil"
)

func TestScoreAllComponents(t *testing.T) {
	c := Score(ConfidenceInputs{
		DataPoints:         20,
		MinDataPoints:      10,
		TimeSpanDays:       30,
		RecommendedDays:    21,
		PatternStrength:    0.8,
		HasPatternStrength: true,
	})

	testutil.AssertInDelta(t, "data", c.Data, 1.0, 1e-9)
	testutil.AssertInDelta(t, "time", c.Time, 1.0, 1e-9)
	testutil.AssertInDelta(t, "pattern", c.Pattern, 0.8, 1e-9)
	testutil.AssertInDelta(t, "overall", c.Overall, (1.0+1.0+0.8)/3, 1e-9)
}

func TestScoreWithoutPatternComponent(t *testing.T) {
	c := Score(ConfidenceInputs{
		DataPoints:      15,
		MinDataPoints:   10,
		TimeSpanDays:    5,
		RecommendedDays: 21,
	})

	testutil.AssertInDelta(t, "data", c.Data, 1.0, 1e-9)
	testutil.AssertInDelta(t, "time", c.Time, 5.0/21.0, 1e-9)
	if c.Pattern != 0 {
		t.Fatalf("pattern component = %v without a fit", c.Pattern)
	}
	testutil.AssertInDelta(t, "overall", c.Overall, (1.0+5.0/21.0)/2, 1e-9)
}

func TestScoreClampsComponents(t *testing.T) {
	c := Score(ConfidenceInputs{
		DataPoints:         100,
		MinDataPoints:      10,
		TimeSpanDays:       400,
		RecommendedDays:    21,
		PatternStrength:    3.5,
		HasPatternStrength: true,
	})
	if c.Data != 1 || c.Time != 1 || c.Pattern != 1 {
		t.Fatalf("components not capped at 1: %+v", c)
	}
	if c.Overall != 1 {
		t.Fatalf("overall = %v, want 1", c.Overall)
	}
}

func TestScoreZeroInputs(t *testing.T) {
	c := Score(ConfidenceInputs{})
	if c.Overall != 0 {
		t.Fatalf("overall = %v for zero inputs", c.Overall)
	}
}

func TestStrengthBuckets(t *testing.T) {
	cases := []struct {
		confidence float64
		want       model.PatternStrength
	}{
		{0.0, model.StrengthWeak},
		{0.39, model.StrengthWeak},
		{0.4, model.StrengthModerate},
		{0.69, model.StrengthModerate},
		{0.7, model.StrengthStrong},
		{1.0, model.StrengthStrong},
	}
	for _, tc := range cases {
		if got := Strength(tc.confidence); got != tc.want {
			t.Errorf("Strength(%v) = %s, want %s", tc.confidence, got, tc.want)
		}
	}
}
