package analysis

import (
	"testing"

	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/model"
	"github.com/mverbeek/sensetrack/pkg/testutil"
)

func testConfig() config.Config {
	return config.Config{
		MinDataPoints:           10,
		RecommendedTimeSpanDays: 21,
		CorrelationMinEntries:   10,
		CorrelationThreshold:    0.25,
		AnomalyStdDevs:          2.0,
		RecentWindowDays:        7,
		BaselineWindowDays:      30,
	}
}

func TestDetectEmotionPatternsEmpty(t *testing.T) {
	patterns := DetectEmotionPatterns(nil, testConfig())
	if patterns == nil {
		t.Fatal("want empty slice, got nil")
	}
	if len(patterns) != 0 {
		t.Fatalf("got %d patterns from empty input", len(patterns))
	}
}

func TestDetectEmotionPatternsGroupsByLabel(t *testing.T) {
	g := testutil.Default()
	emotions := append(
		g.EmotionSeries(model.EmotionAnxious, 8, 4, 3, 5),
		g.EmotionSeries(model.EmotionCalm, 4, 4, 1, 2)...,
	)

	patterns := DetectEmotionPatterns(emotions, testConfig())
	if len(patterns) != 2 {
		t.Fatalf("got %d patterns, want 2", len(patterns))
	}

	anxious := testutil.FindPattern(t, patterns, "anxious")
	if anxious.Count != 8 {
		t.Errorf("anxious count = %d, want 8", anxious.Count)
	}
	testutil.AssertInDelta(t, "anxious frequency", anxious.Frequency, 8.0/12.0, 1e-9)
	if anxious.Kind != model.PatternEmotion {
		t.Errorf("kind = %s, want emotion", anxious.Kind)
	}
	if anxious.AvgIntensity < 3 || anxious.AvgIntensity > 5 {
		t.Errorf("avg intensity %v outside generated range", anxious.AvgIntensity)
	}
	if anxious.FirstSeen.Time().After(anxious.LastSeen.Time()) {
		t.Error("FirstSeen after LastSeen")
	}
}

// Fifteen entries packed into five observed days saturate the data
// component but keep the time component low: confidence must reflect the
// short observation window despite the ample point count.
func TestBurstOfEntriesLimitedByObservedDays(t *testing.T) {
	g := testutil.Default()
	emotions := g.EmotionSeries(model.EmotionFrustrated, 15, 5, 3, 3)

	patterns := DetectEmotionPatterns(emotions, testConfig())
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(patterns))
	}
	p := patterns[0]
	testutil.AssertInDelta(t, "time span days", p.TimeSpanDays, 5, 1e-9)

	// data = 1.0 (15/10 capped), time = 5/21. Constant intensity gives
	// no usable fit, so confidence is the mean of data and time alone.
	testutil.AssertInDelta(t, "confidence", p.Confidence, (1.0+5.0/21.0)/2, 1e-9)
	if p.Strength != model.StrengthModerate {
		t.Errorf("strength = %s, want moderate", p.Strength)
	}
}

func TestSameDayBurstCountsOneObservedDay(t *testing.T) {
	g := testutil.Default()
	emotions := g.EmotionSeries(model.EmotionHappy, 15, 1, 2, 4)

	patterns := DetectEmotionPatterns(emotions, testConfig())
	p := patterns[0]
	testutil.AssertInDelta(t, "time span days", p.TimeSpanDays, 1, 1e-9)
}

func TestDetectSensoryPatternsGroupsByChannelResponse(t *testing.T) {
	g := testutil.Default()
	sensory := append(
		g.SensorySeries(model.ChannelAuditory, model.ResponseAvoiding, 6, 3, 3, 5),
		g.SensorySeries(model.ChannelAuditory, model.ResponseSeeking, 3, 3, 1, 2)...,
	)

	patterns := DetectSensoryPatterns(sensory, testConfig())
	if len(patterns) != 2 {
		t.Fatalf("got %d patterns, want 2", len(patterns))
	}
	avoiding := testutil.FindPattern(t, patterns, "auditory/avoiding")
	if avoiding.Count != 6 {
		t.Errorf("count = %d, want 6", avoiding.Count)
	}
	if avoiding.Kind != model.PatternSensory {
		t.Errorf("kind = %s, want sensory", avoiding.Kind)
	}
}

func TestPatternsSortedByConfidence(t *testing.T) {
	g := testutil.Default()
	emotions := append(
		g.EmotionSeries(model.EmotionAnxious, 20, 21, 3, 5),
		g.EmotionSeries(model.EmotionSad, 3, 2, 1, 2)...,
	)

	patterns := DetectEmotionPatterns(emotions, testConfig())
	for i := 1; i < len(patterns); i++ {
		if patterns[i-1].Confidence < patterns[i].Confidence {
			t.Fatalf("patterns not sorted by confidence: %v then %v",
				patterns[i-1].Confidence, patterns[i].Confidence)
		}
	}
	if patterns[0].Category != "anxious" {
		t.Errorf("strongest pattern = %s, want anxious", patterns[0].Category)
	}
}
