package analysis

import (
	"testing"
	"time"

	"github.com/mverbeek/sensetrack/pkg/model"
	"github.com/mverbeek/sensetrack/pkg/testutil"
)

// alternatingEmotions yields count entries whose intensity alternates
// between lo and hi, one per day. The alternation keeps the baseline
// standard deviation non-zero.
func alternatingEmotions(g *testutil.Generator, label model.Emotion, count, lo, hi int) []model.EmotionEntry {
	out := make([]model.EmotionEntry, 0, count)
	for i := 0; i < count; i++ {
		intensity := lo
		if i%2 == 1 {
			intensity = hi
		}
		out = append(out, g.Emotion(label, intensity, time.Duration(i)*24*time.Hour))
	}
	return out
}

func TestDetectAnomaliesEmpty(t *testing.T) {
	anomalies := DetectAnomalies(nil, nil, testConfig())
	if anomalies == nil {
		t.Fatal("want empty slice, got nil")
	}
	if len(anomalies) != 0 {
		t.Fatalf("got %d anomalies from empty input", len(anomalies))
	}
}

func TestDetectAnomaliesSpike(t *testing.T) {
	g := testutil.Default()
	emotions := alternatingEmotions(g, model.EmotionAnxious, 10, 2, 3)
	spike := g.Emotion(model.EmotionAnxious, 5, 10*24*time.Hour)
	emotions = append(emotions, spike)

	anomalies := DetectAnomalies(emotions, nil, testConfig())
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want exactly the spike", len(anomalies))
	}
	a := anomalies[0]
	if a.EntryID != spike.ID {
		t.Errorf("flagged %s, want %s", a.EntryID, spike.ID)
	}
	if a.Kind != model.PatternEmotion || a.Category != "anxious" {
		t.Errorf("kind/category = %s/%s", a.Kind, a.Category)
	}
	testutil.AssertInDelta(t, "baseline", a.Baseline, 2.5, 1e-9)
	if a.Value != 5 {
		t.Errorf("value = %v, want 5", a.Value)
	}
	// |5 - 2.5| / 0.527 ≈ 4.7 standard deviations, well past severe.
	if a.Deviation < 4 {
		t.Errorf("deviation = %v, want > 4", a.Deviation)
	}
	if a.Severity != model.AnomalySevere {
		t.Errorf("severity = %s, want severe", a.Severity)
	}
}

// A perfectly flat baseline has no spread to measure deviation against;
// the spike is skipped rather than divided by zero.
func TestDetectAnomaliesFlatBaselineSkipped(t *testing.T) {
	g := testutil.Default()
	var emotions []model.EmotionEntry
	for i := 0; i < 8; i++ {
		emotions = append(emotions, g.Emotion(model.EmotionCalm, 3, time.Duration(i)*24*time.Hour))
	}
	emotions = append(emotions, g.Emotion(model.EmotionCalm, 5, 8*24*time.Hour))

	if got := DetectAnomalies(emotions, nil, testConfig()); len(got) != 0 {
		t.Fatalf("flat baseline produced %d anomalies", len(got))
	}
}

func TestDetectAnomaliesNeedsBaseline(t *testing.T) {
	g := testutil.Default()
	emotions := []model.EmotionEntry{
		g.Emotion(model.EmotionSad, 2, 0),
		g.Emotion(model.EmotionSad, 3, 24*time.Hour),
		g.Emotion(model.EmotionSad, 5, 48*time.Hour),
	}
	if got := DetectAnomalies(emotions, nil, testConfig()); len(got) != 0 {
		t.Fatalf("got %d anomalies with fewer than 3 prior observations", len(got))
	}
}

// Categories are baselined independently: a value ordinary for one emotion
// must not be judged against another emotion's history.
func TestDetectAnomaliesPerCategoryBaseline(t *testing.T) {
	g := testutil.Default()
	emotions := alternatingEmotions(g, model.EmotionCalm, 10, 1, 2)
	// Happy entries at intensity 4-5 are normal for that label.
	for i := 0; i < 6; i++ {
		intensity := 4 + i%2
		emotions = append(emotions, g.Emotion(model.EmotionHappy, intensity, time.Duration(i)*24*time.Hour))
	}

	if got := DetectAnomalies(emotions, nil, testConfig()); len(got) != 0 {
		t.Fatalf("cross-category baseline leak: %d anomalies", len(got))
	}
}

func TestDetectAnomaliesSensoryByChannel(t *testing.T) {
	g := testutil.Default()
	var sensory []model.SensoryEntry
	for i := 0; i < 10; i++ {
		intensity := 2 + i%2
		sensory = append(sensory, g.Sensory(model.ChannelAuditory, model.ResponseAvoiding, intensity, time.Duration(i)*24*time.Hour))
	}
	spike := g.Sensory(model.ChannelAuditory, model.ResponseOverwhelmed, 5, 10*24*time.Hour)
	sensory = append(sensory, spike)

	anomalies := DetectAnomalies(nil, sensory, testConfig())
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
	if anomalies[0].Kind != model.PatternSensory || anomalies[0].Category != "auditory" {
		t.Errorf("kind/category = %s/%s, want sensory/auditory", anomalies[0].Kind, anomalies[0].Category)
	}
}

func TestDetectAnomaliesSortedByTime(t *testing.T) {
	g := testutil.Default()
	emotions := alternatingEmotions(g, model.EmotionAnxious, 10, 2, 3)
	emotions = append(emotions,
		g.Emotion(model.EmotionAnxious, 5, 10*24*time.Hour),
		g.Emotion(model.EmotionAnxious, 5, 12*24*time.Hour),
	)
	sensory := make([]model.SensoryEntry, 0, 11)
	for i := 0; i < 10; i++ {
		sensory = append(sensory, g.Sensory(model.ChannelTactile, model.ResponseNeutral, 2+i%2, time.Duration(i)*24*time.Hour))
	}
	sensory = append(sensory, g.Sensory(model.ChannelTactile, model.ResponseAvoiding, 5, 11*24*time.Hour))

	anomalies := DetectAnomalies(emotions, sensory, testConfig())
	if len(anomalies) < 2 {
		t.Fatalf("got %d anomalies, want several", len(anomalies))
	}
	for i := 1; i < len(anomalies); i++ {
		prev, cur := anomalies[i-1].Timestamp.Time(), anomalies[i].Timestamp.Time()
		if prev.After(cur) {
			t.Fatalf("anomalies out of time order: %v after %v", prev, cur)
		}
	}
}

func TestSeverityBuckets(t *testing.T) {
	const threshold = 2.0
	cases := []struct {
		z    float64
		want model.AnomalySeverity
	}{
		{2.0, model.AnomalyMild},
		{2.49, model.AnomalyMild},
		{2.5, model.AnomalyModerate},
		{3.49, model.AnomalyModerate},
		{3.5, model.AnomalySevere},
		{6.0, model.AnomalySevere},
	}
	for _, tc := range cases {
		if got := severityOf(tc.z, threshold); got != tc.want {
			t.Errorf("severityOf(%v, %v) = %s, want %s", tc.z, threshold, got, tc.want)
		}
	}
}
