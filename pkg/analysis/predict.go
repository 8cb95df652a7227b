package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
)

// Trend metrics produced by PredictTrends.
const (
	MetricEmotionIntensity = "emotion_intensity"
	MetricSensoryIntensity = "sensory_intensity"
)

// minTrendDays is the fewest distinct recent days a trend fit accepts.
const minTrendDays = 3

// stableSlopePerDay is the slope magnitude (intensity points per day)
// below which a fit reads as stable rather than a direction.
const stableSlopePerDay = 0.05

type dailyPoint struct {
	day  time.Time
	mean float64
}

// PredictTrends fits each metric over its recent window against the
// longer baseline window and emits directional insights with
// recommendations. The latest observation anchors "now" so results are
// deterministic for a fixed dataset.
func PredictTrends(emotions []model.EmotionEntry, sensory []model.SensoryEntry, cfg config.Config) []model.PredictiveInsight {
	defer metrics.Timer(metrics.PredictiveInsights)()

	insights := []model.PredictiveInsight{}

	emotionSeries := make(map[time.Time][]float64)
	var anchor time.Time
	for _, e := range emotions {
		t := e.Timestamp.Time()
		day := t.UTC().Truncate(24 * time.Hour)
		emotionSeries[day] = append(emotionSeries[day], float64(e.Intensity))
		if t.After(anchor) {
			anchor = t
		}
	}
	sensorySeries := make(map[time.Time][]float64)
	for _, s := range sensory {
		t := s.Timestamp.Time()
		day := t.UTC().Truncate(24 * time.Hour)
		sensorySeries[day] = append(sensorySeries[day], float64(s.Intensity))
		if t.After(anchor) {
			anchor = t
		}
	}

	if in, ok := fitMetric(MetricEmotionIntensity, emotionSeries, anchor, cfg); ok {
		insights = append(insights, in)
	}
	if in, ok := fitMetric(MetricSensoryIntensity, sensorySeries, anchor, cfg); ok {
		insights = append(insights, in)
	}
	return insights
}

func fitMetric(metric string, series map[time.Time][]float64, anchor time.Time, cfg config.Config) (model.PredictiveInsight, bool) {
	if len(series) == 0 || anchor.IsZero() {
		return model.PredictiveInsight{}, false
	}

	points := make([]dailyPoint, 0, len(series))
	for day, vals := range series {
		points = append(points, dailyPoint{day: day, mean: stat.Mean(vals, nil)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].day.Before(points[j].day) })

	recentCutoff := anchor.Add(-time.Duration(cfg.RecentWindowDays) * 24 * time.Hour)
	baselineCutoff := anchor.Add(-time.Duration(cfg.BaselineWindowDays) * 24 * time.Hour)

	var recent []dailyPoint
	var baselineVals []float64
	var recentCount int
	for _, p := range points {
		if p.day.Before(baselineCutoff) {
			continue
		}
		if p.day.After(recentCutoff) || p.day.Equal(recentCutoff) {
			recent = append(recent, p)
			recentCount += len(series[p.day])
		} else {
			baselineVals = append(baselineVals, p.mean)
		}
	}
	if len(recent) < minTrendDays {
		return model.PredictiveInsight{}, false
	}

	xs := make([]float64, len(recent))
	ys := make([]float64, len(recent))
	base := recent[0].day
	for i, p := range recent {
		xs[i] = p.day.Sub(base).Hours() / 24
		ys[i] = p.mean
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		r2 = 0
	}
	r2 = clamp01(r2)

	direction := model.TrendStable
	switch {
	case beta >= stableSlopePerDay:
		direction = model.TrendIncreasing
	case beta <= -stableSlopePerDay:
		direction = model.TrendDecreasing
	}

	recentMean := stat.Mean(ys, nil)
	baselineMean := recentMean
	if len(baselineVals) > 0 {
		baselineMean = stat.Mean(baselineVals, nil)
	}

	conf := Score(ConfidenceInputs{
		DataPoints:         recentCount,
		MinDataPoints:      cfg.MinDataPoints,
		TimeSpanDays:       float64(len(recent)),
		RecommendedDays:    float64(cfg.RecentWindowDays),
		PatternStrength:    r2,
		HasPatternStrength: true,
	})

	return model.PredictiveInsight{
		Metric:          metric,
		Direction:       direction,
		Accuracy:        r2,
		Confidence:      conf.Overall,
		RecentMean:      recentMean,
		BaselineMean:    baselineMean,
		Severity:        trendSeverity(direction, recentMean, baselineMean),
		Recommendations: recommendationsFor(metric, direction, recentMean, baselineMean),
	}, true
}

// trendSeverity prioritizes rising intensity that has pulled clear of the
// baseline; falling or flat trends are informational.
func trendSeverity(direction model.TrendDirection, recentMean, baselineMean float64) model.InsightSeverity {
	if direction != model.TrendIncreasing {
		return model.SeverityInfo
	}
	switch delta := recentMean - baselineMean; {
	case delta >= 1.0:
		return model.SeverityCritical
	case delta >= 0.3:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func recommendationsFor(metric string, direction model.TrendDirection, recentMean, baselineMean float64) []string {
	label := "emotional intensity"
	if metric == MetricSensoryIntensity {
		label = "sensory response intensity"
	}

	switch direction {
	case model.TrendIncreasing:
		recs := []string{
			fmt.Sprintf("Average %s is trending upward (%.1f recently vs %.1f baseline); review recent environment or routine changes.", label, recentMean, baselineMean),
			"Consider increasing observation frequency to catch triggers earlier.",
		}
		if metric == MetricSensoryIntensity {
			recs = append(recs, "Check whether specific sensory channels dominate the increase and plan accommodations for them.")
		}
		return recs
	case model.TrendDecreasing:
		return []string{
			fmt.Sprintf("Average %s is trending downward (%.1f recently vs %.1f baseline); current supports appear effective.", label, recentMean, baselineMean),
		}
	default:
		return []string{
			fmt.Sprintf("Average %s is stable around %.1f; keep the current observation cadence.", label, recentMean),
		}
	}
}
